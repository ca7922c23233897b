// Package config handles loading and parsing application configuration.
// Both binaries (churn-api and churn-train) share it.
//
// The config file path comes from (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// A .env file in the working directory, if present, is loaded into the
// environment first, so local overrides do not need exporting by hand.
//
// The parsed values are returned as a *Config pointer so the struct is
// shared by reference rather than copied everywhere.
package config

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
//
// Everything except env has a default matching the reference project
// layout, so a config file can be as short as `env: dev`.
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	// LogFile, when set, also writes logs to a size-rotated file.
	LogFile string `yaml:"log_file" env:"LOG_FILE"`

	HTTPServer `yaml:"http_server"`
	Model      `yaml:"model"`
	Dataset    `yaml:"dataset"`
	Tracking   `yaml:"tracking"`
	Training   `yaml:"training"`
}

// HTTPServer holds settings specific to the prediction server.
type HTTPServer struct {
	// Addr is the TCP address the server listens on, e.g. "localhost:8000".
	Addr string `yaml:"address" env:"HTTP_SERVER_ADDR" env-default:"localhost:8000"`
}

// Model locates the persisted pipeline and names the version /health reports.
type Model struct {
	Path    string `yaml:"path"    env:"MODEL_PATH"    env-default:"model.joblib"`
	Version string `yaml:"version" env:"MODEL_VERSION" env-default:"1.0"`
}

// Dataset locates the training CSV.
type Dataset struct {
	Path string `yaml:"path" env:"DATASET_PATH" env-default:"data/Churn_Modelling.csv"`
}

// Tracking addresses the experiment-tracking store.
type Tracking struct {
	URI        string `yaml:"uri"        env:"TRACKING_URI"        env-default:"sqlite:///mlflow.db"`
	Experiment string `yaml:"experiment" env:"TRACKING_EXPERIMENT" env-default:"ChurnPrediction"`
}

// Training holds the hyperparameters of the training run.
type Training struct {
	NEstimators int     `yaml:"n_estimators" env:"TRAINING_N_ESTIMATORS" env-default:"100"`
	RandomState int64   `yaml:"random_state" env:"TRAINING_RANDOM_STATE" env-default:"42"`
	TestSize    float64 `yaml:"test_size"    env:"TRAINING_TEST_SIZE"    env-default:"0.2"`
}

// Load reads the YAML file at path, applies env overrides and defaults,
// and validates env-required constraints.
func Load(path string) (*Config, error) {
	// Verify the file exists before trying to read it so the message is
	// clear rather than a cryptic "open: no such file" later.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	return &cfg, nil
}

// MustLoad resolves the config path, reads the config and returns it.
//
// The name "MustLoad" follows a Go convention: functions prefixed with
// "Must" are allowed to panic/fatal on failure. Callers do not need to
// check a returned error. If this function returns, the config is valid.
//
// MustLoad parses the command line; positional arguments are available
// through flag.Args() afterwards.
func MustLoad() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// flag.String registers the flag before Parse reads os.Args.
	flagPath := flag.String("config", "", "Path to the configuration YAML file")
	if !flag.Parsed() {
		flag.Parse()
	}

	// ── Source 1: environment variable ───────────────────────────────
	configPath := os.Getenv("CONFIG_PATH")

	// ── Source 2: command-line flag ───────────────────────────────────
	if configPath == "" {
		configPath = *flagPath
	}

	// Neither source provided a path, so we cannot continue.
	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}
