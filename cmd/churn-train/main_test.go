package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/aanand-mishra/churn-api/internal/config"
	"github.com/aanand-mishra/churn-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Env:      "dev",
		Model:    config.Model{Path: filepath.Join(dir, "model.joblib"), Version: "1.0"},
		Dataset:  config.Dataset{Path: testutil.WriteChurnCSV(t, dir, 120)},
		Tracking: config.Tracking{URI: "sqlite:///" + filepath.Join(dir, "mlflow.db"), Experiment: "ChurnPrediction"},
		Training: config.Training{NEstimators: 5, RandomState: 42, TestSize: 0.2},
	}
}

func TestRun_ExitCodes(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name   string
		mutate func(*config.Config)
		action string
		want   int
		output string
	}{
		{name: "prepare_data", action: "prepare_data", want: exitOK, output: "Training samples: 96, Test samples: 24"},
		{name: "train", action: "train", want: exitOK, output: "Model trained with accuracy:"},
		{name: "unknown action", action: "deploy", want: exitOK, output: "Unknown action."},
		{name: "evaluate without model", action: "evaluate", want: exitError},
		{
			name:   "missing dataset",
			mutate: func(c *config.Config) { c.Dataset.Path = filepath.Join(t.TempDir(), "absent.csv") },
			action: "train",
			want:   exitError,
		},
		{
			name:   "tracking store unavailable",
			mutate: func(c *config.Config) { c.Tracking.URI = "postgresql://localhost/mlflow" },
			action: "train",
			want:   exitOK,
			output: "Model trained with accuracy:",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			var out bytes.Buffer

			code := run(context.Background(), cfg, tt.action, log, &out)

			assert.Equal(t, tt.want, code)
			if tt.output != "" {
				assert.Contains(t, out.String(), tt.output)
			}
		})
	}
}

func TestRun_TrainThenEvaluate(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	var out bytes.Buffer

	require.Equal(t, exitOK, run(context.Background(), cfg, "train", log, &out))
	require.Equal(t, exitOK, run(context.Background(), cfg, "evaluate", log, &out))
	assert.Contains(t, out.String(), "Loaded model accuracy:")
}
