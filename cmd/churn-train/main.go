// main is the entry point of the training CLI.
//
// It runs one action to completion and exits:
//
//	churn-train --config=config/local.yaml prepare_data
//	churn-train --config=config/local.yaml train
//	churn-train --config=config/local.yaml evaluate
//
// train writes the model file that churn-api loads at startup, and both
// train and evaluate record their runs in the tracking store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aanand-mishra/churn-api/internal/config"
	"github.com/aanand-mishra/churn-api/internal/logger"
	"github.com/aanand-mishra/churn-api/internal/storage"
	"github.com/aanand-mishra/churn-api/internal/storage/sqlite"
	"github.com/aanand-mishra/churn-api/internal/training"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	flag.Usage = usage
	cfg := config.MustLoad()

	log := logger.New(cfg.Env, cfg.LogFile)
	slog.SetDefault(log)

	if flag.NArg() != 1 {
		usage()
		os.Exit(exitUsage)
	}
	os.Exit(run(context.Background(), cfg, flag.Arg(0), log, os.Stdout))
}

// run executes action and returns the process exit code. An unknown
// action prints its usage line and still exits 0; see DESIGN.md.
func run(ctx context.Context, cfg *config.Config, action string, log *slog.Logger, out io.Writer) int {
	// Without a tracking store the actions still run, unrecorded.
	var tracker storage.Tracker
	if t, err := sqlite.New(cfg.Tracking.URI, cfg.Tracking.Experiment); err != nil {
		log.Warn("experiment tracking disabled",
			slog.String("uri", cfg.Tracking.URI),
			slog.String("error", err.Error()))
	} else {
		tracker = t
		defer t.Close()
	}

	orch := training.New(training.Options{
		DatasetPath: cfg.Dataset.Path,
		ModelPath:   cfg.Model.Path,
		NEstimators: cfg.Training.NEstimators,
		RandomState: cfg.Training.RandomState,
		TestSize:    cfg.Training.TestSize,
	}, tracker, log, out)

	res, err := orch.Run(ctx, action)
	if err != nil {
		log.Error("action failed",
			slog.String("action", action),
			slog.String("error", err.Error()))
		return exitError
	}

	log.Debug("action finished",
		slog.String("action", action),
		slog.String("outcome", res.Outcome.String()))
	return exitOK
}

func usage() {
	actions := make([]string, len(training.Actions))
	for i, a := range training.Actions {
		actions[i] = string(a)
	}
	fmt.Fprintf(flag.CommandLine.Output(),
		"Churn prediction pipeline with experiment tracking.\n\nUsage: %s [--config=path] <%s>\n\n",
		os.Args[0], strings.Join(actions, "|"))
	flag.PrintDefaults()
}
