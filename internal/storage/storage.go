// Package storage defines the Tracker interface: the contract any
// experiment-tracking backend must satisfy to record training and
// evaluation runs.
//
// WHY AN INTERFACE?
// ─────────────────
// The training orchestrator should not know or care where runs end up.
// By depending only on this interface:
//
//   - Switching backends = implement the interface for the new store,
//     change one line in cmd/churn-train. Zero orchestrator changes.
//
//   - Writing tests = pass a fake that satisfies the interface.
//     No real database needed for orchestrator unit tests.
//
// Tracking is one-way: the pipeline writes runs and never reads them back
// to make decisions. GetRun exists for operators and tests.
package storage

import (
	"context"

	"github.com/aanand-mishra/churn-api/internal/types"
)

// Run status values passed to EndRun.
const (
	RunFinished = "FINISHED"
	RunFailed   = "FAILED"
)

// Tracker is the experiment-tracking contract.
type Tracker interface {
	// StartRun opens a new run in the configured experiment and returns
	// its generated ID.
	StartRun(ctx context.Context, name string, tags map[string]string) (string, error)

	// LogParam records a named run parameter (e.g. n_estimators=100).
	LogParam(ctx context.Context, runID, key, value string) error

	// LogMetric records a named numeric result (e.g. accuracy=0.86).
	LogMetric(ctx context.Context, runID, key string, value float64) error

	// LogArtifact stores an opaque blob (the serialised model) under name.
	LogArtifact(ctx context.Context, runID, name string, data []byte) error

	// EndRun marks the run finished or failed.
	EndRun(ctx context.Context, runID, status string) error

	// GetRun returns everything recorded for a run.
	GetRun(ctx context.Context, runID string) (types.Run, error)

	// Close releases the underlying store.
	Close() error
}
