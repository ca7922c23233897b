// Package serving holds the prediction service's model state.
//
// A Predictor is in one of two states, decided once at construction:
// ModelLoaded or ModelUnavailable. A failed load does not stop the
// process; it degrades the service, and /health reports it.
package serving

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aanand-mishra/churn-api/internal/dataset"
	"github.com/aanand-mishra/churn-api/internal/model"
	"github.com/aanand-mishra/churn-api/internal/storage/modelfile"
	"github.com/aanand-mishra/churn-api/internal/types"
)

// ErrModelUnavailable is returned by Predict in the ModelUnavailable state.
var ErrModelUnavailable = errors.New("model not loaded")

// State is the model load state.
type State int

const (
	StateModelUnavailable State = iota
	StateModelLoaded
)

// String returns the status text reported by /health.
func (s State) String() string {
	if s == StateModelLoaded {
		return "loaded"
	}
	return "not loaded"
}

// Predictor serves predictions from an immutable pipeline. All fields are
// set once by New and only read afterwards, so request goroutines share
// it without locking.
type Predictor struct {
	pipeline *model.Pipeline
	state    State
	version  string
	loadErr  error
}

// New tries to load the pipeline at path. It never fails: a load error
// leaves the Predictor in StateModelUnavailable, with the cause
// available from LoadErr.
func New(path, version string, log *slog.Logger) *Predictor {
	p, err := modelfile.Load(path)
	if err != nil {
		log.Warn("model unavailable, serving in degraded mode",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return &Predictor{state: StateModelUnavailable, version: version, loadErr: err}
	}
	log.Info("model loaded", slog.String("path", path), slog.String("version", version))
	return NewWithPipeline(p, version)
}

// NewWithPipeline wraps an already-fitted pipeline. A nil pipeline yields
// an unavailable Predictor.
func NewWithPipeline(p *model.Pipeline, version string) *Predictor {
	if p == nil {
		return &Predictor{state: StateModelUnavailable, version: version, loadErr: model.ErrNotFitted}
	}
	return &Predictor{pipeline: p, state: StateModelLoaded, version: version}
}

// State returns the load state.
func (p *Predictor) State() State { return p.state }

// LoadErr returns why the model could not be loaded, or nil.
func (p *Predictor) LoadErr() error { return p.loadErr }

// Health reports the load state and the configured model version.
func (p *Predictor) Health() types.Health {
	return types.Health{Status: p.state.String(), ModelVersion: p.version}
}

// Predict classifies one customer. The record is laid out as a single-row
// frame with the canonical feature columns before it reaches the model.
func (p *Predictor) Predict(rec types.CustomerRecord) (int, error) {
	if p.state != StateModelLoaded {
		return 0, ErrModelUnavailable
	}
	labels, err := p.pipeline.Predict(dataset.FromRecords([]types.CustomerRecord{rec}))
	if err != nil {
		return 0, fmt.Errorf("serving.Predict: %w", err)
	}
	if len(labels) != 1 {
		return 0, fmt.Errorf("serving.Predict: expected 1 prediction, got %d", len(labels))
	}
	return labels[0], nil
}
