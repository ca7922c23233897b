// Package modelfile persists a fitted model.Pipeline to a single file and
// restores it.
//
// The file is a gob stream holding a small envelope around the pipeline.
// The envelope's Format and Version fields let Load reject files written
// by something else, or by an incompatible release, instead of returning
// a half-decoded model.
package modelfile

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aanand-mishra/churn-api/internal/model"
)

// ErrModelLoad is returned (wrapped) for every Load failure: missing file,
// unreadable or corrupt content, or an incompatible artifact version.
var ErrModelLoad = errors.New("model load failed")

const (
	// Format tags the envelope so foreign gob files are rejected.
	Format = "churn-pipeline"
	// Version is bumped whenever model.Pipeline changes shape.
	Version = 1
	// DefaultPath is where the CLI writes and the server reads the model.
	DefaultPath = "model.joblib"
)

type envelope struct {
	Format   string
	Version  int
	SavedAt  time.Time
	Pipeline *model.Pipeline
}

// Encode writes p to w.
func Encode(w io.Writer, p *model.Pipeline) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("modelfile.Encode: %w", err)
	}
	env := envelope{Format: Format, Version: Version, SavedAt: time.Now().UTC(), Pipeline: p}
	if err := gob.NewEncoder(w).Encode(&env); err != nil {
		return fmt.Errorf("modelfile.Encode: %w", err)
	}
	return nil
}

// Decode reads a pipeline written by Encode.
func Decode(r io.Reader) (*model.Pipeline, error) {
	var env envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrModelLoad, err)
	}
	if env.Format != Format {
		return nil, fmt.Errorf("%w: unexpected format %q", ErrModelLoad, env.Format)
	}
	if env.Version != Version {
		return nil, fmt.Errorf("%w: artifact version %d, this build reads version %d", ErrModelLoad, env.Version, Version)
	}
	if err := env.Pipeline.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	return env.Pipeline, nil
}

// Save writes p to path, replacing any existing file. The content goes to
// a temporary file in the same directory first and is renamed into place.
func Save(p *model.Pipeline, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("modelfile.Save: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("modelfile.Save: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := Encode(tmp, p); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("modelfile.Save: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("modelfile.Save: rename: %w", err)
	}
	return nil
}

// Load reads the pipeline stored at path.
func Load(path string) (*model.Pipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}
	defer f.Close()

	return Decode(f)
}
