// Package model implements the churn classification pipeline: a one-hot
// encoding stage composed with a random-forest classifier, plus the
// accuracy metric used to evaluate it.
package model

import (
	"errors"
	"fmt"

	"github.com/aanand-mishra/churn-api/internal/dataset"
)

var (
	// ErrNotFitted is returned when predicting with an unfitted model.
	ErrNotFitted = errors.New("model not fitted")
	// ErrSchemaMismatch is returned when inference input does not have the
	// columns the model was fitted on.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

// ModelType is the name logged to the experiment tracker.
const ModelType = "RandomForestClassifier"

// Pipeline is the fitted model artifact. It is not modified after Train
// returns, so a single instance may serve concurrent Predict calls.
type Pipeline struct {
	Encoder    *Encoder
	Classifier *Forest
}

// Train fits the encoder and the forest on x / y.
func Train(x *dataset.Frame, y []int, opts ...ForestOption) (*Pipeline, error) {
	enc, err := FitEncoder(x)
	if err != nil {
		return nil, fmt.Errorf("model.Train: %w", err)
	}
	X, err := enc.Transform(x)
	if err != nil {
		return nil, fmt.Errorf("model.Train: %w", err)
	}

	forest := NewForest(opts...)
	if err := forest.Fit(X, y); err != nil {
		return nil, fmt.Errorf("model.Train: %w", err)
	}
	return &Pipeline{Encoder: enc, Classifier: forest}, nil
}

// Predict returns one label per row of x.
func (p *Pipeline) Predict(x *dataset.Frame) ([]int, error) {
	X, err := p.transform(x)
	if err != nil {
		return nil, err
	}
	return p.Classifier.Predict(X)
}

// PredictProba returns per-class probabilities aligned with Classes().
func (p *Pipeline) PredictProba(x *dataset.Frame) ([][]float64, error) {
	X, err := p.transform(x)
	if err != nil {
		return nil, err
	}
	return p.Classifier.PredictProba(X)
}

// Classes returns the labels the classifier was fitted on, ascending.
func (p *Pipeline) Classes() []int {
	if p.Classifier == nil {
		return nil
	}
	return p.Classifier.Classes
}

func (p *Pipeline) transform(x *dataset.Frame) ([][]float64, error) {
	if p == nil || p.Encoder == nil || p.Classifier == nil {
		return nil, ErrNotFitted
	}
	return p.Encoder.Transform(x)
}

// Accuracy is the fraction of positions where yPred equals yTrue.
func Accuracy(yTrue, yPred []int) (float64, error) {
	if len(yTrue) != len(yPred) {
		return 0, fmt.Errorf("accuracy: %d true labels but %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return 0, errors.New("accuracy: no samples")
	}
	correct := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(yTrue)), nil
}

// Evaluate predicts x with p and scores the result against y.
func Evaluate(p *Pipeline, x *dataset.Frame, y []int) (float64, error) {
	pred, err := p.Predict(x)
	if err != nil {
		return 0, fmt.Errorf("model.Evaluate: %w", err)
	}
	return Accuracy(y, pred)
}
