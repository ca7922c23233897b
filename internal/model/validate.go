package model

import (
	"errors"
	"fmt"
	"sort"

	"github.com/aanand-mishra/churn-api/internal/dataset"
)

// ErrInvalidModel is returned by Validate when a pipeline's fitted state
// is internally inconsistent.
var ErrInvalidModel = errors.New("invalid model")

// Validate checks that a pipeline restored from outside the process can
// be used for prediction: the encoder's vocabularies line up with its
// inputs, the forest expects exactly the encoder's output width, and
// every tree is a well-formed node array whose walk always ends in a
// leaf.
func (p *Pipeline) Validate() error {
	if p == nil || p.Encoder == nil || p.Classifier == nil {
		return ErrNotFitted
	}
	if err := p.Encoder.validate(); err != nil {
		return err
	}
	if err := p.Classifier.validate(); err != nil {
		return err
	}
	if w := p.Encoder.Width(); p.Classifier.NFeatures != w {
		return fmt.Errorf("%w: forest expects %d features, encoder produces %d", ErrInvalidModel, p.Classifier.NFeatures, w)
	}
	return nil
}

func (e *Encoder) validate() error {
	if len(e.Inputs) == 0 {
		return fmt.Errorf("%w: encoder has no inputs", ErrInvalidModel)
	}
	categorical := 0
	for _, in := range e.Inputs {
		switch in.Kind {
		case dataset.Categorical:
			categorical++
		case dataset.Numeric:
		default:
			return fmt.Errorf("%w: input %q has unknown kind %d", ErrInvalidModel, in.Name, int(in.Kind))
		}
	}
	if len(e.Categories) != categorical {
		return fmt.Errorf("%w: %d vocabularies for %d categorical inputs", ErrInvalidModel, len(e.Categories), categorical)
	}
	for i, cats := range e.Categories {
		// Transform looks categories up by binary search.
		if !sort.StringsAreSorted(cats) {
			return fmt.Errorf("%w: vocabulary %d is not sorted", ErrInvalidModel, i)
		}
	}
	return nil
}

func (f *Forest) validate() error {
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidModel)
	}
	if len(f.Classes) == 0 {
		return fmt.Errorf("%w: forest has no classes", ErrInvalidModel)
	}
	if f.NFeatures <= 0 {
		return fmt.Errorf("%w: forest has %d features", ErrInvalidModel, f.NFeatures)
	}
	for t := range f.Trees {
		if err := f.Trees[t].validate(f.NFeatures, len(f.Classes)); err != nil {
			return fmt.Errorf("%w: tree %d: %w", ErrInvalidModel, t, err)
		}
	}
	return nil
}

// validate requires children to sit after their parent in Nodes, which is
// how treeBuilder lays trees out. That bounds every walk by len(Nodes).
func (t *Tree) validate(nFeatures, nClasses int) error {
	n := len(t.Nodes)
	if n == 0 {
		return errors.New("no nodes")
	}
	for i, node := range t.Nodes {
		if node.Leaf {
			if len(node.Value) != nClasses {
				return fmt.Errorf("leaf %d has %d class probabilities, want %d", i, len(node.Value), nClasses)
			}
			continue
		}
		if node.Feature < 0 || node.Feature >= nFeatures {
			return fmt.Errorf("node %d splits on feature %d of %d", i, node.Feature, nFeatures)
		}
		if node.Left <= i || node.Left >= n || node.Right <= i || node.Right >= n {
			return fmt.Errorf("node %d has children %d/%d outside (%d,%d)", i, node.Left, node.Right, i, n)
		}
	}
	return nil
}
