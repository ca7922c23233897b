package model

import (
	"fmt"
	"sort"

	"github.com/aanand-mishra/churn-api/internal/dataset"
)

// ColumnSpec records the name and kind of one input column as seen at fit
// time.
type ColumnSpec struct {
	Name string
	Kind dataset.Kind
}

// Encoder one-hot encodes categorical columns and passes numeric columns
// through. Output layout is the categorical block first (input order,
// categories sorted), then the numeric columns in input order.
//
// Categories not seen during Fit encode to all zeros.
type Encoder struct {
	Inputs     []ColumnSpec
	Categories [][]string // one sorted vocabulary per categorical input, in input order
}

// FitEncoder learns the input schema and the category vocabularies of x.
func FitEncoder(x *dataset.Frame) (*Encoder, error) {
	if x.Len() == 0 {
		return nil, fmt.Errorf("encoder: empty frame")
	}
	e := &Encoder{Inputs: make([]ColumnSpec, len(x.Columns))}
	for i, c := range x.Columns {
		e.Inputs[i] = ColumnSpec{Name: c.Name, Kind: c.Kind}
		if c.Kind == dataset.Categorical {
			e.Categories = append(e.Categories, vocabulary(c.Strings))
		}
	}
	return e, nil
}

// Width is the number of encoded output features.
func (e *Encoder) Width() int {
	w := 0
	for _, cats := range e.Categories {
		w += len(cats)
	}
	for _, in := range e.Inputs {
		if in.Kind == dataset.Numeric {
			w++
		}
	}
	return w
}

// FeatureNames returns the encoded column names, e.g. "Geography_France".
func (e *Encoder) FeatureNames() []string {
	names := make([]string, 0, e.Width())
	ci := 0
	for _, in := range e.Inputs {
		if in.Kind != dataset.Categorical {
			continue
		}
		for _, cat := range e.Categories[ci] {
			names = append(names, in.Name+"_"+cat)
		}
		ci++
	}
	for _, in := range e.Inputs {
		if in.Kind == dataset.Numeric {
			names = append(names, in.Name)
		}
	}
	return names
}

// CheckSchema verifies that x has exactly the fitted columns, in order and
// of the same kinds.
func (e *Encoder) CheckSchema(x *dataset.Frame) error {
	if len(x.Columns) != len(e.Inputs) {
		return fmt.Errorf("%w: expected %d columns, got %d", ErrSchemaMismatch, len(e.Inputs), len(x.Columns))
	}
	for i, c := range x.Columns {
		want := e.Inputs[i]
		if c.Name != want.Name {
			return fmt.Errorf("%w: column %d is %q, expected %q", ErrSchemaMismatch, i, c.Name, want.Name)
		}
		if c.Kind != want.Kind {
			return fmt.Errorf("%w: column %q is %s, expected %s", ErrSchemaMismatch, c.Name, c.Kind, want.Kind)
		}
	}
	return nil
}

// Transform encodes x into a dense row-major matrix.
func (e *Encoder) Transform(x *dataset.Frame) ([][]float64, error) {
	if err := e.CheckSchema(x); err != nil {
		return nil, err
	}

	n := x.Len()
	width := e.Width()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, width)
	}

	offset := 0
	ci := 0
	for _, c := range x.Columns {
		if c.Kind != dataset.Categorical {
			continue
		}
		cats := e.Categories[ci]
		for i, v := range c.Strings {
			if k := sort.SearchStrings(cats, v); k < len(cats) && cats[k] == v {
				out[i][offset+k] = 1
			}
		}
		offset += len(cats)
		ci++
	}
	for _, c := range x.Columns {
		if c.Kind != dataset.Numeric {
			continue
		}
		for i, v := range c.Floats {
			out[i][offset] = v
		}
		offset++
	}
	return out, nil
}

func vocabulary(values []string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, v := range values {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
