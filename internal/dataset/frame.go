package dataset

import (
	"fmt"
	"strconv"

	"github.com/aanand-mishra/churn-api/internal/types"
)

// Kind is the storage type of a column.
type Kind int

const (
	Numeric Kind = iota
	Categorical
)

func (k Kind) String() string {
	if k == Categorical {
		return "categorical"
	}
	return "numeric"
}

// Column is a named, typed column. Exactly one of Floats / Strings is
// populated, depending on Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Len returns the number of cells in the column.
func (c Column) Len() int {
	if c.Kind == Categorical {
		return len(c.Strings)
	}
	return len(c.Floats)
}

// Frame is a small column-oriented table. Columns keep their file order.
type Frame struct {
	Columns []Column
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	if f == nil || len(f.Columns) == 0 {
		return 0
	}
	return f.Columns[0].Len()
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (f *Frame) Column(name string) (Column, bool) {
	for _, c := range f.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Drop returns a frame without the named columns. All names must exist.
func (f *Frame) Drop(names ...string) (*Frame, error) {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := f.Column(n); !ok {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchema, n)
		}
		skip[n] = true
	}
	out := &Frame{Columns: make([]Column, 0, len(f.Columns)-len(skip))}
	for _, c := range f.Columns {
		if !skip[c.Name] {
			out.Columns = append(out.Columns, c)
		}
	}
	return out, nil
}

// Select returns a frame holding the named columns in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {
	out := &Frame{Columns: make([]Column, 0, len(names))}
	for _, n := range names {
		c, ok := f.Column(n)
		if !ok {
			return nil, fmt.Errorf("%w: column %q not found", ErrSchema, n)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// Pop splits the named column off: it returns the column and the frame
// without it.
func (f *Frame) Pop(name string) (Column, *Frame, error) {
	col, ok := f.Column(name)
	if !ok {
		return Column{}, nil, fmt.Errorf("%w: column %q not found", ErrSchema, name)
	}
	rest, err := f.Drop(name)
	if err != nil {
		return Column{}, nil, err
	}
	return col, rest, nil
}

// Take returns a new frame holding the rows at idx, in that order.
func (f *Frame) Take(idx []int) *Frame {
	out := &Frame{Columns: make([]Column, len(f.Columns))}
	for j, c := range f.Columns {
		nc := Column{Name: c.Name, Kind: c.Kind}
		if c.Kind == Categorical {
			nc.Strings = make([]string, len(idx))
			for i, r := range idx {
				nc.Strings[i] = c.Strings[r]
			}
		} else {
			nc.Floats = make([]float64, len(idx))
			for i, r := range idx {
				nc.Floats[i] = c.Floats[r]
			}
		}
		out.Columns[j] = nc
	}
	return out
}

// Labels converts a numeric column of churn flags to ints. Every value
// must be 0 or 1.
func Labels(c Column) ([]int, error) {
	if c.Kind != Numeric {
		return nil, fmt.Errorf("%w: label column %q is not numeric", ErrSchema, c.Name)
	}
	out := make([]int, len(c.Floats))
	for i, v := range c.Floats {
		switch v {
		case 0:
			out[i] = 0
		case 1:
			out[i] = 1
		default:
			return nil, fmt.Errorf("%w: label %v in row %d is not 0 or 1", ErrSchema, v, i+1)
		}
	}
	return out, nil
}

// FromRecords builds an inference frame with the canonical feature
// columns, in types.FeatureColumns order.
func FromRecords(recs []types.CustomerRecord) *Frame {
	n := len(recs)
	num := func(name string, get func(types.CustomerRecord) float64) Column {
		c := Column{Name: name, Kind: Numeric, Floats: make([]float64, n)}
		for i, r := range recs {
			c.Floats[i] = get(r)
		}
		return c
	}
	cat := func(name string, get func(types.CustomerRecord) string) Column {
		c := Column{Name: name, Kind: Categorical, Strings: make([]string, n)}
		for i, r := range recs {
			c.Strings[i] = get(r)
		}
		return c
	}

	return &Frame{Columns: []Column{
		num("CreditScore", func(r types.CustomerRecord) float64 { return float64(r.CreditScore) }),
		cat("Geography", func(r types.CustomerRecord) string { return r.Geography }),
		cat("Gender", func(r types.CustomerRecord) string { return r.Gender }),
		num("Age", func(r types.CustomerRecord) float64 { return float64(r.Age) }),
		num("Tenure", func(r types.CustomerRecord) float64 { return float64(r.Tenure) }),
		num("Balance", func(r types.CustomerRecord) float64 { return r.Balance }),
		num("NumOfProducts", func(r types.CustomerRecord) float64 { return float64(r.NumOfProducts) }),
		num("HasCrCard", func(r types.CustomerRecord) float64 { return float64(r.HasCrCard) }),
		num("IsActiveMember", func(r types.CustomerRecord) float64 { return float64(r.IsActiveMember) }),
		num("EstimatedSalary", func(r types.CustomerRecord) float64 { return r.EstimatedSalary }),
	}}
}

// inferColumn turns raw CSV cells into a typed column. A column is
// numeric only if every cell parses as a float.
func inferColumn(name string, cells []string) Column {
	floats := make([]float64, len(cells))
	for i, s := range cells {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Column{Name: name, Kind: Categorical, Strings: cells}
		}
		floats[i] = v
	}
	return Column{Name: name, Kind: Numeric, Floats: floats}
}
