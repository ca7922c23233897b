// Package dataset loads the churn CSV and splits it into train/test
// partitions.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"

	"github.com/aanand-mishra/churn-api/internal/types"
)

var (
	// ErrMissingDataset is returned when the dataset file does not exist.
	ErrMissingDataset = errors.New("dataset not found")
	// ErrSchema is returned when the CSV does not have the expected shape.
	ErrSchema = errors.New("dataset schema")
)

// Column names of the reference dataset.
const (
	LabelColumn = "Exited"
)

// IdentifierColumns carry no predictive signal and are dropped before
// training.
var IdentifierColumns = []string{"RowNumber", "CustomerId", "Surname"}

// categoricalFeatures are the feature columns holding category strings;
// every other feature column must be numeric.
var categoricalFeatures = map[string]bool{"Geography": true, "Gender": true}

// Default split parameters.
const (
	DefaultSeed     int64   = 42
	DefaultTestSize float64 = 0.2
)

// SplitOptions controls the train/test split.
type SplitOptions struct {
	Seed     int64
	TestSize float64
}

func (o SplitOptions) withDefaults() SplitOptions {
	if o.TestSize <= 0 || o.TestSize >= 1 {
		o.TestSize = DefaultTestSize
	}
	return o
}

// Split holds the four partitions produced by Prepare.
type Split struct {
	XTrain *Frame
	XTest  *Frame
	YTrain []int
	YTest  []int
}

// Load reads a CSV file with a header row into a Frame.
func Load(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s: copy it into the project directory", ErrMissingDataset, path)
		}
		return nil, fmt.Errorf("dataset.Load: open: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses CSV content with a header row.
func Read(r io.Reader) (*Frame, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty file", ErrSchema)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset.Read: header: %w", err)
	}

	cells := make([][]string, len(header))
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset.Read: row: %w", err)
		}
		for j := range header {
			cells[j] = append(cells[j], rec[j])
		}
	}

	frame := &Frame{Columns: make([]Column, len(header))}
	for j, name := range header {
		frame.Columns[j] = inferColumn(name, cells[j])
	}
	return frame, nil
}

// Prepare loads the dataset at path, drops the identifier columns,
// separates the Exited label and returns a deterministic train/test split.
func Prepare(path string, opts SplitOptions) (*Split, error) {
	frame, err := Load(path)
	if err != nil {
		return nil, err
	}

	frame, err = frame.Drop(IdentifierColumns...)
	if err != nil {
		return nil, err
	}
	labelCol, features, err := frame.Pop(LabelColumn)
	if err != nil {
		return nil, err
	}
	labels, err := Labels(labelCol)
	if err != nil {
		return nil, err
	}
	features, err = selectFeatures(features)
	if err != nil {
		return nil, err
	}
	if features.Len() == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrSchema)
	}

	return TrainTestSplit(features, labels, opts)
}

// selectFeatures returns the canonical feature columns of x in
// types.FeatureColumns order, the layout FromRecords produces at
// inference. Extra columns are dropped. A feature with the wrong kind is
// an ErrSchema naming the first cell that does not parse.
func selectFeatures(x *Frame) (*Frame, error) {
	out, err := x.Select(types.FeatureColumns...)
	if err != nil {
		return nil, err
	}
	for _, c := range out.Columns {
		want := Numeric
		if categoricalFeatures[c.Name] {
			want = Categorical
		}
		if c.Kind == want {
			continue
		}
		if want == Numeric {
			for i, v := range c.Strings {
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					return nil, fmt.Errorf("%w: column %q row %d: %q is not a number", ErrSchema, c.Name, i+1, v)
				}
			}
		}
		return nil, fmt.Errorf("%w: column %q is %s, expected %s", ErrSchema, c.Name, c.Kind, want)
	}
	return out, nil
}

// TrainTestSplit shuffles row indices with a seeded source and puts the
// first ceil(n*TestSize) of them in the test partition.
func TrainTestSplit(x *Frame, y []int, opts SplitOptions) (*Split, error) {
	opts = opts.withDefaults()
	n := x.Len()
	if n != len(y) {
		return nil, fmt.Errorf("%w: %d rows but %d labels", ErrSchema, n, len(y))
	}

	nTest := int(math.Ceil(float64(n) * opts.TestSize))
	if nTest >= n {
		return nil, fmt.Errorf("%w: %d rows is too few to split", ErrSchema, n)
	}

	perm := rand.New(rand.NewSource(opts.Seed)).Perm(n)
	testIdx, trainIdx := perm[:nTest], perm[nTest:]

	return &Split{
		XTrain: x.Take(trainIdx),
		XTest:  x.Take(testIdx),
		YTrain: pick(y, trainIdx),
		YTest:  pick(y, testIdx),
	}, nil
}

func pick(y []int, idx []int) []int {
	out := make([]int, len(idx))
	for i, r := range idx {
		out[i] = y[r]
	}
	return out
}
