package model_test

import (
	"testing"

	"github.com/aanand-mishra/churn-api/internal/dataset"
	"github.com/aanand-mishra/churn-api/internal/model"
	"github.com/aanand-mishra/churn-api/internal/testutil"
	"github.com/aanand-mishra/churn-api/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func churnSplit(t *testing.T, n int) *dataset.Split {
	t.Helper()
	path := testutil.WriteChurnCSV(t, t.TempDir(), n)
	split, err := dataset.Prepare(path, dataset.SplitOptions{Seed: 42})
	require.NoError(t, err)
	return split
}

func TestEncoder_OneHotLayout(t *testing.T) {
	frame := &dataset.Frame{Columns: []dataset.Column{
		{Name: "Age", Kind: dataset.Numeric, Floats: []float64{30, 40, 50}},
		{Name: "Geography", Kind: dataset.Categorical, Strings: []string{"Spain", "France", "Spain"}},
	}}

	enc, err := model.FitEncoder(frame)
	require.NoError(t, err)
	assert.Equal(t, []string{"Geography_France", "Geography_Spain", "Age"}, enc.FeatureNames())

	X, err := enc.Transform(frame)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{
		{0, 1, 30},
		{1, 0, 40},
		{0, 1, 50},
	}, X)
}

func TestEncoder_UnknownCategoryEncodesToZeros(t *testing.T) {
	train := &dataset.Frame{Columns: []dataset.Column{
		{Name: "Geography", Kind: dataset.Categorical, Strings: []string{"France", "Spain"}},
		{Name: "Age", Kind: dataset.Numeric, Floats: []float64{30, 40}},
	}}
	enc, err := model.FitEncoder(train)
	require.NoError(t, err)

	unseen := &dataset.Frame{Columns: []dataset.Column{
		{Name: "Geography", Kind: dataset.Categorical, Strings: []string{"Italy"}},
		{Name: "Age", Kind: dataset.Numeric, Floats: []float64{33}},
	}}
	X, err := enc.Transform(unseen)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0, 0, 33}}, X)
}

func TestEncoder_SchemaMismatch(t *testing.T) {
	train := &dataset.Frame{Columns: []dataset.Column{
		{Name: "Age", Kind: dataset.Numeric, Floats: []float64{30}},
		{Name: "Tenure", Kind: dataset.Numeric, Floats: []float64{3}},
	}}
	enc, err := model.FitEncoder(train)
	require.NoError(t, err)

	tests := []struct {
		name  string
		frame *dataset.Frame
	}{
		{"reordered", &dataset.Frame{Columns: []dataset.Column{train.Columns[1], train.Columns[0]}}},
		{"missing", &dataset.Frame{Columns: []dataset.Column{train.Columns[0]}}},
		{"wrong kind", &dataset.Frame{Columns: []dataset.Column{
			train.Columns[0],
			{Name: "Tenure", Kind: dataset.Categorical, Strings: []string{"3"}},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Transform(tt.frame)
			assert.ErrorIs(t, err, model.ErrSchemaMismatch)
		})
	}
}

func TestForest_SeparableData(t *testing.T) {
	X := [][]float64{{0.1, 0.2}, {0.2, 0.1}, {0.15, 0.3}, {0.9, 0.8}, {0.8, 0.9}, {0.85, 0.7}}
	y := []int{0, 0, 0, 1, 1, 1}

	f := model.NewForest(model.WithNEstimators(15))
	require.NoError(t, f.Fit(X, y))

	pred, err := f.Predict([][]float64{{0.12, 0.18}, {0.88, 0.82}})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, pred)

	proba, err := f.PredictProba([][]float64{{0.12, 0.18}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, proba[0][0]+proba[0][1], 1e-9)
}

func TestForest_NotFitted(t *testing.T) {
	_, err := model.NewForest().Predict([][]float64{{1}})
	assert.ErrorIs(t, err, model.ErrNotFitted)
}

func TestForest_InvalidInput(t *testing.T) {
	assert.Error(t, model.NewForest().Fit(nil, nil))
	assert.Error(t, model.NewForest().Fit([][]float64{{1}, {2}}, []int{0}))
	assert.Error(t, model.NewForest().Fit([][]float64{{1, 2}, {2}}, []int{0, 1}))
}

func TestTrain_Deterministic(t *testing.T) {
	split := churnSplit(t, 300)

	a, err := model.Train(split.XTrain, split.YTrain, model.WithNEstimators(20))
	require.NoError(t, err)
	b, err := model.Train(split.XTrain, split.YTrain, model.WithNEstimators(20))
	require.NoError(t, err)

	pa, err := a.PredictProba(split.XTest)
	require.NoError(t, err)
	pb, err := b.PredictProba(split.XTest)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestTrain_LearnsChurnRule(t *testing.T) {
	split := churnSplit(t, 600)

	p, err := model.Train(split.XTrain, split.YTrain, model.WithNEstimators(30))
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, p.Classes())

	acc, err := model.Evaluate(p, split.XTest, split.YTest)
	require.NoError(t, err)
	assert.Greater(t, acc, 0.8)
	assert.LessOrEqual(t, acc, 1.0)
}

func TestPipeline_PredictsSingleRecord(t *testing.T) {
	split := churnSplit(t, 300)
	p, err := model.Train(split.XTrain, split.YTrain, model.WithNEstimators(10))
	require.NoError(t, err)

	rec := testutil.ReferenceCustomer
	rec.Geography = "Atlantis" // unseen category must not fail
	labels, err := p.Predict(dataset.FromRecords([]types.CustomerRecord{rec}))
	require.NoError(t, err)
	require.Len(t, labels, 1)
	assert.Contains(t, []int{0, 1}, labels[0])
}

func TestPipeline_NotFitted(t *testing.T) {
	var p *model.Pipeline
	_, err := p.Predict(dataset.FromRecords([]types.CustomerRecord{testutil.ReferenceCustomer}))
	assert.ErrorIs(t, err, model.ErrNotFitted)
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name  string
		truth []int
		pred  []int
		want  float64
	}{
		{"all correct", []int{0, 1, 1}, []int{0, 1, 1}, 1},
		{"none correct", []int{0, 1}, []int{1, 0}, 0},
		{"three of four", []int{0, 1, 1, 0}, []int{0, 1, 0, 0}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := model.Accuracy(tt.truth, tt.pred)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	_, err := model.Accuracy([]int{0}, []int{0, 1})
	assert.Error(t, err)
	_, err = model.Accuracy(nil, nil)
	assert.Error(t, err)
}

func TestPipeline_Validate(t *testing.T) {
	split := churnSplit(t, 200)
	p, err := model.Train(split.XTrain, split.YTrain, model.WithNEstimators(5))
	require.NoError(t, err)
	assert.NoError(t, p.Validate())

	var unfitted *model.Pipeline
	assert.ErrorIs(t, unfitted.Validate(), model.ErrNotFitted)

	p.Classifier.NFeatures = p.Encoder.Width() + 1
	assert.ErrorIs(t, p.Validate(), model.ErrInvalidModel)
}
