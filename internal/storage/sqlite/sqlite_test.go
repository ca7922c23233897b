package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aanand-mishra/churn-api/internal/storage"
	"github.com/aanand-mishra/churn-api/internal/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) *sqlite.SQLite {
	t.Helper()
	uri := "sqlite:///" + filepath.Join(t.TempDir(), "mlflow.db")
	s, err := sqlite.New(uri, "ChurnPrediction")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPathFromURI(t *testing.T) {
	tests := []struct {
		uri     string
		want    string
		wantErr bool
	}{
		{uri: "sqlite:///mlflow.db", want: "mlflow.db"},
		{uri: "sqlite:////var/lib/mlflow.db", want: "/var/lib/mlflow.db"},
		{uri: "runs.db", want: "runs.db"},
		{uri: "sqlite:///", wantErr: true},
		{uri: "postgresql://localhost/mlflow", wantErr: true},
		{uri: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			got, err := sqlite.PathFromURI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTracker(t)

	id, err := s.StartRun(ctx, "ChurnModelTraining", map[string]string{"stage": "training"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.NoError(t, s.LogParam(ctx, id, "model_type", "RandomForestClassifier"))
	require.NoError(t, s.LogParam(ctx, id, "n_estimators", "100"))
	require.NoError(t, s.LogMetric(ctx, id, "accuracy", 0.80))
	require.NoError(t, s.LogMetric(ctx, id, "accuracy", 0.86))
	require.NoError(t, s.LogArtifact(ctx, id, "model", []byte{1, 2, 3}))
	require.NoError(t, s.EndRun(ctx, id, storage.RunFinished))

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, run.ID)
	assert.Equal(t, "ChurnPrediction", run.Experiment)
	assert.Equal(t, "ChurnModelTraining", run.Name)
	assert.Equal(t, storage.RunFinished, run.Status)
	assert.Equal(t, map[string]string{"stage": "training"}, run.Tags)
	assert.Equal(t, "100", run.Params["n_estimators"])
	assert.InDelta(t, 0.86, run.Metrics["accuracy"], 1e-12)
	assert.Equal(t, []string{"model"}, run.Artifacts)
	require.NotNil(t, run.EndedAt)
	assert.False(t, run.EndedAt.Before(run.StartedAt))
}

func TestExperimentIsReused(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlflow.db")

	first, err := sqlite.New(path, "ChurnPrediction")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := sqlite.New(path, "ChurnPrediction")
	require.NoError(t, err)
	defer second.Close()

	var count int
	require.NoError(t, second.Db.QueryRow("SELECT COUNT(*) FROM experiments").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := newTracker(t)

	_, err := s.GetRun(ctx, "does-not-exist")
	assert.Error(t, err)
	assert.Error(t, s.EndRun(ctx, "does-not-exist", storage.RunFailed))
}
