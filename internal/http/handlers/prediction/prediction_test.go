package prediction_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aanand-mishra/churn-api/internal/http/handlers/prediction"
	"github.com/aanand-mishra/churn-api/internal/metrics"
	"github.com/aanand-mishra/churn-api/internal/serving"
	"github.com/aanand-mishra/churn-api/internal/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const referencePayload = `{
	"CreditScore": 600, "Geography": "France", "Gender": "Female",
	"Age": 40, "Tenure": 3, "Balance": 0.0, "NumOfProducts": 2,
	"HasCrCard": 1, "IsActiveMember": 1, "EstimatedSalary": 50000.0
}`

// stubPredictor answers with a fixed label or error and records the last
// record it was asked about.
type stubPredictor struct {
	label  int
	err    error
	health types.Health
	got    *types.CustomerRecord
}

func (s *stubPredictor) Predict(rec types.CustomerRecord) (int, error) {
	s.got = &rec
	return s.label, s.err
}

func (s *stubPredictor) Health() types.Health { return s.health }

func newServer(p prediction.Predictor) (*http.ServeMux, *metrics.PredictionMetrics) {
	m := metrics.NewPredictionMetrics(prometheus.NewRegistry())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /predict", prediction.Predict(p, m))
	mux.HandleFunc("GET /health", prediction.Health(p))
	return mux, m
}

func post(t *testing.T, mux http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded), rec.Body.String())
	return rec, decoded
}

func TestPredict_ReferencePayload(t *testing.T) {
	stub := &stubPredictor{label: 1}
	mux, m := newServer(stub)

	rec, body := post(t, mux, referencePayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"prediction": float64(1)}, body)

	require.NotNil(t, stub.got)
	assert.Equal(t, "France", stub.got.Geography)
	assert.Equal(t, 0.0, stub.got.Balance)
	assert.Equal(t, 50000.0, stub.got.EstimatedSalary)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("1")))
}

func TestPredict_ZeroValuesAreAccepted(t *testing.T) {
	stub := &stubPredictor{}
	mux, _ := newServer(stub)

	payload := strings.NewReplacer(`"HasCrCard": 1`, `"HasCrCard": 0`, `"IsActiveMember": 1`, `"IsActiveMember": 0`).
		Replace(referencePayload)
	rec, body := post(t, mux, payload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["prediction"])
	assert.Equal(t, 0, stub.got.HasCrCard)
}

func TestPredict_RejectsBadRequests(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		reason    string
		wantInErr string
	}{
		{
			name:      "empty body",
			body:      "",
			reason:    "empty_body",
			wantInErr: "request body is empty",
		},
		{
			name:   "malformed json",
			body:   `{"CreditScore": 600,`,
			reason: "bad_json",
		},
		{
			name:   "wrong type",
			body:   strings.Replace(referencePayload, `"Age": 40`, `"Age": "forty"`, 1),
			reason: "bad_json",
		},
		{
			name:      "second object",
			body:      referencePayload + `{}`,
			reason:    "bad_json",
			wantInErr: "single JSON object",
		},
		{
			name:      "trailing garbage",
			body:      referencePayload + " x",
			reason:    "bad_json",
			wantInErr: "single JSON object",
		},
		{
			name:      "missing field",
			body:      strings.Replace(referencePayload, `"Age": 40,`, ``, 1),
			reason:    "validation",
			wantInErr: "field Age is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{}
			mux, m := newServer(stub)

			rec, body := post(t, mux, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", body["status"])
			if tt.wantInErr != "" {
				assert.Contains(t, body["error"], tt.wantInErr)
			}
			if tt.reason == "validation" {
				assert.Equal(t, []any{"Age"}, body["fields"])
			} else {
				assert.NotContains(t, body, "fields")
			}
			assert.Nil(t, stub.got, "the model must not see a rejected request")
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues(tt.reason)))
		})
	}
}

func TestPredict_TrailingWhitespaceIsAccepted(t *testing.T) {
	stub := &stubPredictor{label: 0}
	mux, _ := newServer(stub)

	rec, body := post(t, mux, referencePayload+"\n\t \n")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"prediction": float64(0)}, body)
	require.NotNil(t, stub.got)
}

func TestPredict_BodyTooLarge(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"padding before the object", strings.Repeat(" ", prediction.MaxBodyBytes) + referencePayload},
		{"padding after the object", referencePayload + strings.Repeat(" ", prediction.MaxBodyBytes)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubPredictor{}
			mux, m := newServer(stub)

			rec, body := post(t, mux, tt.body)

			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
			assert.Equal(t, "error", body["status"])
			assert.Contains(t, body["error"], "exceeds")
			assert.Nil(t, stub.got)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("too_large")))
		})
	}
}

func TestPredict_ModelUnavailable(t *testing.T) {
	mux, m := newServer(&stubPredictor{err: serving.ErrModelUnavailable})

	rec, body := post(t, mux, referencePayload)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"error": "Model not loaded"}, body)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RejectedTotal.WithLabelValues("model_unavailable")))
}

func TestPredict_ModelError(t *testing.T) {
	mux, _ := newServer(&stubPredictor{err: errors.New("boom")})

	rec, body := post(t, mux, referencePayload)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "boom", body["error"])
}

func TestPredict_WrongMethod(t *testing.T) {
	mux, _ := newServer(&stubPredictor{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		health types.Health
	}{
		{"loaded", types.Health{Status: "loaded", ModelVersion: "1.0"}},
		{"not loaded", types.Health{Status: "not loaded", ModelVersion: "1.0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux, _ := newServer(&stubPredictor{health: tt.health})

			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			var got types.Health
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.health, got)
		})
	}
}

func TestHealth_WithServingPredictor(t *testing.T) {
	mux, _ := newServer(serving.NewWithPipeline(nil, "1.0"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.JSONEq(t, `{"status":"not loaded","model_version":"1.0"}`, rec.Body.String())

	rec, body := post(t, mux, referencePayload)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"error": "Model not loaded"}, body)
}
