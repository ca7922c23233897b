// Package prediction contains the HTTP handlers of the prediction service.
//
// HANDLER PATTERN USED HERE: CLOSURE / FACTORY
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like the model. To
// inject dependencies we use a factory function that accepts them and
// returns a function with the exact signature the router needs:
//
//	router.HandleFunc("POST /predict", prediction.Predict(predictor, m))
//	//                                 ^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^^
//	//                  called ONCE at startup; the returned closure is
//	//                  called on EVERY incoming request.
package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aanand-mishra/churn-api/internal/metrics"
	"github.com/aanand-mishra/churn-api/internal/serving"
	"github.com/aanand-mishra/churn-api/internal/types"
	"github.com/aanand-mishra/churn-api/internal/utils/response"
	"github.com/go-playground/validator/v10"
)

// modelNotLoaded is the error body served while the model is unavailable.
const modelNotLoaded = "Model not loaded"

var errTrailingData = errors.New("request body must contain a single JSON object")

// MaxBodyBytes caps a /predict request body. A CustomerRecord is well
// under 1 KiB.
const MaxBodyBytes = 16 << 10

// Predictor is what the handlers need from the serving layer.
// *serving.Predictor satisfies it; tests pass fakes.
type Predictor interface {
	Predict(rec types.CustomerRecord) (int, error)
	Health() types.Health
}

// ─────────────────────────────────────────────────────────────────────────────
// Predict handles POST /predict
// Classifies one customer as retained (0) or churned (1).
//
// Request body (JSON), all ten fields required:
//
//	{ "CreditScore": 600, "Geography": "France", "Gender": "Female",
//	  "Age": 40, "Tenure": 3, "Balance": 0.0, "NumOfProducts": 2,
//	  "HasCrCard": 1, "IsActiveMember": 1, "EstimatedSalary": 50000.0 }
//
// Success response (200 OK):
//
//	{ "prediction": 0 }
//
// Degraded response (200 OK), when no model could be loaded at startup:
//
//	{ "error": "Model not loaded" }
//
// Error responses:
//
//	400 Bad Request  empty body, malformed JSON, wrong types, missing field,
//	                 data after the JSON object
//	413 Too Large    body over MaxBodyBytes
//	500 Internal     the model rejected the input
//
// ─────────────────────────────────────────────────────────────────────────────
func Predict(predictor Predictor, m *metrics.PredictionMetrics) http.HandlerFunc {
	// One validator per handler: it caches struct metadata and is safe
	// for concurrent use.
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		slog.Debug("prediction requested")

		// ── Step 1: Decode exactly one JSON object ────────────────────
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
		dec := json.NewDecoder(r.Body)

		var req types.PredictRequest
		var tooLarge *http.MaxBytesError
		err := dec.Decode(&req)
		if err == nil {
			// Only whitespace may follow the object.
			switch extra := dec.Decode(&struct{}{}); {
			case errors.Is(extra, io.EOF):
			case errors.As(extra, &tooLarge):
				err = extra
			default:
				err = errTrailingData
			}
		}

		switch {
		case errors.Is(err, io.EOF):
			m.ObserveRejected("empty_body")
			response.WriteJSON(w, http.StatusBadRequest,
				response.GeneralError(errors.New("request body is empty")))
			return
		case errors.As(err, &tooLarge):
			m.ObserveRejected("too_large")
			response.WriteJSON(w, http.StatusRequestEntityTooLarge,
				response.GeneralError(fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)))
			return
		case err != nil:
			// Malformed JSON, a value of the wrong type ("Age": "forty")
			// or trailing data.
			m.ObserveRejected("bad_json")
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// ── Step 2: Validate presence of every field ─────────────────
		if err := validate.Struct(req); err != nil {
			m.ObserveRejected("validation")
			var validateErrs validator.ValidationErrors
			if errors.As(err, &validateErrs) {
				response.WriteJSON(w, http.StatusBadRequest,
					response.ValidationError(validateErrs))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		// ── Step 3: Predict ───────────────────────────────────────────
		label, err := predictor.Predict(req.Record())
		if errors.Is(err, serving.ErrModelUnavailable) {
			// Degraded, not broken: the transport call itself succeeds.
			m.ObserveRejected("model_unavailable")
			response.WriteJSON(w, http.StatusOK, response.Message(modelNotLoaded))
			return
		}
		if err != nil {
			slog.Error("prediction failed", slog.String("error", err.Error()))
			m.ObserveRejected("model_error")
			response.WriteJSON(w, http.StatusInternalServerError,
				response.GeneralError(err))
			return
		}

		m.ObservePrediction(label)
		slog.Debug("prediction served", slog.Int("prediction", label))

		response.WriteJSON(w, http.StatusOK, types.PredictResponse{Prediction: label})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Health handles GET /health
// Reports whether a model is loaded and which version the service runs.
//
// Response (200 OK, always):
//
//	{ "status": "loaded", "model_version": "1.0" }
//	{ "status": "not loaded", "model_version": "1.0" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Health(predictor Predictor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.WriteJSON(w, http.StatusOK, predictor.Health())
	}
}
