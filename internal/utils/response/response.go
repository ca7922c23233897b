// Package response writes the JSON bodies of the prediction API.
//
// Handlers never touch encoding/json directly: success payloads go
// through WriteJSON as-is, failures are shaped by the helpers below so
// every error the API emits has the same envelope.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the error envelope.
//
// A rejected request:
//
//	{ "status": "error", "error": "field Age is required", "fields": ["Age"] }
//
// The degraded-service body carries no status and no fields:
//
//	{ "error": "Model not loaded" }
//
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	Status string   `json:"status,omitempty"`
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"` // request fields that failed validation
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON sets the content type, writes status and encodes data.
// Headers must be set before WriteHeader; nothing may follow the body.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError reports err as an error envelope.
func GeneralError(err error) Response {
	return Response{Status: StatusError, Error: err.Error()}
}

// Message is an envelope holding only msg.
func Message(msg string) Response {
	return Response{Error: msg}
}

// ValidationError turns validator failures into one sentence per field,
// joined with ", ", and lists the offending fields in request order.
func ValidationError(errs validator.ValidationErrors) Response {
	msgs := make([]string, 0, len(errs))
	fields := make([]string, 0, len(errs))

	for _, e := range errs {
		fields = append(fields, e.Field())
		if e.ActualTag() == "required" {
			msgs = append(msgs, fmt.Sprintf("field %s is required", e.Field()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("field %s is invalid (%s)", e.Field(), e.ActualTag()))
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(msgs, ", "),
		Fields: fields,
	}
}
