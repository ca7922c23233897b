// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, the dataset loader, the tracker and utils can all import
// types without depending on each other.
package types

import "time"

// FeatureColumns is the exact column set, in order, that the churn model
// is trained on and expects at inference time.
var FeatureColumns = []string{
	"CreditScore",
	"Geography",
	"Gender",
	"Age",
	"Tenure",
	"Balance",
	"NumOfProducts",
	"HasCrCard",
	"IsActiveMember",
	"EstimatedSalary",
}

// CustomerRecord is one row of model input.
//
// It is a plain value type: handlers build one per request and nothing
// modifies it afterwards.
type CustomerRecord struct {
	CreditScore     int     `json:"CreditScore"`
	Geography       string  `json:"Geography"`
	Gender          string  `json:"Gender"`
	Age             int     `json:"Age"`
	Tenure          int     `json:"Tenure"`
	Balance         float64 `json:"Balance"`
	NumOfProducts   int     `json:"NumOfProducts"`
	HasCrCard       int     `json:"HasCrCard"`
	IsActiveMember  int     `json:"IsActiveMember"`
	EstimatedSalary float64 `json:"EstimatedSalary"`
}

// PredictRequest is the JSON body accepted by POST /predict.
//
// Struct tags serve two purposes:
//
//  1. json:"..."  the wire names are the dataset column names, so a
//     request looks exactly like one CSV row without the label.
//
//  2. validate:"required" is checked by go-playground/validator.
//     The fields are POINTERS: "required" on a pointer means "not nil",
//     so an absent field is rejected while a legitimate zero value
//     (Balance: 0.0, HasCrCard: 0) is accepted.
type PredictRequest struct {
	CreditScore     *int     `json:"CreditScore"     validate:"required"`
	Geography       *string  `json:"Geography"       validate:"required"`
	Gender          *string  `json:"Gender"          validate:"required"`
	Age             *int     `json:"Age"             validate:"required"`
	Tenure          *int     `json:"Tenure"          validate:"required"`
	Balance         *float64 `json:"Balance"         validate:"required"`
	NumOfProducts   *int     `json:"NumOfProducts"   validate:"required"`
	HasCrCard       *int     `json:"HasCrCard"       validate:"required"`
	IsActiveMember  *int     `json:"IsActiveMember"  validate:"required"`
	EstimatedSalary *float64 `json:"EstimatedSalary" validate:"required"`
}

// Record converts a validated request into a CustomerRecord.
// Call it only after validation succeeded; a nil field panics.
func (r PredictRequest) Record() CustomerRecord {
	return CustomerRecord{
		CreditScore:     *r.CreditScore,
		Geography:       *r.Geography,
		Gender:          *r.Gender,
		Age:             *r.Age,
		Tenure:          *r.Tenure,
		Balance:         *r.Balance,
		NumOfProducts:   *r.NumOfProducts,
		HasCrCard:       *r.HasCrCard,
		IsActiveMember:  *r.IsActiveMember,
		EstimatedSalary: *r.EstimatedSalary,
	}
}

// PredictResponse is the success body of POST /predict: { "prediction": 0 }
type PredictResponse struct {
	Prediction int `json:"prediction"`
}

// Health is the body of GET /health.
type Health struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version"`
}

// Run is one experiment-tracking run as stored by the tracker.
type Run struct {
	ID         string
	Experiment string
	Name       string
	Status     string
	Tags       map[string]string
	Params     map[string]string
	Metrics    map[string]float64
	Artifacts  []string
	StartedAt  time.Time
	EndedAt    *time.Time
}
