package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Prediction labels shown to users.
const (
	LabelChurn    = "likely to be churned"
	LabelContinue = "likely to continue"
)

// Fields holds raw form values keyed by field name. It is stored as JSON.
type Fields map[string]string

// Value implements driver.Valuer.
func (f Fields) Value() (driver.Value, error) {
	if f == nil {
		return "{}", nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (f *Fields) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// Messages is an ordered list of messages stored as JSON.
type Messages []string

// Value implements driver.Valuer.
func (m Messages) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *Messages) Scan(src interface{}) error {
	return scanJSON(src, m)
}

func scanJSON(src interface{}, dst interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("cannot scan %T into JSON column", src)
	}
}

// Prediction is one scored customer kept in the history.
type Prediction struct {
	ID               string    `json:"id" db:"id"`
	Churn            bool      `json:"churn" db:"churn"`
	Label            string    `json:"label" db:"label"`
	ChurnProbability float64   `json:"churn_probability" db:"churn_probability"`
	Input            Fields    `json:"input" db:"input"`
	Warnings         Messages  `json:"warnings,omitempty" db:"warnings"`
	ModelVersion     string    `json:"model_version,omitempty" db:"model_version"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// PredictionStats summarizes the history.
type PredictionStats struct {
	Total                   int     `json:"total" db:"total"`
	Churned                 int     `json:"churned" db:"churned"`
	AverageChurnProbability float64 `json:"average_churn_probability" db:"average_churn_probability"`
}

// PredictRequest is the JSON body of the prediction API.
type PredictRequest struct {
	Fields Fields `json:"fields" binding:"required"`
}

// LoginRequest carries admin credentials.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}
