package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// ErrFeatureMismatch is returned when a row does not have one value per
// declared feature.
var ErrFeatureMismatch = errors.New("feature count mismatch")

// Artifact is the serialized form of a trained binary logistic regression.
type Artifact struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	FeatureNames []string  `json:"feature_names"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
	Threshold    float64   `json:"threshold,omitempty"`
}

// LogisticRegression scores rows with a sigmoid over a linear combination
// of features. It is immutable after loading.
type LogisticRegression struct {
	artifact Artifact
}

// Load reads a model artifact from disk.
func Load(path string) (*LogisticRegression, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode model artifact: %w", err)
	}

	return New(a)
}

// New checks an artifact and wraps it as a classifier.
func New(a Artifact) (*LogisticRegression, error) {
	if len(a.FeatureNames) == 0 {
		return nil, errors.New("model artifact declares no features")
	}
	if len(a.FeatureNames) != len(a.Coefficients) {
		return nil, fmt.Errorf("%w: %d features, %d coefficients",
			ErrFeatureMismatch, len(a.FeatureNames), len(a.Coefficients))
	}

	seen := make(map[string]struct{}, len(a.FeatureNames))
	for _, name := range a.FeatureNames {
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("model artifact repeats feature %q", name)
		}
		seen[name] = struct{}{}
	}

	if a.Threshold == 0 {
		a.Threshold = 0.5
	}
	if a.Threshold < 0 || a.Threshold > 1 {
		return nil, fmt.Errorf("model threshold %v is outside [0, 1]", a.Threshold)
	}

	a.FeatureNames = append([]string(nil), a.FeatureNames...)
	a.Coefficients = append([]float64(nil), a.Coefficients...)

	return &LogisticRegression{artifact: a}, nil
}

// FeatureNames returns the expected input columns in order.
func (m *LogisticRegression) FeatureNames() []string {
	return append([]string(nil), m.artifact.FeatureNames...)
}

// PredictProba returns [P(class 0), P(class 1)].
func (m *LogisticRegression) PredictProba(_ context.Context, row []float64) ([2]float64, error) {
	if len(row) != len(m.artifact.Coefficients) {
		return [2]float64{}, fmt.Errorf("%w: got %d values, want %d",
			ErrFeatureMismatch, len(row), len(m.artifact.Coefficients))
	}

	sum := m.artifact.Intercept
	for i, v := range row {
		sum += m.artifact.Coefficients[i] * v
	}
	p := sigmoid(sum)

	return [2]float64{1 - p, p}, nil
}

// Predict returns 1 when P(class 1) reaches the threshold.
func (m *LogisticRegression) Predict(ctx context.Context, row []float64) (int, error) {
	proba, err := m.PredictProba(ctx, row)
	if err != nil {
		return 0, err
	}
	if proba[1] >= m.artifact.Threshold {
		return 1, nil
	}
	return 0, nil
}

// Score returns the class and probabilities from one evaluation.
func (m *LogisticRegression) Score(ctx context.Context, row []float64) (int, [2]float64, error) {
	proba, err := m.PredictProba(ctx, row)
	if err != nil {
		return 0, [2]float64{}, err
	}
	label := 0
	if proba[1] >= m.artifact.Threshold {
		label = 1
	}
	return label, proba, nil
}

// GetModelInfo describes the loaded model.
func (m *LogisticRegression) GetModelInfo() map[string]interface{} {
	return map[string]interface{}{
		"type":      "logistic_regression",
		"model":     m.artifact.Name,
		"version":   m.artifact.Version,
		"features":  len(m.artifact.FeatureNames),
		"threshold": m.artifact.Threshold,
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
