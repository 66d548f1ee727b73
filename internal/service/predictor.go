package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"churn-predictor/internal/features"
	"churn-predictor/internal/metrics"
	"churn-predictor/internal/models"
	"churn-predictor/internal/repository"
	"churn-predictor/internal/validation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Classifier is a trained binary churn model.
type Classifier interface {
	FeatureNames() []string
	Predict(ctx context.Context, row []float64) (int, error)
	PredictProba(ctx context.Context, row []float64) ([2]float64, error)
	GetModelInfo() map[string]interface{}
}

// Scorer is implemented by classifiers that return the class and its
// probabilities from a single evaluation.
type Scorer interface {
	Score(ctx context.Context, row []float64) (int, [2]float64, error)
}

// Options control how strictly input is treated.
type Options struct {
	AllowPartial            bool
	RejectUnknownCategories bool
}

// Outcome is the result of one prediction request. When Errors is non-empty
// no prediction was made.
type Outcome struct {
	ID               string   `json:"id,omitempty"`
	Errors           []string `json:"errors,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	Churn            bool     `json:"churn"`
	Label            string   `json:"label,omitempty"`
	ChurnProbability float64  `json:"churn_probability"`
	// Confidence is P(churn) as a percentage, whichever label was chosen.
	Confidence float64 `json:"confidence"`
}

// Rejected reports whether the input was refused before scoring.
func (o *Outcome) Rejected() bool {
	return len(o.Errors) > 0
}

// Predictor runs validation, feature assembly and scoring.
type Predictor struct {
	assembler  *features.Assembler
	classifier Classifier
	repo       repository.PredictionRepository
	opts       Options
	logger     *zap.Logger
	now        func() time.Time
}

// NewPredictor creates a new predictor. repo may be nil to skip history.
func NewPredictor(
	ref *features.Reference,
	classifier Classifier,
	repo repository.PredictionRepository,
	opts Options,
	logger *zap.Logger,
) (*Predictor, error) {
	assembler, err := features.NewAssembler(ref, classifier.FeatureNames())
	if err != nil {
		return nil, fmt.Errorf("failed to align model features: %w", err)
	}

	return &Predictor{
		assembler:  assembler,
		classifier: classifier,
		repo:       repo,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Features returns the model's expected columns.
func (p *Predictor) Features() []string {
	return p.assembler.Features()
}

// ModelInfo describes the classifier.
func (p *Predictor) ModelInfo() map[string]interface{} {
	return p.classifier.GetModelInfo()
}

// Predict scores one raw form submission. Field problems come back in the
// outcome; an error means the pipeline itself failed.
func (p *Predictor) Predict(ctx context.Context, raw models.Fields) (*Outcome, error) {
	start := p.now()

	record, fieldErrs := validation.Check(raw)
	for _, e := range fieldErrs {
		metrics.ValidationErrorsTotal.WithLabelValues(e.Field).Inc()
	}

	messages := validation.Messages(fieldErrs)
	if len(messages) > 0 && !p.opts.AllowPartial {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return &Outcome{Errors: messages}, nil
	}

	row, err := p.assembler.Assemble(record)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("failed to assemble features: %w", err)
	}

	warnings := messages
	if len(row.Unknown) > 0 {
		unknown := make([]string, len(row.Unknown))
		for i, u := range row.Unknown {
			field := u[:strings.IndexByte(u, '=')]
			metrics.UnknownCategoriesTotal.WithLabelValues(field).Inc()
			unknown[i] = "Unknown value for " + field
		}
		if p.opts.RejectUnknownCategories {
			metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
			return &Outcome{Errors: append(messages, unknown...)}, nil
		}
		warnings = append(warnings, unknown...)
	}

	label, proba, err := p.classify(ctx, row.Values)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, err
	}
	if label != 0 && label != 1 {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("model returned unexpected class %d", label)
	}

	outcome := &Outcome{
		ID:               uuid.New().String(),
		Warnings:         warnings,
		Churn:            label == 1,
		Label:            models.LabelContinue,
		ChurnProbability: proba[1],
		Confidence:       proba[1] * 100,
	}
	if outcome.Churn {
		outcome.Label = models.LabelChurn
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeChurn).Inc()
	} else {
		metrics.PredictionsTotal.WithLabelValues(metrics.OutcomeContinue).Inc()
	}
	metrics.PredictionDuration.Observe(p.now().Sub(start).Seconds())

	p.record(ctx, outcome, raw)

	p.logger.Info("Customer scored",
		zap.String("id", outcome.ID),
		zap.String("label", outcome.Label),
		zap.Float64("churn_probability", outcome.ChurnProbability),
		zap.Int("warnings", len(outcome.Warnings)))

	return outcome, nil
}

// classify scores a row once when the classifier supports it, so the label
// and probabilities come from the same evaluation.
func (p *Predictor) classify(ctx context.Context, row []float64) (int, [2]float64, error) {
	if s, ok := p.classifier.(Scorer); ok {
		label, proba, err := s.Score(ctx, row)
		if err != nil {
			return 0, [2]float64{}, fmt.Errorf("model prediction failed: %w", err)
		}
		return label, proba, nil
	}

	label, err := p.classifier.Predict(ctx, row)
	if err != nil {
		return 0, [2]float64{}, fmt.Errorf("model prediction failed: %w", err)
	}
	proba, err := p.classifier.PredictProba(ctx, row)
	if err != nil {
		return 0, [2]float64{}, fmt.Errorf("model probability failed: %w", err)
	}
	return label, proba, nil
}

// record keeps the prediction in history. Failures are logged only, the
// prediction has already been made.
func (p *Predictor) record(ctx context.Context, o *Outcome, raw models.Fields) {
	if p.repo == nil {
		return
	}

	input := make(models.Fields, len(raw))
	for _, f := range validation.Fields() {
		input[f.Name] = strings.TrimSpace(raw[f.Name])
	}

	version, _ := p.classifier.GetModelInfo()["version"].(string)

	err := p.repo.Save(ctx, &models.Prediction{
		ID:               o.ID,
		Churn:            o.Churn,
		Label:            o.Label,
		ChurnProbability: o.ChurnProbability,
		Input:            input,
		Warnings:         o.Warnings,
		ModelVersion:     version,
		CreatedAt:        p.now().UTC(),
	})
	if err != nil {
		p.logger.Error("Failed to save prediction", zap.String("id", o.ID), zap.Error(err))
	}
}

// PredictBatch scores rows independently, stopping at the first pipeline
// failure.
func (p *Predictor) PredictBatch(ctx context.Context, rows []models.Fields) ([]*Outcome, error) {
	outcomes := make([]*Outcome, 0, len(rows))
	for i, raw := range rows {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		o, err := p.Predict(ctx, raw)
		if err != nil {
			return outcomes, fmt.Errorf("row %d: %w", i+1, err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}
