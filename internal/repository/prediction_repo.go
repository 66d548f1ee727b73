package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"churn-predictor/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a prediction does not exist.
var ErrNotFound = errors.New("prediction not found")

// PredictionRepository stores scored customers.
type PredictionRepository interface {
	Save(ctx context.Context, p *models.Prediction) error
	Get(ctx context.Context, id string) (*models.Prediction, error)
	List(ctx context.Context, limit int) ([]*models.Prediction, error)
	Stats(ctx context.Context) (*models.PredictionStats, error)
}

type predictionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewPredictionRepository creates a new prediction repository.
func NewPredictionRepository(db *sqlx.DB, logger *zap.Logger) PredictionRepository {
	return &predictionRepository{db: db, logger: logger}
}

// Save saves a single prediction
func (r *predictionRepository) Save(ctx context.Context, p *models.Prediction) error {
	query := r.db.Rebind(`
		INSERT INTO predictions (
			id, churn, label, churn_probability, input, warnings, model_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Churn,
		p.Label,
		p.ChurnProbability,
		p.Input,
		p.Warnings,
		p.ModelVersion,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}
	return nil
}

// Get retrieves a prediction by ID
func (r *predictionRepository) Get(ctx context.Context, id string) (*models.Prediction, error) {
	query := r.db.Rebind(`
		SELECT id, churn, label, churn_probability, input, warnings, model_version, created_at
		FROM predictions
		WHERE id = ?
	`)

	p := &models.Prediction{}
	err := r.db.GetContext(ctx, p, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}
	return p, nil
}

// List returns the most recent predictions first
func (r *predictionRepository) List(ctx context.Context, limit int) ([]*models.Prediction, error) {
	if limit <= 0 {
		limit = 100
	}

	query := r.db.Rebind(`
		SELECT id, churn, label, churn_probability, input, warnings, model_version, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?
	`)

	var predictions []*models.Prediction
	if err := r.db.SelectContext(ctx, &predictions, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	return predictions, nil
}

// Stats returns statistics about predictions
func (r *predictionRepository) Stats(ctx context.Context) (*models.PredictionStats, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN churn THEN 1 ELSE 0 END), 0) AS churned,
			COALESCE(AVG(churn_probability), 0) AS average_churn_probability
		FROM predictions
	`

	stats := &models.PredictionStats{}
	if err := r.db.GetContext(ctx, stats, query); err != nil {
		r.logger.Error("Failed to get prediction stats", zap.Error(err))
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
