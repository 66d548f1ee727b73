package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"churn-predictor/internal/config"
	"churn-predictor/internal/features"
	"churn-predictor/internal/ml_client"
	"churn-predictor/internal/model"
	"churn-predictor/internal/repository"
	"churn-predictor/internal/service"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// NewLogger builds a development logger, or a production one for "json".
func NewLogger(format string) (*zap.Logger, error) {
	if format == "json" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// NewClassifier loads the model artifact or connects to the model service.
func NewClassifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.Classifier, error) {
	switch cfg.Model.Type {
	case config.ModelRemote:
		client := ml_client.NewClient(cfg.Model.URL, cfg.ModelTimeout())
		if err := client.Connect(ctx); err != nil {
			return nil, fmt.Errorf("failed to connect to model service: %w", err)
		}
		logger.Info("Connected to model service",
			zap.String("url", cfg.Model.URL),
			zap.Int("features", len(client.FeatureNames())))
		return client, nil
	default:
		m, err := model.Load(cfg.Model.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Model artifact loaded",
			zap.String("path", cfg.Model.Path),
			zap.Int("features", len(m.FeatureNames())))
		return m, nil
	}
}

// Components are the pieces shared by the server and the CLI.
type Components struct {
	Reference  *features.Reference
	Classifier service.Classifier
	DB         *sqlx.DB
	Repo       repository.PredictionRepository
	Predictor  *service.Predictor
}

// Close releases the database, if any.
func (c *Components) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// Build loads reference data and the model, opens the history store unless
// withHistory is false, and wires the predictor.
func Build(ctx context.Context, cfg *config.Config, withHistory bool, logger *zap.Logger) (*Components, error) {
	ref, err := features.LoadReference(cfg.Data.ReferencePath)
	if err != nil {
		return nil, err
	}
	logger.Info("Reference data loaded",
		zap.String("path", cfg.Data.ReferencePath),
		zap.Int("rows", ref.Len()))

	classifier, err := NewClassifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	c := &Components{Reference: ref, Classifier: classifier}

	if withHistory && cfg.Database.Type != config.DatabaseNone {
		dsn := cfg.Database.URL
		if cfg.Database.Type == config.DatabaseSQLite {
			dsn = cfg.Database.Path
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		c.DB, err = repository.NewDB(cfg.Database.Type, dsn, logger)
		if err != nil {
			return nil, err
		}
		c.Repo = repository.NewPredictionRepository(c.DB, logger)
	}

	c.Predictor, err = service.NewPredictor(ref, classifier, c.Repo, service.Options{
		AllowPartial:            cfg.Validation.AllowPartial,
		RejectUnknownCategories: cfg.Validation.RejectUnknownCategories,
	}, logger)
	if err != nil {
		c.Close()
		return nil, err
	}

	return c, nil
}
