package service

import (
	"context"
	"time"

	"SalesPulse/internal/domain/models"
	"SalesPulse/internal/domain/repository"
)

// Forecaster owns the trained estimator, encoder and metadata.
type Forecaster interface {
	// Train persists the new bundle to store before making it live.
	Train(ctx context.Context, records []models.SaleRecord, p models.TrainParams, store repository.ModelStore) (models.TrainingMetrics, error)
	// Predict returns days points starting at target, ascending, unclipped.
	Predict(ctx context.Context, shop string, target time.Time, days int) ([]models.ForecastPoint, error)
	Load(ctx context.Context, store repository.ModelStore) (bool, error)
	Trained() bool
	Metadata() (models.ModelMetadata, bool)
}
