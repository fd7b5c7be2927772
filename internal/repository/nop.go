package repository

import (
	"context"

	"SalesPulse/internal/domain/models"
)

// NopEventPublisher is used when no broker is configured.
type NopEventPublisher struct{}

func (NopEventPublisher) PublishModelTrained(context.Context, models.ModelTrainedEvent) error {
	return nil
}

func (NopEventPublisher) Close() error { return nil }

// NopRunStore discards training history.
type NopRunStore struct{}

func (NopRunStore) Init(context.Context) error                       { return nil }
func (NopRunStore) Record(context.Context, models.TrainingRun) error { return nil }
func (NopRunStore) Close() error                                     { return nil }

func (NopRunStore) Recent(context.Context, int) ([]models.TrainingRun, error) {
	return []models.TrainingRun{}, nil
}
