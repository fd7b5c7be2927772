package repository

import (
	"context"
	"time"

	"SalesPulse/internal/domain/models"
)

// PageIterator yields upstream sales one page at a time. Next returns
// more=false once the source is exhausted; records may be empty then.
type PageIterator interface {
	Next(ctx context.Context) (records []models.SaleRecord, more bool, err error)
}

// SalesSource reads the sales ledger.
type SalesSource interface {
	Name() string
	Pages(ctx context.Context) PageIterator
	FetchAll(ctx context.Context) ([]models.SaleRecord, error)
}

// ArtifactBundle is the estimator, encoder and metadata of one trained
// model, already serialized. The three parts are only valid together.
type ArtifactBundle struct {
	ID        string
	Estimator []byte
	Encoder   []byte
	Metadata  []byte
}

// ModelStore persists artifact bundles and swaps the live one atomically.
type ModelStore interface {
	Save(ctx context.Context, b ArtifactBundle) error
	// Load returns found=false with a nil error when nothing was saved yet.
	Load(ctx context.Context) (b ArtifactBundle, found bool, err error)
	Stat(ctx context.Context) (models.BundleStat, error)
	Path() string
}

// RunStore keeps the training history.
type RunStore interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, run models.TrainingRun) error
	Recent(ctx context.Context, limit int) ([]models.TrainingRun, error)
	Close() error
}

// EventPublisher announces model lifecycle events.
type EventPublisher interface {
	PublishModelTrained(ctx context.Context, ev models.ModelTrainedEvent) error
	Close() error
}

// Metrics records service-level counters and gauges.
type Metrics interface {
	RecordTraining(result string)
	RecordPrediction(result string, cached bool)
	RecordPage(source string)
	RecordError(kind string)
	RecordLatency(op string, d time.Duration)
	SetModel(samples int, trainedAt time.Time)
}
