package models

import "time"

// TrainParams are the estimator hyper-parameters for one training run.
type TrainParams struct {
	NEstimators    int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	TestSize       float64 `json:"test_size"`
	RandomState    int64   `json:"random_state"`
}

// TrainingMetrics reports goodness of fit. R² is nil when undefined for a
// partition (fewer than two rows or a constant target).
type TrainingMetrics struct {
	TrainR2           *float64           `json:"train_r2"`
	TestR2            *float64           `json:"test_r2"`
	FeatureImportance map[string]float64 `json:"feature_importance"`
	NTrainSamples     int                `json:"n_train_samples"`
	NTestSamples      int                `json:"n_test_samples"`
	TrainDate         time.Time          `json:"train_date"`
}

// ModelMetadata is persisted next to the estimator and encoder.
type ModelMetadata struct {
	BundleID       string          `json:"bundle_id"`
	StartDate      time.Time       `json:"start_date"`
	EndDate        time.Time       `json:"end_date"`
	TrainDate      time.Time       `json:"train_date"`
	FeatureColumns []string        `json:"feature_columns"`
	Grouping       string          `json:"grouping"`
	Shops          []string        `json:"shops,omitempty"` // names folded into "total"
	NSamples       int             `json:"n_samples"`
	ResidualStd    float64         `json:"residual_std"`
	Params         TrainParams     `json:"params"`
	Metrics        TrainingMetrics `json:"metrics"`
}

// ForecastPoint is one predicted day. Lower and Upper bound the prediction
// interval; values are raw estimator output until the service clips them.
type ForecastPoint struct {
	Date            time.Time
	Shop            string
	PredictedAmount float64
	Lower           float64
	Upper           float64
}

// TrainingRun is the history entry written after every successful training.
type TrainingRun struct {
	ID          string    `json:"id"`
	BundleID    string    `json:"bundle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Records     int       `json:"records"`
	Samples     int       `json:"samples"`
	DateStart   time.Time `json:"date_start"`
	DateEnd     time.Time `json:"date_end"`
	TrainR2     *float64  `json:"train_r2"`
	TestR2      *float64  `json:"test_r2"`
	NEstimators int       `json:"n_estimators"`
	MaxDepth    int       `json:"max_depth"`
}

// ModelTrainedEvent is published after a bundle becomes live.
type ModelTrainedEvent struct {
	Type      string    `json:"type"`
	BundleID  string    `json:"bundle_id"`
	Samples   int       `json:"samples"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	TrainR2   *float64  `json:"train_r2"`
	TestR2    *float64  `json:"test_r2"`
	TrainedAt time.Time `json:"trained_at"`
}

// BundleStat describes the persisted bundle without decoding it.
type BundleStat struct {
	Exists    bool
	BundleID  string
	Path      string
	SizeBytes int64
}
