package models

// TrainRequest is the optional JSON body of POST /train. Fields left out of
// the body keep the values the request was seeded with.
type TrainRequest struct {
	NEstimators int     `json:"n_estimators" validate:"gte=1,lte=1000"`
	MaxDepth    int     `json:"max_depth" validate:"gte=1,lte=64"`
	TestSize    float64 `json:"test_size" validate:"gte=0,lte=0.9"`
	RandomState int64   `json:"random_state"`
}

// DefaultTrainRequest returns the stock training parameters.
func DefaultTrainRequest() TrainRequest {
	return TrainRequest{NEstimators: 100, MaxDepth: 10, TestSize: 0.2, RandomState: 42}
}

// PredictRequest carries the query parameters of POST /predict.
type PredictRequest struct {
	Days  int    `query:"days" json:"days" default:"30" validate:"gte=1,lte=90"`
	Shop  string `query:"shop" json:"shop" validate:"omitempty,max=200"`
	Start string `query:"start" json:"start" validate:"omitempty,datetime=2006-01-02"`
}

// RunsRequest carries the query parameters of GET /runs.
type RunsRequest struct {
	Limit int `query:"limit" default:"20" validate:"gte=1,lte=500"`
}

// DateRange is an inclusive span of calendar days.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrainResponse is returned by POST /train.
type TrainResponse struct {
	Message         string          `json:"message"`
	BundleID        string          `json:"bundle_id"`
	TrainingSamples int             `json:"training_samples"`
	Records         int             `json:"records"`
	DateRange       DateRange       `json:"date_range"`
	Metrics         TrainingMetrics `json:"metrics"`
}

// ForecastResponse is returned by POST /predict.
type ForecastResponse struct {
	ForecastDates  []string  `json:"forecast_dates"`
	ForecastValues []float64 `json:"forecast_values"`
	LowerBound     []float64 `json:"lower_bound"`
	UpperBound     []float64 `json:"upper_bound"`
	ModelTrained   bool      `json:"model_trained"`
	Shop           string    `json:"shop"`
	BundleID       string    `json:"bundle_id"`
}

// ModelStatus is returned by GET /status.
type ModelStatus struct {
	ModelTrained bool    `json:"model_trained"`
	ModelPath    string  `json:"model_path"`
	ModelSizeMB  float64 `json:"model_size_mb"`
	BundleID     string  `json:"bundle_id,omitempty"`
	Loaded       bool    `json:"loaded"`
}

// RunsResponse is returned by GET /runs.
type RunsResponse struct {
	Runs []TrainingRun `json:"runs"`
}
