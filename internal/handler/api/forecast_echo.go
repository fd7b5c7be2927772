package api

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	models "SalesPulse/internal/domain/models"
	"SalesPulse/internal/service/metrics"
	"SalesPulse/internal/service/ratelimit"
	"SalesPulse/internal/usecase"
	xhttp "SalesPulse/pkg/http"
	xlogger "SalesPulse/pkg/logger"
	"SalesPulse/pkg/util"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler serves the train / predict / status API.
type ForecastEchoHandler struct {
	logger        *xlogger.Logger
	svc           *usecase.ForecastService
	rl            *ratelimit.Limiter
	prefix        string
	trainDefaults models.TrainRequest
}

// NewForecastEchoHandler creates the handler. trainDefaults seeds every
// POST /train body before binding.
func NewForecastEchoHandler(
	logger *xlogger.Logger,
	svc *usecase.ForecastService,
	rl *ratelimit.Limiter,
	prefix string,
	trainDefaults models.TrainRequest,
) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.NewNop()
	}
	return &ForecastEchoHandler{logger: logger, svc: svc, rl: rl, prefix: prefix, trainDefaults: trainDefaults}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group(h.prefix)
	g.POST("/train", h.Train)
	g.POST("/predict", h.Predict)
	g.GET("/status", h.Status)
	g.GET("/runs", h.Runs)
	e.GET("/health", h.Health)
}

func (h *ForecastEchoHandler) Train(c echo.Context) error {
	const endpoint = "train"
	defer metrics.ObserveSince(endpoint, time.Now())

	if h.rl != nil && !h.rl.Allow(c.RealIP()) {
		metrics.CountError(endpoint, "ERR_RATE_LIMITED")
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("Too many training requests, retry later"))
	}

	req := h.trainDefaults
	if verr := xhttp.ReadAndValidateRequest(c, &req); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.ValidationErrorResponse(c, verr)
	}

	res, err := h.svc.Train(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Predict(c echo.Context) error {
	const endpoint = "predict"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.PredictRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.ValidationErrorResponse(c, verr)
	}

	p := usecase.PredictParams{Days: req.Days, Shop: req.Shop}
	if req.Start != "" {
		start, ok := util.ParseDate(req.Start)
		if !ok {
			metrics.CountError(endpoint, "ERR_VALIDATION")
			return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_VALIDATION", "start", "start must be YYYY-MM-DD", http.StatusBadRequest))
		}
		p.Start = &start
	}

	res, err := h.svc.Predict(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Status(c echo.Context) error {
	const endpoint = "status"
	defer metrics.ObserveSince(endpoint, time.Now())

	res, err := h.svc.Status(c.Request().Context())
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Runs(c echo.Context) error {
	const endpoint = "runs"
	defer metrics.ObserveSince(endpoint, time.Now())

	req := &models.RunsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.CountError(endpoint, "ERR_VALIDATION")
		return xhttp.ValidationErrorResponse(c, verr)
	}
	res, err := h.svc.Runs(c.Request().Context(), req.Limit)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

// fail maps err onto an HTTP error, counts it and logs it. Unexpected
// errors are logged with a stack and answered with a redacted 500.
func (h *ForecastEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr := toAppError(err)
	metrics.CountError(endpoint, appErr.Code)

	switch {
	case appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable:
		h.logger.Error(endpoint+" failed",
			xlogger.String("route", c.Path()),
			xlogger.Error(err),
			xlogger.String("stack", string(debug.Stack())),
		)
	case appErr.Status >= http.StatusInternalServerError:
		h.logger.Error(endpoint+" upstream unavailable", xlogger.Error(err))
	default:
		h.logger.Warn(endpoint+" rejected",
			xlogger.String("code", appErr.Code),
			xlogger.Error(err),
		)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	var (
		appErr  *xhttp.AppError
		te      *models.TransportError
		mf      *models.MissingFieldError
		unknown *models.UnknownCategoryError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &te):
		return xhttp.ServiceUnavailableError("ERR_SOURCE_UNAVAILABLE", "Sales source unavailable: "+te.Error()).WithError(err)
	case errors.As(err, &mf):
		return xhttp.NewAppError("ERR_MISSING_FIELD", mf.Field, mf.Error(), http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInvalidRecord):
		return xhttp.BadRequestError("ERR_INVALID_RECORD", err.Error()).WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.BadRequestError("ERR_INSUFFICIENT_DATA", "No data available for training").WithError(err)
	case errors.As(err, &unknown):
		return xhttp.NewAppError("ERR_UNKNOWN_SHOP", "shop", unknown.Error(), http.StatusBadRequest).
			WithParam("shop", unknown.Category).WithError(err)
	case errors.Is(err, models.ErrModelNotTrained):
		return xhttp.BadRequestError("ERR_MODEL_NOT_TRAINED", "Model not trained. Call /train first").WithError(err)
	case errors.Is(err, models.ErrInvalidHorizon):
		return xhttp.BadRequestError("ERR_INVALID_HORIZON", err.Error()).WithError(err)
	case errors.Is(err, models.ErrTrainingInProgress):
		return xhttp.ConflictError("ERR_TRAINING_IN_PROGRESS", "A training run is already in progress").WithError(err)
	default:
		return xhttp.InternalError(err.Error()).WithError(err)
	}
}
