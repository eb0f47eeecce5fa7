package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	"ChainPulse/internal/usecase"
	xhttp "ChainPulse/pkg/http"
	"ChainPulse/pkg/logger"
)

// AssetRunner analyzes a stored series.
type AssetRunner interface {
	Run(ctx context.Context, q models.SeriesQuery, cfg models.AnalysisConfig) (*models.Analysis, error)
}

// HealthChecker is a named dependency checked by /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// AnalysisHandler serves the analysis API.
type AnalysisHandler struct {
	logger   *logger.Logger
	engine   usecase.Analyzer
	assets   AssetRunner
	defaults models.AnalysisConfig
	checks   map[string]HealthChecker
	mw       []echo.MiddlewareFunc
}

// NewAnalysisHandler builds the handler. assets may be nil when no store is
// configured; the asset route then answers 503.
func NewAnalysisHandler(l *logger.Logger, engine usecase.Analyzer, assets AssetRunner, defaults models.AnalysisConfig) *AnalysisHandler {
	if l == nil {
		l = logger.Nop()
	}
	return &AnalysisHandler{
		logger:   l.With(logger.Component("api")),
		engine:   engine,
		assets:   assets,
		defaults: defaults,
		checks:   make(map[string]HealthChecker),
	}
}

// WithHealthCheck adds a dependency to /healthz.
func (h *AnalysisHandler) WithHealthCheck(name string, c HealthChecker) *AnalysisHandler {
	if c != nil {
		h.checks[name] = c
	}
	return h
}

// Use adds middleware to the /api/v1 group only.
func (h *AnalysisHandler) Use(mw ...echo.MiddlewareFunc) *AnalysisHandler {
	h.mw = append(h.mw, mw...)
	return h
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1", h.mw...)
	g.POST("/analyze/hash-ribbon", h.analyze(models.KindHashRibbon))
	g.POST("/analyze/issuance-multiple", h.analyze(models.KindIssuanceMultiple))
	g.POST("/analyze/hodl-waves", h.analyze(models.KindHODLWaves))
	g.GET("/assets/:asset/:kind", h.Asset)

	e.GET("/healthz", h.Health)
}

func (h *AnalysisHandler) analyze(kind models.IndicatorKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := &models.AnalyzeRequest{Config: h.defaults.Clone()}
		if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
			return xhttp.Invalid(c, verr)
		}

		res, err := h.engine.Analyze(c.Request().Context(), kind, req.Series, req.Config)
		if err != nil {
			return h.fail(c, err)
		}
		return xhttp.OK(c, res)
	}
}

// Asset analyzes the stored series of an asset with the server defaults.
func (h *AnalysisHandler) Asset(c echo.Context) error {
	req := &models.AssetAnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.Invalid(c, verr)
	}
	kind, ok := models.ParseKind(req.Kind)
	if !ok {
		return xhttp.StatusError(http.StatusNotFound, "unknown indicator %q", req.Kind)
	}
	if h.assets == nil {
		return xhttp.StatusError(http.StatusServiceUnavailable, "asset store is not configured")
	}
	from, to, err := usecase.ParseRange(req.From, req.To)
	if err != nil {
		return h.fail(c, err)
	}

	res, err := h.assets.Run(c.Request().Context(), models.SeriesQuery{
		Asset: req.Asset,
		Kind:  kind,
		From:  from,
		To:    to,
		Limit: req.Limit,
	}, h.defaults.Clone())
	if err != nil {
		return h.fail(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.OK(c, res)
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health reports ok only when every registered dependency answers.
func (h *AnalysisHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := healthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for name, chk := range h.checks {
		if err := chk.Health(ctx); err != nil {
			out.Checks[name] = err.Error()
			out.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		out.Checks[name] = "ok"
	}
	return c.JSON(code, out)
}

func (h *AnalysisHandler) fail(c echo.Context, err error) error {
	unexpected, werr := xhttp.Fail(c, toAppError(err))
	if unexpected {
		h.logger.Error("analysis failed", logger.String("route", c.Path()), logger.Error(err))
	}
	return werr
}

// toAppError maps analysis failures onto HTTP statuses. Caller mistakes
// are 400s; everything else is on the server side.
func toAppError(err error) *xhttp.AppError {
	var ae *models.AnalysisError
	switch {
	case errors.As(err, &ae) && ae.Kind == models.KindInvalidInput:
		return xhttp.NewAppError("ERR_INVALID_INPUT", ae.Field, ae.Error(), http.StatusBadRequest).Wrap(err)
	case errors.As(err, &ae) && ae.Kind == models.KindConfigurationError:
		return xhttp.NewAppError("ERR_CONFIGURATION", ae.Field, ae.Error(), http.StatusBadRequest).Wrap(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.StatusError(http.StatusGatewayTimeout, "analysis timed out").Wrap(err)
	case errors.Is(err, domrepo.ErrUnavailable):
		return xhttp.StatusError(http.StatusServiceUnavailable, "series store unavailable").Wrap(err)
	default:
		return xhttp.StatusError(http.StatusInternalServerError, "analysis failed").Wrap(err)
	}
}
