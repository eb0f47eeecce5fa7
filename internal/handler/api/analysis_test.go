package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	xhttp "ChainPulse/pkg/http"
)

type fakeEngine struct {
	kind models.IndicatorKind
	cfg  models.AnalysisConfig
	n    int
	err  error
}

func (f *fakeEngine) Analyze(_ context.Context, kind models.IndicatorKind, s models.Series, cfg models.AnalysisConfig) (*models.Analysis, error) {
	f.kind, f.cfg, f.n = kind, cfg, len(s)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Analysis{Kind: kind}, nil
}

type fakeAssets struct {
	q   models.SeriesQuery
	err error
}

func (f *fakeAssets) Run(_ context.Context, q models.SeriesQuery, _ models.AnalysisConfig) (*models.Analysis, error) {
	f.q = q
	if f.err != nil {
		return nil, f.err
	}
	return &models.Analysis{Kind: q.Kind, Asset: q.Asset}, nil
}

type checker struct{ err error }

func (c checker) Health(context.Context) error { return c.err }

func defaultConfig(t *testing.T) models.AnalysisConfig {
	t.Helper()
	cfg := models.AnalysisConfig{
		ShortWindow: 30, LongWindow: 60, IssuanceWindow: 365, Regimes: 2, Simulations: 1000,
		Horizon: 30, Seed: 42, AnomalyThreshold: 2, ForecastHorizon: 7, ConfidenceLevel: 0.95,
		VolatilityHorizon: 5, Imputation: models.ImputeForwardFill,
		EnableMonteCarlo: models.Bool(true), EnableRegimeAnalysis: models.Bool(true),
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func newServer(h *AnalysisHandler) *echo.Echo {
	return xhttp.NewServer([]xhttp.Handler{h}, xhttp.WithCORS(false)).Echo()
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func seriesJSON(n int) string {
	var b strings.Builder
	b.WriteString(`[`)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"timestamp":%q,"fields":{"hash_rate":%d}}`, t0.AddDate(0, 0, i).Format(time.RFC3339), 100+i)
	}
	b.WriteString(`]`)
	return b.String()
}

func TestAnalyze_MergesConfigOverDefaults(t *testing.T) {
	eng := &fakeEngine{}
	e := newServer(NewAnalysisHandler(nil, eng, nil, defaultConfig(t)))

	body := `{"series":` + seriesJSON(3) + `,"config":{"enable_monte_carlo":false,"simulations":50}}`
	rec := do(e, http.MethodPost, "/api/v1/analyze/hash-ribbon", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, models.KindHashRibbon, eng.kind)
	assert.Equal(t, 3, eng.n)
	assert.False(t, eng.cfg.MonteCarloEnabled())
	assert.True(t, eng.cfg.RegimeEnabled(), "omitted flags keep server defaults")
	assert.Equal(t, 50, eng.cfg.Simulations)
	assert.Equal(t, 60, eng.cfg.LongWindow)

	var resp struct {
		Status int             `json:"status"`
		Data   models.Analysis `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.KindHashRibbon, resp.Data.Kind)
}

func TestAnalyze_ValidationAndErrors(t *testing.T) {
	eng := &fakeEngine{}
	e := newServer(NewAnalysisHandler(nil, eng, nil, defaultConfig(t)))

	rec := do(e, http.MethodPost, "/api/v1/analyze/hodl-waves", `{"series":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_MIN")

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{models.InvalidInput("series", "timestamps out of order"), http.StatusBadRequest, "ERR_INVALID_INPUT"},
		{models.ConfigError("long_window", "too short"), http.StatusBadRequest, "ERR_CONFIGURATION"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "ERR_TIMEOUT"},
		{errors.New("unexpected"), http.StatusInternalServerError, "ERR_INTERNAL"},
	}
	for _, tc := range cases {
		eng.err = tc.err
		rec := do(e, http.MethodPost, "/api/v1/analyze/issuance-multiple", `{"series":`+seriesJSON(2)+`}`)
		assert.Equal(t, tc.status, rec.Code, tc.code)
		assert.Contains(t, rec.Body.String(), tc.code)
	}
}

func TestAsset_Route(t *testing.T) {
	assets := &fakeAssets{}
	e := newServer(NewAnalysisHandler(nil, &fakeEngine{}, assets, defaultConfig(t)))

	rec := do(e, http.MethodGet, "/api/v1/assets/BTC/puell?from=2024-01-01&to=2024-01-31", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BTC", assets.q.Asset)
	assert.Equal(t, models.KindIssuanceMultiple, assets.q.Kind)
	assert.Equal(t, 2000, assets.q.Limit)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), assets.q.From)
	assert.Equal(t, "private, max-age=60", rec.Header().Get(echo.HeaderCacheControl))

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/api/v1/assets/BTC/candles", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/assets/BTC/hodl-waves?from=soon", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/v1/assets/BTC/hodl-waves?limit=0x", "").Code)

	assets.err = fmt.Errorf("load: %w", domrepo.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/api/v1/assets/BTC/hash-ribbon", "").Code)

	none := newServer(NewAnalysisHandler(nil, &fakeEngine{}, nil, defaultConfig(t)))
	assert.Equal(t, http.StatusServiceUnavailable, do(none, http.MethodGet, "/api/v1/assets/BTC/hash-ribbon", "").Code)
}

func TestHealth(t *testing.T) {
	h := NewAnalysisHandler(nil, &fakeEngine{}, nil, defaultConfig(t)).
		WithHealthCheck("clickhouse", checker{})
	e := newServer(h)
	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","checks":{"clickhouse":"ok"}}`, rec.Body.String())

	h.WithHealthCheck("redis", checker{err: errors.New("dial tcp: refused")})
	rec = do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"dial tcp: refused"`)
}

func TestGroupMiddlewareSkipsHealth(t *testing.T) {
	deny := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error { return echo.NewHTTPError(http.StatusTooManyRequests) }
	}
	e := newServer(NewAnalysisHandler(nil, &fakeEngine{}, nil, defaultConfig(t)).Use(deny))
	assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodPost, "/api/v1/analyze/hash-ribbon", `{}`).Code)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/healthz", "").Code)
}
