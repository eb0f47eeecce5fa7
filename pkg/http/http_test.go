package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name  string `json:"name" validate:"required"`
	Limit int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=100"`
	Items []item `json:"items" validate:"required,min=1,dive"`
}

type item struct {
	Value float64 `json:"value" validate:"gte=0"`
}

func bind(t *testing.T, body string) []ValidationError {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := e.NewContext(req, httptest.NewRecorder())
	var r sampleRequest
	return ReadAndValidateRequest(c, &r)
}

func TestReadAndValidateRequest(t *testing.T) {
	assert.Nil(t, bind(t, `{"name":"btc","items":[{"value":1}]}`))

	errs := bind(t, `{"items":[]}`)
	require.Len(t, errs, 2)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "ERR_MIN", errs[1].Code)
	assert.Equal(t, "items must contain at least 1 items", errs[1].Message)

	errs = bind(t, `{"name":"btc","items":[{"value":-1}]}`)
	require.Len(t, errs, 1)
	assert.Equal(t, "items[0].value", errs[0].Field)
	assert.Equal(t, map[string]interface{}{"min": "0"}, errs[0].Params)

	errs = bind(t, `{"name":`)
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
}

type routes struct{}

func (routes) RegisterRoutes(e *echo.Echo) {
	e.GET("/app-error", func(c echo.Context) error {
		return NewAppError("ERR_INVALID_INPUT", "series", "bad series", http.StatusBadRequest)
	})
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })
	e.GET("/panic", func(c echo.Context) error { panic("oops") })
	e.GET("/ok", func(c echo.Context) error { return OK(c, map[string]int{"n": 1}) })
}

func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_ErrorEnvelope(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewServer([]Handler{routes{}}, WithMetrics(reg, "/metrics"))

	rec := serve(s, "/app-error")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusBadRequest, body.Status)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "ERR_INVALID_INPUT", body.Data[0].Code)
	assert.Equal(t, "series", body.Data[0].Field)

	assert.Equal(t, http.StatusInternalServerError, serve(s, "/boom").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(s, "/panic").Code)
	assert.Equal(t, http.StatusNotFound, serve(s, "/nope").Code)

	ok := serve(s, "/ok")
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.NotEmpty(t, ok.Header().Get(echo.HeaderXRequestID))

	metrics := serve(s, "/metrics").Body.String()
	assert.Contains(t, metrics, `chainpulse_http_requests_total{method="GET",route="/app-error",status="400"} 1`)
	assert.Contains(t, metrics, `chainpulse_http_requests_total{method="GET",route="/panic",status="500"} 1`)
}
