package models

import "time"

// Requests for the analysis HTTP endpoints and Kafka messages. Defined in
// domain so handlers and consumers bind the same shapes.

// AnalyzeRequest carries an inline series for one of the indicator routes.
type AnalyzeRequest struct {
	Series Series         `json:"series" validate:"required,min=1,dive"`
	Config AnalysisConfig `json:"config" validate:"-"`
}

// AssetAnalysisRequest analyzes a series loaded from the store.
type AssetAnalysisRequest struct {
	Asset string `param:"asset" json:"asset" validate:"required,max=32"`
	Kind  string `param:"kind" json:"kind" validate:"required"`
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"2000" validate:"gte=1,lte=20000"`
}

// AnalysisRequestMessage is consumed from the requests topic. Either Asset
// (with an optional range) or Series must be set.
type AnalysisRequestMessage struct {
	RequestID string    `json:"request_id" validate:"required"`
	Kind      string    `json:"kind" validate:"required"`
	Asset     string    `json:"asset,omitempty"`
	From      time.Time `json:"from,omitempty"`
	To        time.Time `json:"to,omitempty"`
	Limit     int       `json:"limit,omitempty" default:"2000"`
	Series    Series    `json:"series,omitempty" validate:"omitempty,dive"`

	// Config is checked by the engine so range errors surface as
	// ConfigurationError rather than a generic validation failure.
	Config *AnalysisConfig `json:"config,omitempty" validate:"-"`
}

// AnalysisResultMessage is published on the results topic.
type AnalysisResultMessage struct {
	RequestID string         `json:"request_id"`
	Asset     string         `json:"asset,omitempty"`
	Kind      IndicatorKind  `json:"kind"`
	Analysis  *Analysis      `json:"analysis,omitempty"`
	Error     *AnalysisError `json:"error,omitempty"`
}

// SeriesQuery selects a stored series.
type SeriesQuery struct {
	Asset string
	Kind  IndicatorKind
	From  time.Time
	To    time.Time
	Limit int
}
