package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies analysis failures.
type ErrorKind string

const (
	KindInsufficientData   ErrorKind = "insufficient_data"
	KindInvalidInput       ErrorKind = "invalid_input"
	KindModelFitFailure    ErrorKind = "model_fit_failure"
	KindConfigurationError ErrorKind = "configuration_error"
)

// Sentinels for errors.Is matching by kind.
var (
	ErrInsufficientData = &AnalysisError{Kind: KindInsufficientData, Message: "insufficient data"}
	ErrInvalidInput     = &AnalysisError{Kind: KindInvalidInput, Message: "invalid input"}
	ErrModelFit         = &AnalysisError{Kind: KindModelFitFailure, Message: "model fit failed"}
	ErrConfiguration    = &AnalysisError{Kind: KindConfigurationError, Message: "invalid configuration"}
)

// AnalysisError carries the failure kind plus the offending field, if any.
type AnalysisError struct {
	Kind    ErrorKind `json:"kind"`
	Field   string    `json:"field,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AnalysisError) Error() string {
	msg := string(e.Kind) + ": " + e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Is matches any AnalysisError of the same kind.
func (e *AnalysisError) Is(target error) bool {
	var t *AnalysisError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// InvalidInput builds a fatal input error.
func InvalidInput(field, format string, args ...interface{}) error {
	return &AnalysisError{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

// ConfigError builds a fatal configuration error.
func ConfigError(field, format string, args ...interface{}) error {
	return &AnalysisError{Kind: KindConfigurationError, Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientData reports that a stage needs at least want points.
func InsufficientData(stage string, have, want int) error {
	return &AnalysisError{
		Kind:    KindInsufficientData,
		Field:   stage,
		Message: fmt.Sprintf("have %d points, need %d", have, want),
	}
}

// FitFailure wraps a model convergence or numeric failure.
func FitFailure(stage string, err error) error {
	return &AnalysisError{Kind: KindModelFitFailure, Field: stage, Message: "fit failed", Err: err}
}

// IsFatal reports whether err must abort the whole analysis call.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConfiguration)
}

// KindOf extracts the ErrorKind of err, or "" when err is not an AnalysisError.
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}
