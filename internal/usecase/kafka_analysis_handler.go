package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"ChainPulse/internal/domain/models"
	domrepo "ChainPulse/internal/domain/repository"
	pkgkafka "ChainPulse/pkg/kafka"
	"ChainPulse/pkg/logger"
)

// KafkaAnalysisHandler consumes analysis requests and publishes results.
// Fatal request errors are answered with an error message and committed;
// anything else is returned so the consumer retries and eventually
// dead-letters the message.
type KafkaAnalysisHandler struct {
	topic     string
	engine    Analyzer
	assets    *AssetAnalysis
	publisher domrepo.ResultPublisher
	defaults  models.AnalysisConfig
	metrics   domrepo.Metrics
	log       *logger.Logger
	validate  *validator.Validate
}

func NewKafkaAnalysisHandler(topic string, engine Analyzer, assets *AssetAnalysis, publisher domrepo.ResultPublisher, defaultCfg models.AnalysisConfig, metrics domrepo.Metrics, l *logger.Logger) *KafkaAnalysisHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if l == nil {
		l = logger.Nop()
	}
	return &KafkaAnalysisHandler{
		topic:     topic,
		engine:    engine,
		assets:    assets,
		publisher: publisher,
		defaults:  defaultCfg,
		metrics:   metrics,
		log:       l.With(logger.Component("kafka_analysis")),
		validate:  validator.New(),
	}
}

func (h *KafkaAnalysisHandler) Topic() string { return h.topic }

func (h *KafkaAnalysisHandler) Handle(ctx context.Context, b []byte) error {
	cfg := h.defaults.Clone()
	msg := models.AnalysisRequestMessage{Config: &cfg}
	if err := json.Unmarshal(b, &msg); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode analysis request: %w", err)
	}
	if msg.Config == nil {
		msg.Config = &cfg
	}
	if err := defaults.Set(&msg); err != nil {
		return fmt.Errorf("apply request defaults: %w", err)
	}

	res, err := h.run(ctx, &msg)
	if err != nil {
		if !models.IsFatal(err) {
			return err
		}
		h.log.Info("analysis request rejected",
			logger.String("request_id", msg.RequestID),
			logger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)),
			logger.String("kind", msg.Kind),
			logger.Error(err),
		)
		return h.publish(ctx, &models.AnalysisResultMessage{
			RequestID: msg.RequestID,
			Asset:     msg.Asset,
			Kind:      models.IndicatorKind(msg.Kind),
			Error:     asAnalysisError(err),
		})
	}
	return h.publish(ctx, &models.AnalysisResultMessage{
		RequestID: msg.RequestID,
		Asset:     msg.Asset,
		Kind:      res.Kind,
		Analysis:  res,
	})
}

func (h *KafkaAnalysisHandler) run(ctx context.Context, msg *models.AnalysisRequestMessage) (*models.Analysis, error) {
	if err := h.validate.StructCtx(ctx, msg); err != nil {
		return nil, models.InvalidInput("request", "%v", err)
	}
	kind, ok := models.ParseKind(msg.Kind)
	if !ok {
		return nil, models.InvalidInput("kind", "unsupported indicator kind %q", msg.Kind)
	}

	switch {
	case len(msg.Series) > 0:
		res, err := h.engine.Analyze(ctx, kind, msg.Series, *msg.Config)
		if err != nil {
			return nil, err
		}
		res.Asset = msg.Asset
		return res, nil
	case msg.Asset != "" && h.assets != nil:
		return h.assets.Run(ctx, models.SeriesQuery{
			Asset: msg.Asset,
			Kind:  kind,
			From:  msg.From,
			To:    msg.To,
			Limit: msg.Limit,
		}, *msg.Config)
	case msg.Asset != "":
		return nil, models.InvalidInput("asset", "asset lookups are not enabled")
	default:
		return nil, models.InvalidInput("series", "either series or asset is required")
	}
}

func (h *KafkaAnalysisHandler) publish(ctx context.Context, out *models.AnalysisResultMessage) error {
	if err := h.publisher.Publish(ctx, out); err != nil {
		h.metrics.RecordError("publish_result")
		return fmt.Errorf("publish result %s: %w", out.RequestID, err)
	}
	return nil
}

func asAnalysisError(err error) *models.AnalysisError {
	var ae *models.AnalysisError
	if errors.As(err, &ae) {
		return ae
	}
	return &models.AnalysisError{Kind: models.KindInvalidInput, Message: err.Error()}
}

var _ pkgkafka.MessageHandler = (*KafkaAnalysisHandler)(nil)
