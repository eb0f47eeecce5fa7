package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
)

type recordingProducer struct {
	topic  string
	key    string
	value  interface{}
	closed bool
}

func (p *recordingProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, string(key), value
	return nil
}

func (p *recordingProducer) Close() error {
	p.closed = true
	return nil
}

func TestKafkaResultPublisher_Keys(t *testing.T) {
	prod := &recordingProducer{}
	pub := NewKafkaResultPublisher(prod, "chainpulse.results")

	msg := &models.AnalysisResultMessage{RequestID: "r-1", Asset: "BTC"}
	require.NoError(t, pub.Publish(context.Background(), msg))
	assert.Equal(t, "chainpulse.results", prod.topic)
	assert.Equal(t, "BTC", prod.key)
	assert.Same(t, msg, prod.value)

	require.NoError(t, pub.Publish(context.Background(), &models.AnalysisResultMessage{RequestID: "r-2"}))
	assert.Equal(t, "r-2", prod.key)

	require.NoError(t, pub.Close())
	assert.True(t, prod.closed)
}
