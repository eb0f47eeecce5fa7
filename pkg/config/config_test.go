package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ChainPulse/internal/domain/models"
)

func TestDefault_IsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, 30*time.Second, c.Analysis.Timeout)
	assert.Equal(t, 4, c.Analysis.Workers)
	assert.Equal(t, 30, c.Analysis.ShortWindow)
	assert.Equal(t, 60, c.Analysis.LongWindow)
	assert.True(t, c.Analysis.RegimeEnabled())
	assert.Equal(t, models.ImputeForwardFill, c.Analysis.Imputation)
}

func TestParse_YAMLOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
environment: production
analysis:
  short_window: 7
  long_window: 14
  enable_monte_carlo: false
  timeout: 5s
cache:
  max_size: 10
`))
	require.NoError(t, err)
	assert.Equal(t, "production", c.Environment)
	assert.Equal(t, 7, c.Analysis.ShortWindow)
	assert.Equal(t, 14, c.Analysis.LongWindow)
	assert.False(t, c.Analysis.MonteCarloEnabled())
	assert.True(t, c.Analysis.CycleEnabled())
	assert.Equal(t, 5*time.Second, c.Analysis.Timeout)
	assert.Equal(t, 10, c.Cache.MaxSize)
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"window order":  "analysis:\n  short_window: 60\n  long_window: 30\n",
		"log level":     "log:\n  level: loud\n",
		"kafka brokers": "kafka:\n  enabled: true\n",
		"workers":       "analysis:\n  workers: 0\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: staging\n"), 0o600))

	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "staging", c.Environment)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, "debug", c.Log.Level)
}

func TestLoad_ShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "config", "config.yaml"))
	require.NoError(t, err)
	assert.False(t, c.ClickHouse.Enabled)
	assert.Equal(t, 0.6, c.ClickHouse.Breaker.FailureRatio)
	assert.Equal(t, "chainpulse.analysis.dlq", c.Kafka.Consumer.DLQTopic)
	assert.Equal(t, 1000, c.Analysis.Simulations)
}
