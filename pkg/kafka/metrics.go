package kafka

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	producerMsgsTotal     *prometheus.CounterVec
	producerBytesTotal    *prometheus.CounterVec
	producerLatencyHist   *prometheus.HistogramVec
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec

	metricsOnce sync.Once
	registerer  prometheus.Registerer = prometheus.DefaultRegisterer
)

// SetMetricsRegisterer sets the registerer used for producer and consumer
// metrics. It must be called before the first producer or consumer is built.
func SetMetricsRegisterer(reg prometheus.Registerer) {
	if reg != nil {
		registerer = reg
	}
}

func initMetricsOnce() {
	metricsOnce.Do(func() {
		f := promauto.With(registerer)
		producerMsgsTotal = f.NewCounterVec(
			prometheus.CounterOpts{Name: "chainpulse_kafka_producer_messages_total", Help: "Messages published to Kafka"},
			[]string{"topic", "result"},
		)
		producerBytesTotal = f.NewCounterVec(
			prometheus.CounterOpts{Name: "chainpulse_kafka_producer_bytes_total", Help: "Payload bytes published"},
			[]string{"topic"},
		)
		producerLatencyHist = f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "chainpulse_kafka_producer_publish_seconds", Help: "Publish latency", Buckets: prometheus.DefBuckets},
			[]string{"topic"},
		)
		consumerQueueDepth = f.NewGaugeVec(
			prometheus.GaugeOpts{Name: "chainpulse_kafka_consumer_queue_depth", Help: "Messages waiting in the consumer queue"},
			[]string{"topic"},
		)
		consumerHandled = f.NewCounterVec(
			prometheus.CounterOpts{Name: "chainpulse_kafka_consumer_messages_total", Help: "Messages handled by result"},
			[]string{"topic", "result"},
		)
		consumerHandleLatency = f.NewHistogramVec(
			prometheus.HistogramOpts{Name: "chainpulse_kafka_consumer_handle_seconds", Help: "Handling time per message"},
			[]string{"topic"},
		)
	})
}
