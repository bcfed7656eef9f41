package processor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusMetrics struct {
	Registry              *prometheus.Registry
	PacketObservedCounter *prometheus.CounterVec
	PacketRelayedCounter  *prometheus.CounterVec
	LatestHeightGauge     *prometheus.GaugeVec
	TxFailureError        *prometheus.CounterVec
	RetryCounter          *prometheus.CounterVec
	PathFailureCounter    *prometheus.CounterVec
	BlockQueryFailure     *prometheus.CounterVec
	MisbehaviourDetected  *prometheus.CounterVec
	ClientExpiration      *prometheus.GaugeVec
	ClientTrustingPeriod  *prometheus.GaugeVec
}

func (m *PrometheusMetrics) AddPacketsObserved(pathName, chain, channel, port, eventType string, count int) {
	m.PacketObservedCounter.WithLabelValues(pathName, chain, channel, port, eventType).Add(float64(count))
}

func (m *PrometheusMetrics) IncPacketsRelayed(pathName, chain, channel, port, msgType string) {
	m.PacketRelayedCounter.WithLabelValues(pathName, chain, channel, port, msgType).Inc()
}

func (m *PrometheusMetrics) SetLatestHeight(chain string, height uint64) {
	m.LatestHeightGauge.WithLabelValues(chain).Set(float64(height))
}

func (m *PrometheusMetrics) SetClientExpiration(pathName, chain, clientID, trustingPeriod string, timeToExpiration time.Duration) {
	m.ClientExpiration.WithLabelValues(pathName, chain, clientID, trustingPeriod).Set(timeToExpiration.Seconds())
}

func (m *PrometheusMetrics) SetClientTrustingPeriod(pathName, chain, clientID string, trustingPeriod time.Duration) {
	m.ClientTrustingPeriod.WithLabelValues(pathName, chain, clientID).Set(trustingPeriod.Abs().Seconds())
}

func (m *PrometheusMetrics) IncBlockQueryFailure(chain, err string) {
	m.BlockQueryFailure.WithLabelValues(chain, err).Inc()
}

func (m *PrometheusMetrics) IncTxFailure(pathName, chain, cause string) {
	m.TxFailureError.WithLabelValues(pathName, chain, cause).Inc()
}

func (m *PrometheusMetrics) IncRetry(pathName, chain, step string) {
	m.RetryCounter.WithLabelValues(pathName, chain, step).Inc()
}

func (m *PrometheusMetrics) IncPathFailure(pathName, class string) {
	m.PathFailureCounter.WithLabelValues(pathName, class).Inc()
}

func (m *PrometheusMetrics) IncMisbehaviourDetected(chain, clientID string) {
	m.MisbehaviourDetected.WithLabelValues(chain, clientID).Inc()
}

func NewPrometheusMetrics() *PrometheusMetrics {
	packetLabels := []string{"path_name", "chain", "channel", "port", "type"}
	heightLabels := []string{"chain"}
	txFailureLabels := []string{"path_name", "chain", "cause"}
	retryLabels := []string{"path_name", "chain", "step"}
	pathFailureLabels := []string{"path_name", "class"}
	blockQueryFailureLabels := []string{"chain", "type"}
	misbehaviourLabels := []string{"chain", "client_id"}
	clientExpirationLables := []string{"path_name", "chain", "client_id", "trusting_period"}
	clientTrustingPeriodLables := []string{"path_name", "chain", "client_id"}
	registry := prometheus.NewRegistry()
	registerer := promauto.With(registry)
	return &PrometheusMetrics{
		Registry: registry,
		PacketObservedCounter: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_observed_packets",
			Help: "The total number of observed packets",
		}, packetLabels),
		PacketRelayedCounter: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_relayed_packets",
			Help: "The total number of relayed packets",
		}, packetLabels),
		LatestHeightGauge: registerer.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ibc_relayer_chain_latest_height",
			Help: "The current height of the chain",
		}, heightLabels),
		TxFailureError: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_tx_errors_total",
			Help: "The total number of tx failures broken up by error class",
		}, txFailureLabels),
		RetryCounter: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_retries_total",
			Help: "The total number of retried steps",
		}, retryLabels),
		PathFailureCounter: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_path_failures_total",
			Help: "The total number of path failures. Fatal failures stop the path",
		}, pathFailureLabels),
		BlockQueryFailure: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_block_query_errors_total",
			Help: "The total number of block query failures",
		}, blockQueryFailureLabels),
		MisbehaviourDetected: registerer.NewCounterVec(prometheus.CounterOpts{
			Name: "ibc_relayer_misbehaviour_detected_total",
			Help: "The total number of conflicting headers detected",
		}, misbehaviourLabels),
		ClientExpiration: registerer.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ibc_relayer_client_expiration_seconds",
			Help: "Seconds until the client expires",
		}, clientExpirationLables),
		ClientTrustingPeriod: registerer.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ibc_relayer_client_trusting_period_seconds",
			Help: "The trusting period (in seconds) of the client",
		}, clientTrustingPeriodLables),
	}
}
