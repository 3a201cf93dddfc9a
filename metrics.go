package centrifuge

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "centrifuge_client"

// clientMetrics holds the Prometheus counters a Client exposes when
// constructed with a ClientConfig.MetricsRegisterer. Scaled down from the
// teacher's ~30 Node-level metrics to the handful meaningful for a
// single connection.
type clientMetrics struct {
	commandsSent    *prometheus.CounterVec
	repliesReceived *prometheus.CounterVec
	reconnects      prometheus.Counter
	transportErrors prometheus.Counter
	protocolErrors  *prometheus.CounterVec
}

// initClientMetrics registers the Client's metrics against registerer. A
// nil registerer disables metrics entirely (initClientMetrics returns nil, nil).
func initClientMetrics(registerer prometheus.Registerer) (*clientMetrics, error) {
	if registerer == nil {
		return nil, nil
	}

	m := &clientMetrics{
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_sent_total",
			Help:      "Number of commands sent to the server, by request tag.",
		}, []string{"request_tag"}),
		repliesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "replies_received_total",
			Help:      "Number of replies received from the server, by result tag.",
		}, []string{"result_tag"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "reconnects_total",
			Help:      "Number of reconnect attempts made.",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transport_errors_total",
			Help:      "Number of transport-level errors (I/O, TLS, handshake, parse).",
		}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "protocol_errors_total",
			Help:      "Number of ErrorReply results received from the server, by code.",
		}, []string{"code"}),
	}

	collectors := []prometheus.Collector{
		m.commandsSent, m.repliesReceived, m.reconnects, m.transportErrors, m.protocolErrors,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *clientMetrics) observeCommandSent(tag string) {
	if m == nil {
		return
	}
	m.commandsSent.WithLabelValues(tag).Inc()
}

func (m *clientMetrics) observeReplyReceived(tag string) {
	if m == nil {
		return
	}
	m.repliesReceived.WithLabelValues(tag).Inc()
}

func (m *clientMetrics) observeReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *clientMetrics) observeTransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

func (m *clientMetrics) observeProtocolError(code uint32) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(strconv.FormatUint(uint64(code), 10)).Inc()
}
