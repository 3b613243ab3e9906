package metrics

import "github.com/prometheus/client_golang/prometheus"

// PipelineMetrics exposes counters/histograms for the conversation pipeline.
type PipelineMetrics struct {
	turnsTotal         *prometheus.CounterVec
	staffNotifications *prometheus.CounterVec
	aiLatency          prometheus.Histogram
	chunksSent         prometheus.Counter
	idleSwept          prometheus.Counter
}

func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Processed inbound customer turns",
		}, []string{"intention", "status"}),
		staffNotifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "pipeline",
			Name:      "staff_notifications_total",
			Help:      "Staff notifications dispatched, by kind",
		}, []string{"kind"}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mesavia",
			Subsystem: "pipeline",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end latency of one conversation turn",
			Buckets:   prometheus.DefBuckets,
		}),
		chunksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "pipeline",
			Name:      "reply_chunks_sent_total",
			Help:      "Outbound reply chunks dispatched to customers",
		}),
		idleSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "pipeline",
			Name:      "idle_conversations_swept_total",
			Help:      "Conversations removed by the idle cleanup sweep",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.staffNotifications, m.aiLatency, m.chunksSent, m.idleSwept)
	return m
}

func (m *PipelineMetrics) ObserveTurn(intention, status string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(intention, status).Inc()
	m.aiLatency.Observe(seconds)
}

func (m *PipelineMetrics) ObserveStaffNotification(kind string) {
	if m == nil {
		return
	}
	m.staffNotifications.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) AddChunksSent(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.chunksSent.Add(float64(n))
}

func (m *PipelineMetrics) AddIdleSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.idleSwept.Add(float64(n))
}

// MessagingMetrics exposes counters for the WhatsApp transport edge.
type MessagingMetrics struct {
	inboundTotal  *prometheus.CounterVec
	outboundTotal *prometheus.CounterVec
}

func NewMessagingMetrics(reg prometheus.Registerer) *MessagingMetrics {
	m := &MessagingMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Total inbound WhatsApp webhooks",
		}, []string{"status"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mesavia",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound WhatsApp sends",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.outboundTotal)
	return m
}

func (m *MessagingMetrics) ObserveInbound(status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(status).Inc()
}

func (m *MessagingMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
