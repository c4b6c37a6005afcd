package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// AssistantMetrics exposes counters/histograms for the assistant pipeline.
type AssistantMetrics struct {
	classifications *prometheus.CounterVec
	commands        *prometheus.CounterVec
	oracleLatency   *prometheus.HistogramVec
	bookings        *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	inbound         *prometheus.CounterVec
}

func NewAssistantMetrics(reg prometheus.Registerer) *AssistantMetrics {
	m := &AssistantMetrics{
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinik",
			Subsystem: "assistant",
			Name:      "classifications_total",
			Help:      "Classified free-text messages by resulting variant",
		}, []string{"kind"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinik",
			Subsystem: "assistant",
			Name:      "commands_total",
			Help:      "Slash commands routed, by command and outcome",
		}, []string{"command", "outcome"}),
		oracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "klinik",
			Subsystem: "assistant",
			Name:      "oracle_latency_seconds",
			Help:      "Latency of language model calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinik",
			Subsystem: "appointments",
			Name:      "bookings_total",
			Help:      "Appointment booking attempts by outcome",
		}, []string{"outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinik",
			Subsystem: "reminders",
			Name:      "deliveries_total",
			Help:      "Reminder deliveries by channel and status",
		}, []string{"channel", "status"}),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "klinik",
			Subsystem: "messaging",
			Name:      "inbound_total",
			Help:      "Inbound chat messages by transport and status",
		}, []string{"transport", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.classifications, m.commands, m.oracleLatency, m.bookings, m.reminders, m.inbound)
	return m
}

func (m *AssistantMetrics) ObserveClassification(kind string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(kind).Inc()
}

func (m *AssistantMetrics) ObserveCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}

func (m *AssistantMetrics) ObserveOracleLatency(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.oracleLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *AssistantMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *AssistantMetrics) ObserveReminder(channel, status string) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(channel, status).Inc()
}

func (m *AssistantMetrics) ObserveInbound(transport, status string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(transport, status).Inc()
}
