package services

import (
	"github.com/linkhub/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors of the usage subsystem.
type Metrics struct {
	fallbacks   *prometheus.CounterVec
	limitChecks *prometheus.CounterVec
	syncs       *prometheus.CounterVec
	alertsSent  *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		fallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkhub",
			Subsystem: "usage",
			Name:      "counter_fallbacks_total",
			Help:      "Counter operations served by the database because Redis was unavailable.",
		}, []string{"operation", "metric"}),
		limitChecks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkhub",
			Subsystem: "usage",
			Name:      "limit_checks_total",
			Help:      "Usage limit checks by outcome.",
		}, []string{"metric", "result"}),
		syncs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkhub",
			Subsystem: "usage",
			Name:      "syncs_total",
			Help:      "Counter to database reconciliation attempts by outcome.",
		}, []string{"result"}),
		alertsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "linkhub",
			Subsystem: "usage",
			Name:      "alerts_sent_total",
			Help:      "Usage alert emails sent.",
		}, []string{"type", "metric"}),
	}
}

func (m *Metrics) fallback(operation string, metric models.Metric) {
	m.fallbacks.WithLabelValues(operation, string(metric)).Inc()
}

func (m *Metrics) limitCheck(metric models.Metric, result string) {
	m.limitChecks.WithLabelValues(string(metric), result).Inc()
}

func (m *Metrics) sync(result string) {
	m.syncs.WithLabelValues(result).Inc()
}

func (m *Metrics) alertSent(alertType AlertType, metric models.Metric) {
	m.alertsSent.WithLabelValues(string(alertType), string(metric)).Inc()
}
