// metrics - Prometheus-метрики HTTP-слоя и событий аутентификации.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contacts_auth"

// Metrics хранит зарегистрированные коллекторы.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	authEvents   *prometheus.CounterVec
	mailDispatch *prometheus.CounterVec
}

// New создаёт коллекторы и регистрирует их в reg.
// В main передаётся prometheus.DefaultRegisterer, в тестах - свежий реестр.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"op", "outcome"}),
		mailDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mail",
			Name:      "dispatch_total",
			Help:      "Confirmation emails by dispatch result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.authEvents, m.mailDispatch)

	return m
}

// ObserveHTTP учитывает завершённый HTTP-запрос.
func (m *Metrics) ObserveHTTP(method, route string, code int, dur time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

// AuthEvent учитывает результат операции сервиса (signup/login/...).
func (m *Metrics) AuthEvent(op, outcome string) {
	m.authEvents.WithLabelValues(op, outcome).Inc()
}

// MailDispatched учитывает результат отправки письма.
func (m *Metrics) MailDispatched(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	m.mailDispatch.WithLabelValues(result).Inc()
}
