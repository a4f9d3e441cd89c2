package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// Every method is safe on a nil receiver.
type Metrics struct {
	Registry *prometheus.Registry

	accessChecks    *prometheus.CounterVec
	keycardScans    *prometheus.CounterVec
	keycardsIssued  prometheus.Counter
	keycardsRevoked prometheus.Counter
	httpRequests    *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		accessChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorkeeper_access_checks_total",
			Help: "RFID checks by decision reason.",
		}, []string{"result"}),
		keycardScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorkeeper_keycard_scans_total",
			Help: "Keycard scan handshakes by outcome.",
		}, []string{"outcome"}),
		keycardsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorkeeper_keycards_issued_total",
			Help: "Keycards assigned to lock users.",
		}),
		keycardsRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "doorkeeper_keycards_revoked_total",
			Help: "Keycards revoked.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "doorkeeper_http_requests_total",
			Help: "HTTP requests by route pattern and status code.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.accessChecks,
		m.keycardScans,
		m.keycardsIssued,
		m.keycardsRevoked,
		m.httpRequests,
	)
	return m
}

func (m *Metrics) AccessCheck(result string) {
	if m == nil {
		return
	}
	m.accessChecks.WithLabelValues(result).Inc()
}

// KeycardScan counts handshake transitions: started, ready, consumed, expired.
func (m *Metrics) KeycardScan(outcome string) {
	if m == nil {
		return
	}
	m.keycardScans.WithLabelValues(outcome).Inc()
}

func (m *Metrics) KeycardScans(outcome string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.keycardScans.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) KeycardIssued() {
	if m == nil {
		return
	}
	m.keycardsIssued.Inc()
}

func (m *Metrics) KeycardRevoked() {
	if m == nil {
		return
	}
	m.keycardsRevoked.Inc()
}

func (m *Metrics) HTTPRequest(route string, status int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
