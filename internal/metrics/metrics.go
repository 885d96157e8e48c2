package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics

	AuthEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "auth_events_total",
		Help:      "Auth state changes published to subscribers, by event.",
	}, []string{"event"})

	SessionRefreshTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "session_refresh_total",
		Help:      "Session refresh attempts, by outcome.",
	}, []string{"outcome"})

	SessionPresent = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "backupdesk",
		Name:      "session_present",
		Help:      "1 while a session is current, 0 otherwise.",
	})

	// Auth action metrics

	AuthActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "auth_actions_total",
		Help:      "Auth actions issued from screens, by action and outcome.",
	}, []string{"action", "outcome"})

	AuthActionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "backupdesk",
		Name:      "auth_action_duration_seconds",
		Help:      "Duration of auth actions including backend round trips.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
	}, []string{"action"})

	OrphanedAccountsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "orphaned_accounts_total",
		Help:      "Accounts created whose profile row could not be inserted.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "backupdesk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})

	GuardDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "backupdesk",
		Name:      "route_guard_decisions_total",
		Help:      "Route guard outcomes, by action.",
	}, []string{"action"})
)

func Register() {
	prometheus.MustRegister(
		AuthEventsTotal,
		SessionRefreshTotal,
		SessionPresent,
		AuthActionsTotal,
		AuthActionDuration,
		OrphanedAccountsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
		GuardDecisionsTotal,
	)
}

// Checker is what the health endpoints need from internal/health.
type Checker interface {
	LivenessHandler() http.HandlerFunc
	ReadinessHandler() http.HandlerFunc
}

func NewServer(addr string, checker Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if checker != nil {
		mux.HandleFunc("/healthz", checker.LivenessHandler())
		mux.HandleFunc("/readyz", checker.ReadinessHandler())
	}
	return &http.Server{Addr: addr, Handler: mux}
}
