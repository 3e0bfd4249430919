package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ledgerly", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ledgerly", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	AuthResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ledgerly", Name: "auth_results_total", Help: "Authentication outcomes at the authorizer by result code."},
		[]string{"result"},
	)
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ledgerly", Name: "gate_decisions_total", Help: "Route gate terminal actions."},
		[]string{"action"},
	)
	SessionVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ledgerly", Name: "gate_session_verifications_total", Help: "Session verification calls made by the route gate by outcome."},
		[]string{"outcome"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(AuthResults)
	reg.MustRegister(GateDecisions)
	reg.MustRegister(SessionVerifications)
}
