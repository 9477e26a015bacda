package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedemptionTransitions counts redemption workflow calls by action
	// (submit, approve, reject) and outcome (ok or the error kind).
	RedemptionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redemption_transitions_total",
		Help: "Redemption workflow transitions by action and outcome.",
	}, []string{"action", "outcome"})

	DealAccessChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deal_access_checks_total",
		Help: "Deal access evaluations by result.",
	}, []string{"allowed"})

	PlanCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plan_cache_lookups_total",
		Help: "Plan catalog cache lookups by result (hit, miss, error).",
	}, []string{"result"})
)
