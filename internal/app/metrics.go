package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_resolutions_total",
		Help: "Resolution plans produced, labeled by strategy and resulting action",
	}, []string{"strategy", "action"})

	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_executions_total",
		Help: "Plan executions finished, labeled by terminal transaction status",
	}, []string{"status"})

	executionTasksClaimed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_execution_tasks_claimed_total",
		Help: "Async execution tasks claimed by the completion job",
	})
)
