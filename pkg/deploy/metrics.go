package deploy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	deliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversacloud_deliveries_total",
		Help: "Completed delivery workflows by final status.",
	}, []string{"status"})

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "conversacloud_delivery_stage_failures_total",
		Help: "Delivery stage failures by stage name.",
	}, []string{"stage"})
)
