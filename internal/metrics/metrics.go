package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_deliveries_total",
			Help: "Delivery attempts by channel and outcome",
		},
		[]string{"channel", "outcome"}, // email|sms , sent|failed|retry
	)

	SummaryRegenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_summary_regenerations_total",
			Help: "Contact summary regenerations by result",
		},
		[]string{"result"}, // ok|error
	)

	SchedulesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_schedules_created_total",
			Help: "Schedules accepted by channel and recurrence",
		},
		[]string{"channel", "recurrence"},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		DeliveriesTotal,
		SummaryRegenTotal,
		SchedulesCreatedTotal,
	)
}
