package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rmgw_scheduler_ticks_total",
			Help: "Dispatcher tick invocations",
		},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_dispatch_total",
			Help: "Claimed reminders by dispatch result and role",
		},
		[]string{"result", "role"}, // calling|retried|escalated|completed|error , primary|backup
	)

	CallStatusEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_call_status_events_total",
			Help: "Call-status webhook deliveries by classified outcome",
		},
		[]string{"class"}, // success|retryable_failure|permanent_failure|ignore|duplicate
	)

	GatherIntents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_gather_intents_total",
			Help: "Gather webhook deliveries by classified intent",
		},
		[]string{"intent"}, // confirm|snooze|unknown
	)

	OutboxPublished = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rmgw_outbox_published_total",
			Help: "Outbox events relayed to Kafka",
		},
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		TicksTotal,
		DispatchTotal,
		CallStatusEvents,
		GatherIntents,
		OutboxPublished,
	)
}
