package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsSent tracks delivery attempts that reached the sent state
	AttemptsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_attempts_sent_total",
			Help: "Total number of delivery attempts sent",
		},
		[]string{"type", "channel"},
	)

	// AttemptsDelivered tracks delivery attempts confirmed delivered
	AttemptsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_attempts_delivered_total",
			Help: "Total number of delivery attempts delivered",
		},
		[]string{"type", "channel"},
	)

	// AttemptsFailed tracks delivery attempts that failed terminally
	AttemptsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_attempts_failed_total",
			Help: "Total number of delivery attempts that failed terminally",
		},
		[]string{"type", "channel", "reason"},
	)

	// AttemptRetries tracks scheduled retries after transient failures
	AttemptRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_attempt_retries_total",
			Help: "Total number of retries scheduled after transient failures",
		},
		[]string{"channel"},
	)

	// SendDuration tracks how long channel sends take
	SendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_engine_send_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)

	// DispatchQueueDepth tracks the number of queued delivery jobs per channel
	DispatchQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_engine_dispatch_queue_depth",
			Help: "Current number of delivery jobs queued per channel",
		},
		[]string{"channel"},
	)

	// ReminderJobsFired tracks reminder jobs fired by the poll loop
	ReminderJobsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_reminder_jobs_fired_total",
			Help: "Total number of reminder jobs fired",
		},
		[]string{"kind"},
	)

	// RealtimePublished tracks notifications fanned out to live subscriptions
	RealtimePublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_realtime_published_total",
			Help: "Total number of events published to live subscriptions",
		},
	)

	// RealtimeDropped tracks events dropped because a subscriber was slow
	RealtimeDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_realtime_dropped_total",
			Help: "Total number of events dropped for slow subscribers",
		},
	)

	// RateLimitExceeded tracks API rate limit violations per user
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_engine_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"user_id"},
	)

	// ConsumerRestarts tracks event consumer restart events
	ConsumerRestarts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_engine_consumer_restarts_total",
			Help: "Total number of event consumer restarts",
		},
	)
)
