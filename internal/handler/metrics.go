package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shiptrack",
		Subsystem: "kafka_consumer",
		Name:      "tracking_events_processed_total",
		Help:      "Total number of successfully applied tracking events",
	})

	eventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "shiptrack",
		Subsystem: "kafka_consumer",
		Name:      "tracking_events_failed_total",
		Help:      "Total number of tracking events routed to the DLQ",
	})
)
