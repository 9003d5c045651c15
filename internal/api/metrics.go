// Package api provides Prometheus metrics for the USSD surface.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ussdRequestsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hifadhi_ussd_requests_total",
			Help: "Total number of USSD gateway callbacks received",
		},
	)
	ussdResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hifadhi_ussd_responses_total",
			Help: "Total number of USSD responses by protocol marker",
		},
		[]string{"marker"},
	)
	ussdTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hifadhi_ussd_timeouts_total",
			Help: "Total number of proactive timeout fallbacks emitted",
		},
	)
	ussdDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hifadhi_ussd_request_duration_seconds",
			Help:    "Duration of USSD request handling",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(ussdRequestsTotal, ussdResponsesTotal, ussdTimeoutsTotal, ussdDurationSeconds)
}
