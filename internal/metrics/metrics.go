// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts recorded attendance events by direction.
	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hostel_attendance_scans_total",
		Help: "Recorded attendance events by direction.",
	}, []string{"direction"})

	// RejectedTokensTotal counts scans rejected for an invalid code.
	RejectedTokensTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostel_attendance_rejected_tokens_total",
		Help: "Scan attempts rejected because the token was invalid, expired, or used.",
	})

	// CurfewViolationsTotal counts curfew violations flagged by the sweep.
	CurfewViolationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hostel_curfew_violations_total",
		Help: "Curfew violations created by the nightly sweep.",
	})
)
