// Package metrics provides Prometheus metrics for the booking lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreatedTotal counts persisted bookings by initial status.
	BookingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_bookings_created_total",
		Help: "Total number of bookings created, by initial status.",
	}, []string{"status"})

	// BookingsRejectedTotal counts refused create requests by error kind.
	BookingsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_bookings_create_refused_total",
		Help: "Total number of refused booking requests, by error kind.",
	}, []string{"kind"})

	// TransitionsTotal counts committed status transitions by action.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_booking_transitions_total",
		Help: "Total number of committed booking status transitions, by action.",
	}, []string{"action"})

	// AuditWriteFailuresTotal counts audit entries that could not be written after retries.
	AuditWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "facility_audit_write_failures_total",
		Help: "Total number of audit entries lost after a committed mutation.",
	})

	// NotificationsTotal counts notification jobs by outcome (queued, dropped, sent, failed).
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_notifications_total",
		Help: "Total number of booking notifications, by outcome.",
	}, []string{"outcome"})

	// DirectorySyncTotal counts facility directory sync cycles by result.
	DirectorySyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facility_directory_sync_total",
		Help: "Total number of facility directory sync cycles, by result.",
	}, []string{"result"})
)
