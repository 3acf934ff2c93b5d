// Package metrics holds the Prometheus instruments for the marking flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Markings counts attendance marking requests by terminal outcome
// (recorded, geofence_violation, no_face_match, duplicate_window,
// matching_service_error, persistence_error, validation_error).
var Markings = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_markings_total",
	Help: "Attendance marking requests by outcome.",
}, []string{"outcome"})

// NotificationsSent counts delivery attempts by result.
var NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_notifications_total",
	Help: "Best-effort notification deliveries by result.",
}, []string{"result"})
