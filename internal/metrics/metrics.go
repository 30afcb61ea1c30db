// Package metrics exposes prometheus counters for the feed engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PinsCreated counts pins created through the create flow.
	PinsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vistoria_pins_created_total",
		Help: "Pins created by users.",
	})

	// PinsPurged counts pins permanently removed, by cause.
	PinsPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistoria_pins_purged_total",
		Help: "Pins permanently removed.",
	}, []string{"cause"}) // "manual" or "retention"

	// ProviderFetches counts content-provider requests, by mode.
	ProviderFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vistoria_provider_fetches_total",
		Help: "Content generation requests issued.",
	}, []string{"mode"}) // "append" or "replace"

	// ProviderFailures counts provider requests that returned an error.
	ProviderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vistoria_provider_failures_total",
		Help: "Content generation requests that failed.",
	})

	// NotificationsPushed counts notifications entering the activity log.
	NotificationsPushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vistoria_notifications_pushed_total",
		Help: "Notifications pushed to the activity log.",
	})
)
