// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Channel labels for alert failures.
const (
	ChannelAudio  = "audio"
	ChannelSpeech = "speech"
)

var (
	// PollsTotal counts pending-orders polls, successful or not.
	PollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_order_polls_total",
		Help: "Number of pending-orders summary polls.",
	})

	// PollFailuresTotal counts polls that failed in transport or decoding.
	PollFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_order_poll_failures_total",
		Help: "Number of failed pending-orders polls.",
	})

	// OrdersDetectedTotal counts distinct new-order transitions.
	OrdersDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_orders_detected_total",
		Help: "Number of new-order transitions detected.",
	})

	// AlertsTotal counts multi-channel alert sequences started.
	AlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_alerts_total",
		Help: "Number of alert sequences started.",
	})

	// ChannelFailuresTotal counts per-channel alert failures. Channels fail
	// independently; a failure here never aborts the other channels.
	ChannelFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "engage_alert_channel_failures_total",
		Help: "Number of alert channel failures by channel.",
	}, []string{"channel"})

	// NotificationsDisplayedTotal counts items pushed to the display.
	NotificationsDisplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_notifications_displayed_total",
		Help: "Number of notification items displayed.",
	})

	// PushSubscriptionsTotal counts completed push-subscription flows.
	PushSubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "engage_push_subscriptions_total",
		Help: "Number of completed push subscription flows.",
	})
)
