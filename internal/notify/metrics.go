package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	channelSends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatepass_notification_channel_sends_total",
		Help: "Channel send attempts by channel and outcome.",
	}, []string{"channel", "outcome"})

	notificationsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_notifications_sent_total",
		Help: "Notifications that reached the sent state.",
	})

	notificationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_notifications_failed_total",
		Help: "Notifications whose every enabled channel failed.",
	})

	notificationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatepass_notifications_expired_total",
		Help: "Notifications removed by the expiry sweep.",
	})
)
