package telegraph

import (
	"fmt"

	"github.com/couchlog/couchlog/internal/models"
)

// Attachment colors by notification kind.
const (
	colorSuccess = "#36a64f"
	colorGold    = "#f2c744"
	colorInfo    = "#439fe0"
)

// FormatMinutes renders a minute count as "2h 15m" / "45m".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// formatNotification turns an outbox row into a platform message.
func formatNotification(n *models.Notification) OutboundMessage {
	color := colorInfo
	switch n.Kind {
	case models.NotifyWatchCompleted:
		color = colorSuccess
	case models.NotifyBadgeEarned:
		color = colorGold
	case models.NotifyStreakExtended:
		color = colorInfo
	}
	return OutboundMessage{
		Text: n.Subject,
		Event: &Event{
			Title: n.Subject,
			Body:  n.Body,
			Color: color,
		},
	}
}
