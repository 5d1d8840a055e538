package consumer

import (
	"context"
	"fmt"
	"time"

	"example.com/smartroutine/internal/domain"
	"example.com/smartroutine/internal/platform/events"
)

var nowUTC = func() time.Time { return time.Now().UTC() }

// LiveNotifyHandler wakes live subscriptions of the event's owner. It lets
// every API replica observe writes made by the others.
type LiveNotifyHandler struct {
	notifier domain.Notifier
}

// NewLiveNotifyHandler constructs a LiveNotifyHandler.
func NewLiveNotifyHandler(notifier domain.Notifier) *LiveNotifyHandler {
	return &LiveNotifyHandler{notifier: notifier}
}

// Handle notifies the owner of msg.
func (h *LiveNotifyHandler) Handle(_ context.Context, msg Message) error {
	userID, err := ownerOf(msg)
	if err != nil {
		return err
	}
	h.notifier.Notify(userID)
	return nil
}

func ownerOf(msg Message) (string, error) {
	if msg.UserID != "" {
		return msg.UserID, nil
	}
	userID, err := events.Owner(msg.Payload)
	if err != nil {
		return "", fmt.Errorf("decode owner of %s: %w", msg.EventType, err)
	}
	if userID == "" {
		return "", fmt.Errorf("%s event has no user_id", msg.EventType)
	}
	return userID, nil
}
