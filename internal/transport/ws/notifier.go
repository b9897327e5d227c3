package ws

import (
	"github.com/google/uuid"
	"github.com/vedran77/dreamnest/internal/domain"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) NotifyDreamCreated(dream *domain.Dream) {
	evt, err := NewEvent(EventTypeDreamCreated, DreamPayload{Dream: *dream})
	if err != nil {
		n.hub.log.WithError(err).Error("ws notifier: marshal")
		return
	}
	n.hub.SendToUser(dream.UserID, evt)
}

func (n *HubNotifier) NotifyDreamDeleted(userID, dreamID uuid.UUID) {
	evt, err := NewEvent(EventTypeDreamDeleted, DreamDeletedPayload{ID: dreamID})
	if err != nil {
		n.hub.log.WithError(err).Error("ws notifier: marshal")
		return
	}
	n.hub.SendToUser(userID, evt)
}
