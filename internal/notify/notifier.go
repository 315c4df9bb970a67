package notify

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/yukikurage/teamsync-api/internal/realtime"
)

type EventType string

const (
	EventTaskAssigned      EventType = "task_assigned"
	EventTaskClaimed       EventType = "task_claimed"
	EventTaskStatusChanged EventType = "task_status_changed"
	EventTaskOverdue       EventType = "task_overdue"
)

// Event is the notification sink contract: who gets it, what kind, and a
// free-form payload the frontend renders.
type Event struct {
	ID          string                 `json:"id"`
	RecipientID uint64                 `json:"recipient_id"`
	Type        EventType              `json:"type"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewEvent builds an event with a fresh ID and timestamp.
func NewEvent(recipientID uint64, eventType EventType, payload map[string]interface{}) Event {
	return Event{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	}
}

// Notifier is implemented by whatever delivers events to users.
// Persistence and push channels beyond the live socket belong to the
// external notification service.
type Notifier interface {
	Notify(event Event)
}

// HubNotifier delivers events to connected websocket clients.
type HubNotifier struct {
	hub *realtime.Hub
}

// NewHubNotifier creates a Notifier backed by the realtime hub.
func NewHubNotifier(hub *realtime.Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

// Notify marshals the event and fans it out to the recipient's clients.
func (n *HubNotifier) Notify(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("failed to marshal notification event: %v", err)
		return
	}
	n.hub.Broadcast(event.RecipientID, data)
}

// NopNotifier drops every event; used in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}
