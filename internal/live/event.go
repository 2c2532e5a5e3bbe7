package live

import (
	"context"
	"time"

	"dtr/internal/models"
)

type EventType string

const (
	EventClockIn       EventType = "clock_in"
	EventClockOut      EventType = "clock_out"
	EventMemberJoined  EventType = "member_joined"
	EventMemberRemoved EventType = "member_removed"
	EventRoleChanged   EventType = "role_changed"
)

// Event: то, что получают подписчики организации.
type Event struct {
	Type   EventType         `json:"type"`
	OrgID  string            `json:"org_id"`
	UserID string            `json:"user_id"`
	Entry  *models.TimeEntry `json:"entry,omitempty"`
	At     time.Time         `json:"at"`
}

// Publisher доставляет события; ошибки доставки только логируются.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
