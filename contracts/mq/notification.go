package mq

import "time"

const RoutingKeyNotificationCreated = "notification.created"

// NotificationCreatedPayload is addressed to one user or to every holder of a role.
type NotificationCreatedPayload struct {
	EventID   string         `json:"event_id"`
	UserID    *int64         `json:"user_id,omitempty"`
	Role      string         `json:"role,omitempty"`
	Type      string         `json:"type"` // stage_updated / dispute_opened / manual_payment_declared ...
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	TraceID   string         `json:"trace_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
