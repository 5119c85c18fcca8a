// Package notifytest records notifications for assertions.
package notifytest

import (
	"context"
	"sync"

	"stagepay/internal/model"
	"stagepay/internal/notify"
)

type Sent struct {
	UserID int64
	Role   model.Role
	notify.Message
}

type Recorder struct {
	mu   sync.Mutex
	sent []Sent
}

var _ notify.Notifier = (*Recorder)(nil)

func (r *Recorder) NotifyUser(_ context.Context, userID int64, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{UserID: userID, Message: msg})
}

func (r *Recorder) NotifyUsers(ctx context.Context, userIDs []int64, msg notify.Message) {
	for _, id := range userIDs {
		if id != 0 {
			r.NotifyUser(ctx, id, msg)
		}
	}
}

func (r *Recorder) NotifyRole(_ context.Context, role model.Role, msg notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{Role: role, Message: msg})
}

func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Users returns the user ids notified with msgType, in order.
func (r *Recorder) Users(msgType string) []int64 {
	var ids []int64
	for _, s := range r.Sent() {
		if s.Type == msgType && s.UserID != 0 {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

// Roles returns the roles notified with msgType, in order.
func (r *Recorder) Roles(msgType string) []model.Role {
	var roles []model.Role
	for _, s := range r.Sent() {
		if s.Type == msgType && s.Role != "" {
			roles = append(roles, s.Role)
		}
	}
	return roles
}
