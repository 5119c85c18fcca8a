package model

import "time"

// BillingProfile links a user to their processor identities.
type BillingProfile struct {
	UserID              int64     `json:"user_id"`
	Email               string    `json:"email"`
	ProcessorCustomerID *string   `json:"processor_customer_id,omitempty"`
	ConnectedAccountID  *string   `json:"connected_account_id,omitempty"`
	PayoutsEnabled      bool      `json:"payouts_enabled"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// PayoutReady is true once the contractor finished payout-account onboarding.
func (b *BillingProfile) PayoutReady() bool {
	return b != nil && b.ConnectedAccountID != nil && *b.ConnectedAccountID != "" && b.PayoutsEnabled
}

type SavedPaymentMethod struct {
	ID                       int64     `json:"id"`
	UserID                   int64     `json:"user_id"`
	ProcessorPaymentMethodID string    `json:"processor_payment_method_id"`
	Brand                    string    `json:"brand"`
	Last4                    string    `json:"last4"`
	IsBackup                 bool      `json:"is_backup"`
	CreatedAt                time.Time `json:"created_at"`
}

type Notification struct {
	ID        int64          `json:"id"`
	EventID   string         `json:"event_id"`
	UserID    *int64         `json:"user_id,omitempty"`
	Role      *string        `json:"role,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
