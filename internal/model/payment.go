package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
)

// IsTerminal is true once a payment can no longer change status.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed
}

type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodPayout PaymentMethod = "payout"
	MethodManual PaymentMethod = "manual"
)

// Payment is one financial event. Amount is negative for payouts.
type Payment struct {
	ID             int64           `json:"id"`
	ProjectID      int64           `json:"project_id"`
	StageID        *int64          `json:"stage_id,omitempty"`
	PayerID        *int64          `json:"payer_id,omitempty"`
	PayeeID        *int64          `json:"payee_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Status         PaymentStatus   `json:"status"`
	Method         PaymentMethod   `json:"method"`
	TransactionID  *string         `json:"transaction_id,omitempty"`
	IdempotencyKey *string         `json:"-"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
