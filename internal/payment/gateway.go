// Package payment talks to the card processor.
package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type ChargeStatus string

const (
	ChargeSucceeded ChargeStatus = "succeeded"
	ChargePending   ChargeStatus = "pending"
	ChargeFailed    ChargeStatus = "failed"
)

// ChargeRequest is an off-session charge of a saved card, routed to a connected account.
type ChargeRequest struct {
	CustomerID           string
	PaymentMethodID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	Currency             string
	IdempotencyKey       string
	TransferGroup        string
	// Reference is stored in processor metadata so a lost response can be found again.
	Reference   string
	Description string
}

type Charge struct {
	TransactionID string
	Status        ChargeStatus
	FailureReason string
	// TransferID is the Connect transfer to the contractor, set once the charge succeeds.
	TransferID string
}

type CustomerRequest struct {
	UserID int64
	Email  string
}

type SetupIntent struct {
	ID           string
	ClientSecret string
}

type Card struct {
	PaymentMethodID string
	Brand           string
	Last4           string
}

// WebhookEvent is a verified processor notification reduced to what we act on.
type WebhookEvent struct {
	ID   string
	Type string
	// ObjectID is the transaction id for charges, the transfer id for payouts
	// and the account id for account events.
	ObjectID       string
	FailureReason  string
	PayoutsEnabled bool
	// TransferID comes with charge.succeeded for destination charges.
	TransferID string
}

// PayoutTransferKey is the payout metadata key naming the transfer it pays out.
const PayoutTransferKey = "transfer_id"

const (
	EventChargeSucceeded = "charge.succeeded"
	EventChargeFailed    = "charge.failed"
	EventPayoutPaid      = "payout.paid"
	EventPayoutFailed    = "payout.failed"
	EventAccountUpdated  = "account.updated"
)

// Gateway is the processor boundary. Implementations must be safe for concurrent use.
type Gateway interface {
	EnsureCustomer(ctx context.Context, req CustomerRequest) (string, error)
	CreateOffSessionCharge(ctx context.Context, req ChargeRequest) (*Charge, error)
	CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error)
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*Card, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]Card, error)
	GetCharge(ctx context.Context, transactionID string) (*Charge, error)
	// FindChargeByReference returns nil when the processor has no charge for reference.
	FindChargeByReference(ctx context.Context, reference string) (*Charge, error)
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

const CodeAuthenticationRequired = "authentication_required"

// DeclineError is a definitive refusal: no money moved and retrying the same
// request will not succeed.
type DeclineError struct {
	Code          string
	Reason        string
	TransactionID string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("charge declined (%s): %s", e.Code, e.Reason)
}

func (e *DeclineError) AuthenticationRequired() bool {
	return e.Code == CodeAuthenticationRequired
}

// AsDecline reports whether err is a definitive decline.
func AsDecline(err error) (*DeclineError, bool) {
	var d *DeclineError
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// NotSentError means the request never left this process (breaker open,
// context already done). Nothing was created at the processor.
type NotSentError struct {
	Op  string
	Err error
}

func (e *NotSentError) Error() string {
	return fmt.Sprintf("%s not sent to processor: %v", e.Op, e.Err)
}

func (e *NotSentError) Unwrap() error {
	return e.Err
}

// IsNotSent reports whether err guarantees the processor never saw the request.
func IsNotSent(err error) bool {
	var n *NotSentError
	return errors.As(err, &n)
}

var ErrInvalidSignature = errors.New("invalid webhook signature")
