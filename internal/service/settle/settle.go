// Package settle records processor outcomes on payments. Webhooks and the
// reconciliation sweep both go through it so a payment settles only once.
package settle

import (
	"context"
	"fmt"
	"time"

	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/model"
	"stagepay/internal/repository"
)

type Outcome struct {
	Status        model.PaymentStatus
	TransactionID *string
	FailureReason *string
	// TransferID opens the contractor payout when a card payment completes.
	TransferID string
}

// Apply locks the payment and records o unless the payment is already terminal.
// A terminal outcome enqueues payment.updated on the project topic.
// It reports whether anything changed.
func Apply(ctx context.Context, tx repository.Tx, paymentID int64, o Outcome, now time.Time) (*model.Payment, bool, error) {
	pay, err := tx.Payments().GetForUpdate(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if pay.Status.IsTerminal() {
		// a late transfer id still opens the payout
		if pay.Status == model.PaymentCompleted && o.Status == model.PaymentCompleted && o.TransferID != "" {
			if _, _, err := RecordPayout(ctx, tx.Payments(), pay, o.TransferID); err != nil {
				return nil, false, err
			}
		}
		return pay, false, nil
	}
	if pay.Status == o.Status && (o.TransactionID == nil || pay.TransactionID != nil) {
		return pay, false, nil
	}

	if err := tx.Payments().UpdateOutcome(ctx, pay.ID, o.Status, o.TransactionID, o.FailureReason); err != nil {
		return nil, false, err
	}
	pay.Status = o.Status
	if o.TransactionID != nil {
		pay.TransactionID = o.TransactionID
	}
	if o.FailureReason != nil {
		pay.FailureReason = o.FailureReason
	}
	pay.UpdatedAt = now

	if !o.Status.IsTerminal() {
		return pay, true, nil
	}
	payload := mqcontracts.PaymentUpdatedPayload{
		Event:      mqcontracts.EventPaymentUpdated,
		ProjectID:  pay.ProjectID,
		PaymentID:  pay.ID,
		StageID:    pay.StageID,
		Status:     string(pay.Status),
		Amount:     pay.Amount,
		OccurredAt: now,
	}
	if pay.TransactionID != nil {
		payload.TransactionID = *pay.TransactionID
	}
	if err := tx.Events().Enqueue(ctx, "payment", pay.ID, mqcontracts.ProjectTopic(pay.ProjectID), payload); err != nil {
		return nil, false, err
	}
	if pay.Status == model.PaymentCompleted && o.TransferID != "" {
		if _, _, err := RecordPayout(ctx, tx.Payments(), pay, o.TransferID); err != nil {
			return nil, false, err
		}
	}
	return pay, true, nil
}

// RecordPayout opens the processing payout that moves a completed card
// payment's funds to the contractor. The payout carries the negated amount and
// the transfer id as its transaction id. At most one live payout exists per
// stage; it reports whether a row was inserted.
func RecordPayout(ctx context.Context, payments repository.Payments, card *model.Payment, transferID string) (*model.Payment, bool, error) {
	if card.Method != model.MethodCard || card.StageID == nil || transferID == "" {
		return nil, false, nil
	}
	txn := transferID
	payout := &model.Payment{
		ProjectID:     card.ProjectID,
		StageID:       card.StageID,
		PayeeID:       card.PayeeID,
		Amount:        card.Amount.Neg(),
		Currency:      card.Currency,
		Status:        model.PaymentProcessing,
		Method:        model.MethodPayout,
		TransactionID: &txn,
	}
	inserted, err := payments.InsertIfNoLive(ctx, payout)
	if err != nil {
		return nil, false, fmt.Errorf("record payout for payment %d: %w", card.ID, err)
	}
	return payout, inserted, nil
}
