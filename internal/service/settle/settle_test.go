package settle

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/repository/memstore"
)

func strp(s string) *string { return &s }

func apply(t *testing.T, store *memstore.Store, id int64, o Outcome) bool {
	t.Helper()
	var changed bool
	err := store.WithTx(context.Background(), func(tx repository.Tx) error {
		var err error
		_, changed, err = Apply(context.Background(), tx, id, o, time.Now())
		return err
	})
	require.NoError(t, err)
	return changed
}

func TestApply_TerminalOnce(t *testing.T) {
	store := memstore.New()
	stageID := int64(7)
	pay := store.AddPayment(model.Payment{
		ProjectID:     3,
		StageID:       &stageID,
		Amount:        decimal.NewFromInt(500),
		Status:        model.PaymentProcessing,
		Method:        model.MethodCard,
		TransactionID: strp("pi_1"),
	})

	assert.True(t, apply(t, store, pay.ID, Outcome{Status: model.PaymentCompleted}))
	assert.False(t, apply(t, store, pay.ID, Outcome{Status: model.PaymentFailed, FailureReason: strp("late")}))

	got := store.Payment(pay.ID)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	assert.Nil(t, got.FailureReason)

	events := store.Published()
	require.Len(t, events, 1)
	assert.Equal(t, "project.3", events[0].RoutingKey)
	payload, ok := events[0].Payload.(mqcontracts.PaymentUpdatedPayload)
	require.True(t, ok)
	assert.Equal(t, "pi_1", payload.TransactionID)
	assert.Equal(t, "completed", payload.Status)
}

func TestApply_AttachTransactionWithoutEvent(t *testing.T) {
	store := memstore.New()
	pay := store.AddPayment(model.Payment{ProjectID: 3, Status: model.PaymentProcessing, Method: model.MethodCard})

	assert.True(t, apply(t, store, pay.ID, Outcome{Status: model.PaymentProcessing, TransactionID: strp("pi_9")}))
	assert.False(t, apply(t, store, pay.ID, Outcome{Status: model.PaymentProcessing, TransactionID: strp("pi_9")}))

	assert.Equal(t, "pi_9", *store.Payment(pay.ID).TransactionID)
	assert.Empty(t, store.Published())
}

func TestApply_CompletedCardOpensPayoutOnce(t *testing.T) {
	store := memstore.New()
	stageID := int64(7)
	payee := int64(20)
	card := store.AddPayment(model.Payment{
		ProjectID:     3,
		StageID:       &stageID,
		PayeeID:       &payee,
		Amount:        decimal.NewFromInt(500),
		Currency:      "usd",
		Status:        model.PaymentProcessing,
		Method:        model.MethodCard,
		TransactionID: strp("pi_1"),
	})

	assert.True(t, apply(t, store, card.ID, Outcome{Status: model.PaymentCompleted, TransferID: "tr_1"}))
	assert.False(t, apply(t, store, card.ID, Outcome{Status: model.PaymentCompleted, TransferID: "tr_1"}))

	var payouts []model.Payment
	for _, p := range store.PaymentsFor(3) {
		if p.Method == model.MethodPayout {
			payouts = append(payouts, p)
		}
	}
	require.Len(t, payouts, 1)
	assert.True(t, decimal.NewFromInt(-500).Equal(payouts[0].Amount))
	assert.Equal(t, "tr_1", *payouts[0].TransactionID)
	assert.Equal(t, payee, *payouts[0].PayeeID)
	assert.Equal(t, model.PaymentProcessing, payouts[0].Status)
	// the payout is not terminal, so only the card settlement is published
	assert.Len(t, store.Published(), 1)
}

func TestRecordPayout_IgnoresNonCardAndMissingTransfer(t *testing.T) {
	store := memstore.New()
	stageID := int64(7)
	manual := store.AddPayment(model.Payment{ProjectID: 3, StageID: &stageID, Status: model.PaymentCompleted, Method: model.MethodManual})
	card := store.AddPayment(model.Payment{ProjectID: 3, StageID: &stageID, Status: model.PaymentCompleted, Method: model.MethodCard})

	_, inserted, err := RecordPayout(context.Background(), store.Payments(), &manual, "tr_1")
	require.NoError(t, err)
	assert.False(t, inserted)

	_, inserted, err = RecordPayout(context.Background(), store.Payments(), &card, "")
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Len(t, store.PaymentsFor(3), 2)
}
