package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  testSecret,
	})
	return signed.Header
}

func TestParseWebhook_ChargeSucceededUsesPaymentIntent(t *testing.T) {
	payload := `{"id":"evt_1","object":"event","type":"charge.succeeded",
		"data":{"object":{"id":"ch_1","object":"charge","payment_intent":"pi_9"}}}`

	ev, err := parseWebhook([]byte(payload), sign(t, payload), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.ID)
	assert.Equal(t, EventChargeSucceeded, ev.Type)
	assert.Equal(t, "pi_9", ev.ObjectID)
}

func TestParseWebhook_AccountUpdated(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"account.updated",
		"data":{"object":{"id":"acct_1","object":"account","payouts_enabled":true}}}`

	ev, err := parseWebhook([]byte(payload), sign(t, payload), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "acct_1", ev.ObjectID)
	assert.True(t, ev.PayoutsEnabled)
}

func TestParseWebhook_RejectsBadSignature(t *testing.T) {
	payload := `{"id":"evt_3","object":"event","type":"charge.failed","data":{"object":{}}}`

	_, err := parseWebhook([]byte(payload), "t=1,v1=deadbeef", testSecret)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhook_ChargeSucceededCarriesTransfer(t *testing.T) {
	payload := `{"id":"evt_4","object":"event","type":"charge.succeeded",
		"data":{"object":{"id":"ch_2","object":"charge","payment_intent":"pi_2","transfer":"tr_2"}}}`

	ev, err := parseWebhook([]byte(payload), sign(t, payload), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "pi_2", ev.ObjectID)
	assert.Equal(t, "tr_2", ev.TransferID)
}

func TestParseWebhook_PayoutKeyedByTransfer(t *testing.T) {
	payload := `{"id":"evt_5","object":"event","type":"payout.failed",
		"data":{"object":{"id":"po_1","object":"payout","failure_message":"account closed",
		"metadata":{"transfer_id":"tr_3"}}}}`

	ev, err := parseWebhook([]byte(payload), sign(t, payload), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "tr_3", ev.ObjectID)
	assert.Equal(t, "account closed", ev.FailureReason)

	plain := `{"id":"evt_6","object":"event","type":"payout.paid",
		"data":{"object":{"id":"po_2","object":"payout"}}}`
	ev, err = parseWebhook([]byte(plain), sign(t, plain), testSecret)
	require.NoError(t, err)
	assert.Equal(t, "po_2", ev.ObjectID)
}
