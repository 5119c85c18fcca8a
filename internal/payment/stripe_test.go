package payment

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"stagepay/pkg/circuitbreaker"
)

func TestClassify_CardErrorIsDecline(t *testing.T) {
	err := classify(&stripe.Error{
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		Msg:            "Your card was declined.",
		HTTPStatusCode: http.StatusPaymentRequired,
		PaymentIntent:  &stripe.PaymentIntent{ID: "pi_1"},
	})

	d, ok := AsDecline(err)
	require.True(t, ok)
	assert.Equal(t, "card_declined", d.Code)
	assert.Equal(t, "pi_1", d.TransactionID)
	assert.False(t, d.AuthenticationRequired())
}

func TestClassify_AuthenticationRequired(t *testing.T) {
	err := classify(&stripe.Error{
		Type: stripe.ErrorTypeCard,
		Code: stripe.ErrorCodeAuthenticationRequired,
	})

	d, ok := AsDecline(err)
	require.True(t, ok)
	assert.True(t, d.AuthenticationRequired())
}

func TestClassify_UnknownOutcomeKeepsError(t *testing.T) {
	apiErr := &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusInternalServerError}
	assert.Same(t, apiErr, classify(apiErr))

	conflict := &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, HTTPStatusCode: http.StatusConflict}
	_, ok := AsDecline(classify(conflict))
	assert.False(t, ok)

	transport := errors.New("connection reset")
	assert.Equal(t, transport, classify(transport))
	assert.NoError(t, classify(nil))
}

func TestChargeFromIntent(t *testing.T) {
	c, err := chargeFromIntent(&stripe.PaymentIntent{ID: "pi_ok", Status: stripe.PaymentIntentStatusSucceeded})
	require.NoError(t, err)
	assert.Equal(t, ChargeSucceeded, c.Status)

	c, err = chargeFromIntent(&stripe.PaymentIntent{ID: "pi_proc", Status: stripe.PaymentIntentStatusProcessing})
	require.NoError(t, err)
	assert.Equal(t, ChargePending, c.Status)

	_, err = chargeFromIntent(&stripe.PaymentIntent{ID: "pi_3ds", Status: stripe.PaymentIntentStatusRequiresAction})
	d, ok := AsDecline(err)
	require.True(t, ok)
	assert.True(t, d.AuthenticationRequired())
	assert.Equal(t, "pi_3ds", d.TransactionID)

	_, err = chargeFromIntent(&stripe.PaymentIntent{ID: "pi_rpm", Status: stripe.PaymentIntentStatusRequiresPaymentMethod})
	_, ok = AsDecline(err)
	assert.True(t, ok)
}

func TestCountsAgainstBreaker(t *testing.T) {
	assert.False(t, countsAgainstBreaker(&DeclineError{Code: "card_declined"}))
	assert.True(t, countsAgainstBreaker(errors.New("timeout")))
}

func newTestGateway(failureThreshold int) *StripeGateway {
	cfg := circuitbreaker.DefaultConfig()
	cfg.FailureThreshold = failureThreshold
	cfg.IsFailure = countsAgainstBreaker
	return &StripeGateway{
		breaker: circuitbreaker.NewCircuitBreaker(cfg),
		logger:  zap.NewNop(),
	}
}

func TestCall_OpenBreakerIsNotSent(t *testing.T) {
	g := newTestGateway(1)
	calls := 0
	failing := func(context.Context) error {
		calls++
		return errors.New("connection reset")
	}

	err := g.call(context.Background(), "charge.create", failing)
	require.Error(t, err)
	assert.False(t, IsNotSent(err))

	err = g.call(context.Background(), "charge.create", failing)
	require.Error(t, err)
	assert.True(t, IsNotSent(err))
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitBreakerOpen)
	assert.Equal(t, 1, calls)
}

func TestCall_DoneContextIsNotSent(t *testing.T) {
	g := newTestGateway(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := g.call(ctx, "charge.create", func(context.Context) error {
		called = true
		return nil
	})
	assert.True(t, IsNotSent(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestCall_DeclineIsSent(t *testing.T) {
	g := newTestGateway(1)
	err := g.call(context.Background(), "charge.create", func(context.Context) error {
		return &stripe.Error{Type: stripe.ErrorTypeCard, Code: stripe.ErrorCodeCardDeclined}
	})
	_, declined := AsDecline(err)
	assert.True(t, declined)
	assert.False(t, IsNotSent(err))
}
