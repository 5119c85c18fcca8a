package payment

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// VerifyWebhook checks the Stripe-Signature header and decodes the event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	return parseWebhook(payload, signature, g.webhookSecret)
}

func parseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventChargeSucceeded, EventChargeFailed:
		var ch stripe.Charge
		if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
			return nil, fmt.Errorf("decode charge event %s: %w", event.ID, err)
		}
		// payments store the PaymentIntent id as their transaction id
		out.ObjectID = ch.ID
		if ch.PaymentIntent != nil && ch.PaymentIntent.ID != "" {
			out.ObjectID = ch.PaymentIntent.ID
		}
		out.FailureReason = ch.FailureMessage
		if out.FailureReason == "" {
			out.FailureReason = ch.FailureCode
		}
		if ch.Transfer != nil {
			out.TransferID = ch.Transfer.ID
		}
	case EventPayoutPaid, EventPayoutFailed:
		var po stripe.Payout
		if err := json.Unmarshal(event.Data.Raw, &po); err != nil {
			return nil, fmt.Errorf("decode payout event %s: %w", event.ID, err)
		}
		// payout payments are keyed by the transfer the payout was created for
		out.ObjectID = po.ID
		if tr := po.Metadata[PayoutTransferKey]; tr != "" {
			out.ObjectID = tr
		}
		out.FailureReason = po.FailureMessage
	case EventAccountUpdated:
		var acct stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
			return nil, fmt.Errorf("decode account event %s: %w", event.ID, err)
		}
		out.ObjectID = acct.ID
		out.PayoutsEnabled = acct.PayoutsEnabled
	}
	return out, nil
}
