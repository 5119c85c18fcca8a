package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"stagepay/pkg/circuitbreaker"
	"stagepay/pkg/config"
	"stagepay/pkg/metrics"
	"stagepay/pkg/otel"
)

// StripeGateway implements Gateway with Stripe PaymentIntents and Connect destination charges.
type StripeGateway struct {
	api           *client.API
	webhookSecret string
	breaker       *circuitbreaker.CircuitBreaker
	logger        *zap.Logger
}

func NewStripeGateway(cfg config.StripeConfig, logger *zap.Logger) *StripeGateway {
	cbConfig := circuitbreaker.DefaultConfig()
	cbConfig.IsFailure = countsAgainstBreaker
	cbConfig.OnStateChange = func(from, to circuitbreaker.State) {
		logger.Warn("Processor circuit breaker state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &StripeGateway{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookSecret,
		breaker:       circuitbreaker.NewCircuitBreaker(cbConfig),
		logger:        logger,
	}
}

// countsAgainstBreaker ignores declines; they come from a healthy processor.
func countsAgainstBreaker(err error) bool {
	_, declined := AsDecline(err)
	return !declined
}

// call wraps one processor request with the breaker, a span and latency metrics.
func (g *StripeGateway) call(ctx context.Context, op string, fn func(ctx context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := otel.ProcessorSpan(ctx, op, attrs...)
	start := time.Now()

	var err error
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = &NotSentError{Op: op, Err: ctxErr}
	} else {
		sent := false
		err = g.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
			sent = true
			return classify(fn(ctx))
		})
		if err != nil && !sent {
			err = &NotSentError{Op: op, Err: err}
		}
	}

	status := "ok"
	if err != nil {
		status = "error"
		if _, ok := AsDecline(err); ok {
			status = "declined"
		} else if IsNotSent(err) {
			status = "not_sent"
		}
	}
	metrics.RecordProcessorCall(op, status, time.Since(start))
	otel.EndSpan(span, err)
	return err
}

func (g *StripeGateway) EnsureCustomer(ctx context.Context, req CustomerRequest) (string, error) {
	var customerID string
	err := g.call(ctx, "customer.create", func(ctx context.Context) error {
		params := &stripe.CustomerParams{}
		params.Context = ctx
		if req.Email != "" {
			params.Email = stripe.String(req.Email)
		}
		params.AddMetadata("user_id", strconv.FormatInt(req.UserID, 10))
		params.SetIdempotencyKey(fmt.Sprintf("customer-%d", req.UserID))

		c, err := g.api.Customers.New(params)
		if err != nil {
			return err
		}
		customerID = c.ID
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("create processor customer for user %d: %w", req.UserID, err)
	}

	g.logger.Info("Processor customer created",
		zap.Int64("user_id", req.UserID),
		zap.String("customer_id", customerID),
	)
	return customerID, nil
}

func (g *StripeGateway) CreateOffSessionCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	var charge *Charge
	err := g.call(ctx, "charge.create", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{
			Amount:        stripe.Int64(req.Amount.Shift(2).IntPart()),
			Currency:      stripe.String(req.Currency),
			Customer:      stripe.String(req.CustomerID),
			PaymentMethod: stripe.String(req.PaymentMethodID),
			OffSession:    stripe.Bool(true),
			Confirm:       stripe.Bool(true),
			TransferData: &stripe.PaymentIntentTransferDataParams{
				Destination: stripe.String(req.DestinationAccountID),
			},
			TransferGroup: stripe.String(req.TransferGroup),
		}
		if req.Description != "" {
			params.Description = stripe.String(req.Description)
		}
		params.Context = ctx
		params.AddExpand("latest_charge")
		params.SetIdempotencyKey(req.IdempotencyKey)
		params.AddMetadata("payment_id", req.Reference)

		pi, err := g.api.PaymentIntents.New(params)
		if err != nil {
			return err
		}
		charge, err = chargeFromIntent(pi)
		return err
	},
		attribute.String("payment.idempotency_key", req.IdempotencyKey),
		attribute.String("payment.reference", req.Reference),
	)
	if err != nil {
		return nil, err
	}

	g.logger.Info("Off-session charge created",
		zap.String("transaction_id", charge.TransactionID),
		zap.String("status", string(charge.Status)),
		zap.String("reference", req.Reference),
		zap.String("amount", req.Amount.StringFixed(2)),
	)
	return charge, nil
}

func (g *StripeGateway) CreateSetupIntent(ctx context.Context, customerID string) (*SetupIntent, error) {
	var out *SetupIntent
	err := g.call(ctx, "setup_intent.create", func(ctx context.Context) error {
		params := &stripe.SetupIntentParams{
			Customer:           stripe.String(customerID),
			Usage:              stripe.String(string(stripe.SetupIntentUsageOffSession)),
			PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		}
		params.Context = ctx

		si, err := g.api.SetupIntents.New(params)
		if err != nil {
			return err
		}
		out = &SetupIntent{ID: si.ID, ClientSecret: si.ClientSecret}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create setup intent: %w", err)
	}
	return out, nil
}

func (g *StripeGateway) AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (*Card, error) {
	var card *Card
	err := g.call(ctx, "payment_method.attach", func(ctx context.Context) error {
		params := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
		params.Context = ctx

		pm, err := g.api.PaymentMethods.Attach(paymentMethodID, params)
		if err != nil {
			return err
		}
		card = cardFrom(pm)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("attach payment method: %w", err)
	}
	return card, nil
}

func (g *StripeGateway) ListPaymentMethods(ctx context.Context, customerID string) ([]Card, error) {
	var cards []Card
	err := g.call(ctx, "payment_method.list", func(ctx context.Context) error {
		params := &stripe.PaymentMethodListParams{
			Customer: stripe.String(customerID),
			Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
		}
		params.Context = ctx

		it := g.api.PaymentMethods.List(params)
		for it.Next() {
			cards = append(cards, *cardFrom(it.PaymentMethod()))
		}
		return it.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return cards, nil
}

func (g *StripeGateway) GetCharge(ctx context.Context, transactionID string) (*Charge, error) {
	var charge *Charge
	err := g.call(ctx, "charge.get", func(ctx context.Context) error {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx
		params.AddExpand("latest_charge")

		pi, err := g.api.PaymentIntents.Get(transactionID, params)
		if err != nil {
			return err
		}
		charge = describeIntent(pi)
		return nil
	}, attribute.String("payment.transaction_id", transactionID))
	if err != nil {
		return nil, fmt.Errorf("get charge %s: %w", transactionID, err)
	}
	return charge, nil
}

func (g *StripeGateway) FindChargeByReference(ctx context.Context, reference string) (*Charge, error) {
	var charge *Charge
	err := g.call(ctx, "charge.search", func(ctx context.Context) error {
		params := &stripe.PaymentIntentSearchParams{
			SearchParams: stripe.SearchParams{
				Query:   fmt.Sprintf("metadata['payment_id']:'%s'", reference),
				Context: ctx,
			},
		}
		params.AddExpand("data.latest_charge")

		it := g.api.PaymentIntents.Search(params)
		if it.Next() {
			charge = describeIntent(it.PaymentIntent())
		}
		return it.Err()
	}, attribute.String("payment.reference", reference))
	if err != nil {
		return nil, fmt.Errorf("search charge %s: %w", reference, err)
	}
	return charge, nil
}

func cardFrom(pm *stripe.PaymentMethod) *Card {
	c := &Card{PaymentMethodID: pm.ID}
	if pm.Card != nil {
		c.Brand = string(pm.Card.Brand)
		c.Last4 = pm.Card.Last4
	}
	return c
}

// describeIntent maps a PaymentIntent to a charge outcome without treating failure as an error.
func describeIntent(pi *stripe.PaymentIntent) *Charge {
	c := &Charge{TransactionID: pi.ID}
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		c.Status = ChargeSucceeded
		if pi.LatestCharge != nil && pi.LatestCharge.Transfer != nil {
			c.TransferID = pi.LatestCharge.Transfer.ID
		}
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		c.Status = ChargeFailed
		c.FailureReason = string(pi.Status)
		if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
			c.FailureReason = pi.LastPaymentError.Msg
		}
	default:
		c.Status = ChargePending
	}
	return c
}

// chargeFromIntent is describeIntent for a freshly confirmed intent, where a
// non-settling status is a decline.
func chargeFromIntent(pi *stripe.PaymentIntent) (*Charge, error) {
	if pi.Status == stripe.PaymentIntentStatusRequiresAction {
		return nil, &DeclineError{
			Code:          CodeAuthenticationRequired,
			Reason:        "card requires authentication",
			TransactionID: pi.ID,
		}
	}
	c := describeIntent(pi)
	if c.Status == ChargeFailed {
		return nil, &DeclineError{Code: string(pi.Status), Reason: c.FailureReason, TransactionID: pi.ID}
	}
	return c, nil
}

// classify turns processor errors that mean "nothing was charged" into DeclineError.
// Everything else is left as is: the outcome is unknown.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return err
	}

	decline := &DeclineError{Code: string(serr.Code), Reason: serr.Msg}
	if serr.PaymentIntent != nil {
		decline.TransactionID = serr.PaymentIntent.ID
	}
	if serr.DeclineCode != "" && decline.Code == "" {
		decline.Code = string(serr.DeclineCode)
	}

	switch {
	case serr.Code == stripe.ErrorCodeAuthenticationRequired:
		decline.Code = CodeAuthenticationRequired
		return decline
	case serr.Type == stripe.ErrorTypeCard:
		return decline
	case serr.Type == stripe.ErrorTypeInvalidRequest &&
		serr.HTTPStatusCode >= http.StatusBadRequest &&
		serr.HTTPStatusCode < http.StatusInternalServerError &&
		serr.HTTPStatusCode != http.StatusConflict &&
		serr.HTTPStatusCode != http.StatusTooManyRequests:
		return decline
	}
	return err
}
