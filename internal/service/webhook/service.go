// Package webhook applies verified processor notifications to payments and
// billing profiles. Deliveries are at-least-once and may arrive out of order.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/settle"
	"stagepay/pkg/logger"
	"stagepay/pkg/metrics"
	"stagepay/pkg/util"
)

const dedupHandler = "payments_webhook"

type Service struct {
	store   repository.Store
	gateway payment.Gateway
	deduper *util.Deduper
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates the webhook service; deduper may be nil.
func NewService(store repository.Store, gateway payment.Gateway, deduper *util.Deduper, logger *zap.Logger) *Service {
	return &Service{
		store:   store,
		gateway: gateway,
		deduper: deduper,
		logger:  logger,
		now:     time.Now,
	}
}

// Handle verifies one delivery and applies it. A nil error means the delivery
// can be acknowledged, including for events about unknown objects.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) error {
	log := logger.WithTrace(ctx, s.logger)

	ev, err := s.gateway.VerifyWebhook(body, signature)
	if err != nil {
		metrics.IncrementWebhookEvent("unknown", "rejected")
		log.Warn("Rejected webhook delivery", zap.Error(err))
		if errors.Is(err, payment.ErrInvalidSignature) {
			return apperr.Validation("signature", "invalid webhook signature")
		}
		return apperr.Validation("payload", err.Error())
	}
	log = log.With(zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))

	if ev.ID != "" && !s.deduper.AcquireOnce(ctx, dedupHandler, ev.ID) {
		metrics.IncrementWebhookEvent(ev.Type, "duplicate")
		return nil
	}

	result, err := s.apply(ctx, log, ev)
	if err != nil {
		// let the processor's retry reach us again
		s.deduper.Forget(ctx, dedupHandler, ev.ID)
		metrics.IncrementWebhookEvent(ev.Type, "error")
		log.Error("Failed to apply webhook event", zap.Error(err))
		return err
	}
	metrics.IncrementWebhookEvent(ev.Type, result)
	return nil
}

func (s *Service) apply(ctx context.Context, log *zap.Logger, ev *payment.WebhookEvent) (string, error) {
	switch ev.Type {
	case payment.EventChargeSucceeded, payment.EventPayoutPaid:
		return s.settle(ctx, log, ev, settle.Outcome{Status: model.PaymentCompleted, TransferID: ev.TransferID})
	case payment.EventChargeFailed, payment.EventPayoutFailed:
		o := settle.Outcome{Status: model.PaymentFailed}
		if ev.FailureReason != "" {
			reason := ev.FailureReason
			o.FailureReason = &reason
		}
		return s.settle(ctx, log, ev, o)
	case payment.EventAccountUpdated:
		found, err := s.store.Billing().SetPayoutsEnabled(ctx, ev.ObjectID, ev.PayoutsEnabled)
		if err != nil {
			return "", err
		}
		if !found {
			log.Warn("Webhook for unknown connected account", zap.String("account_id", ev.ObjectID))
			return "unknown_object", nil
		}
		log.Info("Payout capability updated",
			zap.String("account_id", ev.ObjectID),
			zap.Bool("payouts_enabled", ev.PayoutsEnabled),
		)
		return "applied", nil
	default:
		log.Debug("Ignoring webhook event type")
		return "ignored", nil
	}
}

func (s *Service) settle(ctx context.Context, log *zap.Logger, ev *payment.WebhookEvent, o settle.Outcome) (string, error) {
	pay, err := s.store.Payments().GetByTransactionID(ctx, ev.ObjectID)
	if err != nil {
		var nf *apperr.NotFoundError
		if errors.As(err, &nf) {
			log.Warn("Webhook for unknown transaction", zap.String("transaction_id", ev.ObjectID))
			return "unknown_object", nil
		}
		return "", fmt.Errorf("find payment for %s: %w", ev.ObjectID, err)
	}

	var changed bool
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		pay, changed, err = settle.Apply(ctx, tx, pay.ID, o, s.now())
		return err
	})
	if err != nil {
		return "", err
	}
	if !changed {
		log.Info("Payment already settled",
			zap.Int64("payment_id", pay.ID),
			zap.String("status", string(pay.Status)),
		)
		return "already_settled", nil
	}

	log.Info("Payment settled from webhook",
		zap.Int64("payment_id", pay.ID),
		zap.Int64("project_id", pay.ProjectID),
		zap.String("status", string(pay.Status)),
	)
	return "applied", nil
}
