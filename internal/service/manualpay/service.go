// Package manualpay runs the payment-link flow: contractor sets a link,
// homeowner declares payment, admin confirms and activates the project.
package manualpay

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/notify"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/internal/service/projectstate"
	"stagepay/pkg/logger"
	"stagepay/pkg/rbac"
)

const (
	NotificationDeclared  = "manual_payment_declared"
	NotificationConfirmed = "manual_payment_confirmed"
)

type Service struct {
	store    repository.Store
	notifier notify.Notifier
	currency string
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store repository.Store, notifier notify.Notifier, currency string, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		currency: currency,
		logger:   logger,
		now:      time.Now,
	}
}

// ValidateLink accepts absolute http(s) URLs only.
func ValidateLink(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.Validation("url", "payment link must be an absolute http(s) URL")
	}
	return nil
}

// SetPaymentLink sets the external link, or clears it when link is empty.
func (s *Service) SetPaymentLink(ctx context.Context, actor model.Actor, projectID int64, link string) (*model.Project, error) {
	if err := access.Require(actor, rbac.PermissionSetPaymentLink); err != nil {
		return nil, err
	}
	link = strings.TrimSpace(link)
	if link != "" {
		if err := ValidateLink(link); err != nil {
			return nil, err
		}
	}

	var out *model.Project
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := access.ManageProject(actor, p, fmt.Sprintf("set the payment link of project %d", p.ID)); err != nil {
			return err
		}
		if p.PaymentConfirmationStatus == model.PaymentConfirmationConfirmed {
			return apperr.Precondition("payment link cannot change after payment was confirmed", "payment_already_confirmed")
		}

		if link == "" {
			p.ExternalPaymentLink = nil
		} else {
			p.ExternalPaymentLink = &link
		}
		out = p
		return tx.Projects().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Payment link updated",
		zap.Int64("project_id", projectID),
		zap.Int64("actor_id", actor.UserID),
		zap.Bool("cleared", link == ""),
	)
	return out, nil
}

// Declare records that the homeowner paid through the link. Repeating it is a no-op.
func (s *Service) Declare(ctx context.Context, actor model.Actor, projectID int64) (*model.Project, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("project_id", projectID), zap.Int64("actor_id", actor.UserID))

	if err := access.Require(actor, rbac.PermissionDeclarePayment); err != nil {
		return nil, err
	}

	var (
		out     *model.Project
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := access.ViewProject(actor, p); err != nil {
			return err
		}
		if !p.IsHomeowner(actor.UserID) {
			return apperr.Forbidden(actor.UserID, fmt.Sprintf("declare payment for project %d", p.ID))
		}
		out = p
		if p.PaymentConfirmationStatus == model.PaymentConfirmationDeclared ||
			p.PaymentConfirmationStatus == model.PaymentConfirmationConfirmed {
			return nil
		}

		var reasons []string
		if p.ExternalPaymentLink == nil || *p.ExternalPaymentLink == "" {
			reasons = append(reasons, "payment_link_missing")
		}
		if p.Status == model.ProjectActive {
			reasons = append(reasons, "project_already_active")
		}
		if len(reasons) > 0 {
			return apperr.Precondition("manual payment cannot be declared", reasons...)
		}

		now := s.now()
		p.PaymentConfirmationStatus = model.PaymentConfirmationDeclared
		p.PaymentDeclaredAt = &now
		changed = true
		return tx.Projects().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Info("Manual payment already declared", zap.String("state", string(out.PaymentConfirmationStatus)))
		return out, nil
	}

	log.Info("Manual payment declared")
	s.notifier.NotifyRole(ctx, model.RoleAdmin, notify.Message{
		Type:    NotificationDeclared,
		Title:   "Manual payment declared",
		Message: fmt.Sprintf("The homeowner of %q reports paying through the payment link", out.Title),
		Data:    map[string]any{"project_id": out.ID},
	})
	return out, nil
}

// Confirm activates a declared project. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, actor model.Actor, projectID int64) (*model.Project, error) {
	log := logger.WithTrace(ctx, s.logger).With(zap.Int64("project_id", projectID), zap.Int64("actor_id", actor.UserID))

	if err := access.Require(actor, rbac.PermissionConfirmPayment); err != nil {
		return nil, err
	}

	var (
		out       *model.Project
		changed   bool
		generated int
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		out = p
		switch p.PaymentConfirmationStatus {
		case model.PaymentConfirmationConfirmed:
			return nil
		case model.PaymentConfirmationDeclared:
		default:
			return apperr.Precondition("manual payment was never declared", "payment_not_declared")
		}

		now := s.now()
		p.PaymentConfirmationStatus = model.PaymentConfirmationConfirmed
		p.PaymentConfirmedAt = &now
		if generated, err = projectstate.Activate(ctx, tx, p, now); err != nil {
			return err
		}
		if err := tx.Projects().Update(ctx, p); err != nil {
			return err
		}

		payer := p.HomeownerID
		if err := tx.Payments().Insert(ctx, &model.Payment{
			ProjectID: p.ID,
			PayerID:   &payer,
			PayeeID:   p.ContractorID,
			Amount:    p.Budget,
			Currency:  s.currency,
			Status:    model.PaymentCompleted,
			Method:    model.MethodManual,
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Info("Manual payment already confirmed")
		return out, nil
	}

	log.Info("Manual payment confirmed, project activated", zap.Int("stages_created", generated))
	recipients := []int64{out.HomeownerID}
	if out.ContractorID != nil {
		recipients = append(recipients, *out.ContractorID)
	}
	s.notifier.NotifyUsers(ctx, recipients, notify.Message{
		Type:    NotificationConfirmed,
		Title:   "Payment confirmed",
		Message: fmt.Sprintf("Payment for %q was confirmed and the project is active", out.Title),
		Data:    map[string]any{"project_id": out.ID},
	})
	return out, nil
}
