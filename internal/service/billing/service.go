// Package billing manages a user's processor customer and saved cards.
package billing

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/pkg/logger"
	"stagepay/pkg/rbac"
)

type Service struct {
	store   repository.Store
	gateway payment.Gateway
	logger  *zap.Logger
}

func NewService(store repository.Store, gateway payment.Gateway, logger *zap.Logger) *Service {
	return &Service{store: store, gateway: gateway, logger: logger}
}

// CreateSetupIntent starts card collection for the caller.
func (s *Service) CreateSetupIntent(ctx context.Context, actor model.Actor) (*payment.SetupIntent, error) {
	if err := access.Require(actor, rbac.PermissionManageBilling); err != nil {
		return nil, err
	}
	customerID, err := s.customer(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	intent, err := s.gateway.CreateSetupIntent(ctx, customerID)
	if err != nil {
		return nil, apperr.ProcessorUnavailable(err)
	}
	return intent, nil
}

// AttachPaymentMethod saves a card the caller collected client-side.
func (s *Service) AttachPaymentMethod(ctx context.Context, actor model.Actor, paymentMethodID string, isBackup bool) (*model.SavedPaymentMethod, error) {
	if err := access.Require(actor, rbac.PermissionManageBilling); err != nil {
		return nil, err
	}
	paymentMethodID = strings.TrimSpace(paymentMethodID)
	if paymentMethodID == "" {
		return nil, apperr.Validation("payment_method_id", "is required")
	}

	customerID, err := s.customer(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	card, err := s.gateway.AttachPaymentMethod(ctx, customerID, paymentMethodID)
	if err != nil {
		return nil, apperr.ProcessorUnavailable(err)
	}

	m := &model.SavedPaymentMethod{
		UserID:                   actor.UserID,
		ProcessorPaymentMethodID: card.PaymentMethodID,
		Brand:                    card.Brand,
		Last4:                    card.Last4,
		IsBackup:                 isBackup,
	}
	if err := s.store.Billing().InsertPaymentMethod(ctx, m); err != nil {
		return nil, err
	}

	logger.WithTrace(ctx, s.logger).Info("Payment method saved",
		zap.Int64("user_id", actor.UserID),
		zap.Int64("payment_method_row", m.ID),
		zap.Bool("is_backup", isBackup),
	)
	return m, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context, actor model.Actor) ([]model.SavedPaymentMethod, error) {
	if err := access.Require(actor, rbac.PermissionManageBilling); err != nil {
		return nil, err
	}
	return s.store.Billing().ListPaymentMethods(ctx, actor.UserID)
}

// customer returns the caller's processor customer, creating it on first use.
func (s *Service) customer(ctx context.Context, userID int64) (string, error) {
	profile, err := s.store.Billing().GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	if profile.ProcessorCustomerID != nil && *profile.ProcessorCustomerID != "" {
		return *profile.ProcessorCustomerID, nil
	}

	id, err := s.gateway.EnsureCustomer(ctx, payment.CustomerRequest{UserID: userID, Email: profile.Email})
	if err != nil {
		return "", apperr.ProcessorUnavailable(err)
	}
	if err := s.store.Billing().SetCustomerID(ctx, userID, id); err != nil {
		return "", err
	}
	logger.WithTrace(ctx, s.logger).Info("Processor customer created", zap.Int64("user_id", userID))
	return id, nil
}
