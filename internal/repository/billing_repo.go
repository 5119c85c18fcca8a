package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type BillingRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewBillingRepository(conn db.DBTX, logger *zap.Logger) *BillingRepository {
	return &BillingRepository{
		db:     conn,
		logger: logger,
	}
}

func (r *BillingRepository) GetProfile(ctx context.Context, userID int64) (*model.BillingProfile, error) {
	var b model.BillingProfile
	err := r.db.QueryRow(ctx, `
		SELECT user_id, email, processor_customer_id, connected_account_id, payouts_enabled, updated_at
		FROM billing_profiles
		WHERE user_id = $1
	`, userID).Scan(
		&b.UserID,
		&b.Email,
		&b.ProcessorCustomerID,
		&b.ConnectedAccountID,
		&b.PayoutsEnabled,
		&b.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &model.BillingProfile{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load billing profile of user %d: %w", userID, err)
	}
	return &b, nil
}

// SetCustomerID upserts the profile so the first charge can create it.
func (r *BillingRepository) SetCustomerID(ctx context.Context, userID int64, customerID string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO billing_profiles (user_id, processor_customer_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET processor_customer_id = EXCLUDED.processor_customer_id, updated_at = NOW()
	`, userID, customerID)
	if err != nil {
		r.logger.Error("Failed to save processor customer", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("save customer id for user %d: %w", userID, err)
	}
	r.logger.Info("Processor customer saved", zap.Int64("user_id", userID), zap.String("customer_id", customerID))
	return nil
}

func (r *BillingRepository) SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE billing_profiles SET payouts_enabled = $2, updated_at = NOW()
		WHERE connected_account_id = $1
	`, accountID, enabled)
	if err != nil {
		return false, fmt.Errorf("update payouts for account %s: %w", accountID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *BillingRepository) ListPaymentMethods(ctx context.Context, userID int64) ([]model.SavedPaymentMethod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, processor_payment_method_id, brand, last4, is_backup, created_at
		FROM saved_payment_methods
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list payment methods of user %d: %w", userID, err)
	}
	defer rows.Close()

	var methods []model.SavedPaymentMethod
	for rows.Next() {
		var m model.SavedPaymentMethod
		if err := rows.Scan(&m.ID, &m.UserID, &m.ProcessorPaymentMethodID, &m.Brand, &m.Last4, &m.IsBackup, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		methods = append(methods, m)
	}
	return methods, rows.Err()
}

func (r *BillingRepository) InsertPaymentMethod(ctx context.Context, m *model.SavedPaymentMethod) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO saved_payment_methods (user_id, processor_payment_method_id, brand, last4, is_backup)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (processor_payment_method_id) DO UPDATE SET is_backup = EXCLUDED.is_backup
		RETURNING id, created_at
	`, m.UserID, m.ProcessorPaymentMethodID, m.Brand, m.Last4, m.IsBackup).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to save payment method", zap.Int64("user_id", m.UserID), zap.Error(err))
		return fmt.Errorf("save payment method: %w", err)
	}
	r.logger.Info("Payment method saved",
		zap.Int64("user_id", m.UserID),
		zap.String("brand", m.Brand),
		zap.String("last4", m.Last4),
		zap.Bool("is_backup", m.IsBackup),
	)
	return nil
}
