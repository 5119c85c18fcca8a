package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type PaymentRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPaymentRepository(conn db.DBTX, logger *zap.Logger) *PaymentRepository {
	return &PaymentRepository{
		db:     conn,
		logger: logger,
	}
}

const paymentColumns = `
	id, project_id, stage_id, payer_id, payee_id, amount, currency, status, method,
	transaction_id, idempotency_key, failure_reason, created_at, updated_at
`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.StageID,
		&p.PayerID,
		&p.PayeeID,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.Method,
		&p.TransactionID,
		&p.IdempotencyKey,
		&p.FailureReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPayments(rows pgx.Rows) ([]model.Payment, error) {
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return p, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, id int64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "payment", id)
	}
	return p, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, txnID string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, txnID))
	if err != nil {
		return nil, notFound(err, "payment", 0)
	}
	return p, nil
}

func (r *PaymentRepository) FindLiveForStage(ctx context.Context, stageID int64, method model.PaymentMethod) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE stage_id = $1 AND method = $2 AND status <> 'failed'
		LIMIT 1
	`, stageID, method))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find live payment for stage %d: %w", stageID, err)
	}
	return p, nil
}

func (r *PaymentRepository) CountFailedForStage(ctx context.Context, stageID int64, method model.PaymentMethod) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM payments
		WHERE stage_id = $1 AND method = $2 AND status = 'failed'
	`, stageID, method).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failed payments for stage %d: %w", stageID, err)
	}
	return n, nil
}

// InsertIfNoLive relies on the partial unique index payments_live_stage_method.
func (r *PaymentRepository) InsertIfNoLive(ctx context.Context, p *model.Payment) (bool, error) {
	query := `
		INSERT INTO payments (
			project_id, stage_id, payer_id, payee_id, amount, currency, status, method,
			transaction_id, idempotency_key, failure_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (stage_id, method) WHERE status <> 'failed' AND stage_id IS NOT NULL
		DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, insertArgs(p)...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Info("Live payment already exists, insert skipped",
			zap.Int64p("stage_id", p.StageID),
			zap.String("method", string(p.Method)),
		)
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert payment", zap.Int64("project_id", p.ProjectID), zap.Error(err))
		return false, fmt.Errorf("insert payment: %w", err)
	}

	r.logger.Info("Payment created",
		zap.Int64("payment_id", p.ID),
		zap.Int64("project_id", p.ProjectID),
		zap.String("method", string(p.Method)),
		zap.String("status", string(p.Status)),
	)
	return true, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, p *model.Payment) error {
	query := `
		INSERT INTO payments (
			project_id, stage_id, payer_id, payee_id, amount, currency, status, method,
			transaction_id, idempotency_key, failure_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRow(ctx, query, insertArgs(p)...).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		r.logger.Error("Failed to insert payment", zap.Int64("project_id", p.ProjectID), zap.Error(err))
		return fmt.Errorf("insert payment: %w", err)
	}

	r.logger.Info("Payment created",
		zap.Int64("payment_id", p.ID),
		zap.Int64("project_id", p.ProjectID),
		zap.String("method", string(p.Method)),
		zap.String("status", string(p.Status)),
	)
	return nil
}

func insertArgs(p *model.Payment) []any {
	return []any{
		p.ProjectID,
		p.StageID,
		p.PayerID,
		p.PayeeID,
		p.Amount,
		p.Currency,
		p.Status,
		p.Method,
		p.TransactionID,
		p.IdempotencyKey,
		p.FailureReason,
	}
}

// UpdateOutcome keeps the existing transaction id and failure reason when nil is passed.
func (r *PaymentRepository) UpdateOutcome(ctx context.Context, id int64, status model.PaymentStatus, txnID *string, failureReason *string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE payments SET
			status = $2,
			transaction_id = COALESCE($3, transaction_id),
			failure_reason = COALESCE($4, failure_reason),
			updated_at = NOW()
		WHERE id = $1
	`, id, status, txnID, failureReason)
	if err != nil {
		r.logger.Error("Failed to update payment", zap.Int64("payment_id", id), zap.Error(err))
		return fmt.Errorf("update payment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(pgx.ErrNoRows, "payment", id)
	}

	r.logger.Info("Payment updated",
		zap.Int64("payment_id", id),
		zap.String("status", string(status)),
		zap.Stringp("transaction_id", txnID),
	)
	return nil
}

func (r *PaymentRepository) ListByProject(ctx context.Context, projectID int64) ([]model.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list payments of project %d: %w", projectID, err)
	}
	return collectPayments(rows)
}

// ListStaleProcessing returns processing payments not touched since updatedBefore, oldest first.
func (r *PaymentRepository) ListStaleProcessing(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE status = 'processing' AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2
	`, updatedBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale processing payments: %w", err)
	}
	return collectPayments(rows)
}
