package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type ProjectRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewProjectRepository(conn db.DBTX, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{
		db:     conn,
		logger: logger,
	}
}

const projectColumns = `
	id, homeowner_id, contractor_id, title, status, review_status, risk_level,
	project_type, budget, spent, progress, current_stage_id, phase_plan,
	external_payment_link, payment_confirmation_status, payment_declared_at,
	payment_confirmed_at, start_date, created_at, updated_at
`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	err := row.Scan(
		&p.ID,
		&p.HomeownerID,
		&p.ContractorID,
		&p.Title,
		&p.Status,
		&p.ReviewStatus,
		&p.RiskLevel,
		&p.ProjectType,
		&p.Budget,
		&p.Spent,
		&p.Progress,
		&p.CurrentStageID,
		&p.PhasePlan,
		&p.ExternalPaymentLink,
		&p.PaymentConfirmationStatus,
		&p.PaymentDeclaredAt,
		&p.PaymentConfirmedAt,
		&p.StartDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

func (r *ProjectRepository) GetForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

// Update writes every mutable column and bumps updated_at.
func (r *ProjectRepository) Update(ctx context.Context, p *model.Project) error {
	r.logger.Debug("Updating project",
		zap.Int64("project_id", p.ID),
		zap.String("status", string(p.Status)),
		zap.Int("progress", p.Progress),
	)

	query := `
		UPDATE projects SET
			contractor_id = $2,
			status = $3,
			review_status = $4,
			risk_level = $5,
			spent = $6,
			progress = $7,
			current_stage_id = $8,
			external_payment_link = $9,
			payment_confirmation_status = $10,
			payment_declared_at = $11,
			payment_confirmed_at = $12,
			start_date = $13,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.ID,
		p.ContractorID,
		p.Status,
		p.ReviewStatus,
		p.RiskLevel,
		p.Spent,
		p.Progress,
		p.CurrentStageID,
		p.ExternalPaymentLink,
		p.PaymentConfirmationStatus,
		p.PaymentDeclaredAt,
		p.PaymentConfirmedAt,
		p.StartDate,
	).Scan(&p.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update project", zap.Int64("project_id", p.ID), zap.Error(err))
		return fmt.Errorf("update project %d: %w", p.ID, err)
	}
	return nil
}
