package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type DisputeRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewDisputeRepository(conn db.DBTX, logger *zap.Logger) *DisputeRepository {
	return &DisputeRepository{
		db:     conn,
		logger: logger,
	}
}

const disputeColumns = `
	id, project_id, stage_id, homeowner_id, contractor_id, reasons, description,
	status, resolution, created_at, in_review_at, resolved_at, updated_at
`

func scanDispute(row pgx.Row) (*model.StageDispute, error) {
	var d model.StageDispute
	err := row.Scan(
		&d.ID,
		&d.ProjectID,
		&d.StageID,
		&d.HomeownerID,
		&d.ContractorID,
		&d.Reasons,
		&d.Description,
		&d.Status,
		&d.Resolution,
		&d.CreatedAt,
		&d.InReviewAt,
		&d.ResolvedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DisputeRepository) Insert(ctx context.Context, d *model.StageDispute) error {
	query := `
		INSERT INTO stage_disputes (project_id, stage_id, homeowner_id, contractor_id, reasons, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		d.ProjectID,
		d.StageID,
		d.HomeownerID,
		d.ContractorID,
		d.Reasons,
		d.Description,
		d.Status,
	).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to insert dispute",
			zap.Int64("project_id", d.ProjectID),
			zap.Int64("stage_id", d.StageID),
			zap.Error(err),
		)
		return fmt.Errorf("insert dispute: %w", err)
	}

	r.logger.Info("Dispute opened",
		zap.Int64("dispute_id", d.ID),
		zap.Int64("project_id", d.ProjectID),
		zap.Int64("stage_id", d.StageID),
		zap.Strings("reasons", d.Reasons),
	)
	return nil
}

func (r *DisputeRepository) GetByID(ctx context.Context, id int64) (*model.StageDispute, error) {
	d, err := scanDispute(r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM stage_disputes WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "dispute", id)
	}
	return d, nil
}

func (r *DisputeRepository) GetForUpdate(ctx context.Context, id int64) (*model.StageDispute, error) {
	d, err := scanDispute(r.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM stage_disputes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "dispute", id)
	}
	return d, nil
}

func (r *DisputeRepository) Update(ctx context.Context, d *model.StageDispute) error {
	err := r.db.QueryRow(ctx, `
		UPDATE stage_disputes SET
			status = $2,
			resolution = $3,
			in_review_at = $4,
			resolved_at = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, d.ID, d.Status, d.Resolution, d.InReviewAt, d.ResolvedAt).Scan(&d.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update dispute", zap.Int64("dispute_id", d.ID), zap.Error(err))
		return fmt.Errorf("update dispute %d: %w", d.ID, err)
	}
	return nil
}

func (r *DisputeRepository) ListByProject(ctx context.Context, projectID int64) ([]model.StageDispute, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+disputeColumns+`
		FROM stage_disputes
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list disputes of project %d: %w", projectID, err)
	}
	defer rows.Close()

	var disputes []model.StageDispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		disputes = append(disputes, *d)
	}
	return disputes, rows.Err()
}
