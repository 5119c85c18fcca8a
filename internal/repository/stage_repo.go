package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type StageRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewStageRepository(conn db.DBTX, logger *zap.Logger) *StageRepository {
	return &StageRepository{
		db:     conn,
		logger: logger,
	}
}

const stageColumns = `
	id, project_id, name, description, stage_order, status, estimated_cost,
	start_date, completion_date, created_at, updated_at
`

func scanStage(row pgx.Row) (*model.Stage, error) {
	var s model.Stage
	err := row.Scan(
		&s.ID,
		&s.ProjectID,
		&s.Name,
		&s.Description,
		&s.Order,
		&s.Status,
		&s.EstimatedCost,
		&s.StartDate,
		&s.CompletionDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *StageRepository) GetByID(ctx context.Context, id int64) (*model.Stage, error) {
	s, err := scanStage(r.db.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "stage", id)
	}
	return s, nil
}

func (r *StageRepository) GetForUpdate(ctx context.Context, id int64) (*model.Stage, error) {
	s, err := scanStage(r.db.QueryRow(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "stage", id)
	}
	return s, nil
}

func (r *StageRepository) ListByProject(ctx context.Context, projectID int64) ([]model.Stage, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+stageColumns+`
		FROM stages
		WHERE project_id = $1
		ORDER BY stage_order ASC, id ASC
	`, projectID)
	if err != nil {
		r.logger.Error("Failed to list stages", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, fmt.Errorf("list stages of project %d: %w", projectID, err)
	}
	defer rows.Close()

	var stages []model.Stage
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, *s)
	}
	return stages, rows.Err()
}

func (r *StageRepository) Update(ctx context.Context, s *model.Stage) error {
	err := r.db.QueryRow(ctx, `
		UPDATE stages SET
			status = $2,
			start_date = $3,
			completion_date = $4,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, s.ID, s.Status, s.StartDate, s.CompletionDate).Scan(&s.UpdatedAt)
	if err != nil {
		r.logger.Error("Failed to update stage", zap.Int64("stage_id", s.ID), zap.Error(err))
		return fmt.Errorf("update stage %d: %w", s.ID, err)
	}

	r.logger.Info("Stage updated",
		zap.Int64("stage_id", s.ID),
		zap.Int64("project_id", s.ProjectID),
		zap.String("status", string(s.Status)),
	)
	return nil
}

// InsertBatch inserts stages in order and fills in their ids.
func (r *StageRepository) InsertBatch(ctx context.Context, stages []model.Stage) error {
	query := `
		INSERT INTO stages (project_id, name, description, stage_order, status, estimated_cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	for i := range stages {
		s := &stages[i]
		if err := r.db.QueryRow(ctx, query,
			s.ProjectID,
			s.Name,
			s.Description,
			s.Order,
			s.Status,
			s.EstimatedCost,
		).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
			r.logger.Error("Failed to insert stage",
				zap.Int64("project_id", s.ProjectID),
				zap.String("name", s.Name),
				zap.Error(err),
			)
			return fmt.Errorf("insert stage %q: %w", s.Name, err)
		}
	}

	if len(stages) > 0 {
		r.logger.Info("Stages materialized",
			zap.Int64("project_id", stages[0].ProjectID),
			zap.Int("count", len(stages)),
		)
	}
	return nil
}
