package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/pkg/db"
)

type DocumentationRepository struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewDocumentationRepository(conn db.DBTX, logger *zap.Logger) *DocumentationRepository {
	return &DocumentationRepository{
		db:     conn,
		logger: logger,
	}
}

var docTables = map[DocKind]string{
	DocTeamMember: "stage_team_members",
	DocMaterial:   "stage_materials",
	DocMedia:      "stage_media",
	DocDocument:   "stage_documents",
}

// ForStage loads every documentation row of a stage in insertion order.
func (r *DocumentationRepository) ForStage(ctx context.Context, stageID int64) (*model.StageDocumentation, error) {
	doc := &model.StageDocumentation{}

	rows, err := r.db.Query(ctx, `
		SELECT id, stage_id, name, role, photo_url, invoice_url, created_at
		FROM stage_team_members WHERE stage_id = $1 ORDER BY id
	`, stageID)
	if err != nil {
		return nil, fmt.Errorf("load team of stage %d: %w", stageID, err)
	}
	for rows.Next() {
		var m model.TeamMember
		if err := rows.Scan(&m.ID, &m.StageID, &m.Name, &m.Role, &m.PhotoURL, &m.InvoiceURL, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan team member: %w", err)
		}
		doc.TeamMembers = append(doc.TeamMembers, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT id, stage_id, name, quantity, photo_url, receipt_url, created_at
		FROM stage_materials WHERE stage_id = $1 ORDER BY id
	`, stageID)
	if err != nil {
		return nil, fmt.Errorf("load materials of stage %d: %w", stageID, err)
	}
	for rows.Next() {
		var m model.Material
		if err := rows.Scan(&m.ID, &m.StageID, &m.Name, &m.Quantity, &m.PhotoURL, &m.ReceiptURL, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan material: %w", err)
		}
		doc.Materials = append(doc.Materials, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT id, stage_id, kind, url, caption, created_at
		FROM stage_media WHERE stage_id = $1 ORDER BY id
	`, stageID)
	if err != nil {
		return nil, fmt.Errorf("load media of stage %d: %w", stageID, err)
	}
	for rows.Next() {
		var m model.MediaItem
		if err := rows.Scan(&m.ID, &m.StageID, &m.Kind, &m.URL, &m.Caption, &m.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan media: %w", err)
		}
		doc.Media = append(doc.Media, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.db.Query(ctx, `
		SELECT id, stage_id, title, url, created_at
		FROM stage_documents WHERE stage_id = $1 ORDER BY id
	`, stageID)
	if err != nil {
		return nil, fmt.Errorf("load documents of stage %d: %w", stageID, err)
	}
	for rows.Next() {
		var d model.Document
		if err := rows.Scan(&d.ID, &d.StageID, &d.Title, &d.URL, &d.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Documents = append(doc.Documents, d)
	}
	rows.Close()
	return doc, rows.Err()
}

func (r *DocumentationRepository) AddTeamMember(ctx context.Context, m *model.TeamMember) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO stage_team_members (stage_id, name, role, photo_url, invoice_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.StageID, m.Name, m.Role, m.PhotoURL, m.InvoiceURL).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert team member: %w", err)
	}
	r.logger.Debug("Team member recorded", zap.Int64("stage_id", m.StageID), zap.Int64("id", m.ID))
	return nil
}

func (r *DocumentationRepository) AddMaterial(ctx context.Context, m *model.Material) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO stage_materials (stage_id, name, quantity, photo_url, receipt_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, m.StageID, m.Name, m.Quantity, m.PhotoURL, m.ReceiptURL).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert material: %w", err)
	}
	r.logger.Debug("Material recorded", zap.Int64("stage_id", m.StageID), zap.Int64("id", m.ID))
	return nil
}

func (r *DocumentationRepository) AddMedia(ctx context.Context, m *model.MediaItem) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO stage_media (stage_id, kind, url, caption)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, m.StageID, m.Kind, m.URL, m.Caption).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	r.logger.Debug("Media recorded", zap.Int64("stage_id", m.StageID), zap.String("kind", string(m.Kind)))
	return nil
}

func (r *DocumentationRepository) AddDocument(ctx context.Context, d *model.Document) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO stage_documents (stage_id, title, url)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, d.StageID, d.Title, d.URL).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	r.logger.Debug("Document recorded", zap.Int64("stage_id", d.StageID), zap.Int64("id", d.ID))
	return nil
}

func (r *DocumentationRepository) Remove(ctx context.Context, kind DocKind, stageID, id int64) (bool, error) {
	table, ok := docTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown documentation kind %q", kind)
	}
	// table comes from the fixed map above
	tag, err := r.db.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1 AND stage_id = $2`, id, stageID)
	if err != nil {
		return false, fmt.Errorf("delete %s %d: %w", kind, id, err)
	}
	return tag.RowsAffected() > 0, nil
}
