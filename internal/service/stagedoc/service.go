// Package stagedoc records who worked on a stage, what was used and the
// media proving it. Stage completion checks read these records.
package stagedoc

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/pkg/logger"
	"stagepay/pkg/rbac"
)

type Service struct {
	store  repository.Store
	logger *zap.Logger
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Get returns the stage documentation to anyone who may view the project.
func (s *Service) Get(ctx context.Context, actor model.Actor, projectID, stageID int64) (*model.StageDocumentation, error) {
	if err := access.Require(actor, rbac.PermissionReadProject); err != nil {
		return nil, err
	}
	p, err := s.stageOf(ctx, projectID, stageID)
	if err != nil {
		return nil, err
	}
	if err := access.ViewProject(actor, p); err != nil {
		return nil, err
	}
	return s.store.Documentation().ForStage(ctx, stageID)
}

func (s *Service) AddTeamMember(ctx context.Context, actor model.Actor, projectID, stageID int64, m model.TeamMember) (*model.TeamMember, error) {
	m.Name = strings.TrimSpace(m.Name)
	m.Role = strings.TrimSpace(m.Role)
	if m.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if m.Role == "" {
		return nil, apperr.Validation("role", "is required")
	}
	if err := s.authorizeWrite(ctx, actor, projectID, stageID); err != nil {
		return nil, err
	}
	m.StageID = stageID
	if err := s.store.Documentation().AddTeamMember(ctx, &m); err != nil {
		return nil, err
	}
	s.logAdded(ctx, repository.DocTeamMember, actor, stageID, m.ID)
	return &m, nil
}

func (s *Service) AddMaterial(ctx context.Context, actor model.Actor, projectID, stageID int64, m model.Material) (*model.Material, error) {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if err := s.authorizeWrite(ctx, actor, projectID, stageID); err != nil {
		return nil, err
	}
	m.StageID = stageID
	if err := s.store.Documentation().AddMaterial(ctx, &m); err != nil {
		return nil, err
	}
	s.logAdded(ctx, repository.DocMaterial, actor, stageID, m.ID)
	return &m, nil
}

func (s *Service) AddMedia(ctx context.Context, actor model.Actor, projectID, stageID int64, m model.MediaItem) (*model.MediaItem, error) {
	if m.Kind != model.MediaPhoto && m.Kind != model.MediaVideo {
		return nil, apperr.Validation("kind", "must be photo or video")
	}
	m.URL = strings.TrimSpace(m.URL)
	if m.URL == "" {
		return nil, apperr.Validation("url", "is required")
	}
	if err := s.authorizeWrite(ctx, actor, projectID, stageID); err != nil {
		return nil, err
	}
	m.StageID = stageID
	if err := s.store.Documentation().AddMedia(ctx, &m); err != nil {
		return nil, err
	}
	s.logAdded(ctx, repository.DocMedia, actor, stageID, m.ID)
	return &m, nil
}

func (s *Service) AddDocument(ctx context.Context, actor model.Actor, projectID, stageID int64, d model.Document) (*model.Document, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.URL = strings.TrimSpace(d.URL)
	if d.Title == "" {
		return nil, apperr.Validation("title", "is required")
	}
	if d.URL == "" {
		return nil, apperr.Validation("url", "is required")
	}
	if err := s.authorizeWrite(ctx, actor, projectID, stageID); err != nil {
		return nil, err
	}
	d.StageID = stageID
	if err := s.store.Documentation().AddDocument(ctx, &d); err != nil {
		return nil, err
	}
	s.logAdded(ctx, repository.DocDocument, actor, stageID, d.ID)
	return &d, nil
}

// ParseKind maps a URL segment to a documentation kind.
func ParseKind(raw string) (repository.DocKind, error) {
	switch raw {
	case "team-members", string(repository.DocTeamMember):
		return repository.DocTeamMember, nil
	case "materials", string(repository.DocMaterial):
		return repository.DocMaterial, nil
	case string(repository.DocMedia):
		return repository.DocMedia, nil
	case "documents", string(repository.DocDocument):
		return repository.DocDocument, nil
	}
	return "", apperr.Validation("kind", fmt.Sprintf("unknown documentation kind %q", raw))
}

// Remove deletes one record. Records of other stages are reported as not found.
func (s *Service) Remove(ctx context.Context, actor model.Actor, projectID, stageID int64, kind repository.DocKind, id int64) error {
	if err := s.authorizeWrite(ctx, actor, projectID, stageID); err != nil {
		return err
	}
	removed, err := s.store.Documentation().Remove(ctx, kind, stageID, id)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(string(kind), id)
	}
	logger.WithTrace(ctx, s.logger).Info("Stage documentation removed",
		zap.String("kind", string(kind)),
		zap.Int64("stage_id", stageID),
		zap.Int64("record_id", id),
		zap.Int64("actor_id", actor.UserID),
	)
	return nil
}

func (s *Service) authorizeWrite(ctx context.Context, actor model.Actor, projectID, stageID int64) error {
	if err := access.Require(actor, rbac.PermissionTransitionStage); err != nil {
		return err
	}
	p, err := s.stageOf(ctx, projectID, stageID)
	if err != nil {
		return err
	}
	return access.ManageProject(actor, p, fmt.Sprintf("document stage %d", stageID))
}

// stageOf loads the project and checks the stage belongs to it.
func (s *Service) stageOf(ctx context.Context, projectID, stageID int64) (*model.Project, error) {
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	st, err := s.store.Stages().GetByID(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if st.ProjectID != p.ID {
		return nil, apperr.NotFound("stage", stageID)
	}
	return p, nil
}

func (s *Service) logAdded(ctx context.Context, kind repository.DocKind, actor model.Actor, stageID, id int64) {
	logger.WithTrace(ctx, s.logger).Info("Stage documentation added",
		zap.String("kind", string(kind)),
		zap.Int64("stage_id", stageID),
		zap.Int64("record_id", id),
		zap.Int64("actor_id", actor.UserID),
	)
}
