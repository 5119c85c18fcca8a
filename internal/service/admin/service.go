// Package admin lets administrators force a project active or paused.
package admin

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/internal/service/projectstate"
	"stagepay/pkg/logger"
	"stagepay/pkg/rbac"
)

type Service struct {
	store  repository.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewService(store repository.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// Activate sets the project active and materializes its stages when it has none.
func (s *Service) Activate(ctx context.Context, actor model.Actor, projectID int64) (*model.Project, error) {
	if err := access.Require(actor, rbac.PermissionOverrideProject); err != nil {
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
		if p.Status == model.ProjectActive {
			return nil
		}
		if generated, err = projectstate.Activate(ctx, tx, p, s.now()); err != nil {
			return err
		}
		changed = true
		return tx.Projects().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.WithTrace(ctx, s.logger).Info("Project activated by admin",
			zap.Int64("project_id", projectID),
			zap.Int64("actor_id", actor.UserID),
			zap.Int("stages_created", generated),
		)
	}
	return out, nil
}

// Deactivate pauses the project. Only admins can see or act on it afterwards.
func (s *Service) Deactivate(ctx context.Context, actor model.Actor, projectID int64) (*model.Project, error) {
	if err := access.Require(actor, rbac.PermissionOverrideProject); err != nil {
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
		out = p
		if p.Status == model.ProjectPaused {
			return nil
		}
		p.Status = model.ProjectPaused
		changed = true
		return tx.Projects().Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		logger.WithTrace(ctx, s.logger).Info("Project paused by admin",
			zap.Int64("project_id", projectID),
			zap.Int64("actor_id", actor.UserID),
		)
	}
	return out, nil
}
