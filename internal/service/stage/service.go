// Package stage applies stage status transitions and their side effects.
package stage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "stagepay/contracts/mq"
	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/notify"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/internal/service/projectstate"
	"stagepay/pkg/logger"
	"stagepay/pkg/metrics"
	"stagepay/pkg/rbac"
)

const NotificationStageUpdated = "stage_updated"

// Commencer runs before a stage enters in_progress.
type Commencer interface {
	Commence(ctx context.Context, p *model.Project, s *model.Stage) (*model.Payment, error)
}

type Service struct {
	store    repository.Store
	escrow   Commencer
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store repository.Store, escrow Commencer, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		escrow:   escrow,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestTransition moves a stage to target on behalf of actor.
func (s *Service) RequestTransition(ctx context.Context, projectID, stageID int64, actor model.Actor, target model.StageStatus) (*model.Stage, error) {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.Int64("project_id", projectID),
		zap.Int64("stage_id", stageID),
		zap.Int64("actor_id", actor.UserID),
		zap.String("target", string(target)),
	)

	if !target.Valid() {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown stage status %q", target))
	}
	if err := access.Require(actor, rbac.PermissionTransitionStage); err != nil {
		return nil, err
	}

	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	stage, err := s.store.Stages().GetByID(ctx, stageID)
	if err != nil {
		return nil, err
	}
	if stage.ProjectID != project.ID {
		return nil, apperr.NotFound("stage", stageID)
	}
	if err := authorize(actor, project, target); err != nil {
		metrics.IncrementStageTransition(string(target), "forbidden")
		return nil, err
	}
	if stage.Status == target {
		log.Info("Stage already in requested status")
		return stage, nil
	}

	// the charge must succeed before the new status is persisted
	if target == model.StageInProgress && s.escrow != nil {
		if _, err := s.escrow.Commence(ctx, project, stage); err != nil {
			metrics.IncrementStageTransition(string(target), "charge_failed")
			log.Warn("Escrow commencement failed, transition aborted", zap.Error(err))
			return nil, err
		}
	}

	var (
		updated  *model.Stage
		previous model.StageStatus
		derived  *model.Project
	)
	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		st, err := tx.Stages().GetForUpdate(ctx, stageID)
		if err != nil {
			return err
		}
		previous = st.Status

		if target == model.StageCompleted {
			doc, err := tx.Documentation().ForStage(ctx, stageID)
			if err != nil {
				return err
			}
			if err := ValidateCompletion(doc); err != nil {
				return err
			}
		}

		applyEntry(st, target, s.now())
		if err := tx.Stages().Update(ctx, st); err != nil {
			return err
		}

		p, err := tx.Projects().GetForUpdate(ctx, projectID)
		if err != nil {
			return err
		}
		if err := projectstate.Refresh(ctx, tx, p); err != nil {
			return err
		}

		if err := tx.Events().Enqueue(ctx, "project", p.ID, mqcontracts.ProjectTopic(p.ID), mqcontracts.StageUpdatedPayload{
			Event:          mqcontracts.EventStageUpdated,
			ProjectID:      p.ID,
			StageID:        st.ID,
			Status:         string(st.Status),
			PreviousStatus: string(previous),
			Progress:       p.Progress,
			Spent:          p.Spent,
			CurrentStageID: p.CurrentStageID,
			ActorID:        actor.UserID,
			OccurredAt:     st.UpdatedAt,
		}); err != nil {
			return err
		}

		updated, derived = st, p
		return nil
	})
	if err != nil {
		metrics.IncrementStageTransition(string(target), "rejected")
		return nil, err
	}

	metrics.IncrementStageTransition(string(target), "ok")
	log.Info("Stage transitioned",
		zap.String("from", string(previous)),
		zap.Int("progress", derived.Progress),
		zap.String("spent", derived.Spent.StringFixed(2)),
	)

	s.notify(ctx, derived, updated)
	return updated, nil
}

// authorize: admins may do anything, homeowners may only start a stage,
// contractors may move the stages of their own projects.
func authorize(actor model.Actor, p *model.Project, target model.StageStatus) error {
	if actor.IsAdmin() {
		return nil
	}
	if p.Status == model.ProjectPaused {
		return apperr.Forbidden(actor.UserID, fmt.Sprintf("access paused project %d", p.ID))
	}
	switch {
	case p.IsContractor(actor.UserID):
		return nil
	case p.IsHomeowner(actor.UserID) && target == model.StageInProgress:
		return nil
	}
	return apperr.Forbidden(actor.UserID, fmt.Sprintf("move stage to %s", target))
}

func applyEntry(st *model.Stage, target model.StageStatus, now time.Time) {
	st.Status = target
	switch target {
	case model.StageInProgress:
		if st.StartDate == nil {
			st.StartDate = &now
		}
	case model.StageCompleted:
		st.CompletionDate = &now
	case model.StageNotStarted:
		st.StartDate = nil
		st.CompletionDate = nil
	}
}

func (s *Service) notify(ctx context.Context, p *model.Project, st *model.Stage) {
	msg := notify.Message{
		Type:    NotificationStageUpdated,
		Title:   "Stage updated",
		Message: fmt.Sprintf("Stage %q is now %s", st.Name, st.Status),
		Data: map[string]any{
			"project_id": p.ID,
			"stage_id":   st.ID,
			"status":     string(st.Status),
			"progress":   p.Progress,
		},
	}
	recipients := []int64{p.HomeownerID}
	if p.ContractorID != nil {
		recipients = append(recipients, *p.ContractorID)
	}
	s.notifier.NotifyUsers(ctx, recipients, msg)
	s.notifier.NotifyRole(ctx, model.RoleAdmin, msg)
}
