// Package dispute manages homeowner-raised, admin-resolved stage disputes.
package dispute

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/notify"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/pkg/logger"
	"stagepay/pkg/rbac"
)

const (
	NotificationDisputeOpened  = "dispute_opened"
	NotificationDisputeUpdated = "dispute_updated"
)

type CreateRequest struct {
	ProjectID   int64
	StageID     int64
	Reasons     []string
	Description string
}

type StatusUpdate struct {
	Status     model.DisputeStatus
	Resolution *string
}

type Service struct {
	store    repository.Store
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store repository.Store, notifier notify.Notifier, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// NormalizeReasons trims, drops empties and removes duplicates keeping first-seen order.
func NormalizeReasons(reasons []string) []string {
	seen := make(map[string]bool, len(reasons))
	out := make([]string, 0, len(reasons))
	for _, r := range reasons {
		r = strings.TrimSpace(r)
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

func (s *Service) Create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.StageDispute, error) {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.Int64("project_id", req.ProjectID),
		zap.Int64("stage_id", req.StageID),
		zap.Int64("actor_id", actor.UserID),
	)

	if err := access.Require(actor, rbac.PermissionCreateDispute); err != nil {
		return nil, err
	}
	reasons := NormalizeReasons(req.Reasons)
	if len(reasons) == 0 {
		return nil, apperr.Validation("reasons", "at least one non-empty reason is required")
	}

	project, err := s.store.Projects().GetByID(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.ViewProject(actor, project); err != nil {
		return nil, err
	}
	if !project.IsHomeowner(actor.UserID) {
		return nil, apperr.Forbidden(actor.UserID, fmt.Sprintf("open a dispute on project %d", project.ID))
	}

	stage, err := s.store.Stages().GetByID(ctx, req.StageID)
	if err != nil {
		return nil, err
	}
	if stage.ProjectID != project.ID {
		return nil, apperr.Validation("stage_id", fmt.Sprintf("stage %d does not belong to project %d", stage.ID, project.ID))
	}

	d := &model.StageDispute{
		ProjectID:    project.ID,
		StageID:      stage.ID,
		HomeownerID:  project.HomeownerID,
		ContractorID: project.ContractorID,
		Reasons:      reasons,
		Description:  strings.TrimSpace(req.Description),
		Status:       model.DisputeOpen,
	}
	if err := s.store.Disputes().Insert(ctx, d); err != nil {
		return nil, err
	}

	log.Info("Dispute created", zap.Int64("dispute_id", d.ID), zap.Strings("reasons", reasons))

	msg := notify.Message{
		Type:    NotificationDisputeOpened,
		Title:   "Dispute opened",
		Message: fmt.Sprintf("A dispute was opened on stage %q", stage.Name),
		Data:    map[string]any{"project_id": project.ID, "stage_id": stage.ID, "dispute_id": d.ID},
	}
	if project.ContractorID != nil {
		s.notifier.NotifyUser(ctx, *project.ContractorID, msg)
	}
	s.notifier.NotifyRole(ctx, model.RoleAdmin, msg)
	return d, nil
}

// allowed lists the statuses reachable from each status.
var allowed = map[model.DisputeStatus][]model.DisputeStatus{
	model.DisputeOpen:     {model.DisputeInReview, model.DisputeResolved},
	model.DisputeInReview: {model.DisputeResolved},
}

func canMove(from, to model.DisputeStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, disputeID int64, upd StatusUpdate) (*model.StageDispute, error) {
	log := logger.WithTrace(ctx, s.logger).With(
		zap.Int64("dispute_id", disputeID),
		zap.Int64("actor_id", actor.UserID),
		zap.String("status", string(upd.Status)),
	)

	if !upd.Status.Valid() {
		return nil, apperr.Validation("status", fmt.Sprintf("unknown dispute status %q", upd.Status))
	}
	if err := access.Require(actor, rbac.PermissionReviewDispute); err != nil {
		return nil, err
	}

	var (
		out     *model.StageDispute
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx repository.Tx) error {
		d, err := tx.Disputes().GetForUpdate(ctx, disputeID)
		if err != nil {
			return err
		}
		out = d
		if d.Status == upd.Status {
			return nil
		}
		if !canMove(d.Status, upd.Status) {
			return apperr.Precondition(
				fmt.Sprintf("dispute cannot move from %s to %s", d.Status, upd.Status),
				"invalid_dispute_transition",
			)
		}

		now := s.now()
		d.Status = upd.Status
		switch upd.Status {
		case model.DisputeInReview:
			if d.InReviewAt == nil {
				d.InReviewAt = &now
			}
		case model.DisputeResolved:
			if d.ResolvedAt == nil {
				d.ResolvedAt = &now
			}
		}
		if upd.Resolution != nil {
			note := strings.TrimSpace(*upd.Resolution)
			d.Resolution = &note
		}
		changed = true
		return tx.Disputes().Update(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	if !changed {
		log.Info("Dispute already in requested status")
		return out, nil
	}

	log.Info("Dispute status updated")

	msg := notify.Message{
		Type:    NotificationDisputeUpdated,
		Title:   "Dispute updated",
		Message: fmt.Sprintf("Your dispute is now %s", out.Status),
		Data:    map[string]any{"project_id": out.ProjectID, "stage_id": out.StageID, "dispute_id": out.ID, "status": string(out.Status)},
	}
	recipients := []int64{out.HomeownerID}
	if out.ContractorID != nil {
		recipients = append(recipients, *out.ContractorID)
	}
	s.notifier.NotifyUsers(ctx, recipients, msg)
	return out, nil
}

func (s *Service) Get(ctx context.Context, actor model.Actor, disputeID int64) (*model.StageDispute, error) {
	d, err := s.store.Disputes().GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	project, err := s.store.Projects().GetByID(ctx, d.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := access.ViewProject(actor, project); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) ListByProject(ctx context.Context, actor model.Actor, projectID int64) ([]model.StageDispute, error) {
	project, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.ViewProject(actor, project); err != nil {
		return nil, err
	}
	return s.store.Disputes().ListByProject(ctx, projectID)
}
