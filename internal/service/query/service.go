// Package query serves the read side of a project.
package query

import (
	"context"

	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/service/access"
	"stagepay/pkg/rbac"
)

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

func (s *Service) GetProject(ctx context.Context, actor model.Actor, projectID int64) (*model.Project, error) {
	if err := access.Require(actor, rbac.PermissionReadProject); err != nil {
		return nil, err
	}
	p, err := s.store.Projects().GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := access.ViewProject(actor, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListStages returns the project's stages in plan order.
func (s *Service) ListStages(ctx context.Context, actor model.Actor, projectID int64) ([]model.Stage, error) {
	if _, err := s.GetProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	stages, err := s.store.Stages().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if stages == nil {
		stages = []model.Stage{}
	}
	return stages, nil
}

// ListPayments returns the project's payments, newest first.
func (s *Service) ListPayments(ctx context.Context, actor model.Actor, projectID int64) ([]model.Payment, error) {
	if _, err := s.GetProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	payments, err := s.store.Payments().ListByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []model.Payment{}
	}
	return payments, nil
}
