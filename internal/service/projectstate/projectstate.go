// Package projectstate keeps the project fields derived from its stages.
package projectstate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"stagepay/internal/model"
	"stagepay/internal/repository"
)

// Derived is what a project shows about its stages.
type Derived struct {
	Progress       int
	Spent          decimal.Decimal
	CurrentStageID *int64
}

// Compute derives progress, spent and the current stage. stages must be sorted by order.
// Spent counts the estimated cost of completed stages only.
func Compute(stages []model.Stage) Derived {
	d := Derived{Spent: decimal.Zero}
	if len(stages) == 0 {
		return d
	}

	completed := 0
	var lastCompleted *model.Stage
	for i := range stages {
		s := &stages[i]
		switch s.Status {
		case model.StageInProgress:
			if d.CurrentStageID == nil {
				id := s.ID
				d.CurrentStageID = &id
			}
		case model.StageCompleted:
			completed++
			d.Spent = d.Spent.Add(s.EstimatedCost)
			if lastCompleted == nil || completedLater(s, lastCompleted) {
				lastCompleted = s
			}
		}
	}

	d.Progress = completed * 100 / len(stages)
	if d.CurrentStageID == nil && lastCompleted != nil {
		id := lastCompleted.ID
		d.CurrentStageID = &id
	}
	return d
}

// completedLater orders by completion date; undated completions rank oldest.
func completedLater(a, b *model.Stage) bool {
	switch {
	case a.CompletionDate == nil:
		return false
	case b.CompletionDate == nil:
		return true
	}
	return !a.CompletionDate.Before(*b.CompletionDate)
}

// Apply copies the derived fields onto p.
func (d Derived) Apply(p *model.Project) {
	p.Progress = d.Progress
	p.Spent = d.Spent
	p.CurrentStageID = d.CurrentStageID
}

// Refresh recomputes p from its stages inside tx and persists it.
func Refresh(ctx context.Context, tx repository.Tx, p *model.Project) error {
	stages, err := tx.Stages().ListByProject(ctx, p.ID)
	if err != nil {
		return err
	}
	Compute(stages).Apply(p)
	return tx.Projects().Update(ctx, p)
}

// Materialize creates the stages of p from its phase plan unless it already has some.
// It returns the number of stages created.
func Materialize(ctx context.Context, tx repository.Tx, p *model.Project) (int, error) {
	existing, err := tx.Stages().ListByProject(ctx, p.ID)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 || len(p.PhasePlan) == 0 {
		return 0, nil
	}

	plan := append([]model.PhasePlanItem(nil), p.PhasePlan...)
	sort.SliceStable(plan, func(i, j int) bool { return plan[i].Order < plan[j].Order })

	stages := make([]model.Stage, 0, len(plan))
	for i, item := range plan {
		order := item.Order
		if order == 0 {
			order = i + 1
		}
		stages = append(stages, model.Stage{
			ProjectID:     p.ID,
			Name:          item.Name,
			Description:   item.Description,
			Order:         order,
			Status:        model.StageNotStarted,
			EstimatedCost: item.EstimatedCost,
		})
	}
	if err := tx.Stages().InsertBatch(ctx, stages); err != nil {
		return 0, fmt.Errorf("materialize stages of project %d: %w", p.ID, err)
	}
	return len(stages), nil
}

// Activate sets p active, backfills its start date and materializes its stages.
// The caller persists p.
func Activate(ctx context.Context, tx repository.Tx, p *model.Project, now time.Time) (int, error) {
	p.Status = model.ProjectActive
	if p.StartDate == nil {
		p.StartDate = &now
	}
	created, err := Materialize(ctx, tx, p)
	if err != nil {
		return 0, err
	}
	if created > 0 {
		stages, err := tx.Stages().ListByProject(ctx, p.ID)
		if err != nil {
			return 0, err
		}
		Compute(stages).Apply(p)
	}
	return created, nil
}
