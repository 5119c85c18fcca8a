package projectstate

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/repository/memstore"
)

func at(h int) *time.Time {
	t := time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC)
	return &t
}

func stage(id int64, order int, status model.StageStatus, cost int64, done *time.Time) model.Stage {
	return model.Stage{
		ID:             id,
		Order:          order,
		Status:         status,
		EstimatedCost:  decimal.NewFromInt(cost),
		CompletionDate: done,
	}
}

func TestCompute_NoStages(t *testing.T) {
	d := Compute(nil)
	assert.Equal(t, 0, d.Progress)
	assert.True(t, d.Spent.IsZero())
	assert.Nil(t, d.CurrentStageID)
}

func TestCompute_SpentAndProgress(t *testing.T) {
	stages := []model.Stage{
		stage(1, 1, model.StageCompleted, 100, at(1)),
		stage(2, 2, model.StageCompleted, 250, at(2)),
		stage(3, 3, model.StageNotStarted, 999, nil),
	}

	d := Compute(stages)
	assert.Equal(t, 66, d.Progress)
	assert.True(t, decimal.NewFromInt(350).Equal(d.Spent))
	require.NotNil(t, d.CurrentStageID)
	assert.Equal(t, int64(2), *d.CurrentStageID)
}

func TestCompute_FirstInProgressWins(t *testing.T) {
	stages := []model.Stage{
		stage(1, 1, model.StageCompleted, 100, at(5)),
		stage(2, 2, model.StageInProgress, 100, nil),
		stage(3, 3, model.StageInProgress, 100, nil),
	}

	d := Compute(stages)
	require.NotNil(t, d.CurrentStageID)
	assert.Equal(t, int64(2), *d.CurrentStageID)
}

func TestCompute_MostRecentlyCompletedByDate(t *testing.T) {
	stages := []model.Stage{
		stage(1, 1, model.StageCompleted, 100, at(9)),
		stage(2, 2, model.StageCompleted, 100, at(3)),
		stage(3, 3, model.StageBlocked, 100, nil),
	}

	d := Compute(stages)
	require.NotNil(t, d.CurrentStageID)
	assert.Equal(t, int64(1), *d.CurrentStageID)
}

func TestActivate_MaterializesOnce(t *testing.T) {
	store := memstore.New()
	p := store.AddProject(model.Project{
		HomeownerID: 1,
		Status:      model.ProjectPendingPayment,
		PhasePlan: []model.PhasePlanItem{
			{Name: "Finishing", Order: 2, EstimatedCost: decimal.NewFromInt(300)},
			{Name: "Demolition", Order: 1, EstimatedCost: decimal.NewFromInt(200)},
		},
	})
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		err := store.WithTx(context.Background(), func(tx repository.Tx) error {
			proj, err := tx.Projects().GetForUpdate(context.Background(), p.ID)
			if err != nil {
				return err
			}
			if _, err := Activate(context.Background(), tx, proj, now); err != nil {
				return err
			}
			return tx.Projects().Update(context.Background(), proj)
		})
		require.NoError(t, err)
	}

	stages := store.StagesFor(p.ID)
	require.Len(t, stages, 2)
	assert.Equal(t, "Demolition", stages[0].Name)
	assert.Equal(t, model.StageNotStarted, stages[1].Status)

	got := store.Project(p.ID)
	assert.Equal(t, model.ProjectActive, got.Status)
	require.NotNil(t, got.StartDate)
	assert.True(t, now.Equal(*got.StartDate))
}
