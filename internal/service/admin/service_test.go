package admin

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/repository/memstore"
)

var admin = model.Actor{UserID: 1, Role: model.RoleAdmin}

func TestActivate_MaterializesOnce(t *testing.T) {
	store := memstore.New()
	p := store.AddProject(model.Project{
		HomeownerID: 10,
		Status:      model.ProjectPendingPayment,
		PhasePlan: []model.PhasePlanItem{
			{Name: "Framing", Order: 2, EstimatedCost: decimal.NewFromInt(300)},
			{Name: "Demo", Order: 1, EstimatedCost: decimal.NewFromInt(100)},
		},
	})
	svc := NewService(store, zap.NewNop())
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	got, err := svc.Activate(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectActive, got.Status)
	require.NotNil(t, got.StartDate)
	assert.True(t, fixed.Equal(*got.StartDate))

	stages := store.StagesFor(p.ID)
	require.Len(t, stages, 2)
	assert.Equal(t, "Demo", stages[0].Name)
	assert.Equal(t, model.StageNotStarted, stages[1].Status)
	assert.Equal(t, 0, got.Progress)
	assert.Nil(t, got.CurrentStageID)

	// already active: nothing changes
	svc.now = func() time.Time { return fixed.Add(time.Hour) }
	got, err = svc.Activate(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(*got.StartDate))
	assert.Len(t, store.StagesFor(p.ID), 2)
}

func TestActivate_KeepsExistingStartDate(t *testing.T) {
	store := memstore.New()
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	p := store.AddProject(model.Project{HomeownerID: 10, Status: model.ProjectPaused, StartDate: &start})

	got, err := NewService(store, zap.NewNop()).Activate(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.True(t, start.Equal(*got.StartDate))
	assert.Empty(t, store.StagesFor(p.ID))
}

func TestDeactivate(t *testing.T) {
	store := memstore.New()
	p := store.AddProject(model.Project{HomeownerID: 10, Status: model.ProjectActive})
	svc := NewService(store, zap.NewNop())

	got, err := svc.Deactivate(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectPaused, got.Status)

	got, err = svc.Deactivate(context.Background(), admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ProjectPaused, got.Status)
}

func TestOverride_AdminOnly(t *testing.T) {
	store := memstore.New()
	cid := int64(20)
	p := store.AddProject(model.Project{HomeownerID: 10, ContractorID: &cid, Status: model.ProjectActive})
	svc := NewService(store, zap.NewNop())

	var authErr *apperr.AuthorizationError
	_, err := svc.Deactivate(context.Background(), model.Actor{UserID: 20, Role: model.RoleContractor}, p.ID)
	assert.ErrorAs(t, err, &authErr)
	_, err = svc.Activate(context.Background(), model.Actor{UserID: 10, Role: model.RoleHomeowner}, p.ID)
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, model.ProjectActive, store.Project(p.ID).Status)
}

func TestActivate_UnknownProject(t *testing.T) {
	_, err := NewService(memstore.New(), zap.NewNop()).Activate(context.Background(), admin, 404)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
}
