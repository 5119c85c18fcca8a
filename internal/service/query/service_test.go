package query

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/repository/memstore"
)

var (
	homeowner  = model.Actor{UserID: 10, Role: model.RoleHomeowner}
	contractor = model.Actor{UserID: 20, Role: model.RoleContractor}
	admin      = model.Actor{UserID: 1, Role: model.RoleAdmin}
	stranger   = model.Actor{UserID: 99, Role: model.RoleHomeowner}
)

func setup(t *testing.T, status model.ProjectStatus) (*memstore.Store, *Service, model.Project) {
	t.Helper()
	store := memstore.New()
	cid := contractor.UserID
	p := store.AddProject(model.Project{HomeownerID: homeowner.UserID, ContractorID: &cid, Status: status})
	return store, NewService(store), p
}

func TestReadAccess(t *testing.T) {
	_, svc, p := setup(t, model.ProjectActive)
	ctx := context.Background()

	for _, a := range []model.Actor{homeowner, contractor, admin} {
		_, err := svc.GetProject(ctx, a, p.ID)
		assert.NoError(t, err, a.Role)
	}

	var authErr *apperr.AuthorizationError
	_, err := svc.GetProject(ctx, stranger, p.ID)
	assert.ErrorAs(t, err, &authErr)
	_, err = svc.ListPayments(ctx, stranger, p.ID)
	assert.ErrorAs(t, err, &authErr)
}

func TestReadAccess_PausedIsAdminOnly(t *testing.T) {
	_, svc, p := setup(t, model.ProjectPaused)
	ctx := context.Background()

	var authErr *apperr.AuthorizationError
	_, err := svc.ListStages(ctx, homeowner, p.ID)
	assert.ErrorAs(t, err, &authErr)
	_, err = svc.ListStages(ctx, contractor, p.ID)
	assert.ErrorAs(t, err, &authErr)

	stages, err := svc.ListStages(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.NotNil(t, stages)
}

func TestListStagesAndPayments(t *testing.T) {
	store, svc, p := setup(t, model.ProjectActive)
	store.AddStage(model.Stage{ProjectID: p.ID, Name: "Second", Order: 2})
	store.AddStage(model.Stage{ProjectID: p.ID, Name: "First", Order: 1})
	store.AddPayment(model.Payment{ProjectID: p.ID, Amount: decimal.NewFromInt(5), Status: model.PaymentCompleted, Method: model.MethodManual, CreatedAt: time.Now().Add(-time.Hour)})
	newest := store.AddPayment(model.Payment{ProjectID: p.ID, Amount: decimal.NewFromInt(7), Status: model.PaymentProcessing, Method: model.MethodCard})

	stages, err := svc.ListStages(context.Background(), homeowner, p.ID)
	require.NoError(t, err)
	require.Len(t, stages, 2)
	assert.Equal(t, "First", stages[0].Name)

	payments, err := svc.ListPayments(context.Background(), contractor, p.ID)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, newest.ID, payments[0].ID)
}

func TestGetProject_NotFound(t *testing.T) {
	_, svc, _ := setup(t, model.ProjectActive)
	var nf *apperr.NotFoundError
	_, err := svc.GetProject(context.Background(), admin, 12345)
	assert.ErrorAs(t, err, &nf)
}
