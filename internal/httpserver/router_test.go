package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stagepay/internal/auth"
	"stagepay/internal/handler"
	"stagepay/internal/model"
	"stagepay/internal/notify/notifytest"
	"stagepay/internal/payment"
	"stagepay/internal/payment/paymenttest"
	"stagepay/internal/repository/memstore"
	"stagepay/internal/service/admin"
	"stagepay/internal/service/billing"
	"stagepay/internal/service/dispute"
	"stagepay/internal/service/stagedoc"
	"stagepay/internal/service/manualpay"
	"stagepay/internal/service/query"
	"stagepay/internal/service/stage"
	"stagepay/internal/service/webhook"
)

const jwtSecret = "router-test-secret"

var (
	homeowner  = model.Actor{UserID: 10, Role: model.RoleHomeowner}
	contractor = model.Actor{UserID: 20, Role: model.RoleContractor}
	adminActor = model.Actor{UserID: 1, Role: model.RoleAdmin}
)

type fakeReplayer struct {
	replayed []int64
}

func (f *fakeReplayer) ReplayEvent(_ context.Context, id int64) error {
	if id == 404 {
		return errors.New("no such event")
	}
	f.replayed = append(f.replayed, id)
	return nil
}

func (f *fakeReplayer) ReplayFailedEvents(context.Context, int) (int, error) { return 3, nil }

type pingErr struct{ err error }

func (p pingErr) Ping(context.Context) error { return p.err }

type testEnv struct {
	engine   *gin.Engine
	store    *memstore.Store
	gateway  *paymenttest.Gateway
	replayer *fakeReplayer
	project  model.Project
	stage    model.Stage
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	store := memstore.New()
	gw := paymenttest.New()
	rec := &notifytest.Recorder{}

	cid := contractor.UserID
	p := store.AddProject(model.Project{
		HomeownerID:  homeowner.UserID,
		ContractorID: &cid,
		Title:        "Kitchen",
		Status:       model.ProjectActive,
		ProjectType:  model.ProjectTypeRenovation,
		Budget:       decimal.NewFromInt(5000),
	})
	st := store.AddStage(model.Stage{ProjectID: p.ID, Name: "Demo", Order: 1, Status: model.StageNotStarted, EstimatedCost: decimal.NewFromInt(500)})
	acct := "acct_c"
	store.AddProfile(model.BillingProfile{UserID: contractor.UserID, ConnectedAccountID: &acct, PayoutsEnabled: true})
	store.AddPaymentMethod(model.SavedPaymentMethod{UserID: homeowner.UserID, ProcessorPaymentMethodID: "pm_1"})

	escrow := stage.NewEscrow(store, gw, nil, "usd", time.Second, log)
	replayer := &fakeReplayer{}
	h := Handlers{
		Project: handler.NewProjectHandler(stage.NewService(store, escrow, rec, log), query.NewService(store), stagedoc.NewService(store, log), log),
		Dispute: handler.NewDisputeHandler(dispute.NewService(store, rec, log), log),
		Payment: handler.NewPaymentHandler(manualpay.NewService(store, rec, "usd", log), billing.NewService(store, gw, log), webhook.NewService(store, gw, nil, log), log),
		Admin:   handler.NewAdminHandler(admin.NewService(store, log), replayer, log),
	}
	engine, err := NewRouter(h, jwtSecret, store, nil, log)
	require.NoError(t, err)
	return &testEnv{engine: engine, store: store, gateway: gw, replayer: replayer, project: p, stage: st}
}

func (e *testEnv) do(t *testing.T, method, path string, actor *model.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := auth.GenerateJWT(*actor, jwtSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

type errResp struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Reasons []string `json:"reasons"`
}

func decodeErr(t *testing.T, w *httptest.ResponseRecorder) errResp {
	t.Helper()
	var out errResp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func path(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

func TestHealthAndReadiness(t *testing.T) {
	e := newEnv(t)

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/healthz", nil, nil).Code)
	w := e.do(t, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	engine, err := NewRouter(Handlers{Payment: &handler.PaymentHandler{}}, jwtSecret, pingErr{errors.New("down")}, nil, zap.NewNop())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, path("/projects/%d", e.project.ID), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, path("/projects/%d", e.project.ID), nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	e.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetProject_Access(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, path("/projects/%d", e.project.ID), &homeowner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p model.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "Kitchen", p.Title)

	stranger := model.Actor{UserID: 99, Role: model.RoleContractor}
	w = e.do(t, http.MethodGet, path("/projects/%d", e.project.ID), &stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "forbidden", decodeErr(t, w).Code)

	w = e.do(t, http.MethodGet, "/projects/abc", &homeowner, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/projects/9999", &adminActor, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTransitionStage_StatusCodes(t *testing.T) {
	e := newEnv(t)
	url := path("/projects/%d/stages/%d/status", e.project.ID, e.stage.ID)

	w := e.do(t, http.MethodPost, url, &homeowner, map[string]string{"status": "finished"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, url, &homeowner, map[string]string{"status": "in_progress"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var st model.Stage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, model.StageInProgress, st.Status)

	w = e.do(t, http.MethodPost, url, &homeowner, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, url, &contractor, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusConflict, w.Code)
	body := decodeErr(t, w)
	assert.Equal(t, "precondition_failed", body.Code)
	assert.Equal(t, []string{stage.ReasonStagePhotoMissing, stage.ReasonStageVideoMissing}, body.Reasons)
}

func TestTransitionStage_AuthenticationRequired(t *testing.T) {
	e := newEnv(t)
	e.gateway.ChargeFunc = func(payment.ChargeRequest) (*payment.Charge, error) {
		return nil, &payment.DeclineError{Code: payment.CodeAuthenticationRequired, Reason: "3ds", TransactionID: "pi_x"}
	}

	w := e.do(t, http.MethodPost, path("/projects/%d/stages/%d/status", e.project.ID, e.stage.ID), &homeowner, map[string]string{"status": "in_progress"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "authentication_required", decodeErr(t, w).Code)
	assert.Equal(t, model.StageNotStarted, e.store.Stage(e.stage.ID).Status)
}

func TestDocumentationThenCompletion(t *testing.T) {
	e := newEnv(t)
	base := path("/projects/%d/stages/%d", e.project.ID, e.stage.ID)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, base+"/status", &contractor, map[string]string{"status": "in_progress"}).Code)

	w := e.do(t, http.MethodPost, base+"/documentation/media", &contractor, map[string]string{"kind": "photo", "url": "https://cdn.example.com/a.jpg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = e.do(t, http.MethodPost, base+"/documentation/media", &contractor, map[string]string{"kind": "video", "url": "https://cdn.example.com/a.mp4"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.do(t, http.MethodPost, base+"/documentation/media", &contractor, map[string]string{"kind": "photo", "url": "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, base+"/documentation/document", &contractor, map[string]string{"title": "Permit", "url": "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, base+"/status", &contractor, map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodGet, path("/projects/%d", e.project.ID), &homeowner, nil)
	var p model.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, 100, p.Progress)
	assert.True(t, decimal.NewFromInt(500).Equal(p.Spent))
}

func TestDisputeRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, path("/projects/%d/disputes", e.project.ID), &homeowner, map[string]any{
		"stage_id": e.stage.ID,
		"reasons":  []string{"poor_quality"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d model.StageDispute
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))

	w = e.do(t, http.MethodPatch, path("/disputes/%d/status", d.ID), &homeowner, map[string]string{"status": "resolved"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPatch, path("/disputes/%d/status", d.ID), &adminActor, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, path("/disputes/%d/status", d.ID), &adminActor, map[string]string{"status": "resolved", "resolution": "redo tiles"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, path("/projects/%d/disputes", e.project.ID), &contractor, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestManualPaymentRoutes(t *testing.T) {
	e := newEnv(t)
	cid := contractor.UserID
	p := e.store.AddProject(model.Project{
		HomeownerID:               homeowner.UserID,
		ContractorID:              &cid,
		Status:                    model.ProjectPendingPayment,
		Budget:                    decimal.NewFromInt(900),
		PaymentConfirmationStatus: model.PaymentConfirmationNone,
	})

	w := e.do(t, http.MethodPost, path("/projects/%d/manual-payment/declare", p.ID), &homeowner, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, []string{"payment_link_missing"}, decodeErr(t, w).Reasons)

	w = e.do(t, http.MethodPut, path("/projects/%d/payment-link", p.ID), &contractor, map[string]string{"url": "ftp://nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPut, path("/projects/%d/payment-link", p.ID), &contractor, map[string]string{"url": "https://pay.example.com/1"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, path("/projects/%d/manual-payment/declare", p.ID), &homeowner, nil).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, path("/projects/%d/manual-payment/confirm", p.ID), &homeowner, nil).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, path("/projects/%d/manual-payment/confirm", p.ID), &adminActor, nil).Code)
	assert.Equal(t, model.ProjectActive, e.store.Project(p.ID).Status)
}

func TestAdminRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, path("/admin/projects/%d/deactivate", e.project.ID), &contractor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodPost, path("/admin/projects/%d/deactivate", e.project.ID), &adminActor, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// paused projects disappear for everyone but admins
	w = e.do(t, http.MethodGet, path("/projects/%d", e.project.ID), &homeowner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, path("/admin/projects/%d/activate", e.project.ID), &adminActor, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/admin/outbox/replay?id=7", &homeowner, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodPost, "/admin/outbox/replay?id=7", &adminActor, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int64{7}, e.replayer.replayed)
	w = e.do(t, http.MethodPost, "/admin/outbox/replay?id=404", &adminActor, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	w = e.do(t, http.MethodPost, "/admin/outbox/replay-failed", &adminActor, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBillingRoutes(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/billing/setup-intent", &homeowner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "client_secret")

	w = e.do(t, http.MethodPost, "/billing/payment-methods", &homeowner, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/billing/payment-methods", &homeowner, map[string]any{"payment_method_id": "pm_2", "is_backup": true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/billing/payment-methods", &homeowner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		PaymentMethods []model.SavedPaymentMethod `json:"payment_methods"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Len(t, out.PaymentMethods, 2)
}

func TestWebhookRoute(t *testing.T) {
	e := newEnv(t)
	txn := "pi_hook"
	sid := e.stage.ID
	pay := e.store.AddPayment(model.Payment{ProjectID: e.project.ID, StageID: &sid, Status: model.PaymentProcessing, Method: model.MethodCard, TransactionID: &txn})

	body, err := json.Marshal(payment.WebhookEvent{ID: "evt_1", Type: payment.EventChargeSucceeded, ObjectID: txn})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", "t=1,v1=forged")
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", paymenttest.ValidSignature)
	w = httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, model.PaymentCompleted, e.store.Payment(pay.ID).Status)
}

func TestWebhookRoute_OversizedBodyRejected(t *testing.T) {
	e := newEnv(t)
	txn := "pi_big"
	sid := e.stage.ID
	pay := e.store.AddPayment(model.Payment{ProjectID: e.project.ID, StageID: &sid, Status: model.PaymentProcessing, Method: model.MethodCard, TransactionID: &txn})

	ev := payment.WebhookEvent{ID: "evt_big", Type: payment.EventChargeSucceeded, ObjectID: txn, FailureReason: strings.Repeat("x", 1<<16)}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", bytes.NewReader(body))
	req.Header.Set("Stripe-Signature", paymenttest.ValidSignature)
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "payload_too_large", decodeErr(t, w).Code)
	assert.Equal(t, model.PaymentProcessing, e.store.Payment(pay.ID).Status)
}
