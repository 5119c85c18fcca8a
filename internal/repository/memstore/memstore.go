// Package memstore is an in-memory repository.Store for tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/repository"
)

// Event is one outbox write captured by the store.
type Event struct {
	AggregateType string
	AggregateID   int64
	RoutingKey    string
	Payload       any
}

type data struct {
	nextID    int64
	projects  map[int64]model.Project
	stages    map[int64]model.Stage
	payments  map[int64]model.Payment
	disputes  map[int64]model.StageDispute
	team      map[int64]model.TeamMember
	materials map[int64]model.Material
	media     map[int64]model.MediaItem
	documents map[int64]model.Document
	profiles  map[int64]model.BillingProfile
	methods   map[int64]model.SavedPaymentMethod
	events    []Event
}

func newData() *data {
	return &data{
		projects:  map[int64]model.Project{},
		stages:    map[int64]model.Stage{},
		payments:  map[int64]model.Payment{},
		disputes:  map[int64]model.StageDispute{},
		team:      map[int64]model.TeamMember{},
		materials: map[int64]model.Material{},
		media:     map[int64]model.MediaItem{},
		documents: map[int64]model.Document{},
		profiles:  map[int64]model.BillingProfile{},
		methods:   map[int64]model.SavedPaymentMethod{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	return &data{
		nextID:    d.nextID,
		projects:  cloneMap(d.projects),
		stages:    cloneMap(d.stages),
		payments:  cloneMap(d.payments),
		disputes:  cloneMap(d.disputes),
		team:      cloneMap(d.team),
		materials: cloneMap(d.materials),
		media:     cloneMap(d.media),
		documents: cloneMap(d.documents),
		profiles:  cloneMap(d.profiles),
		methods:   cloneMap(d.methods),
		events:    append([]Event(nil), d.events...),
	}
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

// Store serializes transactions; a failed transaction leaves no trace.
type Store struct {
	mu    sync.Mutex
	d     *data
	txErr error
	Now   func() time.Time
}

func New() *Store {
	return &Store{d: newData(), Now: time.Now}
}

var _ repository.Store = (*Store)(nil)

// FailTransactions makes every following WithTx return err without running fn.
func (s *Store) FailTransactions(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txErr = err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txErr != nil {
		return s.txErr
	}

	work := s.d.clone()
	if err := fn(view{s: s, tx: work}); err != nil {
		return err
	}
	s.d = work
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Projects() repository.Projects           { return view{s: s}.Projects() }
func (s *Store) Stages() repository.Stages               { return view{s: s}.Stages() }
func (s *Store) Payments() repository.Payments           { return view{s: s}.Payments() }
func (s *Store) Disputes() repository.Disputes           { return view{s: s}.Disputes() }
func (s *Store) Documentation() repository.Documentation { return view{s: s}.Documentation() }
func (s *Store) Billing() repository.Billing             { return view{s: s}.Billing() }
func (s *Store) Events() repository.Events               { return view{s: s}.Events() }

// view reads the committed state, or the working copy inside a transaction.
type view struct {
	s  *Store
	tx *data
}

func (v view) acquire() (*data, func()) {
	if v.tx != nil {
		return v.tx, func() {}
	}
	v.s.mu.Lock()
	return v.s.d, v.s.mu.Unlock
}

func (v view) Projects() repository.Projects           { return projects{v} }
func (v view) Stages() repository.Stages               { return stages{v} }
func (v view) Payments() repository.Payments           { return payments{v} }
func (v view) Disputes() repository.Disputes           { return disputes{v} }
func (v view) Documentation() repository.Documentation { return documentation{v} }
func (v view) Billing() repository.Billing             { return billing{v} }
func (v view) Events() repository.Events               { return events{v} }

type projects struct{ v view }

func (r projects) GetByID(_ context.Context, id int64) (*model.Project, error) {
	d, done := r.v.acquire()
	defer done()
	p, ok := d.projects[id]
	if !ok {
		return nil, apperr.NotFound("project", id)
	}
	p.PhasePlan = append([]model.PhasePlanItem(nil), p.PhasePlan...)
	return &p, nil
}

func (r projects) GetForUpdate(ctx context.Context, id int64) (*model.Project, error) {
	return r.GetByID(ctx, id)
}

func (r projects) Update(_ context.Context, p *model.Project) error {
	d, done := r.v.acquire()
	defer done()
	if _, ok := d.projects[p.ID]; !ok {
		return apperr.NotFound("project", p.ID)
	}
	p.UpdatedAt = r.v.s.Now()
	d.projects[p.ID] = *p
	return nil
}

type stages struct{ v view }

func (r stages) GetByID(_ context.Context, id int64) (*model.Stage, error) {
	d, done := r.v.acquire()
	defer done()
	st, ok := d.stages[id]
	if !ok {
		return nil, apperr.NotFound("stage", id)
	}
	return &st, nil
}

func (r stages) GetForUpdate(ctx context.Context, id int64) (*model.Stage, error) {
	return r.GetByID(ctx, id)
}

func (r stages) ListByProject(_ context.Context, projectID int64) ([]model.Stage, error) {
	d, done := r.v.acquire()
	defer done()
	var out []model.Stage
	for _, st := range d.stages {
		if st.ProjectID == projectID {
			out = append(out, st)
		}
	}
	sortStages(out)
	return out, nil
}

func sortStages(list []model.Stage) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Order != list[j].Order {
			return list[i].Order < list[j].Order
		}
		return list[i].ID < list[j].ID
	})
}

func sortPayments(list []model.Payment) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

func (r stages) Update(_ context.Context, st *model.Stage) error {
	d, done := r.v.acquire()
	defer done()
	if _, ok := d.stages[st.ID]; !ok {
		return apperr.NotFound("stage", st.ID)
	}
	st.UpdatedAt = r.v.s.Now()
	d.stages[st.ID] = *st
	return nil
}

func (r stages) InsertBatch(_ context.Context, list []model.Stage) error {
	d, done := r.v.acquire()
	defer done()
	now := r.v.s.Now()
	for i := range list {
		list[i].ID = d.id()
		list[i].CreatedAt = now
		list[i].UpdatedAt = now
		d.stages[list[i].ID] = list[i]
	}
	return nil
}

type payments struct{ v view }

func (r payments) GetByID(_ context.Context, id int64) (*model.Payment, error) {
	d, done := r.v.acquire()
	defer done()
	p, ok := d.payments[id]
	if !ok {
		return nil, apperr.NotFound("payment", id)
	}
	return &p, nil
}

func (r payments) GetForUpdate(ctx context.Context, id int64) (*model.Payment, error) {
	return r.GetByID(ctx, id)
}

func (r payments) GetByTransactionID(_ context.Context, txnID string) (*model.Payment, error) {
	d, done := r.v.acquire()
	defer done()
	for _, p := range d.payments {
		if p.TransactionID != nil && *p.TransactionID == txnID {
			return &p, nil
		}
	}
	return nil, apperr.NotFound("payment", 0)
}

func liveFor(d *data, stageID int64, method model.PaymentMethod) *model.Payment {
	for _, p := range d.payments {
		if p.StageID != nil && *p.StageID == stageID && p.Method == method && p.Status != model.PaymentFailed {
			return &p
		}
	}
	return nil
}

func (r payments) FindLiveForStage(_ context.Context, stageID int64, method model.PaymentMethod) (*model.Payment, error) {
	d, done := r.v.acquire()
	defer done()
	return liveFor(d, stageID, method), nil
}

func (r payments) CountFailedForStage(_ context.Context, stageID int64, method model.PaymentMethod) (int, error) {
	d, done := r.v.acquire()
	defer done()
	n := 0
	for _, p := range d.payments {
		if p.StageID != nil && *p.StageID == stageID && p.Method == method && p.Status == model.PaymentFailed {
			n++
		}
	}
	return n, nil
}

func (r payments) InsertIfNoLive(_ context.Context, p *model.Payment) (bool, error) {
	d, done := r.v.acquire()
	defer done()
	if p.StageID != nil && p.Status != model.PaymentFailed && liveFor(d, *p.StageID, p.Method) != nil {
		return false, nil
	}
	r.insert(d, p)
	return true, nil
}

func (r payments) Insert(_ context.Context, p *model.Payment) error {
	d, done := r.v.acquire()
	defer done()
	r.insert(d, p)
	return nil
}

func (r payments) insert(d *data, p *model.Payment) {
	now := r.v.s.Now()
	p.ID = d.id()
	p.CreatedAt = now
	p.UpdatedAt = now
	d.payments[p.ID] = *p
}

func (r payments) UpdateOutcome(_ context.Context, id int64, status model.PaymentStatus, txnID *string, failureReason *string) error {
	d, done := r.v.acquire()
	defer done()
	p, ok := d.payments[id]
	if !ok {
		return apperr.NotFound("payment", id)
	}
	p.Status = status
	if txnID != nil {
		p.TransactionID = txnID
	}
	if failureReason != nil {
		p.FailureReason = failureReason
	}
	p.UpdatedAt = r.v.s.Now()
	d.payments[id] = p
	return nil
}

func (r payments) ListByProject(_ context.Context, projectID int64) ([]model.Payment, error) {
	d, done := r.v.acquire()
	defer done()
	var out []model.Payment
	for _, p := range d.payments {
		if p.ProjectID == projectID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r payments) ListStaleProcessing(_ context.Context, updatedBefore time.Time, limit int) ([]model.Payment, error) {
	d, done := r.v.acquire()
	defer done()
	var out []model.Payment
	for _, p := range d.payments {
		if p.Status == model.PaymentProcessing && p.UpdatedAt.Before(updatedBefore) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type disputes struct{ v view }

func (r disputes) Insert(_ context.Context, dp *model.StageDispute) error {
	d, done := r.v.acquire()
	defer done()
	now := r.v.s.Now()
	dp.ID = d.id()
	dp.CreatedAt = now
	dp.UpdatedAt = now
	dp.Reasons = append([]string(nil), dp.Reasons...)
	d.disputes[dp.ID] = *dp
	return nil
}

func (r disputes) GetByID(_ context.Context, id int64) (*model.StageDispute, error) {
	d, done := r.v.acquire()
	defer done()
	dp, ok := d.disputes[id]
	if !ok {
		return nil, apperr.NotFound("dispute", id)
	}
	return &dp, nil
}

func (r disputes) GetForUpdate(ctx context.Context, id int64) (*model.StageDispute, error) {
	return r.GetByID(ctx, id)
}

func (r disputes) Update(_ context.Context, dp *model.StageDispute) error {
	d, done := r.v.acquire()
	defer done()
	if _, ok := d.disputes[dp.ID]; !ok {
		return apperr.NotFound("dispute", dp.ID)
	}
	dp.UpdatedAt = r.v.s.Now()
	d.disputes[dp.ID] = *dp
	return nil
}

func (r disputes) ListByProject(_ context.Context, projectID int64) ([]model.StageDispute, error) {
	d, done := r.v.acquire()
	defer done()
	var out []model.StageDispute
	for _, dp := range d.disputes {
		if dp.ProjectID == projectID {
			out = append(out, dp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type documentation struct{ v view }

func sortedByID[T any](m map[int64]T, stageOf func(T) int64, stageID int64) []T {
	ids := make([]int64, 0, len(m))
	for id, item := range m {
		if stageOf(item) == stageID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (r documentation) ForStage(_ context.Context, stageID int64) (*model.StageDocumentation, error) {
	d, done := r.v.acquire()
	defer done()
	return &model.StageDocumentation{
		TeamMembers: sortedByID(d.team, func(m model.TeamMember) int64 { return m.StageID }, stageID),
		Materials:   sortedByID(d.materials, func(m model.Material) int64 { return m.StageID }, stageID),
		Media:       sortedByID(d.media, func(m model.MediaItem) int64 { return m.StageID }, stageID),
		Documents:   sortedByID(d.documents, func(m model.Document) int64 { return m.StageID }, stageID),
	}, nil
}

func (r documentation) AddTeamMember(_ context.Context, m *model.TeamMember) error {
	d, done := r.v.acquire()
	defer done()
	m.ID = d.id()
	m.CreatedAt = r.v.s.Now()
	d.team[m.ID] = *m
	return nil
}

func (r documentation) AddMaterial(_ context.Context, m *model.Material) error {
	d, done := r.v.acquire()
	defer done()
	m.ID = d.id()
	m.CreatedAt = r.v.s.Now()
	d.materials[m.ID] = *m
	return nil
}

func (r documentation) AddMedia(_ context.Context, m *model.MediaItem) error {
	d, done := r.v.acquire()
	defer done()
	m.ID = d.id()
	m.CreatedAt = r.v.s.Now()
	d.media[m.ID] = *m
	return nil
}

func (r documentation) AddDocument(_ context.Context, m *model.Document) error {
	d, done := r.v.acquire()
	defer done()
	m.ID = d.id()
	m.CreatedAt = r.v.s.Now()
	d.documents[m.ID] = *m
	return nil
}

func removeFrom[T any](m map[int64]T, stageOf func(T) int64, stageID, id int64) bool {
	item, ok := m[id]
	if !ok || stageOf(item) != stageID {
		return false
	}
	delete(m, id)
	return true
}

func (r documentation) Remove(_ context.Context, kind repository.DocKind, stageID, id int64) (bool, error) {
	d, done := r.v.acquire()
	defer done()
	switch kind {
	case repository.DocTeamMember:
		return removeFrom(d.team, func(m model.TeamMember) int64 { return m.StageID }, stageID, id), nil
	case repository.DocMaterial:
		return removeFrom(d.materials, func(m model.Material) int64 { return m.StageID }, stageID, id), nil
	case repository.DocMedia:
		return removeFrom(d.media, func(m model.MediaItem) int64 { return m.StageID }, stageID, id), nil
	case repository.DocDocument:
		return removeFrom(d.documents, func(m model.Document) int64 { return m.StageID }, stageID, id), nil
	}
	return false, nil
}

type billing struct{ v view }

func (r billing) GetProfile(_ context.Context, userID int64) (*model.BillingProfile, error) {
	d, done := r.v.acquire()
	defer done()
	b, ok := d.profiles[userID]
	if !ok {
		return &model.BillingProfile{UserID: userID}, nil
	}
	return &b, nil
}

func (r billing) SetCustomerID(_ context.Context, userID int64, customerID string) error {
	d, done := r.v.acquire()
	defer done()
	b := d.profiles[userID]
	b.UserID = userID
	b.ProcessorCustomerID = &customerID
	b.UpdatedAt = r.v.s.Now()
	d.profiles[userID] = b
	return nil
}

func (r billing) SetPayoutsEnabled(_ context.Context, accountID string, enabled bool) (bool, error) {
	d, done := r.v.acquire()
	defer done()
	for id, b := range d.profiles {
		if b.ConnectedAccountID != nil && *b.ConnectedAccountID == accountID {
			b.PayoutsEnabled = enabled
			b.UpdatedAt = r.v.s.Now()
			d.profiles[id] = b
			return true, nil
		}
	}
	return false, nil
}

func (r billing) ListPaymentMethods(_ context.Context, userID int64) ([]model.SavedPaymentMethod, error) {
	d, done := r.v.acquire()
	defer done()
	var out []model.SavedPaymentMethod
	for _, m := range d.methods {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r billing) InsertPaymentMethod(_ context.Context, m *model.SavedPaymentMethod) error {
	d, done := r.v.acquire()
	defer done()
	for id, existing := range d.methods {
		if existing.ProcessorPaymentMethodID == m.ProcessorPaymentMethodID {
			existing.IsBackup = m.IsBackup
			d.methods[id] = existing
			*m = existing
			return nil
		}
	}
	m.ID = d.id()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = r.v.s.Now()
	}
	d.methods[m.ID] = *m
	return nil
}

type events struct{ v view }

func (r events) Enqueue(_ context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	d, done := r.v.acquire()
	defer done()
	d.events = append(d.events, Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		RoutingKey:    routingKey,
		Payload:       payload,
	})
	return nil
}
