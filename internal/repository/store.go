package repository

import (
	"context"
	"time"

	"stagepay/internal/model"
)

type Projects interface {
	GetByID(ctx context.Context, id int64) (*model.Project, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*model.Project, error)
	Update(ctx context.Context, p *model.Project) error
}

type Stages interface {
	GetByID(ctx context.Context, id int64) (*model.Stage, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Stage, error)
	// ListByProject returns stages ordered by Order, then ID.
	ListByProject(ctx context.Context, projectID int64) ([]model.Stage, error)
	Update(ctx context.Context, s *model.Stage) error
	InsertBatch(ctx context.Context, stages []model.Stage) error
}

type Payments interface {
	GetByID(ctx context.Context, id int64) (*model.Payment, error)
	GetForUpdate(ctx context.Context, id int64) (*model.Payment, error)
	// GetByTransactionID returns a NotFoundError when no payment carries txnID.
	GetByTransactionID(ctx context.Context, txnID string) (*model.Payment, error)
	// FindLiveForStage returns the non-failed payment of method for stage, or nil.
	FindLiveForStage(ctx context.Context, stageID int64, method model.PaymentMethod) (*model.Payment, error)
	CountFailedForStage(ctx context.Context, stageID int64, method model.PaymentMethod) (int, error)
	// InsertIfNoLive inserts p unless a non-failed payment already exists for
	// (p.StageID, p.Method). It reports whether the row was inserted.
	InsertIfNoLive(ctx context.Context, p *model.Payment) (bool, error)
	Insert(ctx context.Context, p *model.Payment) error
	// UpdateOutcome sets status and, when non-nil, transaction id and failure reason.
	UpdateOutcome(ctx context.Context, id int64, status model.PaymentStatus, txnID *string, failureReason *string) error
	ListByProject(ctx context.Context, projectID int64) ([]model.Payment, error)
	ListStaleProcessing(ctx context.Context, updatedBefore time.Time, limit int) ([]model.Payment, error)
}

type Disputes interface {
	Insert(ctx context.Context, d *model.StageDispute) error
	GetByID(ctx context.Context, id int64) (*model.StageDispute, error)
	GetForUpdate(ctx context.Context, id int64) (*model.StageDispute, error)
	Update(ctx context.Context, d *model.StageDispute) error
	ListByProject(ctx context.Context, projectID int64) ([]model.StageDispute, error)
}

type Documentation interface {
	ForStage(ctx context.Context, stageID int64) (*model.StageDocumentation, error)
	AddTeamMember(ctx context.Context, m *model.TeamMember) error
	AddMaterial(ctx context.Context, m *model.Material) error
	AddMedia(ctx context.Context, m *model.MediaItem) error
	AddDocument(ctx context.Context, d *model.Document) error
	// Remove deletes one documentation row of kind from stage; false when absent.
	Remove(ctx context.Context, kind DocKind, stageID, id int64) (bool, error)
}

type DocKind string

const (
	DocTeamMember DocKind = "team_member"
	DocMaterial   DocKind = "material"
	DocMedia      DocKind = "media"
	DocDocument   DocKind = "document"
)

type Billing interface {
	// GetProfile returns an empty profile for users that have none yet.
	GetProfile(ctx context.Context, userID int64) (*model.BillingProfile, error)
	SetCustomerID(ctx context.Context, userID int64, customerID string) error
	// SetPayoutsEnabled updates the profile owning accountID; false when none does.
	SetPayoutsEnabled(ctx context.Context, accountID string, enabled bool) (bool, error)
	// ListPaymentMethods returns methods newest first.
	ListPaymentMethods(ctx context.Context, userID int64) ([]model.SavedPaymentMethod, error)
	InsertPaymentMethod(ctx context.Context, m *model.SavedPaymentMethod) error
}

// Events writes to the transactional outbox.
type Events interface {
	Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error
}

// Tx is the set of repositories bound to one unit of work.
type Tx interface {
	Projects() Projects
	Stages() Stages
	Payments() Payments
	Disputes() Disputes
	Documentation() Documentation
	Billing() Billing
	Events() Events
}

// Store exposes the repositories outside a transaction and runs transactions.
type Store interface {
	Tx
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
