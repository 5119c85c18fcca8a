package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/pkg/db"
	"stagepay/pkg/outbox"
)

// PgStore is the PostgreSQL Store.
type PgStore struct {
	pool   *pgxpool.Pool
	outbox *outbox.Repository
	logger *zap.Logger
	scope
}

func NewPgStore(pool *pgxpool.Pool, logger *zap.Logger) *PgStore {
	ob := outbox.NewRepository(pool)
	return &PgStore{
		pool:   pool,
		outbox: ob,
		logger: logger,
		scope:  newScope(pool, ob, logger),
	}
}

func (s *PgStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newScope(tx, s.outbox, s.logger))
	})
}

// Outbox exposes the event table to the dispatcher and the replay endpoints.
func (s *PgStore) Outbox() *outbox.Repository {
	return s.outbox
}

func (s *PgStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// scope binds every repository to one DBTX (the pool or a transaction).
type scope struct {
	projects *ProjectRepository
	stages   *StageRepository
	payments *PaymentRepository
	disputes *DisputeRepository
	docs     *DocumentationRepository
	billing  *BillingRepository
	events   *OutboxEvents
}

func newScope(conn db.DBTX, ob *outbox.Repository, logger *zap.Logger) scope {
	return scope{
		projects: NewProjectRepository(conn, logger),
		stages:   NewStageRepository(conn, logger),
		payments: NewPaymentRepository(conn, logger),
		disputes: NewDisputeRepository(conn, logger),
		docs:     NewDocumentationRepository(conn, logger),
		billing:  NewBillingRepository(conn, logger),
		events:   &OutboxEvents{db: conn, repo: ob},
	}
}

func (s scope) Projects() Projects           { return s.projects }
func (s scope) Stages() Stages               { return s.stages }
func (s scope) Payments() Payments           { return s.payments }
func (s scope) Disputes() Disputes           { return s.disputes }
func (s scope) Documentation() Documentation { return s.docs }
func (s scope) Billing() Billing             { return s.billing }
func (s scope) Events() Events               { return s.events }

// OutboxEvents adapts the shared outbox table to the Events interface.
type OutboxEvents struct {
	db   db.DBTX
	repo *outbox.Repository
}

func (o *OutboxEvents) Enqueue(ctx context.Context, aggregateType string, aggregateID int64, routingKey string, payload any) error {
	return outbox.InsertEventInTx(ctx, o.db, o.repo, aggregateType, aggregateID, routingKey, payload)
}

// notFound maps pgx.ErrNoRows to an apperr.NotFoundError.
func notFound(err error, entity string, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}
	return fmt.Errorf("load %s %d: %w", entity, id, err)
}
