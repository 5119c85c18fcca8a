// Package reconcile settles card payments left in processing when the charge
// response or its webhook never arrived.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/settle"
	"stagepay/pkg/lock"
	"stagepay/pkg/metrics"
	"stagepay/pkg/trace"
)

const (
	ReasonChargeNeverCreated = "charge_never_created"

	lockKey = "lock:reconcile"
)

type Config struct {
	Schedule string
	// MinAge keeps the sweep away from charges that are still in flight.
	MinAge time.Duration
	// OrphanAfter fails payments the processor has no charge for.
	OrphanAfter time.Duration
	BatchSize   int
}

// Result counts what one sweep did.
type Result struct {
	Scanned  int
	Settled  int
	Attached int
	Pending  int
	Errors   int
}

type Service struct {
	store   repository.Store
	gateway payment.Gateway
	locker  *lock.Locker
	cfg     Config
	logger  *zap.Logger
	now     func() time.Time
	cron    *cron.Cron
}

// NewService creates the sweep; locker may be nil for a single worker.
func NewService(store repository.Store, gateway payment.Gateway, locker *lock.Locker, cfg Config, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = 10 * time.Minute
	}
	if cfg.OrphanAfter < cfg.MinAge {
		cfg.OrphanAfter = cfg.MinAge
	}
	return &Service{
		store:   store,
		gateway: gateway,
		locker:  locker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start schedules Run on the configured cron spec.
func (s *Service) Start(ctx context.Context) error {
	spec := s.cfg.Schedule
	if spec == "" {
		spec = "@every 5m"
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			s.logger.Error("Reconciliation sweep failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciliation %q: %w", spec, err)
	}
	s.cron.Start()
	s.logger.Info("Reconciliation scheduled", zap.String("schedule", spec))
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Service) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("Reconciliation stopped")
}

// Run performs one sweep. Another replica holding the lock makes it a no-op.
func (s *Service) Run(ctx context.Context) (Result, error) {
	var res Result
	ctx, traceID := trace.Ensure(ctx)
	log := s.logger.With(zap.String("trace_id", traceID))

	release, err := s.locker.TryObtain(ctx, lockKey, s.cfg.MinAge)
	if err != nil {
		if errors.Is(err, lock.ErrNotObtained) {
			log.Debug("Reconciliation already running elsewhere")
			return res, nil
		}
		return res, err
	}
	defer release()

	now := s.now()
	stale, err := s.store.Payments().ListStaleProcessing(ctx, now.Add(-s.cfg.MinAge), s.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("list stale payments: %w", err)
	}

	for i := range stale {
		pay := &stale[i]
		if pay.Method != model.MethodCard {
			continue
		}
		res.Scanned++
		outcome, err := s.resolve(ctx, pay, now)
		if err != nil {
			res.Errors++
			metrics.IncrementReconciled("error")
			log.Warn("Could not reconcile payment", zap.Int64("payment_id", pay.ID), zap.Error(err))
			continue
		}
		metrics.IncrementReconciled(outcome)
		switch outcome {
		case "completed", "failed", "orphaned":
			res.Settled++
		case "attached":
			res.Attached++
		case "pending":
			res.Pending++
		}
	}

	if res.Scanned > 0 {
		log.Info("Reconciliation sweep finished",
			zap.Int("scanned", res.Scanned),
			zap.Int("settled", res.Settled),
			zap.Int("attached", res.Attached),
			zap.Int("pending", res.Pending),
			zap.Int("errors", res.Errors),
		)
	}
	return res, nil
}

// resolve returns the outcome label recorded in metrics.
func (s *Service) resolve(ctx context.Context, pay *model.Payment, now time.Time) (string, error) {
	var (
		charge *payment.Charge
		err    error
	)
	if pay.TransactionID != nil && *pay.TransactionID != "" {
		charge, err = s.gateway.GetCharge(ctx, *pay.TransactionID)
		if err != nil {
			return "", fmt.Errorf("get charge %s: %w", *pay.TransactionID, err)
		}
	} else {
		charge, err = s.gateway.FindChargeByReference(ctx, strconv.FormatInt(pay.ID, 10))
		if err != nil {
			return "", fmt.Errorf("find charge for payment %d: %w", pay.ID, err)
		}
		if charge == nil {
			if now.Sub(pay.CreatedAt) < s.cfg.OrphanAfter {
				return "pending", nil
			}
			reason := ReasonChargeNeverCreated
			if err := s.apply(ctx, pay.ID, settle.Outcome{Status: model.PaymentFailed, FailureReason: &reason}, now); err != nil {
				return "", err
			}
			return "orphaned", nil
		}
	}

	o := settle.Outcome{}
	if pay.TransactionID == nil && charge.TransactionID != "" {
		txn := charge.TransactionID
		o.TransactionID = &txn
	}
	label := ""
	switch charge.Status {
	case payment.ChargeSucceeded:
		o.Status, label = model.PaymentCompleted, "completed"
		o.TransferID = charge.TransferID
	case payment.ChargeFailed:
		o.Status, label = model.PaymentFailed, "failed"
		if charge.FailureReason != "" {
			reason := charge.FailureReason
			o.FailureReason = &reason
		}
	default:
		if o.TransactionID == nil {
			return "pending", nil
		}
		o.Status, label = model.PaymentProcessing, "attached"
	}

	if err := s.apply(ctx, pay.ID, o, now); err != nil {
		return "", err
	}
	return label, nil
}

func (s *Service) apply(ctx context.Context, paymentID int64, o settle.Outcome, now time.Time) error {
	return s.store.WithTx(ctx, func(tx repository.Tx) error {
		pay, changed, err := settle.Apply(ctx, tx, paymentID, o, now)
		if err != nil {
			return err
		}
		if changed {
			s.logger.Info("Payment reconciled",
				zap.Int64("payment_id", pay.ID),
				zap.Int64("project_id", pay.ProjectID),
				zap.String("status", string(pay.Status)),
			)
		}
		return nil
	})
}
