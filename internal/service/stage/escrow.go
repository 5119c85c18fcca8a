package stage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/internal/payment"
	"stagepay/internal/repository"
	"stagepay/internal/service/settle"
	"stagepay/pkg/lock"
	"stagepay/pkg/logger"
	"stagepay/pkg/metrics"
)

const (
	ReasonEstimatedCostNotPositive = "estimated_cost_not_positive"
	ReasonMissingHomeowner         = "missing_homeowner"
	ReasonMissingContractor        = "missing_contractor"
	ReasonNoSavedPaymentMethod     = "no_saved_payment_method"
	ReasonPayoutAccountMissing     = "contractor_payout_account_missing"
)

// Escrow charges the homeowner's saved card when a stage starts.
type Escrow struct {
	store    repository.Store
	gateway  payment.Gateway
	locker   *lock.Locker
	currency string
	timeout  time.Duration
	logger   *zap.Logger
}

func NewEscrow(store repository.Store, gateway payment.Gateway, locker *lock.Locker, currency string, timeout time.Duration, logger *zap.Logger) *Escrow {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Escrow{
		store:    store,
		gateway:  gateway,
		locker:   locker,
		currency: currency,
		timeout:  timeout,
		logger:   logger,
	}
}

// IdempotencyKey is stable per stage and attempt. A new attempt only starts
// after the previous one was recorded as failed.
func IdempotencyKey(stageID int64, attempt int) string {
	return fmt.Sprintf("stage-%d-commence-%d", stageID, attempt)
}

func TransferGroup(projectID, stageID int64) string {
	return fmt.Sprintf("project-%d-stage-%d", projectID, stageID)
}

// funding is what a charge needs once the preconditions hold.
type funding struct {
	customerID    string
	methodID      string
	destinationID string
}

// Commence charges the stage cost unless a live card payment already exists.
// It returns the live payment, or nil for projects that do not use escrow.
func (e *Escrow) Commence(ctx context.Context, p *model.Project, s *model.Stage) (*model.Payment, error) {
	if !p.ProjectType.UsesEscrow() {
		return nil, nil
	}
	log := logger.WithTrace(ctx, e.logger).With(
		zap.Int64("project_id", p.ID),
		zap.Int64("stage_id", s.ID),
	)

	release := e.locker.Advisory(ctx, fmt.Sprintf("lock:stage:%d", s.ID), e.timeout+10*time.Second)
	defer release()

	if live, err := e.store.Payments().FindLiveForStage(ctx, s.ID, model.MethodCard); err != nil {
		return nil, err
	} else if live != nil {
		log.Info("Stage already has a live card payment, skipping charge", zap.Int64("payment_id", live.ID))
		metrics.IncrementEscrowCharge("skipped")
		return live, nil
	}

	fund, err := e.checkPreconditions(ctx, p, s)
	if err != nil {
		return nil, err
	}

	pay, inserted, err := e.reserve(ctx, p, s)
	if err != nil {
		return nil, err
	}
	if !inserted {
		log.Info("Concurrent commencement won the race, skipping charge", zap.Int64("payment_id", pay.ID))
		metrics.IncrementEscrowCharge("skipped")
		return pay, nil
	}
	log = log.With(zap.Int64("payment_id", pay.ID))

	chargeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	charge, chargeErr := e.gateway.CreateOffSessionCharge(chargeCtx, payment.ChargeRequest{
		CustomerID:           fund.customerID,
		PaymentMethodID:      fund.methodID,
		DestinationAccountID: fund.destinationID,
		Amount:               pay.Amount,
		Currency:             pay.Currency,
		IdempotencyKey:       *pay.IdempotencyKey,
		TransferGroup:        TransferGroup(p.ID, s.ID),
		Reference:            strconv.FormatInt(pay.ID, 10),
		Description:          fmt.Sprintf("%s: %s", p.Title, s.Name),
	})

	// the request may be gone by now; the outcome must still be recorded
	recordCtx := context.WithoutCancel(ctx)
	if chargeErr != nil {
		return nil, e.recordFailure(recordCtx, log, pay, chargeErr)
	}

	status := model.PaymentProcessing
	if charge.Status == payment.ChargeSucceeded {
		status = model.PaymentCompleted
	}
	txnID := charge.TransactionID
	if err := e.store.Payments().UpdateOutcome(recordCtx, pay.ID, status, &txnID, nil); err != nil {
		// the charge went through; reconciliation will attach the transaction id
		log.Error("Failed to record charge outcome", zap.String("transaction_id", txnID), zap.Error(err))
	}
	pay.Status = status
	pay.TransactionID = &txnID
	if status == model.PaymentCompleted {
		if payout, inserted, err := settle.RecordPayout(recordCtx, e.store.Payments(), pay, charge.TransferID); err != nil {
			log.Error("Failed to record contractor payout", zap.String("transfer_id", charge.TransferID), zap.Error(err))
		} else if inserted {
			log.Info("Contractor payout recorded", zap.Int64("payout_id", payout.ID), zap.String("transfer_id", charge.TransferID))
		}
	}

	metrics.IncrementEscrowCharge(string(status))
	log.Info("Escrow charge created",
		zap.String("transaction_id", txnID),
		zap.String("status", string(status)),
		zap.String("amount", pay.Amount.StringFixed(2)),
	)
	return pay, nil
}

func (e *Escrow) checkPreconditions(ctx context.Context, p *model.Project, s *model.Stage) (*funding, error) {
	var reasons []string
	if !s.EstimatedCost.IsPositive() {
		reasons = append(reasons, ReasonEstimatedCostNotPositive)
	}
	if p.HomeownerID == 0 {
		reasons = append(reasons, ReasonMissingHomeowner)
	}
	if p.ContractorID == nil {
		reasons = append(reasons, ReasonMissingContractor)
	}

	fund := &funding{}
	var homeowner *model.BillingProfile
	if p.HomeownerID != 0 {
		methods, err := e.store.Billing().ListPaymentMethods(ctx, p.HomeownerID)
		if err != nil {
			return nil, err
		}
		if m := PreferredMethod(methods); m != nil {
			fund.methodID = m.ProcessorPaymentMethodID
		} else {
			reasons = append(reasons, ReasonNoSavedPaymentMethod)
		}
		if homeowner, err = e.store.Billing().GetProfile(ctx, p.HomeownerID); err != nil {
			return nil, err
		}
	}
	if p.ContractorID != nil {
		contractor, err := e.store.Billing().GetProfile(ctx, *p.ContractorID)
		if err != nil {
			return nil, err
		}
		if contractor.PayoutReady() {
			fund.destinationID = *contractor.ConnectedAccountID
		} else {
			reasons = append(reasons, ReasonPayoutAccountMissing)
		}
	}

	if len(reasons) > 0 {
		metrics.IncrementEscrowCharge("precondition_failed")
		return nil, apperr.Precondition("escrow charge cannot start", reasons...)
	}

	customerID, err := e.ensureCustomer(ctx, homeowner)
	if err != nil {
		return nil, err
	}
	fund.customerID = customerID
	return fund, nil
}

func (e *Escrow) ensureCustomer(ctx context.Context, profile *model.BillingProfile) (string, error) {
	if profile.ProcessorCustomerID != nil && *profile.ProcessorCustomerID != "" {
		return *profile.ProcessorCustomerID, nil
	}
	id, err := e.gateway.EnsureCustomer(ctx, payment.CustomerRequest{UserID: profile.UserID, Email: profile.Email})
	if err != nil {
		return "", apperr.ChargeFailed(err)
	}
	if err := e.store.Billing().SetCustomerID(ctx, profile.UserID, id); err != nil {
		return "", err
	}
	return id, nil
}

// PreferredMethod picks the newest non-backup method, else the newest of any.
// methods must be ordered newest first.
func PreferredMethod(methods []model.SavedPaymentMethod) *model.SavedPaymentMethod {
	for i := range methods {
		if !methods[i].IsBackup {
			return &methods[i]
		}
	}
	if len(methods) > 0 {
		return &methods[0]
	}
	return nil
}

// reserve writes the processing payment under the stage lock. It returns the
// already live payment and false when another request got there first.
func (e *Escrow) reserve(ctx context.Context, p *model.Project, s *model.Stage) (*model.Payment, bool, error) {
	var (
		pay      *model.Payment
		inserted bool
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.Stages().GetForUpdate(ctx, s.ID); err != nil {
			return err
		}
		live, err := tx.Payments().FindLiveForStage(ctx, s.ID, model.MethodCard)
		if err != nil {
			return err
		}
		if live != nil {
			pay = live
			return nil
		}

		failed, err := tx.Payments().CountFailedForStage(ctx, s.ID, model.MethodCard)
		if err != nil {
			return err
		}
		stageID := s.ID
		payer := p.HomeownerID
		key := IdempotencyKey(s.ID, failed+1)
		pay = &model.Payment{
			ProjectID:      p.ID,
			StageID:        &stageID,
			PayerID:        &payer,
			PayeeID:        p.ContractorID,
			Amount:         s.EstimatedCost,
			Currency:       e.currency,
			Status:         model.PaymentProcessing,
			Method:         model.MethodCard,
			IdempotencyKey: &key,
		}
		inserted, err = tx.Payments().InsertIfNoLive(ctx, pay)
		if err != nil {
			return err
		}
		if !inserted {
			pay, err = tx.Payments().FindLiveForStage(ctx, s.ID, model.MethodCard)
			if err != nil {
				return err
			}
			if pay == nil {
				return errors.New("live payment vanished after insert conflict")
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("reserve escrow payment for stage %d: %w", s.ID, err)
	}
	return pay, inserted, nil
}

// recordFailure marks declines and never-sent charges as failed and leaves
// unknown outcomes processing.
func (e *Escrow) recordFailure(ctx context.Context, log *zap.Logger, pay *model.Payment, chargeErr error) error {
	if payment.IsNotSent(chargeErr) {
		reason := "not_sent: " + chargeErr.Error()
		if err := e.store.Payments().UpdateOutcome(ctx, pay.ID, model.PaymentFailed, nil, &reason); err != nil {
			log.Error("Failed to record unsent charge", zap.Error(err))
		}
		metrics.IncrementEscrowCharge("not_sent")
		log.Warn("Escrow charge never reached the processor", zap.Error(chargeErr))
		return apperr.ProcessorUnavailable(chargeErr)
	}

	decline, ok := payment.AsDecline(chargeErr)
	if !ok {
		log.Warn("Escrow charge outcome unknown, leaving payment processing", zap.Error(chargeErr))
		metrics.IncrementEscrowCharge("unknown")
		return apperr.ChargeFailed(chargeErr)
	}

	var txnID *string
	if decline.TransactionID != "" {
		txnID = &decline.TransactionID
	}
	reason := decline.Code
	if decline.Reason != "" {
		reason = decline.Code + ": " + decline.Reason
	}
	if err := e.store.Payments().UpdateOutcome(ctx, pay.ID, model.PaymentFailed, txnID, &reason); err != nil {
		log.Error("Failed to record declined charge", zap.Error(err))
	}
	metrics.IncrementEscrowCharge("declined")
	log.Warn("Escrow charge declined", zap.String("code", decline.Code), zap.String("reason", decline.Reason))

	if decline.AuthenticationRequired() {
		return apperr.AuthenticationRequired(chargeErr)
	}
	return apperr.ChargeFailed(chargeErr)
}
