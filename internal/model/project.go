package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectDraft          ProjectStatus = "draft"
	ProjectPendingPayment ProjectStatus = "pending_payment"
	ProjectActive         ProjectStatus = "active"
	ProjectPaused         ProjectStatus = "paused"
	ProjectCompleted      ProjectStatus = "completed"
	ProjectCancelled      ProjectStatus = "cancelled"
)

type ProjectType string

const (
	ProjectTypeGeneral        ProjectType = "general"
	ProjectTypeRenovation     ProjectType = "renovation"
	ProjectTypeInteriorDesign ProjectType = "interior_design"
)

// UsesEscrow reports whether starting a stage charges the homeowner's card.
func (t ProjectType) UsesEscrow() bool {
	return t == ProjectTypeRenovation || t == ProjectTypeInteriorDesign
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

type PaymentConfirmationStatus string

const (
	PaymentConfirmationNone      PaymentConfirmationStatus = "none"
	PaymentConfirmationDeclared  PaymentConfirmationStatus = "declared"
	PaymentConfirmationConfirmed PaymentConfirmationStatus = "confirmed"
)

// PhasePlanItem is one entry of the plan stages are materialized from.
type PhasePlanItem struct {
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Order         int             `json:"order"`
	EstimatedCost decimal.Decimal `json:"estimated_cost"`
}

type Project struct {
	ID                        int64                     `json:"id"`
	HomeownerID               int64                     `json:"homeowner_id"`
	ContractorID              *int64                    `json:"contractor_id,omitempty"`
	Title                     string                    `json:"title"`
	Status                    ProjectStatus             `json:"status"`
	ReviewStatus              ReviewStatus              `json:"review_status"`
	RiskLevel                 RiskLevel                 `json:"risk_level"`
	ProjectType               ProjectType               `json:"project_type"`
	Budget                    decimal.Decimal           `json:"budget"`
	Spent                     decimal.Decimal           `json:"spent"`
	Progress                  int                       `json:"progress"`
	CurrentStageID            *int64                    `json:"current_stage_id,omitempty"`
	PhasePlan                 []PhasePlanItem           `json:"phase_plan"`
	ExternalPaymentLink       *string                   `json:"external_payment_link,omitempty"`
	PaymentConfirmationStatus PaymentConfirmationStatus `json:"payment_confirmation_status"`
	PaymentDeclaredAt         *time.Time                `json:"payment_declared_at,omitempty"`
	PaymentConfirmedAt        *time.Time                `json:"payment_confirmed_at,omitempty"`
	StartDate                 *time.Time                `json:"start_date,omitempty"`
	CreatedAt                 time.Time                 `json:"created_at"`
	UpdatedAt                 time.Time                 `json:"updated_at"`
}

func (p *Project) IsHomeowner(userID int64) bool {
	return p.HomeownerID == userID
}

func (p *Project) IsContractor(userID int64) bool {
	return p.ContractorID != nil && *p.ContractorID == userID
}

// IsParticipant is true for the homeowner and the assigned contractor.
func (p *Project) IsParticipant(userID int64) bool {
	return p.IsHomeowner(userID) || p.IsContractor(userID)
}
