package mq

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventStageUpdated   = "stage.updated"
	EventPaymentUpdated = "payment.updated"
)

// ProjectTopic is the routing key of every event about one project.
func ProjectTopic(projectID int64) string {
	return fmt.Sprintf("project.%d", projectID)
}

type StageUpdatedPayload struct {
	Event          string          `json:"event"`
	ProjectID      int64           `json:"project_id"`
	StageID        int64           `json:"stage_id"`
	Status         string          `json:"status"`
	PreviousStatus string          `json:"previous_status"`
	Progress       int             `json:"progress"`
	Spent          decimal.Decimal `json:"spent"`
	CurrentStageID *int64          `json:"current_stage_id,omitempty"`
	ActorID        int64           `json:"actor_id"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

type PaymentUpdatedPayload struct {
	Event         string          `json:"event"`
	ProjectID     int64           `json:"project_id"`
	PaymentID     int64           `json:"payment_id"`
	StageID       *int64          `json:"stage_id,omitempty"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	TransactionID string          `json:"transaction_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
