package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageBlocked    StageStatus = "blocked"
)

func (s StageStatus) Valid() bool {
	switch s {
	case StageNotStarted, StageInProgress, StageCompleted, StageBlocked:
		return true
	}
	return false
}

type Stage struct {
	ID             int64           `json:"id"`
	ProjectID      int64           `json:"project_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Order          int             `json:"order"`
	Status         StageStatus     `json:"status"` // not_started / in_progress / completed / blocked
	EstimatedCost  decimal.Decimal `json:"estimated_cost"`
	StartDate      *time.Time      `json:"start_date,omitempty"`
	CompletionDate *time.Time      `json:"completion_date,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
