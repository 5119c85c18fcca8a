package model

import "time"

type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeInReview DisputeStatus = "in_review"
	DisputeResolved DisputeStatus = "resolved"
)

func (s DisputeStatus) Valid() bool {
	return s == DisputeOpen || s == DisputeInReview || s == DisputeResolved
}

type StageDispute struct {
	ID           int64         `json:"id"`
	ProjectID    int64         `json:"project_id"`
	StageID      int64         `json:"stage_id"`
	HomeownerID  int64         `json:"homeowner_id"`
	ContractorID *int64        `json:"contractor_id,omitempty"`
	Reasons      []string      `json:"reasons"`
	Description  string        `json:"description,omitempty"`
	Status       DisputeStatus `json:"status"`
	Resolution   *string       `json:"resolution,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	InReviewAt   *time.Time    `json:"in_review_at,omitempty"`
	ResolvedAt   *time.Time    `json:"resolved_at,omitempty"`
	UpdatedAt    time.Time     `json:"updated_at"`
}
