package model

import "time"

type TeamMember struct {
	ID         int64     `json:"id"`
	StageID    int64     `json:"stage_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	PhotoURL   *string   `json:"photo_url,omitempty"`
	InvoiceURL *string   `json:"invoice_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type Material struct {
	ID         int64     `json:"id"`
	StageID    int64     `json:"stage_id"`
	Name       string    `json:"name"`
	Quantity   string    `json:"quantity"`
	PhotoURL   *string   `json:"photo_url,omitempty"`
	ReceiptURL *string   `json:"receipt_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

type MediaItem struct {
	ID        int64     `json:"id"`
	StageID   int64     `json:"stage_id"`
	Kind      MediaKind `json:"kind"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID        int64     `json:"id"`
	StageID   int64     `json:"stage_id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// StageDocumentation is everything recorded against one stage.
type StageDocumentation struct {
	TeamMembers []TeamMember `json:"team_members"`
	Materials   []Material   `json:"materials"`
	Media       []MediaItem  `json:"media"`
	Documents   []Document   `json:"documents"`
}
