package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/internal/service/dispute"
)

type DisputeHandler struct {
	disputes *dispute.Service
	logger   *zap.Logger
}

func NewDisputeHandler(disputes *dispute.Service, logger *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, logger: logger}
}

type createDisputeRequest struct {
	StageID     int64    `json:"stage_id" binding:"required,gt=0"`
	Reasons     []string `json:"reasons" binding:"required,min=1"`
	Description string   `json:"description"`
}

type disputeStatusRequest struct {
	Status     string  `json:"status" binding:"required,dispute_status"`
	Resolution *string `json:"resolution"`
}

// Create handles POST /projects/:id/disputes
func (h *DisputeHandler) Create(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req createDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "stage_id and at least one reason are required")
		return
	}

	d, err := h.disputes.Create(c.Request.Context(), actorFrom(c), dispute.CreateRequest{
		ProjectID:   projectID,
		StageID:     req.StageID,
		Reasons:     req.Reasons,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListByProject handles GET /projects/:id/disputes
func (h *DisputeHandler) ListByProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	disputes, err := h.disputes.ListByProject(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if disputes == nil {
		disputes = []model.StageDispute{}
	}
	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// Get handles GET /disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	d, err := h.disputes.Get(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateStatus handles PATCH /disputes/:id/status
func (h *DisputeHandler) UpdateStatus(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req disputeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status must be one of open, in_review, resolved")
		return
	}
	d, err := h.disputes.UpdateStatus(c.Request.Context(), actorFrom(c), id, dispute.StatusUpdate{
		Status:     model.DisputeStatus(req.Status),
		Resolution: req.Resolution,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
