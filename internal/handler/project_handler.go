package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagepay/internal/model"
	"stagepay/internal/repository"
	"stagepay/internal/service/stagedoc"
	"stagepay/internal/service/query"
	"stagepay/internal/service/stage"
	"stagepay/pkg/logger"
)

type ProjectHandler struct {
	stages *stage.Service
	query  *query.Service
	docs   *stagedoc.Service
	logger *zap.Logger
}

func NewProjectHandler(stages *stage.Service, query *query.Service, docs *stagedoc.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{stages: stages, query: query, docs: docs, logger: logger}
}

type transitionRequest struct {
	Status string `json:"status" binding:"required,stage_status"`
}

// TransitionStage handles POST /projects/:id/stages/:stageId/status
func (h *ProjectHandler) TransitionStage(c *gin.Context) {
	projectID, stageID, ok := stageParams(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status must be one of not_started, in_progress, completed, blocked")
		return
	}

	actor := actorFrom(c)
	st, err := h.stages.RequestTransition(c.Request.Context(), projectID, stageID, actor, model.StageStatus(req.Status))
	if err != nil {
		logger.WithTrace(c.Request.Context(), h.logger).Info("Stage transition rejected",
			zap.Int64("project_id", projectID),
			zap.Int64("stage_id", stageID),
			zap.String("target", req.Status),
			zap.Error(err),
		)
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetProject handles GET /projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	p, err := h.query.GetProject(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListStages handles GET /projects/:id/stages
func (h *ProjectHandler) ListStages(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	stages, err := h.query.ListStages(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": stages})
}

// ListPayments handles GET /projects/:id/payments
func (h *ProjectHandler) ListPayments(c *gin.Context) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return
	}
	payments, err := h.query.ListPayments(c.Request.Context(), actorFrom(c), projectID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments})
}

// GetDocumentation handles GET /projects/:id/stages/:stageId/documentation
func (h *ProjectHandler) GetDocumentation(c *gin.Context) {
	projectID, stageID, ok := stageParams(c)
	if !ok {
		return
	}
	doc, err := h.docs.Get(c.Request.Context(), actorFrom(c), projectID, stageID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type teamMemberRequest struct {
	Name       string  `json:"name" binding:"required"`
	Role       string  `json:"role" binding:"required"`
	PhotoURL   *string `json:"photo_url" binding:"omitempty,http_url"`
	InvoiceURL *string `json:"invoice_url" binding:"omitempty,http_url"`
}

type materialRequest struct {
	Name       string  `json:"name" binding:"required"`
	Quantity   string  `json:"quantity"`
	PhotoURL   *string `json:"photo_url" binding:"omitempty,http_url"`
	ReceiptURL *string `json:"receipt_url" binding:"omitempty,http_url"`
}

type mediaRequest struct {
	Kind    string `json:"kind" binding:"required,oneof=photo video"`
	URL     string `json:"url" binding:"required,http_url"`
	Caption string `json:"caption"`
}

type documentRequest struct {
	Title string `json:"title" binding:"required"`
	URL   string `json:"url" binding:"required,http_url"`
}

// AddDocumentation handles POST /projects/:id/stages/:stageId/documentation/:kind
func (h *ProjectHandler) AddDocumentation(c *gin.Context) {
	projectID, stageID, ok := stageParams(c)
	if !ok {
		return
	}
	kind, err := stagedoc.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx, actor := c.Request.Context(), actorFrom(c)
	var created any
	switch kind {
	case repository.DocTeamMember:
		var req teamMemberRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err = h.docs.AddTeamMember(ctx, actor, projectID, stageID, model.TeamMember{
			Name: req.Name, Role: req.Role, PhotoURL: req.PhotoURL, InvoiceURL: req.InvoiceURL,
		})
	case repository.DocMaterial:
		var req materialRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err = h.docs.AddMaterial(ctx, actor, projectID, stageID, model.Material{
			Name: req.Name, Quantity: req.Quantity, PhotoURL: req.PhotoURL, ReceiptURL: req.ReceiptURL,
		})
	case repository.DocMedia:
		var req mediaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err = h.docs.AddMedia(ctx, actor, projectID, stageID, model.MediaItem{
			Kind: model.MediaKind(req.Kind), URL: req.URL, Caption: req.Caption,
		})
	default:
		var req documentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		created, err = h.docs.AddDocument(ctx, actor, projectID, stageID, model.Document{Title: req.Title, URL: req.URL})
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// RemoveDocumentation handles DELETE /projects/:id/stages/:stageId/documentation/:kind/:itemId
func (h *ProjectHandler) RemoveDocumentation(c *gin.Context) {
	projectID, stageID, ok := stageParams(c)
	if !ok {
		return
	}
	itemID, ok := paramID(c, "itemId")
	if !ok {
		return
	}
	kind, err := stagedoc.ParseKind(c.Param("kind"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.docs.Remove(c.Request.Context(), actorFrom(c), projectID, stageID, kind, itemID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func stageParams(c *gin.Context) (int64, int64, bool) {
	projectID, ok := paramID(c, "id")
	if !ok {
		return 0, 0, false
	}
	stageID, ok := paramID(c, "stageId")
	if !ok {
		return 0, 0, false
	}
	return projectID, stageID, true
}
