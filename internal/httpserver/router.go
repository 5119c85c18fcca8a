package httpserver

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"stagepay/internal/handler"
	"stagepay/pkg/otel"
	"stagepay/pkg/rbac"
)

// Pinger reports whether a dependency can serve traffic.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Connected is satisfied by the MQ publisher.
type Connected interface {
	IsConnected() bool
}

type Handlers struct {
	Project *handler.ProjectHandler
	Dispute *handler.DisputeHandler
	Payment *handler.PaymentHandler
	Admin   *handler.AdminHandler
}

func NewRouter(h Handlers, jwtSecret string, db Pinger, mq Connected, logger *zap.Logger) (*gin.Engine, error) {
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery(), otel.GinMiddleware(), AccessLog(logger))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}

		if mq != nil && !mq.IsConnected() {
			c.JSON(500, gin.H{"status": "mq_not_ready"})
			return
		}

		c.JSON(200, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public: authenticated by the processor signature
	r.POST("/webhooks/payments", h.Payment.Webhook)

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(jwtSecret))
	{
		api.GET("/projects/:id", h.Project.GetProject)
		api.GET("/projects/:id/stages", h.Project.ListStages)
		api.GET("/projects/:id/payments", h.Project.ListPayments)
		api.POST("/projects/:id/stages/:stageId/status", h.Project.TransitionStage)
		api.GET("/projects/:id/stages/:stageId/documentation", h.Project.GetDocumentation)
		api.POST("/projects/:id/stages/:stageId/documentation/:kind", h.Project.AddDocumentation)
		api.DELETE("/projects/:id/stages/:stageId/documentation/:kind/:itemId", h.Project.RemoveDocumentation)

		api.POST("/projects/:id/disputes", h.Dispute.Create)
		api.GET("/projects/:id/disputes", h.Dispute.ListByProject)
		api.GET("/disputes/:id", h.Dispute.Get)
		api.PATCH("/disputes/:id/status", h.Dispute.UpdateStatus)

		api.PUT("/projects/:id/payment-link", h.Payment.SetPaymentLink)
		api.POST("/projects/:id/manual-payment/declare", h.Payment.DeclarePayment)
		api.POST("/projects/:id/manual-payment/confirm", h.Payment.ConfirmPayment)

		api.POST("/billing/setup-intent", h.Payment.CreateSetupIntent)
		api.POST("/billing/payment-methods", h.Payment.AttachPaymentMethod)
		api.GET("/billing/payment-methods", h.Payment.ListPaymentMethods)

		override := RequirePermission(rbac.PermissionOverrideProject)
		api.POST("/admin/projects/:id/activate", override, h.Admin.ActivateProject)
		api.POST("/admin/projects/:id/deactivate", override, h.Admin.DeactivateProject)

		replay := RequirePermission(rbac.PermissionReplayOutbox)
		api.POST("/admin/outbox/replay", replay, h.Admin.ReplayOutboxEvent)
		api.POST("/admin/outbox/replay-failed", replay, h.Admin.ReplayFailedEvents)
	}

	return r, nil
}
