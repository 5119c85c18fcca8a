package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stagepay/internal/apperr"
	"stagepay/internal/model"
	"stagepay/pkg/logger"
)

// ActorKey is where the auth middleware stores the caller.
const ActorKey = "actor"

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Reasons []string `json:"reasons,omitempty"`
}

// respondError maps the service error taxonomy onto HTTP statuses.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	var (
		verr  *apperr.ValidationError
		aerr  *apperr.AuthorizationError
		perr  *apperr.PreconditionError
		nerr  *apperr.NotFoundError
		procE *apperr.ProcessorError
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, errorBody{Error: verr.Error(), Code: "validation_failed"})
	case errors.As(err, &aerr):
		c.JSON(http.StatusForbidden, errorBody{Error: aerr.Error(), Code: "forbidden"})
	case errors.As(err, &perr):
		c.JSON(http.StatusConflict, errorBody{Error: perr.Message, Code: "precondition_failed", Reasons: perr.Reasons})
	case errors.As(err, &nerr):
		c.JSON(http.StatusNotFound, errorBody{Error: nerr.Error(), Code: "not_found"})
	case errors.As(err, &procE):
		status := http.StatusPaymentRequired
		if procE.Code == apperr.ErrProcessorUnavailable.Code {
			status = http.StatusBadGateway
		}
		c.JSON(status, errorBody{Error: procE.Message, Code: procE.Code})
	default:
		logger.WithTrace(c.Request.Context(), log).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, errorBody{Error: "internal error", Code: "internal"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorBody{Error: message, Code: "validation_failed"})
}

// actorFrom returns the authenticated caller; the auth middleware guarantees it.
func actorFrom(c *gin.Context) model.Actor {
	if v, ok := c.Get(ActorKey); ok {
		if a, ok := v.(model.Actor); ok {
			return a
		}
	}
	return model.Actor{}
}

// paramID parses a positive path id, answering 400 itself when it is not one.
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
