package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/service"
	"github.com/weiawesome/wes-io-collab/pkg/log"
	"github.com/weiawesome/wes-io-collab/pkg/response"
)

// Handler handles HTTP requests for the completion service.
type Handler struct {
	completionService service.CompletionService
}

// NewHandler creates a new HTTP handler.
func NewHandler(completionService service.CompletionService) *Handler {
	return &Handler{
		completionService: completionService,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/complete", h.Complete)
	}
}

// Complete handles POST /api/complete.
func (h *Handler) Complete(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		l.Warn().Err(err).Msg("invalid completion request")
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.completionService.Complete(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidOffset) {
			response.BadRequest(c, err.Error())
			return
		}
		l.Error().Err(err).Msg("completion failed")
		c.Error(err)
		response.BadGateway(c, "completion backend unavailable")
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CORS allows any origin, matching browser editors served from anywhere.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, "+log.HeaderParticipantID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
