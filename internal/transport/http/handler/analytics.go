package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/app"
	"bladi-assistant/internal/transport/http/response"
)

type AnalyticsService interface {
	Summary(ctx context.Context, days int) (*app.AnalyticsSummary, error)
}

type AnalyticsHandler struct {
	analyticsService AnalyticsService
}

func NewAnalyticsHandler(analyticsService AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analyticsService: analyticsService}
}

func (h *AnalyticsHandler) Summary(c *gin.Context) {
	days := 0
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid days")
			return
		}
		days = parsed
	}

	summary, err := h.analyticsService.Summary(c.Request.Context(), days)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "days must be at most 366")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "load analytics failed")
		}
		return
	}

	response.OK(c, summary)
}
