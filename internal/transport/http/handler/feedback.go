package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/app"
	"bladi-assistant/internal/model"
	"bladi-assistant/internal/transport/http/response"
)

type FeedbackService interface {
	Record(ctx context.Context, input app.FeedbackInput) (*model.Feedback, error)
}

type FeedbackHandler struct {
	feedbackService FeedbackService
}

type FeedbackRequest struct {
	MessageID    uint   `json:"message_id" binding:"required,gt=0"`
	FeedbackType string `json:"feedback_type" binding:"required"`
	Comment      string `json:"comment" binding:"max=2000"`
}

func NewFeedbackHandler(feedbackService FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

func (h *FeedbackHandler) Record(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "message_id and feedback_type are required")
		return
	}

	feedback, err := h.feedbackService.Record(c.Request.Context(), app.FeedbackInput{
		MessageID: req.MessageID,
		Kind:      req.FeedbackType,
		Comment:   req.Comment,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidFeedbackKind):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidFeedback, err.Error())
		case errors.Is(err, app.ErrMessageNotFound):
			response.Error(c, http.StatusNotFound, response.CodeMessageNotFound, err.Error())
		case errors.Is(err, app.ErrFeedbackDisabled):
			response.Error(c, http.StatusForbidden, response.CodeFeedbackDisabled, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "record feedback failed")
		}
		return
	}

	response.OK(c, gin.H{
		"status":      "success",
		"feedback_id": feedback.ID,
	})
}
