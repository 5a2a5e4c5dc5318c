package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/app"
	"bladi-assistant/internal/model"
	"bladi-assistant/internal/transport/http/middleware"
	"bladi-assistant/internal/transport/http/response"
)

type ChatService interface {
	HandleTurn(ctx context.Context, input app.TurnInput) (*app.TurnResult, error)
	ListUserSessions(ctx context.Context, userID uint, page int) (*app.SessionPage, error)
	SessionMessages(ctx context.Context, userID uint, sessionKey string, limit int) ([]model.Message, error)
}

// Widget is what the chat widget needs before the first turn.
type Widget struct {
	WelcomeMessage  string `json:"welcome_message"`
	FeedbackEnabled bool   `json:"feedback_enabled"`
}

type ChatHandler struct {
	chatService ChatService
	widget      Widget
}

type TurnRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id" binding:"max=36"`
}

func NewChatHandler(chatService ChatService, widget Widget) *ChatHandler {
	return &ChatHandler{chatService: chatService, widget: widget}
}

func (h *ChatHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	input := app.TurnInput{
		Message:    req.Message,
		SessionKey: req.SessionID,
		UserAgent:  c.Request.UserAgent(),
		IPAddress:  c.ClientIP(),
	}
	if userID, ok := middleware.UserID(c); ok {
		input.UserID = &userID
	}

	result, err := h.chatService.HandleTurn(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrMessageEmpty):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "message cannot be empty")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "chat turn failed")
		}
		return
	}

	response.OK(c, result)
}

func (h *ChatHandler) Welcome(c *gin.Context) {
	response.OK(c, h.widget)
}

func (h *ChatHandler) ListSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid page")
			return
		}
		page = parsed
	}

	sessions, err := h.chatService.ListUserSessions(c.Request.Context(), userID, page)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list sessions failed")
		}
		return
	}

	response.OK(c, sessions)
}

func (h *ChatHandler) SessionMessages(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}

	messages, err := h.chatService.SessionMessages(c.Request.Context(), userID, c.Param("session_id"), limit)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrSessionNotFound):
			response.Error(c, http.StatusNotFound, response.CodeSessionNotFound, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "get messages failed")
		}
		return
	}

	response.OK(c, messages)
}
