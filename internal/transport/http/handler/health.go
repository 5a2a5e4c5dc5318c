package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type chatbotStatus struct {
	Enabled         bool   `json:"enabled"`
	Model           string `json:"model"`
	Configured      bool   `json:"configured"`
	FeedbackEnabled bool   `json:"feedback_enabled"`
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mysqlStatus := h.checkMySQL(ctx)
	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()

	// A missing provider key degrades replies to the fallback text but does
	// not make the service unhealthy.
	allOK := mysqlStatus.OK && redisStatus.OK && rmqStatus.OK
	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": gin.H{
			"mysql":    mysqlStatus,
			"redis":    redisStatus,
			"rabbitmq": rmqStatus,
		},
		"chatbot":         h.chatbotStatus(),
		"analytics_queue": h.app.Config.RabbitMQ.AnalyticsQueue,
	})
}

func (h *HealthHandler) chatbotStatus() chatbotStatus {
	cfg := h.app.Config.Chatbot
	return chatbotStatus{
		Enabled:         cfg.Enabled,
		Model:           cfg.Model,
		Configured:      strings.TrimSpace(cfg.APIKey) != "",
		FeedbackEnabled: cfg.FeedbackEnabled,
	}
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil || h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	if h.app.AnalyticsWorker == nil {
		return dependencyStatus{OK: false, Message: "analytics worker not running"}
	}
	return dependencyStatus{OK: true}
}
