package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"bladi-assistant/internal/ai"
	appsvc "bladi-assistant/internal/app"
	"bladi-assistant/internal/bootstrap"
	"bladi-assistant/internal/cache"
	"bladi-assistant/internal/chatbot"
	"bladi-assistant/internal/platform/rabbitmq"
	"bladi-assistant/internal/repository"
	"bladi-assistant/internal/transport/http/handler"
	"bladi-assistant/internal/transport/http/middleware"
)

type Handlers struct {
	Auth      *handler.AuthHandler
	Chat      *handler.ChatHandler
	Feedback  *handler.FeedbackHandler
	Analytics *handler.AnalyticsHandler
	Health    gin.HandlerFunc
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	chatCfg := app.Config.Chatbot
	userRepo := repository.NewUserRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	feedbackRepo := repository.NewFeedbackRepository(app.MySQL)
	analyticsRepo := repository.NewAnalyticsRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	responder := chatbot.NewResponder(ai.NewGeminiClient(), chatCfg, app.Logger)
	chatService := appsvc.NewChatService(sessionRepo, messageRepo, analyticsRepo, responder, chatCfg.HistoryScanLimit, app.Logger).
		WithHistoryCache(cache.NewHistoryCache(app.Redis, time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second)).
		WithTurnPublisher(rabbitmq.NewAnalyticsPublisher(app.MQConn, app.Config.RabbitMQ.AnalyticsQueue))
	feedbackService := appsvc.NewFeedbackService(messageRepo, feedbackRepo, chatCfg.FeedbackEnabled)
	analyticsService := appsvc.NewAnalyticsService(analyticsRepo, chatCfg.AnalyticsWindowDays)

	Register(router, app.Config.Auth.JWTSecret, Handlers{
		Auth: handler.NewAuthHandler(authService),
		Chat: handler.NewChatHandler(chatService, handler.Widget{
			WelcomeMessage:  chatCfg.WelcomeMessage,
			FeedbackEnabled: chatCfg.FeedbackEnabled,
		}),
		Feedback:  handler.NewFeedbackHandler(feedbackService),
		Analytics: handler.NewAnalyticsHandler(analyticsService),
		Health:    handler.NewHealthHandler(app).Check,
	})
	return router
}

// Register mounts every route on router. Nil handlers are skipped.
func Register(router *gin.Engine, jwtSecret string, h Handlers) {
	if h.Health != nil {
		router.GET("/healthz", h.Health)
	}

	v1 := router.Group("/api/v1")
	if h.Auth != nil {
		authGroup := v1.Group("/auth")
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.GET("/me", middleware.AuthJWT(jwtSecret), h.Auth.Me)
	}

	chatGroup := v1.Group("/chat")
	if h.Chat != nil {
		chatGroup.GET("/welcome", h.Chat.Welcome)
		chatGroup.POST("/turn", middleware.OptionalJWT(jwtSecret), h.Chat.Turn)
		chatGroup.GET("/sessions", middleware.AuthJWT(jwtSecret), h.Chat.ListSessions)
		chatGroup.GET("/sessions/:session_id/messages", middleware.AuthJWT(jwtSecret), h.Chat.SessionMessages)
	}
	if h.Feedback != nil {
		chatGroup.POST("/feedback", h.Feedback.Record)
	}

	if h.Analytics != nil {
		adminGroup := v1.Group("/admin")
		adminGroup.Use(middleware.AuthJWT(jwtSecret), middleware.RequireStaff())
		adminGroup.GET("/analytics", h.Analytics.Summary)
	}
}
