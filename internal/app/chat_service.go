package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"bladi-assistant/internal/chatbot"
	"bladi-assistant/internal/model"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrMessageEmpty    = errors.New("message content is empty")
)

const sessionsPerPage = 10

type SessionStore interface {
	Create(ctx context.Context, session *model.Session) error
	GetActiveByKey(ctx context.Context, key string) (*model.Session, error)
	GetByKey(ctx context.Context, key string) (*model.Session, error)
	Touch(ctx context.Context, session *model.Session, at time.Time) error
	ListByUserID(ctx context.Context, userID uint, offset, limit int) ([]model.Session, int64, error)
}

type MessageStore interface {
	Create(ctx context.Context, message *model.Message) error
	GetByID(ctx context.Context, id uint) (*model.Message, error)
	ListBySessionID(ctx context.Context, sessionID uint, limit int) ([]model.Message, error)
	ListRecentBySessionID(ctx context.Context, sessionID uint, limit int) ([]model.Message, error)
}

// HistoryCache holds each session's recent window under a version that
// Invalidate bumps. SetRecent must drop the write when the version moved
// since the matching GetRecent.
type HistoryCache interface {
	GetRecent(ctx context.Context, sessionID uint) (messages []model.Message, version int64, hit bool, err error)
	SetRecent(ctx context.Context, sessionID uint, version int64, messages []model.Message) error
	Invalidate(ctx context.Context, sessionID uint) error
}

type TurnPublisher interface {
	PublishTurn(ctx context.Context, event model.TurnEvent) error
}

type Responder interface {
	Respond(ctx context.Context, turn chatbot.Turn) chatbot.Reply
}

type ChatService struct {
	sessions     SessionStore
	messages     MessageStore
	analytics    AnalyticsStore
	responder    Responder
	historyCache HistoryCache
	publisher    TurnPublisher
	scanLimit    int
	now          func() time.Time
	logger       *slog.Logger
}

type TurnInput struct {
	Message    string
	SessionKey string
	UserID     *uint
	UserAgent  string
	IPAddress  string
}

type TurnResult struct {
	Response       string         `json:"response"`
	SessionID      string         `json:"session_id"`
	MessageID      uint           `json:"message_id"`
	ResponseTimeMs int64          `json:"response_time"`
	Category       model.Category `json:"category"`
}

type SessionPage struct {
	Sessions []model.Session `json:"sessions"`
	Total    int64           `json:"total_sessions"`
	Page     int             `json:"page"`
	PerPage  int             `json:"per_page"`
}

func NewChatService(
	sessions SessionStore,
	messages MessageStore,
	analytics AnalyticsStore,
	responder Responder,
	scanLimit int,
	logger *slog.Logger,
) *ChatService {
	if scanLimit <= 0 {
		scanLimit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		sessions:  sessions,
		messages:  messages,
		analytics: analytics,
		responder: responder,
		scanLimit: scanLimit,
		now:       time.Now,
		logger:    logger.With("component", "chat_service"),
	}
}

func (s *ChatService) WithHistoryCache(cache HistoryCache) *ChatService {
	s.historyCache = cache
	return s
}

// WithTurnPublisher routes analytics increments through a queue. Direct
// increments remain the fallback when publishing fails.
func (s *ChatService) WithTurnPublisher(publisher TurnPublisher) *ChatService {
	s.publisher = publisher
	return s
}

func (s *ChatService) WithClock(now func() time.Time) *ChatService {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *ChatService) HandleTurn(ctx context.Context, input TurnInput) (*TurnResult, error) {
	content := strings.TrimSpace(input.Message)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, created, err := s.resolveSession(ctx, input)
	if err != nil {
		return nil, err
	}

	// Snapshot before appending so the new question is not compared to itself.
	history, err := s.recentHistory(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	category := chatbot.Classify(content)
	userMessage := &model.Message{
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   content,
		Category:  category,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, userMessage); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, session.ID)

	started := time.Now()
	reply := s.responder.Respond(ctx, chatbot.Turn{
		UserText:   content,
		Registered: session.HasUser(),
		History:    history,
	})
	elapsed := time.Since(started).Milliseconds()
	if !reply.Generated() {
		s.logger.Info("turn answered without generation",
			"session_id", session.SessionKey,
			"outcome", reply.Outcome,
		)
	}

	botMessage := &model.Message{
		SessionID:      session.ID,
		Role:           model.RoleBot,
		Content:        reply.Text,
		Category:       category,
		ResponseTimeMs: &elapsed,
		CreatedAt:      s.now(),
	}
	if err := s.messages.Create(ctx, botMessage); err != nil {
		return nil, err
	}
	s.invalidateHistory(ctx, session.ID)

	if err := s.recordTurn(ctx, model.TurnEvent{
		Date:           s.now().Format(model.DateLayout),
		Category:       category,
		ResponseTimeMs: elapsed,
		NewSession:     created,
	}); err != nil {
		return nil, err
	}

	return &TurnResult{
		Response:       reply.Text,
		SessionID:      session.SessionKey,
		MessageID:      botMessage.ID,
		ResponseTimeMs: elapsed,
		Category:       category,
	}, nil
}

// ListUserSessions pages through the sessions owned by userID, newest first.
func (s *ChatService) ListUserSessions(ctx context.Context, userID uint, page int) (*SessionPage, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	if page <= 0 {
		page = 1
	}
	sessions, total, err := s.sessions.ListByUserID(ctx, userID, (page-1)*sessionsPerPage, sessionsPerPage)
	if err != nil {
		return nil, err
	}
	return &SessionPage{
		Sessions: sessions,
		Total:    total,
		Page:     page,
		PerPage:  sessionsPerPage,
	}, nil
}

// SessionMessages returns the transcript of a session owned by userID.
func (s *ChatService) SessionMessages(ctx context.Context, userID uint, sessionKey string, limit int) ([]model.Message, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if userID == 0 || sessionKey == "" {
		return nil, ErrInvalidInput
	}
	session, err := s.sessions.GetByKey(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if session == nil || session.UserID == nil || *session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s.messages.ListBySessionID(ctx, session.ID, limit)
}

func (s *ChatService) resolveSession(ctx context.Context, input TurnInput) (*model.Session, bool, error) {
	if key := strings.TrimSpace(input.SessionKey); key != "" {
		session, err := s.sessions.GetActiveByKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if session != nil {
			if err := s.sessions.Touch(ctx, session, s.now()); err != nil {
				return nil, false, err
			}
			return session, false, nil
		}
	}

	var userID *uint
	if input.UserID != nil && *input.UserID != 0 {
		id := *input.UserID
		userID = &id
	}
	now := s.now()
	session := &model.Session{
		SessionKey: uuid.NewString(),
		UserID:     userID,
		UserAgent:  truncate(input.UserAgent, 512),
		IPAddress:  input.IPAddress,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, false, err
	}
	return session, true, nil
}

func (s *ChatService) recentHistory(ctx context.Context, sessionID uint) (chatbot.History, error) {
	var version int64
	cacheUsable := s.historyCache != nil
	if cacheUsable {
		cached, v, hit, err := s.historyCache.GetRecent(ctx, sessionID)
		switch {
		case err != nil:
			s.logger.Debug("history cache read failed", "error", err)
			cacheUsable = false
		case hit:
			return chatbot.History{Messages: cached}, nil
		default:
			version = v
		}
	}

	messages, err := s.messages.ListRecentBySessionID(ctx, sessionID, s.scanLimit)
	if err != nil {
		return chatbot.History{}, err
	}
	if cacheUsable {
		if err := s.historyCache.SetRecent(ctx, sessionID, version, messages); err != nil {
			s.logger.Debug("history cache write failed", "error", err)
		}
	}
	return chatbot.History{Messages: messages}, nil
}

func (s *ChatService) invalidateHistory(ctx context.Context, sessionID uint) {
	if s.historyCache == nil {
		return
	}
	if err := s.historyCache.Invalidate(ctx, sessionID); err != nil {
		s.logger.Warn("history cache invalidate failed", "session", sessionID, "error", err)
	}
}

func (s *ChatService) recordTurn(ctx context.Context, event model.TurnEvent) error {
	if s.publisher != nil {
		err := s.publisher.PublishTurn(ctx, event)
		if err == nil {
			return nil
		}
		s.logger.Warn("publish turn event failed, incrementing directly", "error", err)
	}
	if err := s.analytics.IncrementDaily(ctx, event); err != nil {
		return fmt.Errorf("record turn analytics failed: %w", err)
	}
	return nil
}

// truncate keeps at most limit runes.
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
