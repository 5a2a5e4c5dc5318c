package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"bladi-assistant/internal/ai"
	"bladi-assistant/internal/chatbot"
	"bladi-assistant/internal/config"
	"bladi-assistant/internal/model"
)

var fixedNow = time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestChatService(store *memStore, responder Responder) *ChatService {
	return NewChatService(
		store,
		memMessages{store},
		memAnalytics{store},
		responder,
		20,
		quietLogger(),
	).WithClock(func() time.Time { return fixedNow })
}

const answer = "🇲🇦 Voici les informations demandées sur votre situation fiscale au Maroc."

func TestHandleTurnRejectsEmptyMessage(t *testing.T) {
	store := newMemStore()
	svc := newTestChatService(store, &scriptedResponder{})

	for _, input := range []string{"", "   ", "\n\t"} {
		_, err := svc.HandleTurn(context.Background(), TurnInput{Message: input, SessionKey: "abc"})
		if !errors.Is(err, ErrMessageEmpty) {
			t.Fatalf("HandleTurn(%q) err = %v, want ErrMessageEmpty", input, err)
		}
	}
	if len(store.messages) != 0 || len(store.sessions) != 0 {
		t.Errorf("nothing should be persisted, got %d messages / %d sessions", len(store.messages), len(store.sessions))
	}
}

func TestHandleTurnCreatesSessionAndMessages(t *testing.T) {
	store := newMemStore()
	responder := &scriptedResponder{reply: chatbot.Reply{Text: answer, Outcome: chatbot.OutcomeGenerated}}
	svc := newTestChatService(store, responder)

	result, err := svc.HandleTurn(context.Background(), TurnInput{
		Message:   "  Bonjour, question sur les impôts  ",
		UserAgent: "test-agent",
		IPAddress: "10.0.0.1",
	})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}

	if result.Response != answer {
		t.Errorf("Response = %q", result.Response)
	}
	if result.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if result.Category != model.CategoryFiscalite {
		t.Errorf("Category = %q", result.Category)
	}
	if len(store.sessions) != 1 || store.sessions[0].UserID != nil || store.sessions[0].IPAddress != "10.0.0.1" {
		t.Fatalf("unexpected sessions %+v", store.sessions)
	}
	if len(store.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(store.messages))
	}

	user, bot := store.messages[0], store.messages[1]
	if user.Role != model.RoleUser || user.Content != "Bonjour, question sur les impôts" {
		t.Errorf("unexpected user message %+v", user)
	}
	if user.ResponseTimeMs != nil {
		t.Error("user message should not carry a latency")
	}
	if bot.Role != model.RoleBot || bot.ID != result.MessageID {
		t.Errorf("unexpected bot message %+v (result id %d)", bot, result.MessageID)
	}
	if bot.Category != user.Category {
		t.Errorf("bot category %q != user category %q", bot.Category, user.Category)
	}
	if bot.ResponseTimeMs == nil || *bot.ResponseTimeMs != result.ResponseTimeMs {
		t.Errorf("bot latency not recorded: %v", bot.ResponseTimeMs)
	}

	if len(responder.turns) != 1 || len(responder.turns[0].History.Messages) != 0 {
		t.Errorf("first turn should see empty history, got %+v", responder.turns)
	}
	if responder.turns[0].Registered {
		t.Error("anonymous session should not be registered")
	}
}

func TestHandleTurnReusesActiveSession(t *testing.T) {
	store := newMemStore()
	responder := &scriptedResponder{reply: chatbot.Reply{Text: answer, Outcome: chatbot.OutcomeGenerated}}
	svc := newTestChatService(store, responder)
	ctx := context.Background()
	userID := uint(42)

	first, err := svc.HandleTurn(ctx, TurnInput{Message: "acheter un terrain", UserID: &userID})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	second, err := svc.HandleTurn(ctx, TurnInput{Message: "et pour la location", SessionKey: first.SessionID})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}

	if second.SessionID != first.SessionID {
		t.Errorf("session not reused: %q vs %q", first.SessionID, second.SessionID)
	}
	if len(store.sessions) != 1 {
		t.Errorf("sessions = %d, want 1", len(store.sessions))
	}
	if !responder.turns[1].Registered {
		t.Error("session owned by a user should be registered")
	}
	if got := len(responder.turns[1].History.Messages); got != 2 {
		t.Errorf("second turn history = %d messages, want the 2 from the first turn", got)
	}
	if store.analytics[fixedNow.Format(model.DateLayout)].TotalSessions != 1 {
		t.Error("only the first turn opens a session")
	}
}

func TestHandleTurnUnknownOrInactiveSessionStartsNew(t *testing.T) {
	store := newMemStore()
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}})
	ctx := context.Background()

	first, _ := svc.HandleTurn(ctx, TurnInput{Message: "bonjour"})
	store.sessions[0].IsActive = false

	second, err := svc.HandleTurn(ctx, TurnInput{Message: "bonjour encore", SessionKey: first.SessionID})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Error("inactive session must not be resumed")
	}

	third, err := svc.HandleTurn(ctx, TurnInput{Message: "salut", SessionKey: "does-not-exist"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if third.SessionID == "does-not-exist" || third.SessionID == "" {
		t.Errorf("unknown key should yield a fresh id, got %q", third.SessionID)
	}
}

func TestHandleTurnRepeatedQuestionEndToEnd(t *testing.T) {
	store := newMemStore()
	gen := &countingGenerator{text: answer}
	cfg := config.ChatbotConfig{
		Enabled:                 true,
		APIKey:                  "k",
		HistoryWindow:           3,
		QuestionRepeatThreshold: 0.7,
		AnswerRepeatThreshold:   0.6,
		MinResponseChars:        20,
		MaxResponseChars:        1000,
	}
	svc := newTestChatService(store, chatbot.NewResponder(gen, cfg, quietLogger()))
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, TurnInput{Message: "Comment déclarer mes revenus au Maroc"})
	if err != nil {
		t.Fatalf("first turn: %v", err)
	}
	if first.Response != answer {
		t.Fatalf("first turn should be generated, got %q", first.Response)
	}

	second, err := svc.HandleTurn(ctx, TurnInput{Message: "comment déclarer mes revenus au maroc", SessionKey: first.SessionID})
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if second.Response != chatbot.ClarificationText {
		t.Errorf("second turn should ask for clarification, got %q", second.Response)
	}
	if gen.calls != 1 {
		t.Errorf("provider calls = %d, want 1", gen.calls)
	}
}

func TestHandleTurnAnalyticsInvariant(t *testing.T) {
	store := newMemStore()
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}})
	ctx := context.Background()

	inputs := []string{
		"Question sur les impôts",
		"Je veux acheter un appartement à Casablanca",
		"placement en bourse",
		"renouveler passeport",
		"un diplôme reconnu",
		"Quel temps fait-il?",
		"Quel temps fait-il demain?",
	}

	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			if _, err := svc.HandleTurn(ctx, TurnInput{Message: text}); err != nil {
				t.Errorf("HandleTurn(%q): %v", text, err)
			}
		}(in)
	}
	wg.Wait()

	row := store.analytics[fixedNow.Format(model.DateLayout)]
	if row == nil {
		t.Fatal("no analytics row for today")
	}
	if row.TotalMessages != int64(len(inputs)) {
		t.Errorf("TotalMessages = %d, want %d", row.TotalMessages, len(inputs))
	}
	var sum int64
	for _, c := range model.Categories() {
		sum += row.CategoryCount(c)
	}
	if sum != row.TotalMessages {
		t.Errorf("category sum %d != total %d", sum, row.TotalMessages)
	}
	if row.OffTopicQuestions != 2 || row.ImmobilierQuestions != 1 {
		t.Errorf("unexpected distribution %+v", row)
	}
}

func TestHandleTurnPublisherFallback(t *testing.T) {
	store := newMemStore()
	publisher := &failingPublisher{}
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}}).WithTurnPublisher(publisher)

	if _, err := svc.HandleTurn(context.Background(), TurnInput{Message: "bonjour"}); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if publisher.calls != 1 {
		t.Errorf("publisher calls = %d", publisher.calls)
	}
	if row := store.analytics[fixedNow.Format(model.DateLayout)]; row == nil || row.TotalMessages != 1 {
		t.Error("failed publish should fall back to a direct increment")
	}
}

func TestHandleTurnPersistenceFailure(t *testing.T) {
	store := newMemStore()
	store.failMessages = errors.New("db down")
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}})

	if _, err := svc.HandleTurn(context.Background(), TurnInput{Message: "bonjour"}); err == nil {
		t.Fatal("expected persistence error")
	}

	store = newMemStore()
	store.failAnalytics = errors.New("db down")
	svc = newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}})
	if _, err := svc.HandleTurn(context.Background(), TurnInput{Message: "bonjour"}); err == nil {
		t.Fatal("expected analytics error")
	}
}

func TestHandleTurnUsesHistoryCache(t *testing.T) {
	store := newMemStore()
	cache := newMemHistoryCache()
	responder := &scriptedResponder{reply: chatbot.Reply{Text: answer}}
	svc := newTestChatService(store, responder).WithHistoryCache(cache)
	ctx := context.Background()

	first, err := svc.HandleTurn(ctx, TurnInput{Message: "bonjour"})
	if err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	if cache.invalidated != 2 {
		t.Errorf("invalidations = %d, want one per appended message", cache.invalidated)
	}

	cached := []model.Message{{ID: 99, Role: model.RoleUser, Content: "from cache"}}
	sessionID := store.sessions[0].ID
	_, version, _, _ := cache.GetRecent(ctx, sessionID)
	_ = cache.SetRecent(ctx, sessionID, version, cached)

	if _, err := svc.HandleTurn(ctx, TurnInput{Message: "encore", SessionKey: first.SessionID}); err != nil {
		t.Fatalf("HandleTurn: %v", err)
	}
	got := responder.turns[1].History.Messages
	if len(got) != 1 || got[0].ID != 99 {
		t.Errorf("history should come from cache, got %+v", got)
	}
}

func TestRecentHistoryDoesNotCacheStaleWindow(t *testing.T) {
	store := newMemStore()
	cache := newMemHistoryCache()
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}}).WithHistoryCache(cache)
	ctx := context.Background()

	const sessionID = 1
	messages := memMessages{store}
	_ = messages.Create(ctx, &model.Message{SessionID: sessionID, Role: model.RoleUser, Content: "premier"})

	// Another turn appends and invalidates after this read missed the cache.
	cache.onMiss = func() {
		cache.onMiss = nil
		_ = messages.Create(ctx, &model.Message{SessionID: sessionID, Role: model.RoleBot, Content: "réponse"})
		_ = cache.Invalidate(ctx, sessionID)
	}

	if _, err := svc.recentHistory(ctx, sessionID); err != nil {
		t.Fatalf("recentHistory: %v", err)
	}
	if _, _, hit, _ := cache.GetRecent(ctx, sessionID); hit {
		t.Fatal("a window read before the invalidation must not be cached")
	}

	history, err := svc.recentHistory(ctx, sessionID)
	if err != nil {
		t.Fatalf("recentHistory: %v", err)
	}
	if len(history.Messages) != 2 {
		t.Errorf("history = %d messages, want 2", len(history.Messages))
	}
	if cachedWindow, _, hit, _ := cache.GetRecent(ctx, sessionID); !hit || len(cachedWindow) != 2 {
		t.Errorf("fresh window should be cached, hit=%v len=%d", hit, len(cachedWindow))
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	agent := strings.Repeat("é", 600)
	got := truncate(agent, 512)
	if !utf8.ValidString(got) {
		t.Fatal("truncated user agent is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != 512 {
		t.Errorf("runes = %d, want 512", n)
	}
	if truncate("Mozilla/5.0", 512) != "Mozilla/5.0" {
		t.Error("short values must be kept as is")
	}
}

func TestListUserSessionsAndMessages(t *testing.T) {
	store := newMemStore()
	svc := newTestChatService(store, &scriptedResponder{reply: chatbot.Reply{Text: answer}})
	ctx := context.Background()
	owner, other := uint(1), uint(2)

	var last *TurnResult
	for i := 0; i < 12; i++ {
		result, err := svc.HandleTurn(ctx, TurnInput{Message: "bonjour", UserID: &owner})
		if err != nil {
			t.Fatalf("HandleTurn: %v", err)
		}
		last = result
	}

	page, err := svc.ListUserSessions(ctx, owner, 2)
	if err != nil {
		t.Fatalf("ListUserSessions: %v", err)
	}
	if page.Total != 12 || len(page.Sessions) != 2 || page.Page != 2 {
		t.Errorf("unexpected page %+v", page)
	}

	messages, err := svc.SessionMessages(ctx, owner, last.SessionID, 0)
	if err != nil {
		t.Fatalf("SessionMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Errorf("messages = %d, want 2", len(messages))
	}

	if _, err := svc.SessionMessages(ctx, other, last.SessionID, 0); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("other user err = %v, want ErrSessionNotFound", err)
	}
	if _, err := svc.ListUserSessions(ctx, 0, 1); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}
}

type countingGenerator struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (g *countingGenerator) Generate(context.Context, ai.ChatConfig, ai.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.text, nil
}
