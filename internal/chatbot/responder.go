package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"bladi-assistant/internal/ai"
	"bladi-assistant/internal/config"
	"bladi-assistant/internal/model"
)

type Outcome string

const (
	OutcomeGenerated         Outcome = "generated"
	OutcomeRepeatedQuestion  Outcome = "repeated_question"
	OutcomeDisabled          Outcome = "disabled"
	OutcomeNotConfigured     Outcome = "not_configured"
	OutcomeProviderTimeout   Outcome = "provider_timeout"
	OutcomeProviderTransport Outcome = "provider_transport"
	OutcomeProviderStatus    Outcome = "provider_status"
	OutcomeInvalidPayload    Outcome = "invalid_payload"
	OutcomeTooShort          Outcome = "rejected_too_short"
	OutcomeTooLong           Outcome = "rejected_too_long"
	OutcomeRepetitive        Outcome = "rejected_repetitive"
)

// minSentenceRunes is the length a period-delimited fragment must exceed to
// count as a repeated sentence.
const minSentenceRunes = 20

// Turn is everything the responder needs to answer one question.
type Turn struct {
	UserText   string
	Registered bool
	History    History
}

// Reply always carries text to show the user. Cause is set when Outcome is a
// failure.
type Reply struct {
	Text    string
	Outcome Outcome
	Cause   error
}

func (r Reply) Generated() bool {
	return r.Outcome == OutcomeGenerated
}

type Responder struct {
	generator ai.Generator
	cfg       config.ChatbotConfig
	logger    *slog.Logger
}

func NewResponder(generator ai.Generator, cfg config.ChatbotConfig, logger *slog.Logger) *Responder {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = int(ai.DefaultTimeout / time.Second)
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 3
	}
	if cfg.MinResponseChars <= 0 {
		cfg.MinResponseChars = 20
	}
	if cfg.MaxResponseChars <= 0 {
		cfg.MaxResponseChars = 1000
	}
	if cfg.QuestionRepeatThreshold <= 0 {
		cfg.QuestionRepeatThreshold = 0.7
	}
	if cfg.AnswerRepeatThreshold <= 0 {
		cfg.AnswerRepeatThreshold = 0.6
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

func (r *Responder) Respond(ctx context.Context, turn Turn) Reply {
	if !r.cfg.Enabled {
		return r.fallback(OutcomeDisabled, nil)
	}
	if strings.TrimSpace(r.cfg.APIKey) == "" || r.generator == nil {
		return r.fallback(OutcomeNotConfigured, errors.New("gemini api key missing"))
	}

	if r.isRepeatedQuestion(turn) {
		return Reply{Text: ClarificationText, Outcome: OutcomeRepeatedQuestion}
	}

	req := ai.GenerateRequest{
		Contents:   BuildPrompt(turn.Registered, turn.History.Recent(r.cfg.HistoryWindow), turn.UserText),
		Generation: GenerationConfig(),
		Safety:     ai.DefaultSafetySettings(),
	}
	raw, err := r.generator.Generate(ctx, ai.ChatConfig{
		BaseURL: r.cfg.BaseURL,
		APIKey:  r.cfg.APIKey,
		Model:   r.cfg.Model,
		Timeout: r.cfg.Timeout(),
	}, req)
	if err != nil {
		return r.fallback(outcomeForProviderErr(err), err)
	}

	text := stripArtifacts(raw)
	if outcome, cause := r.validate(text, turn.History); outcome != OutcomeGenerated {
		return r.fallback(outcome, cause)
	}
	return Reply{Text: text, Outcome: OutcomeGenerated}
}

func (r *Responder) isRepeatedQuestion(turn Turn) bool {
	for _, msg := range turn.History.LastByRole(model.RoleUser, r.cfg.HistoryWindow) {
		if Similarity(turn.UserText, msg.Content) > r.cfg.QuestionRepeatThreshold {
			return true
		}
	}
	return false
}

func (r *Responder) validate(text string, history History) (Outcome, error) {
	length := utf8.RuneCountInString(text)
	if length < r.cfg.MinResponseChars {
		return OutcomeTooShort, fmt.Errorf("response has %d chars, minimum %d", length, r.cfg.MinResponseChars)
	}
	if length > r.cfg.MaxResponseChars {
		return OutcomeTooLong, fmt.Errorf("response has %d chars, maximum %d", length, r.cfg.MaxResponseChars)
	}
	for _, msg := range history.LastByRole(model.RoleBot, r.cfg.HistoryWindow) {
		if Similarity(text, msg.Content) > r.cfg.AnswerRepeatThreshold {
			return OutcomeRepetitive, fmt.Errorf("response too similar to message %d", msg.ID)
		}
		if sharesSentence(text, msg.Content, minSentenceRunes) {
			return OutcomeRepetitive, fmt.Errorf("response repeats a sentence of message %d", msg.ID)
		}
	}
	return OutcomeGenerated, nil
}

func (r *Responder) fallback(outcome Outcome, cause error) Reply {
	if cause != nil {
		r.logger.Warn("chatbot fallback", "outcome", outcome, "error", cause)
	}
	return Reply{Text: FallbackText, Outcome: outcome, Cause: cause}
}

func outcomeForProviderErr(err error) Outcome {
	switch ai.KindOf(err) {
	case ai.ErrorTimeout:
		return OutcomeProviderTimeout
	case ai.ErrorStatus:
		return OutcomeProviderStatus
	case ai.ErrorInvalidPayload, ai.ErrorEmptyCandidates:
		return OutcomeInvalidPayload
	default:
		return OutcomeProviderTransport
	}
}
