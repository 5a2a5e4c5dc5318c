package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

type Part struct {
	Text string `json:"text"`
}

type Content struct {
	Role  Role   `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

func TextContent(role Role, text string) Content {
	return Content{Role: role, Parts: []Part{{Text: text}}}
}

type GenerationConfig struct {
	Temperature     float64  `json:"temperature"`
	TopK            int      `json:"topK"`
	TopP            float64  `json:"topP"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type SafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

const BlockMediumAndAbove = "BLOCK_MEDIUM_AND_ABOVE"

// DefaultSafetySettings blocks medium-and-above harassment, hate, sexual and
// dangerous content.
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]SafetySetting, 0, len(categories))
	for _, category := range categories {
		settings = append(settings, SafetySetting{Category: category, Threshold: BlockMediumAndAbove})
	}
	return settings
}

type ChatConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type GenerateRequest struct {
	Contents   []Content
	Generation GenerationConfig
	Safety     []SafetySetting
}

// Generator produces text for an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, cfg ChatConfig, req GenerateRequest) (string, error)
}

type ErrorKind string

const (
	ErrorTimeout         ErrorKind = "timeout"
	ErrorTransport       ErrorKind = "transport"
	ErrorStatus          ErrorKind = "status"
	ErrorInvalidPayload  ErrorKind = "invalid_payload"
	ErrorEmptyCandidates ErrorKind = "empty_candidates"
)

// ProviderError describes why a generateContent call produced no usable text.
type ProviderError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gemini %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gemini %s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the provider error kind carried by err, or "" if none.
func KindOf(err error) ErrorKind {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Kind
	}
	return ""
}

type GeminiClient struct {
	httpClient *http.Client
}

// DefaultTimeout bounds a generateContent call when none is configured.
const DefaultTimeout = 15 * time.Second

func NewGeminiClient() *GeminiClient {
	return &GeminiClient{
		httpClient: &http.Client{},
	}
}

// NewGeminiClientWithHTTP lets tests point the client at a fake transport.
func NewGeminiClientWithHTTP(httpClient *http.Client) *GeminiClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiClient{httpClient: httpClient}
}

type generateContentBody struct {
	Contents          []Content        `json:"contents"`
	SystemInstruction *Content         `json:"systemInstruction,omitempty"`
	GenerationConfig  GenerationConfig `json:"generationConfig"`
	SafetySettings    []SafetySetting  `json:"safetySettings,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []Part `json:"parts"`
			Role  string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func (c *GeminiClient) Generate(ctx context.Context, cfg ChatConfig, req GenerateRequest) (string, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := buildBody(req)
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", &ProviderError{Kind: ErrorInvalidPayload, Err: fmt.Errorf("marshal gemini request failed: %w", err)}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(cfg.BaseURL, "/"), cfg.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", &ProviderError{Kind: ErrorTransport, Err: fmt.Errorf("build gemini request failed: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyTransportErr(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", classifyTransportErr(ctx, fmt.Errorf("read gemini response failed: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &ProviderError{
			Kind:       ErrorStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", truncate(string(raw), 256)),
		}
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Kind: ErrorInvalidPayload, Err: fmt.Errorf("parse gemini json failed: %w", err)}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ProviderError{Kind: ErrorEmptyCandidates, Err: errors.New("no candidate text")}
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", &ProviderError{Kind: ErrorEmptyCandidates, Err: errors.New("candidate text is blank")}
	}
	return text.String(), nil
}

// buildBody moves system entries into systemInstruction; generateContent only
// accepts user and model roles inside contents.
func buildBody(req GenerateRequest) generateContentBody {
	body := generateContentBody{
		Contents:         make([]Content, 0, len(req.Contents)),
		GenerationConfig: req.Generation,
		SafetySettings:   req.Safety,
	}
	var system []Part
	for _, content := range req.Contents {
		if content.Role == RoleSystem {
			system = append(system, content.Parts...)
			continue
		}
		body.Contents = append(body.Contents, content)
	}
	if len(system) > 0 {
		body.SystemInstruction = &Content{Parts: system}
	}
	return body
}

func classifyTransportErr(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ProviderError{Kind: ErrorTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ProviderError{Kind: ErrorTimeout, Err: err}
	}
	return &ProviderError{Kind: ErrorTransport, Err: err}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
