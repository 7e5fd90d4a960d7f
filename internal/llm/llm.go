package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is the Groq OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	// DefaultModel is the model used when Options.Model is empty.
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultTimeout is the per-call deadline when Options.Timeout is zero.
	DefaultTimeout = 60 * time.Second
)

// Role is a chat message role.
type Role string

// Roles accepted by the chat endpoint.
const (
	RoleSystem    Role = "system"    // instructions that fix the output contract
	RoleUser      Role = "user"      // the request itself
	RoleAssistant Role = "assistant" // earlier model replies
)

// Message is a single role-tagged chat message.
type Message struct {
	Role    Role
	Content string
}

// Options are the generation parameters of one chat call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Chatter sends one chat request and returns the model's raw text reply.
type Chatter interface {
	Chat(ctx context.Context, messages []Message, opts Options) (string, error)
}

// Config holds the chat client settings. The API key is read once at
// startup and never changes afterwards.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// DefaultConfig returns a Config pointing at the default endpoint and model.
func DefaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		Timeout: DefaultTimeout,
	}
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// New creates a new LLM client.
func New(cfg Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   model,
		timeout: timeout,
	}
}

// Model returns the model used when a call does not name one.
func (c *Client) Model() string {
	return c.model
}

// Chat issues exactly one chat-completion request. It returns the content of
// the first choice, or an empty string when the reply carries no choices.
func (c *Client) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	if len(messages) == 0 {
		return "", errors.New("chat: no messages")
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(messages),
		Temperature: temperature(opts.Temperature),
		MaxTokens:   opts.MaxTokens,
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", mapError(err, timeout)
	}

	if len(resp.Choices) == 0 {
		slog.Warn("LLM returned no choices", "model", model)
		return "", nil
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "model", resp.Model, "raw", raw)
	return raw, nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return out
}

// temperature converts t for the wire. go-openai drops a zero temperature
// from the request body, so zero is sent as the smallest positive float32.
func temperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

// mapError converts a go-openai failure into UpstreamError or TimeoutError.
// Cancellation by the caller is returned unchanged.
func mapError(err error, timeout time.Duration) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("chat completion canceled: %w", err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Timeout: timeout, Err: err}
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var te interface{ Timeout() bool }
	if errors.As(err, &te) && te.Timeout() {
		return &TimeoutError{Timeout: timeout, Err: err}
	}
	return &UpstreamError{Err: fmt.Errorf("chat completion: %w", err)}
}
