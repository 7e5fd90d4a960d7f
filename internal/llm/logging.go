package llm

import (
	"context"
	"log/slog"
	"time"
)

type contextKey string

const purposeKey contextKey = "llm_purpose"

// WithPurpose attaches a purpose label to the context for request logging.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// LoggingChatter is a decorator that logs every chat call with slog.
type LoggingChatter struct {
	inner  Chatter
	logger *slog.Logger
}

// WithLogging wraps a Chatter with request logging. A nil logger uses
// slog.Default at call time.
func WithLogging(c Chatter, logger *slog.Logger) *LoggingChatter {
	return &LoggingChatter{inner: c, logger: logger}
}

func (l *LoggingChatter) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	logger := l.logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	out, err := l.inner.Chat(ctx, messages, opts)
	attrs := []any{
		"purpose", PurposeFrom(ctx),
		"messages", len(messages),
		"prompt_chars", promptChars(messages),
		"temperature", opts.Temperature,
		"max_tokens", opts.MaxTokens,
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		logger.Error("LLM request failed", append(attrs, "error", err)...)
		return "", err
	}
	logger.Info("LLM request", append(attrs, "reply_chars", len(out))...)
	return out, nil
}

func promptChars(messages []Message) int {
	n := 0
	for _, m := range messages {
		n += len(m.Content)
	}
	return n
}
