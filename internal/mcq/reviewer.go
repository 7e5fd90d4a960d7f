package mcq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mcqgen/internal/extract"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/llm/prompts"
	"github.com/pavelanni/mcqgen/internal/model"
)

// Sampling settings of the review call.
const (
	// ReviewTemperature asks for a deterministic review.
	ReviewTemperature = 0.0
	// ReviewMaxTokens bounds the analysis plus the corrected quiz.
	ReviewMaxTokens = 800
)

// ReviewInput describes one review request.
type ReviewInput struct {
	Quiz    model.Quiz
	Subject string
	Grade   string
	Tone    string
}

// Reviewer asks a chat model to assess a quiz and optionally correct it.
type Reviewer struct {
	chat llm.Chatter
	opts llm.Options
}

// NewReviewer creates a Reviewer. model overrides the client's default
// model when non-empty.
func NewReviewer(chat llm.Chatter, model string) *Reviewer {
	return &Reviewer{
		chat: chat,
		opts: llm.Options{
			Model:       model,
			Temperature: ReviewTemperature,
			MaxTokens:   ReviewMaxTokens,
		},
	}
}

// Review returns the model's complexity analysis of in.Quiz together with
// its corrected quiz, if any.
func (r *Reviewer) Review(ctx context.Context, in ReviewInput) (model.Review, error) {
	quizJSON, err := indentJSON(in.Quiz)
	if err != nil {
		return model.Review{}, fmt.Errorf("serialize quiz: %w", err)
	}

	pair, err := prompts.BuildReview(prompts.ReviewData{
		Subject: in.Subject,
		Grade:   in.Grade,
		Tone:    in.Tone,
		Quiz:    quizJSON,
	})
	if err != nil {
		return model.Review{}, fmt.Errorf("build review prompt: %w", err)
	}

	reply, err := r.chat.Chat(llm.WithPurpose(ctx, "quiz-review"), []llm.Message{
		{Role: llm.RoleSystem, Content: pair.System},
		{Role: llm.RoleUser, Content: pair.User},
	}, r.opts)
	if err != nil {
		return model.Review{}, fmt.Errorf("review quiz: %w", err)
	}

	var review model.Review
	if err := extract.Decode(reply, &review); err != nil {
		return model.Review{}, fmt.Errorf("review quiz: %w", err)
	}

	slog.Info("reviewed quiz", "updated", review.HasUpdate(), "updated_questions", review.UpdatedQuiz.Len())
	return review, nil
}

// indentJSON renders v with two-space indentation and without HTML escaping.
func indentJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
