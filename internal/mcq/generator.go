// Package mcq generates multiple-choice quizzes from source text in two
// model calls: a generation pass and a review pass.
package mcq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/mcqgen/internal/extract"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/llm/prompts"
	"github.com/pavelanni/mcqgen/internal/model"
)

// Sampling settings of the generation call.
const (
	// GenerateTemperature leaves some room for varied questions.
	GenerateTemperature = 0.25
	// GenerateMaxTokens bounds the reply, which holds the whole quiz.
	GenerateMaxTokens = 1500
)

// GenerateInput describes one generation request.
type GenerateInput struct {
	Text    string
	Number  int
	Subject string
	Tone    string
	// ResponseSchema is an example of the expected quiz JSON. It is passed
	// to the model verbatim.
	ResponseSchema string
}

// Generator drafts quizzes with a chat model.
type Generator struct {
	chat llm.Chatter
	opts llm.Options
}

// NewGenerator creates a Generator. model overrides the client's default
// model when non-empty.
func NewGenerator(chat llm.Chatter, model string) *Generator {
	return &Generator{
		chat: chat,
		opts: llm.Options{
			Model:       model,
			Temperature: GenerateTemperature,
			MaxTokens:   GenerateMaxTokens,
		},
	}
}

// Generate asks the model for in.Number questions about in.Text and returns
// the quiz it produced.
func (g *Generator) Generate(ctx context.Context, in GenerateInput) (model.Quiz, error) {
	if strings.TrimSpace(in.ResponseSchema) == "" {
		return model.Quiz{}, &InputError{Field: "response_schema", Msg: "is required"}
	}

	pair, err := prompts.BuildGenerate(prompts.GenerateData{
		Text:           in.Text,
		Number:         in.Number,
		Subject:        in.Subject,
		Tone:           in.Tone,
		ResponseSchema: in.ResponseSchema,
	})
	if err != nil {
		return model.Quiz{}, fmt.Errorf("build generation prompt: %w", err)
	}

	reply, err := g.chat.Chat(llm.WithPurpose(ctx, "quiz-gen"), []llm.Message{
		{Role: llm.RoleSystem, Content: pair.System},
		{Role: llm.RoleUser, Content: pair.User},
	}, g.opts)
	if err != nil {
		return model.Quiz{}, fmt.Errorf("generate quiz: %w", err)
	}

	var quiz model.Quiz
	if err := extract.Decode(reply, &quiz); err != nil {
		return model.Quiz{}, fmt.Errorf("generate quiz: %w", err)
	}

	slog.Info("generated quiz", "requested", in.Number, "questions", quiz.Len())
	return quiz, nil
}
