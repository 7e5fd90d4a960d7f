package mcq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/model"
)

// MaxQuestions is the largest quiz a single run may request.
const MaxQuestions = 50

// Params are the inputs of one pipeline run.
type Params struct {
	Text           string `validate:"notblank"`
	Number         int    `validate:"min=1,maxquestions"`
	Subject        string
	Tone           string
	Grade          string
	ResponseSchema string `validate:"notblank"`
}

var paramsValidator = newParamsValidator()

func newParamsValidator() *validator.Validate {
	v := validator.New()
	rules := map[string]validator.Func{
		"notblank": func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		"maxquestions": func(fl validator.FieldLevel) bool {
			return fl.Field().Int() <= MaxQuestions
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	return v
}

// Pipeline generates a quiz and then reviews it.
type Pipeline struct {
	gen *Generator
	rev *Reviewer
}

// NewPipeline creates a Pipeline whose stages share chat. model overrides
// the client's default model when non-empty.
func NewPipeline(chat llm.Chatter, model string) *Pipeline {
	return &Pipeline{
		gen: NewGenerator(chat, model),
		rev: NewReviewer(chat, model),
	}
}

// Run executes generation then review and merges the results. Either stage
// failing fails the run; no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, params Params) (*model.PipelineResult, error) {
	if err := checkParams(params); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := slog.With("run_id", runID)
	log.Info("pipeline started", "number", params.Number, "subject", params.Subject,
		"tone", params.Tone, "grade", params.Grade, "text_chars", len(params.Text))

	quiz, err := p.gen.Generate(ctx, GenerateInput{
		Text:           params.Text,
		Number:         params.Number,
		Subject:        params.Subject,
		Tone:           params.Tone,
		ResponseSchema: params.ResponseSchema,
	})
	if err != nil {
		log.Error("generation failed", "error", err)
		return nil, err
	}

	review, err := p.rev.Review(ctx, ReviewInput{
		Quiz:    quiz,
		Subject: params.Subject,
		Grade:   params.Grade,
		Tone:    params.Tone,
	})
	if err != nil {
		log.Error("review failed", "error", err)
		return nil, err
	}

	res := &model.PipelineResult{
		RunID:     runID,
		Quiz:      quiz,
		Review:    review,
		FinalQuiz: model.FinalQuiz(quiz, review),
	}
	res.Warnings = Lint(res.FinalQuiz)
	for _, w := range res.Warnings {
		log.Warn("quiz lint", "warning", w)
	}

	log.Info("pipeline finished", "questions", res.FinalQuiz.Len(), "reviewer_updated", review.HasUpdate(),
		"warnings", len(res.Warnings))
	return res, nil
}

func checkParams(params Params) error {
	err := paramsValidator.Struct(params)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate params: %w", err)
	}

	fe := verrs[0]
	switch fe.Field() {
	case "Text":
		return &InputError{Field: "text", Msg: "is empty"}
	case "ResponseSchema":
		return &InputError{Field: "response_schema", Msg: "is required"}
	case "Number":
		return &InputError{Field: "number", Msg: fmt.Sprintf("must be between 1 and %d", MaxQuestions)}
	}
	return &InputError{Field: strings.ToLower(fe.Field()), Msg: "failed " + fe.Tag()}
}
