// Package views renders the HTML pages of the web UI.
package views

import (
	"context"
	"strings"

	"github.com/a-h/templ"

	"github.com/pavelanni/mcqgen/internal/format"
	"github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/llm/prompts"
	"github.com/pavelanni/mcqgen/internal/model"
)

// ResultData is everything the result page shows for one run.
type ResultData struct {
	Result   *model.PipelineResult
	Source   string
	QuizJSON string
	Text     string
	Rows     []format.Row
}

var toneKeys = map[prompts.Tone]string{
	prompts.ToneSimple:       "ToneSimple",
	prompts.ToneAcademic:     "ToneAcademic",
	prompts.ToneIntermediate: "ToneIntermediate",
	prompts.ToneConcise:      "ToneConcise",
}

func toneLabel(ctx context.Context, t prompts.Tone) string {
	if key, ok := toneKeys[t]; ok {
		return i18n.T(ctx, key)
	}
	return string(t)
}

func homeURL(ctx context.Context) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + "/")
}

func generateURL(ctx context.Context) templ.SafeURL {
	return templ.SafeURL(model.BasePathFromContext(ctx) + "/generate")
}

func analysisText(ctx context.Context, r model.Review) string {
	if strings.TrimSpace(r.ComplexityAnalysis) == "" {
		return i18n.T(ctx, "NoAnalysis")
	}
	return r.ComplexityAnalysis
}

func reviewerNote(ctx context.Context, r model.Review) string {
	if r.HasUpdate() {
		return i18n.T(ctx, "ReviewerUpdated")
	}
	return i18n.T(ctx, "ReviewerKept")
}
