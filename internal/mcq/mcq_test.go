package mcq

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pavelanni/mcqgen/internal/extract"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/model"
)

const (
	generatedReply = `{"1":{"mcq":"Q1","options":{"a":"x","b":"y","c":"z","d":"w"},"correct":"a"}}`
	schemaText     = `{"1": {"mcq": "question", "options": {"a": "", "b": "", "c": "", "d": ""}, "correct": "a"}}`
)

func validParams() Params {
	return Params{
		Text:           "Cells are the basic unit of life.",
		Number:         1,
		Subject:        "biology",
		Tone:           "simple",
		Grade:          "high-school",
		ResponseSchema: schemaText,
	}
}

// assertQuizJSON compares the serialized quiz with want, ignoring layout.
func assertQuizJSON(t *testing.T, q model.Quiz, want string) {
	t.Helper()
	data, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got, exp any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal got: %v", err)
	}
	if err := json.Unmarshal([]byte(want), &exp); err != nil {
		t.Fatalf("Unmarshal want: %v", err)
	}
	if !reflect.DeepEqual(got, exp) {
		t.Errorf("quiz = %s, want %s", data, want)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestRunKeepsGeneratedQuizWhenReviewHasNoUpdate(t *testing.T) {
	mock := llm.NewMock(
		llm.MockReply{Content: generatedReply},
		llm.MockReply{Content: `{"complexity_analysis":"easy","updated_quiz":{}}`},
	)

	res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertQuizJSON(t, res.FinalQuiz, generatedReply)
	if res.Review.ComplexityAnalysis != "easy" {
		t.Errorf("ComplexityAnalysis = %q, want easy", res.Review.ComplexityAnalysis)
	}
	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Warnings = %v, want none", res.Warnings)
	}
	if mock.CallCount() != 2 {
		t.Errorf("CallCount() = %d, want 2", mock.CallCount())
	}
}

func TestRunUsesReviewerUpdate(t *testing.T) {
	updated := `{"1":{"mcq":"X","options":{"a":"x","b":"y"},"correct":"b"}}`
	mock := llm.NewMock(
		llm.MockReply{Content: generatedReply},
		llm.MockReply{Content: "Here you go:\n```json\n{\"complexity_analysis\":\"too hard\",\"updated_quiz\":" + updated + "}\n```"},
	)

	res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	assertQuizJSON(t, res.FinalQuiz, updated)
	assertQuizJSON(t, res.Quiz, generatedReply)
}

func TestRunFallsBackWhenUpdateAbsent(t *testing.T) {
	mock := llm.NewMock(
		llm.MockReply{Content: generatedReply},
		llm.MockReply{Content: `{"complexity_analysis":"fine"}`},
	)

	res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	q, ok := res.FinalQuiz.Get("1")
	if !ok || q.MCQ != "Q1" {
		t.Errorf("FinalQuiz[1] = %+v, %v, want the generated question", q, ok)
	}
}

func TestRunAcceptsMaxQuestions(t *testing.T) {
	mock := llm.NewMock(
		llm.MockReply{Content: generatedReply},
		llm.MockReply{Content: `{"complexity_analysis":"ok"}`},
	)
	params := validParams()
	params.Number = MaxQuestions

	if _, err := NewPipeline(mock, "").Run(context.Background(), params); err != nil {
		t.Fatalf("Run with %d questions: %v", MaxQuestions, err)
	}
	if !strings.Contains(mock.Calls[0].Messages[1].Content, "Create exactly 50 multiple choice questions") {
		t.Error("generation prompt should ask for the requested number")
	}
}

func TestRunInputErrors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Params)
		field  string
	}{
		{"empty text", func(p *Params) { p.Text = "" }, "text"},
		{"blank text", func(p *Params) { p.Text = " \n\t " }, "text"},
		{"zero questions", func(p *Params) { p.Number = 0 }, "number"},
		{"negative questions", func(p *Params) { p.Number = -3 }, "number"},
		{"too many questions", func(p *Params) { p.Number = MaxQuestions + 1 }, "number"},
		{"missing schema", func(p *Params) { p.ResponseSchema = "" }, "response_schema"},
		{"blank schema", func(p *Params) { p.ResponseSchema = "  " }, "response_schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMock()
			params := validParams()
			tt.modify(&params)

			res, err := NewPipeline(mock, "").Run(context.Background(), params)
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}

			var inErr *InputError
			if !errors.As(err, &inErr) {
				t.Fatalf("expected *InputError, got %T (%v)", err, err)
			}
			if inErr.Field != tt.field {
				t.Errorf("Field = %q, want %q", inErr.Field, tt.field)
			}
			if mock.CallCount() != 0 {
				t.Errorf("CallCount() = %d, want no model call on invalid input", mock.CallCount())
			}
		})
	}
}

func TestRunStageFailures(t *testing.T) {
	upstream := &llm.UpstreamError{StatusCode: 429, Err: errors.New("rate limited")}

	wantParseError := func(t *testing.T, err error) {
		t.Helper()
		var pe *extract.ParseError
		if !errors.As(err, &pe) {
			t.Errorf("expected *extract.ParseError, got %T (%v)", err, err)
		}
	}

	tests := []struct {
		name      string
		replies   []llm.MockReply
		wantCalls int
		check     func(t *testing.T, err error)
	}{
		{
			name:      "generator upstream error",
			replies:   []llm.MockReply{{Err: upstream}},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, llm.ErrUpstream) {
					t.Errorf("error should match ErrUpstream: %v", err)
				}
				var up *llm.UpstreamError
				if !errors.As(err, &up) || up.StatusCode != 429 {
					t.Errorf("expected *UpstreamError with status 429, got %v", err)
				}
			},
		},
		{
			name:      "generator prose",
			replies:   []llm.MockReply{{Content: "I cannot help with that."}},
			wantCalls: 1,
			check:     wantParseError,
		},
		{
			name:      "generator array",
			replies:   []llm.MockReply{{Content: `[{"mcq":"Q1"}]`}},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				wantParseError(t, err)
				if !errors.Is(err, model.ErrNotObject) {
					t.Errorf("error should match ErrNotObject: %v", err)
				}
			},
		},
		{
			name:      "generator empty content",
			replies:   []llm.MockReply{{Content: ""}},
			wantCalls: 1,
			check:     wantParseError,
		},
		{
			name:      "reviewer timeout",
			replies:   []llm.MockReply{{Content: generatedReply}, {Err: &llm.TimeoutError{Err: context.DeadlineExceeded}}},
			wantCalls: 2,
			check: func(t *testing.T, err error) {
				var te *llm.TimeoutError
				if !errors.As(err, &te) {
					t.Errorf("expected *TimeoutError, got %T (%v)", err, err)
				}
				if !errors.Is(err, llm.ErrUpstream) {
					t.Errorf("timeout should match ErrUpstream: %v", err)
				}
			},
		},
		{
			name:      "reviewer unparseable",
			replies:   []llm.MockReply{{Content: generatedReply}, {Content: "looks good {not json}"}},
			wantCalls: 2,
			check:     wantParseError,
		},
		{
			name:      "caller canceled",
			replies:   []llm.MockReply{{Err: context.Canceled}},
			wantCalls: 1,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, context.Canceled) {
					t.Errorf("error should match context.Canceled: %v", err)
				}
				if errors.Is(err, llm.ErrUpstream) {
					t.Errorf("cancellation should not match ErrUpstream: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMock(tt.replies...)
			res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
			if err == nil {
				t.Fatal("expected error")
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if mock.CallCount() != tt.wantCalls {
				t.Errorf("CallCount() = %d, want %d", mock.CallCount(), tt.wantCalls)
			}
			tt.check(t, err)
		})
	}
}

func TestGenerateRequest(t *testing.T) {
	mock := llm.NewMock(llm.MockReply{Content: generatedReply})
	gen := NewGenerator(mock, "test-model")

	quiz, err := gen.Generate(context.Background(), GenerateInput{
		Text:           "Mitochondria produce ATP.",
		Number:         3,
		Subject:        "biology",
		Tone:           "academic",
		ResponseSchema: schemaText,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if quiz.Len() != 1 {
		t.Errorf("Len() = %d, want 1", quiz.Len())
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.Options.Model != "test-model" {
		t.Errorf("Model = %q, want test-model", call.Options.Model)
	}
	if call.Options.Temperature != GenerateTemperature || call.Options.MaxTokens != GenerateMaxTokens {
		t.Errorf("Options = %+v, want temperature %v and max tokens %d", call.Options, GenerateTemperature, GenerateMaxTokens)
	}

	if len(call.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(call.Messages))
	}
	if call.Messages[0].Role != llm.RoleSystem || call.Messages[1].Role != llm.RoleUser {
		t.Errorf("roles = %s, %s", call.Messages[0].Role, call.Messages[1].Role)
	}
	user := call.Messages[1].Content
	for _, want := range []string{
		"Mitochondria produce ATP.",
		"Create exactly 3 multiple choice questions for 'biology'",
		"'academic' tone",
		schemaText,
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestGenerateRequiresSchema(t *testing.T) {
	mock := llm.NewMock(llm.MockReply{Content: generatedReply})

	_, err := NewGenerator(mock, "").Generate(context.Background(), GenerateInput{Text: "x", Number: 1})

	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected *InputError, got %T (%v)", err, err)
	}
	if inErr.Field != "response_schema" {
		t.Errorf("Field = %q, want response_schema", inErr.Field)
	}
	if mock.CallCount() != 0 {
		t.Errorf("CallCount() = %d, want 0", mock.CallCount())
	}
}

func TestReviewRequest(t *testing.T) {
	mock := llm.NewMock(llm.MockReply{Content: `{"complexity_analysis":"ok","updated_quiz":null}`})

	var quiz model.Quiz
	quiz.Set("1", model.Question{MCQ: "Is 1 < 2 && 3 > 2?", Options: model.Options{"a": "yes", "b": "no"}, Correct: "a"})

	review, err := NewReviewer(mock, "").Review(context.Background(), ReviewInput{
		Quiz:    quiz,
		Subject: "math",
		Grade:   "grade-5",
		Tone:    "simple",
	})
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if review.ComplexityAnalysis != "ok" || review.HasUpdate() {
		t.Errorf("review = %+v, want analysis without update", review)
	}

	if len(mock.Calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(mock.Calls))
	}
	call := mock.Calls[0]
	if call.Options.Temperature != ReviewTemperature || call.Options.MaxTokens != ReviewMaxTokens {
		t.Errorf("Options = %+v, want temperature %v and max tokens %d", call.Options, ReviewTemperature, ReviewMaxTokens)
	}

	user := call.Messages[1].Content
	if !strings.Contains(user, "\n  \"1\": {\n    \"mcq\": \"Is 1 < 2 && 3 > 2?\",") {
		t.Errorf("quiz should be embedded indented and unescaped:\n%s", user)
	}
	if !strings.Contains(user, "grade-5") {
		t.Errorf("user prompt missing grade:\n%s", user)
	}
	if strings.Contains(user, `\u003c`) {
		t.Errorf("quiz text should not be HTML-escaped:\n%s", user)
	}
}

func TestRunCarriesExtraQuestionFields(t *testing.T) {
	reply := `{"1":{"mcq":"Q1","options":{"a":"x","b":"y"},"correct":"a","difficulty":"hard"}}`
	mock := llm.NewMock(
		llm.MockReply{Content: reply},
		llm.MockReply{Content: `{"complexity_analysis":"ok"}`},
	)

	res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	assertQuizJSON(t, res.FinalQuiz, reply)

	review := mock.Calls[1].Messages[1].Content
	if !strings.Contains(review, `"difficulty": "hard"`) {
		t.Errorf("review prompt should carry extra fields:\n%s", review)
	}
}

func TestLint(t *testing.T) {
	t.Run("clean quiz", func(t *testing.T) {
		var q model.Quiz
		q.Set("1", model.Question{MCQ: "Q", Options: model.Options{"a": "x", "b": "y"}, Correct: "b"})
		if w := Lint(q); len(w) != 0 {
			t.Errorf("Lint() = %v, want none", w)
		}
	})

	t.Run("correct not among options", func(t *testing.T) {
		var q model.Quiz
		q.Set("1", model.Question{MCQ: "Q", Options: model.Options{"a": "x", "b": "y"}, Correct: "e"})
		want := `question 1: correct answer "e" is not among its options`
		if w := Lint(q); !contains(w, want) {
			t.Errorf("Lint() = %v, want %q", w, want)
		}
	})

	t.Run("missing correct", func(t *testing.T) {
		var q model.Quiz
		q.Set("2", model.Question{MCQ: "Q", Options: model.Options{"a": "x", "b": "y"}})
		if w := Lint(q); !contains(w, "question 2: no correct answer") {
			t.Errorf("Lint() = %v, want a missing-answer warning", w)
		}
	})

	t.Run("shape problems", func(t *testing.T) {
		var q model.Quiz
		q.Set("1", model.Question{Correct: "a"})
		if w := Lint(q); len(w) < 2 {
			t.Errorf("Lint() = %v, want schema findings plus the option check", w)
		}
	})
}

func TestRunReportsLintWarnings(t *testing.T) {
	mock := llm.NewMock(
		llm.MockReply{Content: `{"1":{"mcq":"Q1","options":{"a":"x","b":"y"},"correct":"c"}}`},
		llm.MockReply{Content: `{"complexity_analysis":"ok"}`},
	)

	res, err := NewPipeline(mock, "").Run(context.Background(), validParams())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := `question 1: correct answer "c" is not among its options`
	if !contains(res.Warnings, want) {
		t.Errorf("Warnings = %v, want %q", res.Warnings, want)
	}
}

func TestLoadResponseSchema(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("valid", func(t *testing.T) {
		got, err := LoadResponseSchema(write("ok.json", "\n"+schemaText+"\n"))
		if err != nil {
			t.Fatalf("LoadResponseSchema: %v", err)
		}
		if got != schemaText {
			t.Errorf("got %q, want %q", got, schemaText)
		}
	})

	t.Run("shipped template", func(t *testing.T) {
		got, err := LoadResponseSchema(filepath.Join("..", "..", DefaultSchemaPath))
		if err != nil {
			t.Fatalf("LoadResponseSchema: %v", err)
		}
		if !strings.HasPrefix(got, "{") {
			t.Errorf("got %q, want a JSON object", got)
		}
	})

	for name, path := range map[string]string{
		"missing": filepath.Join(dir, "nope.json"),
		"empty":   write("empty.json", "  \n"),
		"invalid": write("bad.json", `{"1": `),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadResponseSchema(path)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %T (%v)", err, err)
			}
			if cfgErr.Path != path {
				t.Errorf("Path = %q, want %q", cfgErr.Path, path)
			}
		})
	}
}
