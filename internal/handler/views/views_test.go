package views

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/pavelanni/mcqgen/internal/format"
	"github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/model"
)

func TestMain(m *testing.M) {
	if err := i18n.Init("en"); err != nil {
		panic(err)
	}
	m.Run()
}

func TestErrorPage(t *testing.T) {
	ctx := model.ContextWithBasePath(context.Background(), "/mcq")

	var buf bytes.Buffer
	if err := ErrorPage("ErrTooLarge", map[string]any{"Limit": "1.0 KiB"}, "body <too> large").Render(ctx, &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		"<title>Something went wrong</title>",
		`<p class="error">The file is larger than 1.0 KiB.</p>`,
		"<pre>body &lt;too&gt; large</pre>",
		`<a href="/mcq/">Generate another quiz</a>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("error page missing %q:\n%s", want, body)
		}
	}
}

func TestErrorPageWithoutDetail(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorPage("ErrInternal", nil, "").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "<details>") {
		t.Error("empty detail should not render a details block")
	}
}

func TestResultPage(t *testing.T) {
	var q model.Quiz
	q.Set("1", model.Question{MCQ: "Is 1 < 2?", Options: model.Options{"a": "yes", "b": "no"}, Correct: "a"})

	d := ResultData{
		Result: &model.PipelineResult{
			RunID:     "run-7",
			Quiz:      q,
			FinalQuiz: q,
			Warnings:  []string{"question 1: <odd>"},
		},
		Source: "notes.txt",
		Text:   format.Text(q),
		Rows:   format.Rows(q),
	}

	var buf bytes.Buffer
	if err := ResultPage(d).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		"Run run-7 · notes.txt · 1 question generated.",
		"<p>—</p>",
		"The reviewer kept the generated quiz.",
		"<li>question 1: &lt;odd&gt;</li>",
		"<th>Choices</th>",
		"<td>Is 1 &lt; 2?</td>",
		`<a href="/">Generate another quiz</a>`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("result page missing %q:\n%s", want, body)
		}
	}
}

func TestResultPageEmptyTable(t *testing.T) {
	d := ResultData{Result: &model.PipelineResult{RunID: "r"}}

	var buf bytes.Buffer
	if err := ResultPage(d).Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(buf.String(), "Could not convert quiz to table view.") {
		t.Error("empty quiz should show the table fallback")
	}
	if strings.Contains(buf.String(), "<table>") {
		t.Error("empty quiz should not render a table")
	}
}

func TestIndexPageSelectsDefaultTone(t *testing.T) {
	cfg := model.AppConfig{MaxNumber: 50, DefaultNumber: 5, DefaultTone: "academic", DefaultSubject: "a&b"}

	var buf bytes.Buffer
	if err := IndexPage(cfg, "2.0 MiB").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	body := buf.String()
	for _, want := range []string{
		`action="/generate"`,
		`max="50" value="5"`,
		`value="a&amp;b"`,
		`<option value="academic" selected>Academic</option>`,
		`<option value="simple">Simple</option>`,
		"up to 2.0 MiB",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("index page missing %q:\n%s", want, body)
		}
	}
}
