package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/pavelanni/mcqgen/internal/model"
)

func testResult() *model.PipelineResult {
	var q model.Quiz
	q.Set("2", model.Question{MCQ: "Second", Options: model.Options{"a": "x", "b": "y"}, Correct: "b"})
	q.Set("1", model.Question{MCQ: "First", Options: model.Options{"a": "x", "b": "y"}, Correct: "a"})
	return &model.PipelineResult{
		RunID:     "run-1",
		Quiz:      q,
		Review:    model.Review{ComplexityAnalysis: "Fine."},
		FinalQuiz: q,
		Warnings:  []string{"question 9: no correct answer"},
	}
}

func TestWriteResultText(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResult(&buf, "text", testResult(), model.ExportMeta{}, time.Now()); err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "Complexity analysis:\nFine.\n\nwarning: question 9: no correct answer\n\n1. First\n") {
		t.Errorf("unexpected text output:\n%s", out)
	}
}

func TestWriteResultJSON(t *testing.T) {
	var buf bytes.Buffer
	meta := model.ExportMeta{Subject: "biology", Model: "m", Source: "notes.txt"}
	if err := writeResult(&buf, "json", testResult(), meta, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)); err != nil {
		t.Fatalf("writeResult: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["run_id"] != "run-1" || got["subject"] != "biology" || got["source"] != "notes.txt" {
		t.Errorf("metadata = %v", got)
	}
	if got["num_questions"] != float64(2) {
		t.Errorf("num_questions = %v", got["num_questions"])
	}
	if got["generated_at"] != "2026-01-02T03:04:05Z" {
		t.Errorf("generated_at = %v", got["generated_at"])
	}
}

func TestWriteResultCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := writeResult(&buf, "csv", testResult(), model.ExportMeta{}, time.Now()); err != nil {
		t.Fatalf("writeResult: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[1], "1,First,") {
		t.Errorf("csv output:\n%s", buf.String())
	}
}

func TestRootCommandFlags(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"addr", "llm-url", "llm-key", "schema", "max-upload", "base-path"} {
		if root.Flags().Lookup(name) == nil {
			t.Errorf("root is missing serve flag %q", name)
		}
	}
	gen, _, err := root.Find([]string{"generate"})
	if err != nil {
		t.Fatalf("Find(generate): %v", err)
	}
	for _, name := range []string{"file", "format", "output", "number", "subject", "tone", "grade"} {
		if gen.Flags().Lookup(name) == nil {
			t.Errorf("generate is missing flag %q", name)
		}
	}
}
