package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotObject is returned when a quiz is decoded from a JSON value that is
// not an object.
var ErrNotObject = errors.New("quiz is not a JSON object")

// OptionKeys are the option letters in display order.
var OptionKeys = []string{"a", "b", "c", "d"}

// Options maps an option letter to its text.
type Options map[string]string

// Question is a single multiple-choice question.
type Question struct {
	MCQ         string  `json:"mcq"`
	Options     Options `json:"options"`
	Correct     string  `json:"correct"`
	Explanation string  `json:"explanation,omitempty"`
	// Extra holds any other fields the model returned, such as ones a custom
	// response schema asks for. They are written back unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

var questionFields = map[string]bool{"mcq": true, "options": true, "correct": true, "explanation": true}

// UnmarshalJSON decodes a question leniently: missing fields stay empty,
// scalar values are kept as their literal text and a non-object options
// value is ignored. Unknown fields go to Extra.
func (q *Question) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("question is not a JSON object: %w", err)
	}

	out := Question{
		MCQ:         looseString(fields["mcq"]),
		Correct:     looseString(fields["correct"]),
		Explanation: looseString(fields["explanation"]),
	}

	var opts map[string]json.RawMessage
	if raw, ok := fields["options"]; ok && json.Unmarshal(raw, &opts) == nil && opts != nil {
		out.Options = make(Options, len(opts))
		for k, v := range opts {
			out.Options[k] = looseString(v)
		}
	}

	for k, v := range fields {
		if questionFields[k] {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = v
	}

	*q = out
	return nil
}

// MarshalJSON writes the known fields first, then Extra in key order.
func (q Question) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	if err := w.field("mcq", q.MCQ); err != nil {
		return nil, err
	}
	if err := w.field("options", q.Options); err != nil {
		return nil, err
	}
	if err := w.field("correct", q.Correct); err != nil {
		return nil, err
	}
	if q.Explanation != "" {
		if err := w.field("explanation", q.Explanation); err != nil {
			return nil, err
		}
	}
	keys := make([]string, 0, len(q.Extra))
	for k := range q.Extra {
		if !questionFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.field(k, q.Extra[k]); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// objectWriter builds a JSON object one member at a time without HTML
// escaping.
type objectWriter struct {
	buf bytes.Buffer
	enc *json.Encoder
	n   int
}

func newObjectWriter() *objectWriter {
	w := &objectWriter{}
	w.enc = json.NewEncoder(&w.buf)
	w.enc.SetEscapeHTML(false)
	w.buf.WriteByte('{')
	return w
}

func (w *objectWriter) field(key string, v any) error {
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	if err := w.enc.Encode(key); err != nil {
		return err
	}
	// Encode terminates each value with a newline.
	w.buf.Truncate(w.buf.Len() - 1)
	w.buf.WriteByte(':')
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	w.buf.Truncate(w.buf.Len() - 1)
	return nil
}

func (w *objectWriter) bytes() []byte {
	w.buf.WriteByte('}')
	return w.buf.Bytes()
}

// looseString renders a JSON value as text: strings unquoted, null and
// absent as empty, anything else as compact JSON.
func looseString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// Quiz maps question keys ("1", "2", ...) to questions. It remembers the
// order in which keys were added or decoded; the zero value is an empty quiz.
type Quiz struct {
	keys      []string
	questions map[string]Question
}

// Len returns the number of questions.
func (q Quiz) Len() int {
	return len(q.keys)
}

// Keys returns the question keys in insertion order.
func (q Quiz) Keys() []string {
	return append([]string(nil), q.keys...)
}

// Get returns the question stored under key.
func (q Quiz) Get(key string) (Question, bool) {
	question, ok := q.questions[key]
	return question, ok
}

// Set stores a question. A new key is appended; an existing key keeps its
// position.
func (q *Quiz) Set(key string, question Question) {
	if q.questions == nil {
		q.questions = make(map[string]Question)
	}
	if _, ok := q.questions[key]; !ok {
		q.keys = append(q.keys, key)
	}
	q.questions[key] = question
}

// MarshalJSON encodes the quiz as a JSON object in key order. Values are
// written without HTML escaping; json.Marshal still escapes the result, an
// Encoder with SetEscapeHTML(false) does not.
func (q Quiz) MarshalJSON() ([]byte, error) {
	w := newObjectWriter()
	for _, k := range q.keys {
		if err := w.field(k, q.questions[k]); err != nil {
			return nil, err
		}
	}
	return w.bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document key order. null
// decodes to an empty quiz; any other non-object is ErrNotObject.
func (q *Quiz) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*q = Quiz{}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}

	var out Quiz
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected quiz key %v", tok)
		}
		var question Question
		if err := dec.Decode(&question); err != nil {
			return fmt.Errorf("question %q: %w", key, err)
		}
		out.Set(key, question)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*q = out
	return nil
}

// Review is the reviewer's assessment of a quiz.
type Review struct {
	ComplexityAnalysis string `json:"complexity_analysis"`
	// UpdatedQuiz is empty when the reviewer proposed no corrected quiz.
	UpdatedQuiz Quiz `json:"updated_quiz"`
}

// UnmarshalJSON decodes a review. An updated_quiz that is absent, null,
// empty or not an object leaves UpdatedQuiz empty.
func (r *Review) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("review is not a JSON object: %w", err)
	}
	if fields == nil {
		return errors.New("review is not a JSON object")
	}

	out := Review{ComplexityAnalysis: looseString(fields["complexity_analysis"])}
	if raw := bytes.TrimSpace(fields["updated_quiz"]); len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out.UpdatedQuiz); err != nil {
			return fmt.Errorf("updated_quiz: %w", err)
		}
	}
	*r = out
	return nil
}

// HasUpdate reports whether the reviewer returned a non-empty corrected quiz.
func (r Review) HasUpdate() bool {
	return r.UpdatedQuiz.Len() > 0
}

// PipelineResult is the outcome of one generate-and-review run.
type PipelineResult struct {
	RunID     string   `json:"run_id"`
	Quiz      Quiz     `json:"quiz"`
	Review    Review   `json:"review"`
	FinalQuiz Quiz     `json:"final_quiz"`
	Warnings  []string `json:"warnings,omitempty"`
}

// FinalQuiz applies the merge rule: the reviewer's corrected quiz when it is
// non-empty, otherwise the generated quiz.
func FinalQuiz(quiz Quiz, review Review) Quiz {
	if review.HasUpdate() {
		return review.UpdatedQuiz
	}
	return quiz
}

// AppConfig holds runtime presentation parameters set via CLI flags.
type AppConfig struct {
	DefaultNumber  int
	DefaultSubject string
	DefaultTone    string
	DefaultGrade   string
	MaxNumber      int
	MaxUpload      int64  // bytes
	BasePath       string // URL prefix for sub-path deployments (e.g. "/mcq")
	Model          string // reported in exports
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

// NormalizeBasePath trims trailing slashes and ensures a leading one.
func NormalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}
