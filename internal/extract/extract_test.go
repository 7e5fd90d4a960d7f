package extract

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	values := []any{
		map[string]any{"a": float64(1), "b": []any{"x", true, nil}},
		[]any{float64(1), float64(2), map[string]any{"c": "d"}},
		"plain string",
		float64(42),
		true,
		nil,
		map[string]any{"1": map[string]any{"mcq": "What is {this}?", "options": map[string]any{"a": "}"}}},
	}

	for _, want := range values {
		data, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", want, err)
		}

		got, err := JSON(string(data))
		if err != nil {
			t.Fatalf("JSON(%s): %v", data, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("JSON(%s) = %#v, want %#v", data, got, want)
		}
	}
}

func TestJSONFallback(t *testing.T) {
	tests := []struct {
		name string
		text string
		want any
	}{
		{
			name: "prose around object",
			text: `here is your answer: {"a":1} thanks`,
			want: map[string]any{"a": float64(1)},
		},
		{
			name: "code fence",
			text: "```json\n{\"1\": {\"mcq\": \"Q\"}}\n```",
			want: map[string]any{"1": map[string]any{"mcq": "Q"}},
		},
		{
			name: "multiline object",
			text: "Sure!\n{\n  \"a\": {\n    \"b\": 2\n  }\n}\nHope this helps.",
			want: map[string]any{"a": map[string]any{"b": float64(2)}},
		},
		{
			name: "brace inside string then trailing braces",
			text: `result: {"a":"x } y"} and {another}`,
			want: map[string]any{"a": "x } y"},
		},
		{
			name: "two objects takes the first",
			text: `{"first":1} {"second":2}`,
			want: map[string]any{"first": float64(1)},
		},
		{
			name: "escaped quote in string",
			text: `note {"a":"say \"hi\" {"} end`,
			want: map[string]any{"a": `say "hi" {`},
		},
		{
			name: "stray brace in prose before greedy span",
			text: `use { carefully: {"a":1}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSON(tt.text)
			if tt.want == nil {
				var pe *ParseError
				if !errors.As(err, &pe) {
					t.Fatalf("expected *ParseError, got %T (%v)", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("JSON: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("JSON() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestJSONFailure(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   \n\t"},
		{"no braces", "I could not generate a quiz for this text."},
		{"only closing", "oops } here"},
		{"unbalanced", `{"a": 1`},
		{"malformed inside braces", `prefix {"a": } suffix`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSON(tt.text)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T (%v)", err, err)
			}
			if pe.Text != tt.text {
				t.Errorf("Text = %q, want %q", pe.Text, tt.text)
			}
			if !strings.Contains(err.Error(), "could not extract JSON from model output") {
				t.Errorf("error = %q", err.Error())
			}
		})
	}
}

func TestDecodeTypeMismatch(t *testing.T) {
	var out map[string]string
	err := Decode(`[1, 2, 3]`, &out)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T (%v)", err, err)
	}
	if pe.Unwrap() == nil {
		t.Error("ParseError should wrap the decode error")
	}
}

func TestFindReturnsDocument(t *testing.T) {
	doc, err := Find("Answer:\n{\"a\": [1, {\"b\": \"]\"}]}\n-- end")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if want := `{"a": [1, {"b": "]"}]}`; doc != want {
		t.Errorf("Find() = %q, want %q", doc, want)
	}
}
