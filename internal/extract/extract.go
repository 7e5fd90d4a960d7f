// Package extract pulls a JSON value out of free-form model output.
//
// Models are told to answer with bare JSON but often wrap it in prose or
// code fences. Find tries, in order: the whole text, the first balanced
// object starting at the first '{' (string-literal aware), and finally the
// span from the first '{' to the last '}'.
package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports that no JSON could be recovered from model output.
type ParseError struct {
	// Text is the model output that could not be parsed.
	Text string
	// Err is the decode error of the last attempt, if any.
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not extract JSON from model output: %v", e.Err)
	}
	return "could not extract JSON from model output"
}

func (e *ParseError) Unwrap() error { return e.Err }

// Find returns the JSON document contained in text.
func Find(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && json.Valid([]byte(trimmed)) {
		return trimmed, nil
	}

	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", &ParseError{Text: text}
	}

	if end := balancedEnd(text, start); end > 0 {
		if candidate := text[start:end]; json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	end := strings.LastIndexByte(text, '}')
	if end > start {
		candidate := text[start : end+1]
		if err := checkValid(candidate); err != nil {
			return "", &ParseError{Text: text, Err: err}
		}
		return candidate, nil
	}
	return "", &ParseError{Text: text}
}

// JSON decodes the JSON value contained in text into a generic value.
func JSON(text string) (any, error) {
	var v any
	if err := Decode(text, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode finds the JSON document in text and unmarshals it into v. A
// document that is found but does not fit v is reported as a ParseError.
func Decode(text string, v any) error {
	doc, err := Find(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), v); err != nil {
		return &ParseError{Text: text, Err: err}
	}
	return nil
}

// balancedEnd returns the index just past the '}' that closes the object
// opened at text[start], or -1 when the object never closes.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

func checkValid(s string) error {
	var v any
	return json.Unmarshal([]byte(s), &v)
}
