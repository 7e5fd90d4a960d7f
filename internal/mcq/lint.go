package mcq

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pavelanni/mcqgen/internal/model"
)

const quizSchemaURL = "mcqgen://quiz.json"

// quizSchema describes the quiz shape the prompts ask for.
const quizSchema = `{
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["mcq", "options", "correct"],
    "properties": {
      "mcq": {"type": "string", "minLength": 1},
      "options": {
        "type": "object",
        "minProperties": 2,
        "propertyNames": {"enum": ["a", "b", "c", "d"]},
        "additionalProperties": {"type": "string", "minLength": 1}
      },
      "correct": {"type": "string"},
      "explanation": {"type": "string"}
    }
  }
}`

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func lintSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(quizSchema))
		if err != nil {
			compileErr = fmt.Errorf("parse quiz schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(quizSchemaURL, doc); err != nil {
			compileErr = fmt.Errorf("add quiz schema: %w", err)
			return
		}
		compiled, compileErr = c.Compile(quizSchemaURL)
	})
	return compiled, compileErr
}

// Lint checks a quiz against the shape the prompts ask for and reports each
// problem as a human-readable warning. A nil result means no problems.
func Lint(q model.Quiz) []string {
	var warnings []string

	sch, err := lintSchema()
	if err != nil {
		return []string{err.Error()}
	}
	data, err := json.Marshal(q)
	if err != nil {
		return []string{fmt.Sprintf("serialize quiz: %v", err)}
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return []string{fmt.Sprintf("parse quiz: %v", err)}
	}
	if err := sch.Validate(inst); err != nil {
		warnings = append(warnings, schemaWarnings(err)...)
	}

	for _, key := range q.Keys() {
		item, _ := q.Get(key)
		switch _, ok := item.Options[item.Correct]; {
		case item.Correct == "":
			warnings = append(warnings, fmt.Sprintf("question %s: no correct answer", key))
		case !ok:
			warnings = append(warnings, fmt.Sprintf("question %s: correct answer %q is not among its options", key, item.Correct))
		}
	}
	return warnings
}

// schemaWarnings turns a validation error into one line per finding.
func schemaWarnings(err error) []string {
	lines := strings.Split(err.Error(), "\n")
	if len(lines) == 1 {
		return lines
	}
	var out []string
	for _, line := range lines[1:] {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}
