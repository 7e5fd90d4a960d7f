package mcq

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
)

// DefaultSchemaPath is the response schema template shipped with the repo.
const DefaultSchemaPath = "response.json"

// LoadResponseSchema reads the response schema template at path. The file
// must hold non-empty, syntactically valid JSON; its text is returned
// verbatim for embedding into generation prompts.
func LoadResponseSchema(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigError{Path: path, Err: err}
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", &ConfigError{Path: path, Err: errors.New("response schema is empty")}
	}
	if !json.Valid(data) {
		return "", &ConfigError{Path: path, Err: errors.New("response schema is not valid JSON")}
	}
	return string(data), nil
}
