package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var templateFS embed.FS

// Tone is the register the generated questions are written in.
type Tone string

// Supported tones. ToneSimple is the default.
const (
	ToneSimple       Tone = "simple"
	ToneAcademic     Tone = "academic"
	ToneIntermediate Tone = "intermediate"
	ToneConcise      Tone = "concise"
)

// Tones lists the tones offered to users, default first.
var Tones = []Tone{ToneSimple, ToneAcademic, ToneIntermediate, ToneConcise}

// IsValidTone checks if a tone name is one of Tones.
func IsValidTone(t string) bool {
	for _, v := range Tones {
		if string(v) == t {
			return true
		}
	}
	return false
}

const (
	generateSystem = "generate_system"
	generateUser   = "generate_user"
	reviewSystem   = "review_system"
	reviewUser     = "review_user"
)

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

// Pair is a system instruction plus the user message that follows it.
type Pair struct {
	System string
	User   string
}

// GenerateData holds template data for the quiz generation prompt.
type GenerateData struct {
	Text           string
	Number         int
	Subject        string
	Tone           string
	ResponseSchema string
}

// ReviewData holds template data for the quiz review prompt. Quiz is the
// already serialized quiz JSON.
type ReviewData struct {
	Subject string
	Grade   string
	Tone    string
	Quiz    string
}

// Load loads prompt templates from fsys, which must contain a templates/
// directory with one .txt file per prompt. Only the first call has effect;
// the Build functions fall back to the embedded templates.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		loaded := make(map[string]*template.Template)
		for _, name := range []string{generateSystem, generateUser, reviewSystem, reviewUser} {
			file := "templates/" + name + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			loaded[name] = tmpl
		}
		templates = loaded
	})
	return loadErr
}

// BuildGenerate renders the generation prompt pair.
func BuildGenerate(data GenerateData) (Pair, error) {
	return build(generateSystem, generateUser, data)
}

// BuildReview renders the review prompt pair.
func BuildReview(data ReviewData) (Pair, error) {
	return build(reviewSystem, reviewUser, data)
}

func build(systemName, userName string, data any) (Pair, error) {
	if err := Load(templateFS); err != nil {
		return Pair{}, fmt.Errorf("templates load failed: %w", err)
	}

	system, err := execute(systemName, data)
	if err != nil {
		return Pair{}, err
	}
	user, err := execute(userName, data)
	if err != nil {
		return Pair{}, err
	}
	return Pair{System: strings.TrimSpace(system), User: user}, nil
}

func execute(name string, data any) (string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", errors.New("missing prompt template: " + name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
