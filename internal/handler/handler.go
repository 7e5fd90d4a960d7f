package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/mcqgen/internal/document"
	"github.com/pavelanni/mcqgen/internal/extract"
	"github.com/pavelanni/mcqgen/internal/format"
	"github.com/pavelanni/mcqgen/internal/handler/views"
	"github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/mcq"
	"github.com/pavelanni/mcqgen/internal/model"
)

// Runner runs the generate-and-review pipeline.
type Runner interface {
	Run(ctx context.Context, params mcq.Params) (*model.PipelineResult, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	pipeline Runner
	schema   string
	config   model.AppConfig
	now      func() time.Time
}

// New creates a new Handler. schema is the response schema template passed
// to every generation request.
func New(p Runner, schema string, cfg model.AppConfig) (*Handler, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, errors.New("response schema is empty")
	}
	if cfg.MaxNumber <= 0 {
		cfg.MaxNumber = mcq.MaxQuestions
	}
	return &Handler{pipeline: p, schema: schema, config: cfg, now: time.Now}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/generate", h.handleGenerate)
	r.Post("/api/generate", h.handleAPIGenerate)
	r.Get("/healthz", h.handleHealth)
}

// BasePathMiddleware makes the configured URL prefix available to views.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) uploadLimit() string {
	return humanize.IBytes(uint64(h.config.MaxUpload))
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusOK, views.IndexPage(h.config, h.uploadLimit()))
}

func render(w http.ResponseWriter, r *http.Request, status int, page templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := page.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	res, meta, err := h.run(w, r)
	if err != nil {
		status, msgID, data := h.classify(err)
		slog.Error("generate failed", "status", status, "error", err)
		render(w, r, status, views.ErrorPage(msgID, data, err.Error()))
		return
	}

	quizJSON, err := prettyJSON(res.FinalQuiz)
	if err != nil {
		slog.Error("render quiz json", "run_id", res.RunID, "error", err)
		quizJSON = ""
	}
	render(w, r, http.StatusOK, views.ResultPage(views.ResultData{
		Result:   res,
		Source:   meta.Source,
		QuizJSON: quizJSON,
		Text:     format.Text(res.FinalQuiz),
		Rows:     format.Rows(res.FinalQuiz),
	}))
}

// apiResponse is the JSON body of a successful API call.
type apiResponse struct {
	model.Export
	Text  string       `json:"text"`
	Table []format.Row `json:"table"`
}

// apiError is the JSON body of a failed API call.
type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (h *Handler) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	res, meta, err := h.run(w, r)
	if err != nil {
		status, msgID, data := h.classify(err)
		slog.Error("api generate failed", "status", status, "error", err)
		writeJSON(w, status, apiError{Error: i18n.Td(r.Context(), msgID, data), Detail: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{
		Export: model.NewExport(res, meta, h.now()),
		Text:   format.Text(res.FinalQuiz),
		Table:  format.Rows(res.FinalQuiz),
	})
}

var errNoFile = errors.New("no source file uploaded")

// run reads the uploaded document and form fields and executes the pipeline.
func (h *Handler) run(w http.ResponseWriter, r *http.Request) (*model.PipelineResult, model.ExportMeta, error) {
	if h.config.MaxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, model.ExportMeta{}, err
		}
		if !errors.Is(err, http.ErrNotMultipart) {
			return nil, model.ExportMeta{}, &mcq.InputError{Field: "form", Msg: err.Error()}
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, model.ExportMeta{}, errNoFile
		}
		return nil, model.ExportMeta{}, fmt.Errorf("read upload: %w", err)
	}
	defer file.Close()

	text, err := document.Read(header.Filename, file)
	if err != nil {
		return nil, model.ExportMeta{}, err
	}

	number := h.config.DefaultNumber
	if raw := strings.TrimSpace(r.FormValue("number")); raw != "" {
		number, err = strconv.Atoi(raw)
		if err != nil {
			return nil, model.ExportMeta{}, &mcq.InputError{Field: "number", Msg: "is not a number"}
		}
	}
	if number > h.config.MaxNumber {
		return nil, model.ExportMeta{}, &mcq.InputError{Field: "number", Msg: fmt.Sprintf("must be at most %d", h.config.MaxNumber)}
	}

	meta := model.ExportMeta{
		Subject: formValue(r, "subject", h.config.DefaultSubject),
		Grade:   formValue(r, "grade", h.config.DefaultGrade),
		Tone:    formValue(r, "tone", h.config.DefaultTone),
		Model:   h.config.Model,
		Source:  header.Filename,
	}
	slog.Info("document received", "file", header.Filename, "size", humanize.IBytes(uint64(header.Size)),
		"text_chars", len(text))

	res, err := h.pipeline.Run(r.Context(), mcq.Params{
		Text:           text,
		Number:         number,
		Subject:        meta.Subject,
		Tone:           meta.Tone,
		Grade:          meta.Grade,
		ResponseSchema: h.schema,
	})
	if err != nil {
		return nil, model.ExportMeta{}, err
	}
	return res, meta, nil
}

func formValue(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return def
}

// classify maps an error to an HTTP status and a localized message ID.
func (h *Handler) classify(err error) (int, string, map[string]any) {
	var (
		tooLarge *http.MaxBytesError
		inputErr *mcq.InputError
		parseErr *extract.ParseError
	)
	switch {
	case errors.Is(err, errNoFile):
		return http.StatusBadRequest, "ErrNoFile", nil
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "ErrTooLarge", map[string]any{"Limit": h.uploadLimit()}
	case errors.Is(err, document.ErrEmptyText):
		return http.StatusBadRequest, "ErrEmptyText", nil
	case errors.Is(err, document.ErrUnsupported):
		return http.StatusBadRequest, "ErrUnsupported", nil
	case errors.As(err, &inputErr):
		return http.StatusBadRequest, "ErrInput", nil
	case errors.Is(err, llm.ErrUpstream):
		return http.StatusBadGateway, "ErrUpstream", nil
	case errors.As(err, &parseErr):
		return http.StatusBadGateway, "ErrParse", nil
	}
	return http.StatusInternalServerError, "ErrInternal", nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("write json response", "error", err)
	}
}

func prettyJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
