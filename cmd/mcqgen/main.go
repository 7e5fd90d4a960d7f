package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/mcqgen/internal/document"
	"github.com/pavelanni/mcqgen/internal/format"
	"github.com/pavelanni/mcqgen/internal/handler"
	appI18n "github.com/pavelanni/mcqgen/internal/i18n"
	"github.com/pavelanni/mcqgen/internal/llm"
	"github.com/pavelanni/mcqgen/internal/llm/prompts"
	"github.com/pavelanni/mcqgen/internal/mcq"
	"github.com/pavelanni/mcqgen/internal/model"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mcqgen",
		Short: "Multiple-choice quiz generator powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, generateCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mcqgen --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// commonFlags registers the settings shared by serve and generate.
func commonFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", llm.DefaultBaseURL, "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for LLM (or set MCQGEN_LLM_KEY / GROQ_API_KEY)")
	f.String("llm-model", llm.DefaultModel, "LLM model name")
	f.Duration("llm-timeout", llm.DefaultTimeout, "Timeout for a single LLM call")
	f.String("schema", mcq.DefaultSchemaPath, "Path to the response schema template (JSON)")
	f.String("prompts-dir", "", "Directory with a templates/ folder overriding the built-in prompts")
	f.IntP("number", "n", 5, "Number of questions")
	f.StringP("subject", "s", "biology", "Subject of the quiz")
	f.StringP("tone", "t", string(prompts.ToneSimple), "Tone of the questions (simple, academic, intermediate, concise)")
	f.StringP("grade", "g", "high-school", "Grade or audience")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server with the upload form",
		RunE:  runServe,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /mcq)")
	f.String("max-upload", "10MiB", "Maximum upload size")
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a quiz from a PDF or TXT file and print it",
		RunE:  runGenerate,
	}
	commonFlags(cmd)
	f := cmd.Flags()
	f.StringP("file", "f", "", "Source document (.pdf or .txt) (required)")
	f.String("format", "text", "Output format (text, json, table, csv)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func setupLogging(v *viper.Viper) {
	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MCQGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("llm-key", "MCQGEN_LLM_KEY", "GROQ_API_KEY")

	v.SetConfigName("mcqgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mcqgen")
	v.AddConfigPath("/etc/mcqgen")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// setup builds the pieces both commands need: logging, prompts, the
// response schema and the pipeline.
func setup(cmd *cobra.Command) (*viper.Viper, *mcq.Pipeline, string, error) {
	v := viperForCmd(cmd)
	setupLogging(v)

	if dir := v.GetString("prompts-dir"); dir != "" {
		if err := prompts.Load(os.DirFS(dir)); err != nil {
			return nil, nil, "", fmt.Errorf("load prompts: %w", err)
		}
		slog.Info("loaded prompt templates", "dir", dir)
	}

	schema, err := mcq.LoadResponseSchema(v.GetString("schema"))
	if err != nil {
		return nil, nil, "", err
	}

	tone := strings.ToLower(strings.TrimSpace(v.GetString("tone")))
	if !prompts.IsValidTone(tone) {
		slog.Warn("unknown tone, passing it to the model as is", "tone", tone)
	}

	key := v.GetString("llm-key")
	if key == "" {
		slog.Warn("no LLM API key configured; set MCQGEN_LLM_KEY or GROQ_API_KEY")
	}
	client := llm.New(llm.Config{
		BaseURL: v.GetString("llm-url"),
		APIKey:  key,
		Model:   v.GetString("llm-model"),
		Timeout: v.GetDuration("llm-timeout"),
	})
	pipeline := mcq.NewPipeline(llm.WithLogging(client, slog.Default()), client.Model())
	return v, pipeline, schema, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	v, pipeline, schema, err := setup(cmd)
	if err != nil {
		return err
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	maxUpload, err := humanize.ParseBytes(v.GetString("max-upload"))
	if err != nil {
		return fmt.Errorf("parse max-upload: %w", err)
	}

	basePath := model.NormalizeBasePath(v.GetString("base-path"))
	appCfg := model.AppConfig{
		DefaultNumber:  v.GetInt("number"),
		DefaultSubject: v.GetString("subject"),
		DefaultTone:    strings.ToLower(strings.TrimSpace(v.GetString("tone"))),
		DefaultGrade:   v.GetString("grade"),
		MaxNumber:      mcq.MaxQuestions,
		MaxUpload:      int64(maxUpload),
		BasePath:       basePath,
		Model:          v.GetString("llm-model"),
	}

	h, err := handler.New(pipeline, schema, appCfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", appCfg.Model,
		"llm_url", v.GetString("llm-url"),
		"llm_timeout", v.GetDuration("llm-timeout"),
		"lang", lang,
		"languages", appI18n.Languages(),
		"schema", v.GetString("schema"),
		"max_upload", humanize.IBytes(maxUpload),
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	v, pipeline, schema, err := setup(cmd)
	if err != nil {
		return err
	}

	outFormat := strings.ToLower(v.GetString("format"))
	switch outFormat {
	case "text", "json", "table", "csv":
	default:
		return fmt.Errorf("unknown format %q (want text, json, table or csv)", outFormat)
	}

	path := v.GetString("file")
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	text, err := document.Read(path, f)
	f.Close()
	if err != nil {
		return err
	}

	meta := model.ExportMeta{
		Subject: v.GetString("subject"),
		Grade:   v.GetString("grade"),
		Tone:    strings.ToLower(strings.TrimSpace(v.GetString("tone"))),
		Model:   v.GetString("llm-model"),
		Source:  path,
	}
	res, err := pipeline.Run(context.Background(), mcq.Params{
		Text:           text,
		Number:         v.GetInt("number"),
		Subject:        meta.Subject,
		Tone:           meta.Tone,
		Grade:          meta.Grade,
		ResponseSchema: schema,
	})
	if err != nil {
		return err
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer out.Close()
		w = out
	}

	if err := writeResult(w, outFormat, res, meta, time.Now()); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// writeResult prints a pipeline result in the requested format.
func writeResult(w io.Writer, outFormat string, res *model.PipelineResult, meta model.ExportMeta, at time.Time) error {
	switch outFormat {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(model.NewExport(res, meta, at))
	case "table":
		return format.WriteTable(w, format.Rows(res.FinalQuiz))
	case "csv":
		return format.WriteCSV(w, format.Rows(res.FinalQuiz))
	}

	analysis := res.Review.ComplexityAnalysis
	if strings.TrimSpace(analysis) == "" {
		analysis = "—"
	}
	if _, err := fmt.Fprintf(w, "Complexity analysis:\n%s\n\n", analysis); err != nil {
		return err
	}
	for _, warning := range res.Warnings {
		if _, err := fmt.Fprintf(w, "warning: %s\n", warning); err != nil {
			return err
		}
	}
	if len(res.Warnings) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, format.Text(res.FinalQuiz))
	return err
}
