package model

import "time"

// Export is the top-level JSON structure for a generated quiz.
type Export struct {
	RunID              string    `json:"run_id"`
	Subject            string    `json:"subject"`
	Grade              string    `json:"grade"`
	Tone               string    `json:"tone"`
	Model              string    `json:"model"`
	Source             string    `json:"source,omitempty"`
	GeneratedAt        time.Time `json:"generated_at"`
	NumQuestions       int       `json:"num_questions"`
	ComplexityAnalysis string    `json:"complexity_analysis"`
	Quiz               Quiz      `json:"quiz"`
	Review             Review    `json:"review"`
	FinalQuiz          Quiz      `json:"final_quiz"`
	Warnings           []string  `json:"warnings,omitempty"`
}

// ExportMeta describes the request that produced a result.
type ExportMeta struct {
	Subject string
	Grade   string
	Tone    string
	Model   string
	Source  string
}

// NewExport builds an Export from a pipeline result.
func NewExport(res *PipelineResult, meta ExportMeta, at time.Time) Export {
	return Export{
		RunID:              res.RunID,
		Subject:            meta.Subject,
		Grade:              meta.Grade,
		Tone:               meta.Tone,
		Model:              meta.Model,
		Source:             meta.Source,
		GeneratedAt:        at.UTC(),
		NumQuestions:       res.FinalQuiz.Len(),
		ComplexityAnalysis: res.Review.ComplexityAnalysis,
		Quiz:               res.Quiz,
		Review:             res.Review,
		FinalQuiz:          res.FinalQuiz,
		Warnings:           res.Warnings,
	}
}
