// Package batch drives feedback generation over a folder of student papers.
//
// Files are processed one at a time. Each file ends in exactly one of: a
// feedback letter, an error file, a silent skip (unsupported type), or an
// interruption when the run is cancelled. No failure of one file stops the
// run; the Summary always reflects every file seen.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/critique/internal/corpus"
	"github.com/jackzampolin/critique/internal/document"
	"github.com/jackzampolin/critique/internal/prompts"
	"github.com/jackzampolin/critique/internal/providers"
)

// Status is the terminal state of one file.
type Status int

const (
	StatusSucceeded Status = iota
	StatusFailed
	StatusSkipped
	StatusInterrupted
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	case StatusInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// FileResult describes how one file ended.
type FileResult struct {
	Entry   corpus.Entry
	Student string
	Status  Status

	// Category is the diagnostic category for failed files.
	Category string
	// OutputPath is the feedback or error file written, if any.
	OutputPath string
	Err        error
}

// Config wires a Driver.
type Config struct {
	InputDir  string
	OutputDir string

	Template  *prompts.Template
	Extractor *document.Extractor
	Generator providers.Generator
	Pacer     *Pacer // Optional
	Logger    *slog.Logger

	// Now is the clock for diagnostics; defaults to time.Now.
	Now func() time.Time
}

// Driver runs the per-file pipeline.
type Driver struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New validates cfg and creates a Driver.
func New(cfg Config) (*Driver, error) {
	if cfg.InputDir == "" || cfg.OutputDir == "" {
		return nil, fmt.Errorf("input and output folders are required")
	}
	if cfg.Template == nil {
		return nil, fmt.Errorf("prompt template is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Extractor == nil {
		cfg.Extractor = document.NewExtractor(cfg.Logger)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Driver{cfg: cfg, logger: cfg.Logger, now: now}, nil
}

// Run processes every eligible file in the input folder once.
// It returns an error only for setup failures (missing input folder,
// unwritable output folder); per-file failures are counted in the Summary.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{InputDir: d.cfg.InputDir, OutputDir: d.cfg.OutputDir}

	entries, err := corpus.List(d.cfg.InputDir)
	if err != nil {
		return nil, err
	}
	summary.Total = len(entries)

	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	if len(entries) == 0 {
		d.logger.Info("no files found", "folder", d.cfg.InputDir)
		return summary, nil
	}

	d.logger.Info("starting batch feedback generation",
		"files", len(entries),
		"input", d.cfg.InputDir,
		"output", d.cfg.OutputDir)

	for i, entry := range entries {
		if ctx.Err() != nil {
			summary.Interrupted = true
			summary.Unprocessed += len(entries) - i
			break
		}

		result := d.ProcessFile(ctx, entry, i+1, len(entries))
		summary.record(result)

		if result.Status == StatusSucceeded && i < len(entries)-1 {
			if err := d.cfg.Pacer.AfterSuccess(ctx); err != nil {
				d.logger.Debug("pause cut short", "error", err)
			}
		}
	}

	return summary, nil
}

// ProcessFile runs one file through identify, extract, assemble, generate
// and persist. It never panics and never returns an error; the outcome is in
// the FileResult.
func (d *Driver) ProcessFile(ctx context.Context, entry corpus.Entry, index, total int) (result *FileResult) {
	d.logger.Info("processing file", "index", index, "total", total, "file", entry.Name)

	student := corpus.StudentID(entry.Name, d.logger)
	d.logger.Info("extracted identifier", "file", entry.Name, "student", student)

	log := d.logger.With("file", entry.Name, "student", student)
	result = &FileResult{Entry: entry, Student: student}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error("unexpected error processing file", "error", err)
			d.fail(result, log, &Diagnostic{
				Category: CategoryFileProcessing,
				Message:  fmt.Sprintf("Unexpected error processing file %s (Identifier: %s).", entry.Name, student),
				Reason:   "unexpected",
				Error:    err.Error(),
			}, err)
		}
	}()

	if !d.cfg.Extractor.Supports(entry.Name) {
		log.Info("skipping unsupported file type")
		result.Status = StatusSkipped
		return result
	}

	text, err := d.cfg.Extractor.Extract(ctx, entry.Path)
	if err != nil {
		if ctx.Err() != nil {
			return d.interrupted(result, log, err)
		}
		reason := "unexpected"
		var extractErr *document.ExtractError
		if errors.As(err, &extractErr) {
			reason = extractErr.Reason()
		}
		log.Warn("could not extract text", "reason", reason, "error", err)
		d.fail(result, log, &Diagnostic{
			Category: CategoryFileProcessing,
			Message:  fmt.Sprintf("Could not extract text from %s (Identifier: %s).", entry.Name, student),
			Reason:   reason,
			Error:    err.Error(),
		}, err)
		return result
	}
	log.Info("extracted text", "chars", len(text))

	prompt, err := d.cfg.Template.Fill(student, text)
	if err != nil {
		log.Error("unexpected error assembling prompt", "error", err)
		d.fail(result, log, &Diagnostic{
			Category: CategoryFileProcessing,
			Message:  fmt.Sprintf("Unexpected error processing file %s (Identifier: %s) before API call.", entry.Name, student),
			Reason:   "unexpected",
			Error:    err.Error(),
		}, err)
		return result
	}

	if err := d.cfg.Pacer.Before(ctx); err != nil {
		return d.interrupted(result, log, err)
	}

	gen := d.cfg.Generator
	requestID := uuid.New().String()
	log.Info("sending request", "provider", gen.Name(), "model", gen.Model(), "request_id", requestID)

	res, err := gen.Generate(ctx, &providers.Request{Prompt: prompt, RequestID: requestID})
	if err != nil {
		if ctx.Err() != nil {
			return d.interrupted(result, log, err)
		}
		d.cfg.Pacer.Observe(err)
		log.Error("error during API call", "error", err)

		diag := &Diagnostic{
			Category:  CategoryAPICallFailed,
			Message:   fmt.Sprintf("API call failed for %s (Identifier: %s).", entry.Name, student),
			Error:     err.Error(),
			Provider:  gen.Name(),
			Model:     gen.Model(),
			RequestID: requestID,
		}
		var apiErr *providers.APIError
		if errors.As(err, &apiErr) {
			diag.StatusCode = apiErr.StatusCode
		}
		d.fail(result, log, diag, err)
		return result
	}

	switch res.Outcome {
	case providers.OutcomeGenerated:
		path, err := writeFeedback(d.cfg.OutputDir, student, res.Text)
		if err != nil {
			log.Error("unexpected error saving feedback", "error", err)
			d.fail(result, log, &Diagnostic{
				Category: CategoryFileProcessing,
				Message:  fmt.Sprintf("Unexpected error saving feedback for %s (Identifier: %s).", entry.Name, student),
				Reason:   "unexpected",
				Error:    err.Error(),
			}, err)
			return result
		}
		log.Info("saved feedback",
			"path", path,
			"chars", len(res.Text),
			"tokens", res.TotalTokens,
			"duration", res.ExecutionTime)
		result.Status = StatusSucceeded
		result.OutputPath = path
		return result

	case providers.OutcomeBlocked:
		log.Warn("no feedback content generated",
			"block_reason", res.BlockReason,
			"safety_ratings", len(res.SafetyRatings))
		d.fail(result, log, &Diagnostic{
			Category:      CategoryBlockedOrEmpty,
			Message:       fmt.Sprintf("Feedback generation blocked or empty for %s (Identifier: %s).", entry.Name, student),
			BlockReason:   res.BlockReason,
			FinishReason:  res.FinishReason,
			SafetyRatings: res.SafetyRatings,
			Provider:      res.Provider,
			Model:         res.ModelUsed,
			RequestID:     res.RequestID,
		}, fmt.Errorf("generation blocked: %s", res.BlockReason))
		return result

	default:
		log.Warn("API returned an empty response", "finish_reason", res.FinishReason)
		d.fail(result, log, &Diagnostic{
			Category:     CategoryEmptyResponse,
			Message:      fmt.Sprintf("API returned an empty response for %s (Identifier: %s).", entry.Name, student),
			FinishReason: res.FinishReason,
			Provider:     res.Provider,
			Model:        res.ModelUsed,
			RequestID:    res.RequestID,
		}, errors.New("empty response"))
		return result
	}
}

// fail marks result failed and writes its diagnostic file.
func (d *Driver) fail(result *FileResult, log *slog.Logger, diag *Diagnostic, cause error) {
	result.Status = StatusFailed
	result.Category = diag.Category
	result.Err = cause

	diag.File = result.Entry.Name
	diag.Student = result.Student
	diag.Time = d.now().UTC()

	path, err := writeDiagnostic(d.cfg.OutputDir, diag)
	if err != nil {
		log.Error("could not write error file", "category", diag.Category, "error", err)
		return
	}
	result.OutputPath = path
}

func (d *Driver) interrupted(result *FileResult, log *slog.Logger, err error) *FileResult {
	log.Warn("run interrupted", "error", err)
	result.Status = StatusInterrupted
	result.Err = err
	return result
}

// eligible reports whether a watcher event path names a candidate file.
func (d *Driver) eligible(path string) bool {
	name := filepath.Base(path)
	if corpus.IsHidden(name) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
