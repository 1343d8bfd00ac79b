package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/critique/internal/batch"
	"github.com/jackzampolin/critique/internal/document"
	"github.com/jackzampolin/critique/internal/prompts"
	"github.com/jackzampolin/critique/internal/providers"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate feedback for every paper in the papers folder",
	Long: `Process every .docx and .pdf file in the papers folder, one at a time,
and write a feedback letter or an error file for each into the feedback
folder. Other files are skipped. A summary is printed at the end.

Examples:
  critique run
  critique run --papers essays --feedback letters
  critique run --provider openai --model gpt-4o-mini
  critique run --assignment ~/.critique/assignment.yaml --delay 10s`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSession(cmd)
		if err != nil {
			return err
		}

		driver, err := buildDriver(cmd.Context(), s, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		summary, err := driver.Run(cmd.Context())
		if err != nil {
			return err
		}
		return printSummary(cmd.OutOrStdout(), summary)
	},
}

func init() {
	addBatchFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

// addBatchFlags registers the flags shared by run and watch.
func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().String("papers", "papers", "folder containing student papers")
	cmd.Flags().String("feedback", "feedback", "folder to write feedback and error files to")
	cmd.Flags().String("provider", providers.GeminiName, "generation backend: gemini, openai or mock")
	cmd.Flags().String("model", providers.GeminiDefaultModel, "model name (other backends use their own default unless set)")
	cmd.Flags().String("assignment", "", "assignment YAML file (default: built-in Project 1)")
	cmd.Flags().Duration("delay", batch.DefaultDelay, "pause after each successful file")
}

// buildDriver validates the configuration and wires the batch pipeline.
// Every error it returns is fatal: no paper has been touched yet.
func buildDriver(ctx context.Context, s *session, out io.Writer) (*batch.Driver, error) {
	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := s.logger.With("run_id", uuid.New().String())

	gen, err := providers.NewGenerator(ctx, providers.Config{
		Type:        cfg.Provider.Type,
		Model:       cfg.GeneratorModel(),
		APIKey:      cfg.ResolveAPIKey(),
		BaseURL:     cfg.Provider.BaseURL,
		Temperature: cfg.Provider.Temperature,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "Using generative model: %s\n", gen.Model())

	assignment, err := prompts.ResolveAssignment(s.assignmentPath())
	if err != nil {
		return nil, err
	}
	tmpl, err := prompts.NewTemplate(assignment)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded assignment",
		"name", assignment.Name,
		"source", assignment.Source,
		"template_hash", tmpl.Hash()[:12],
	)

	return batch.New(batch.Config{
		InputDir:  cfg.Paths.Papers,
		OutputDir: cfg.Paths.Feedback,
		Template:  tmpl,
		Extractor: document.NewExtractor(logger),
		Generator: gen,
		Pacer:     batch.NewPacer(cfg.Pacing.Delay, cfg.Pacing.RequestsPerMinute, logger),
		Logger:    logger,
		Now:       time.Now,
	})
}

func printSummary(w io.Writer, summary *batch.Summary) error {
	if outputFormat == outputText {
		summary.Report(w)
		return nil
	}
	return encode(w, outputFormat, summary)
}
