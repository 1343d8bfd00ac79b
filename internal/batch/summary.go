package batch

import (
	"fmt"
	"io"
	"strings"
)

var separator = strings.Repeat("-", 50)

// Summary counts what a run did.
type Summary struct {
	InputDir  string `json:"input_dir" yaml:"input_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	Total     int `json:"total" yaml:"total"` // Files found
	Succeeded int `json:"succeeded" yaml:"succeeded"`
	Errored   int `json:"errored" yaml:"errored"`
	Skipped   int `json:"skipped" yaml:"skipped"` // Unsupported file types

	// Interrupted is set when the run was cancelled before every file was processed.
	Interrupted bool `json:"interrupted" yaml:"interrupted"`
	Unprocessed int  `json:"unprocessed,omitempty" yaml:"unprocessed,omitempty"`
}

func (s *Summary) record(r *FileResult) {
	switch r.Status {
	case StatusSucceeded:
		s.Succeeded++
	case StatusFailed:
		s.Errored++
	case StatusSkipped:
		s.Skipped++
	case StatusInterrupted:
		s.Interrupted = true
		s.Unprocessed++
	}
}

// Report prints the summary block and the follow-up reminders.
func (s *Summary) Report(w io.Writer) {
	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, "\n--- Batch Feedback Generation Summary ---")
	fmt.Fprintf(w, "Total files found in '%s': %d\n", s.InputDir, s.Total)
	fmt.Fprintf(w, "Successfully generated feedback for: %d files\n", s.Succeeded)
	fmt.Fprintf(w, "Files resulting in errors: %d\n", s.Errored)
	fmt.Fprintf(w, "Unsupported files skipped: %d\n", s.Skipped)
	if s.Interrupted {
		fmt.Fprintf(w, "Run interrupted; files not processed: %d\n", s.Unprocessed)
	}
	fmt.Fprintf(w, "Feedback files (and any error logs) saved in the '%s' folder.\n", s.OutputDir)
	fmt.Fprintln(w, "\n--- IMPORTANT REMINDERS ---")
	fmt.Fprintln(w, "1. REVIEW AND EDIT EACH feedback file carefully before sharing.")
	fmt.Fprintln(w, "2. Manually replace the student identifier (username) in each feedback letter's salutation with the student's actual name.")
	fmt.Fprintln(w, separator)
}
