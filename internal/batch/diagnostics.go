package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jackzampolin/critique/internal/providers"
)

// Diagnostic categories, used as the suffix of error file names.
const (
	CategoryBlockedOrEmpty = "FeedbackBlockedOrEmpty"
	CategoryEmptyResponse  = "EmptyResponse"
	CategoryAPICallFailed  = "API_Call_Failed"
	CategoryFileProcessing = "File_Processing"
)

// FeedbackPath returns the output path of a student's feedback letter.
func FeedbackPath(dir, student string) string {
	return filepath.Join(dir, student+"_feedback.txt")
}

// DiagnosticPath returns the output path of a student's error file.
func DiagnosticPath(dir, student, category string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_ERROR_%s.txt", student, category))
}

// Diagnostic is the body of an error file.
type Diagnostic struct {
	Category string `yaml:"category"`
	File     string `yaml:"file"`
	Student  string `yaml:"identifier"`
	Message  string `yaml:"message"`

	// Reason names the extraction failure kind for File_Processing.
	Reason string `yaml:"reason,omitempty"`
	Error  string `yaml:"error,omitempty"`

	BlockReason   string                   `yaml:"block_reason,omitempty"`
	FinishReason  string                   `yaml:"finish_reason,omitempty"`
	SafetyRatings []providers.SafetyRating `yaml:"safety_ratings,omitempty"`
	StatusCode    int                      `yaml:"status_code,omitempty"`

	Provider  string    `yaml:"provider,omitempty"`
	Model     string    `yaml:"model,omitempty"`
	RequestID string    `yaml:"request_id,omitempty"`
	Time      time.Time `yaml:"time"`
}

// writeDiagnostic writes d to its category's error file and returns the path.
func writeDiagnostic(dir string, d *Diagnostic) (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostic: %w", err)
	}

	path := DiagnosticPath(dir, d.Student, d.Category)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write diagnostic: %w", err)
	}
	return path, nil
}

// writeFeedback writes the generated letter verbatim.
func writeFeedback(dir, student, text string) (string, error) {
	path := FeedbackPath(dir, student)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write feedback: %w", err)
	}
	return path, nil
}
