// Package providers sends assembled prompts to a generation service.
//
// A Generator makes exactly one synchronous call per Generate. Content the
// service withholds or never produces is reported through Result.Outcome;
// only transport and service failures are returned as errors.
package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrClientInit marks a failure to construct the service client.
	ErrClientInit = errors.New("failed to initialize generation client")

	// ErrModelInit marks a rejected model name.
	ErrModelInit = errors.New("failed to initialize generative model")

	// ErrUnknownProvider marks an unsupported provider type.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Generator is a generation-service backend.
type Generator interface {
	// Generate sends one prompt and classifies the response.
	Generate(ctx context.Context, req *Request) (*Result, error)

	// Name returns the provider identifier (e.g., "gemini").
	Name() string

	// Model returns the model the generator calls.
	Model() string
}

// Request is a single generation request.
type Request struct {
	Prompt string

	// Request tracking, generated when empty.
	RequestID string
}

// Outcome classifies a response that did not fail outright.
type Outcome int

const (
	// OutcomeGenerated means the service returned non-empty text.
	OutcomeGenerated Outcome = iota
	// OutcomeEmpty means no text and no block metadata.
	OutcomeEmpty
	// OutcomeBlocked means no text, with block reason or safety metadata attached.
	OutcomeBlocked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeGenerated:
		return "generated"
	case OutcomeEmpty:
		return "empty"
	case OutcomeBlocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// SafetyRating is one content-safety assessment reported by the service.
type SafetyRating struct {
	Category    string `yaml:"category"`
	Probability string `yaml:"probability,omitempty"`
	Blocked     bool   `yaml:"blocked,omitempty"`
}

func (r SafetyRating) String() string {
	s := r.Category
	if r.Probability != "" {
		s += "=" + r.Probability
	}
	if r.Blocked {
		s += " (blocked)"
	}
	return s
}

// Result is the classified response of one call.
type Result struct {
	Outcome Outcome

	// Text is the generated text, trimmed. Empty unless Outcome is OutcomeGenerated.
	Text string

	// Block metadata, when the service provided any.
	BlockReason   string
	FinishReason  string
	SafetyRatings []SafetyRating

	// Token counts
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	ExecutionTime time.Duration

	// Provider info
	Provider  string
	ModelUsed string
	RequestID string
}

// HasBlockMetadata reports whether the service explained a missing payload.
func (r *Result) HasBlockMetadata() bool {
	return r.BlockReason != "" || len(r.SafetyRatings) > 0
}

// APIError is a failure reported by the generation service.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s API error (status %d)", e.Provider, e.StatusCode)
	if e.Status != "" && !strings.Contains(e.Status, strconv.Itoa(e.StatusCode)) {
		msg += " " + e.Status
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// IsRateLimited reports whether the service rejected the call for quota.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// AsRateLimit returns the APIError in err if it is a rate-limit rejection.
func AsRateLimit(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsRateLimited() {
		return apiErr, true
	}
	return nil, false
}

// parseRetryAfter reads a Retry-After value in seconds or as a Go duration.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// validateModel rejects model names no backend would accept.
func validateModel(model string) error {
	if strings.TrimSpace(model) == "" {
		return fmt.Errorf("%w: model name is empty", ErrModelInit)
	}
	if strings.ContainsAny(model, " \t\r\n") {
		return fmt.Errorf("%w: model name %q contains whitespace", ErrModelInit, model)
	}
	return nil
}
