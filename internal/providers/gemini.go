package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const (
	GeminiName         = "gemini"
	GeminiDefaultModel = "gemini-2.0-flash"
)

// blockFinishReasons are candidate finish reasons that mean the content was withheld.
var blockFinishReasons = map[genai.FinishReason]bool{
	genai.FinishReasonSafety:            true,
	genai.FinishReasonRecitation:        true,
	genai.FinishReasonBlocklist:         true,
	genai.FinishReasonProhibitedContent: true,
	genai.FinishReasonSPII:              true,
}

// GeminiGenerator calls the Gemini API through the google.golang.org/genai SDK.
type GeminiGenerator struct {
	client      *genai.Client
	model       string
	temperature float64
}

// NewGeminiGenerator creates a Gemini generator.
func NewGeminiGenerator(ctx context.Context, cfg Config) (*GeminiGenerator, error) {
	if cfg.Model == "" {
		cfg.Model = GeminiDefaultModel
	}
	if err := validateModel(cfg.Model); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required", ErrClientInit)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClientFor(cfg),
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientInit, err)
	}

	return &GeminiGenerator{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the provider identifier.
func (g *GeminiGenerator) Name() string { return GeminiName }

// Model returns the configured model.
func (g *GeminiGenerator) Model() string { return g.model }

// Generate sends the prompt as a single user turn.
func (g *GeminiGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	var config *genai.GenerateContentConfig
	if g.temperature > 0 {
		config = &genai.GenerateContentConfig{Temperature: genai.Ptr(float32(g.temperature))}
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, mapGeminiError(err)
	}

	result := classifyGemini(resp)
	result.ExecutionTime = time.Since(start)
	result.Provider = GeminiName
	result.ModelUsed = g.model
	if resp.ModelVersion != "" {
		result.ModelUsed = resp.ModelVersion
	}
	result.RequestID = requestID
	return result, nil
}

// classifyGemini turns a response into a Result. Text wins; without text,
// any block reason, blocking finish reason or safety rating makes the
// result Blocked, and nothing at all makes it Empty.
func classifyGemini(resp *genai.GenerateContentResponse) *Result {
	result := &Result{Outcome: OutcomeEmpty}
	if resp == nil {
		return result
	}

	if u := resp.UsageMetadata; u != nil {
		result.PromptTokens = int(u.PromptTokenCount)
		result.CompletionTokens = int(u.CandidatesTokenCount)
		result.TotalTokens = int(u.TotalTokenCount)
	}

	var cand *genai.Candidate
	if len(resp.Candidates) > 0 {
		cand = resp.Candidates[0]
	}

	if cand != nil && cand.Content != nil {
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part == nil || part.Thought {
				continue
			}
			sb.WriteString(part.Text)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			result.Outcome = OutcomeGenerated
			result.Text = text
			result.FinishReason = string(cand.FinishReason)
			return result
		}
	}

	if fb := resp.PromptFeedback; fb != nil {
		if fb.BlockReason != "" && fb.BlockReason != genai.BlockedReasonUnspecified {
			result.BlockReason = string(fb.BlockReason)
			if fb.BlockReasonMessage != "" {
				result.BlockReason += ": " + fb.BlockReasonMessage
			}
		}
		result.SafetyRatings = append(result.SafetyRatings, convertSafetyRatings(fb.SafetyRatings)...)
	}

	if cand != nil {
		if cand.FinishReason != "" && cand.FinishReason != genai.FinishReasonUnspecified {
			result.FinishReason = string(cand.FinishReason)
		}
		if blockFinishReasons[cand.FinishReason] && result.BlockReason == "" {
			result.BlockReason = string(cand.FinishReason)
			if cand.FinishMessage != "" {
				result.BlockReason += ": " + cand.FinishMessage
			}
		}
		result.SafetyRatings = append(result.SafetyRatings, convertSafetyRatings(cand.SafetyRatings)...)
	}

	if result.HasBlockMetadata() {
		result.Outcome = OutcomeBlocked
	}
	return result
}

func convertSafetyRatings(in []*genai.SafetyRating) []SafetyRating {
	var out []SafetyRating
	for _, r := range in {
		if r == nil {
			continue
		}
		out = append(out, SafetyRating{
			Category:    string(r.Category),
			Probability: string(r.Probability),
			Blocked:     r.Blocked,
		})
	}
	return out
}

// mapGeminiError converts SDK errors to *APIError where the service answered.
func mapGeminiError(err error) error {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return err
	}

	return &APIError{
		Provider:   GeminiName,
		StatusCode: apiErr.Code,
		Status:     apiErr.Status,
		Message:    apiErr.Message,
		RetryAfter: geminiRetryDelay(apiErr.Details),
	}
}

// geminiRetryDelay reads the retryDelay of a google.rpc.RetryInfo detail.
func geminiRetryDelay(details []map[string]any) time.Duration {
	for _, d := range details {
		typ, _ := d["@type"].(string)
		if !strings.HasSuffix(typ, "RetryInfo") {
			continue
		}
		if delay, ok := d["retryDelay"].(string); ok {
			return parseRetryAfter(delay)
		}
	}
	return 0
}

var _ Generator = (*GeminiGenerator)(nil)
