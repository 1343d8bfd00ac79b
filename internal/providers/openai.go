package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName         = "openai"
	OpenAIDefaultModel = "gpt-4o-mini"

	openAIFinishContentFilter = "content_filter"
)

// OpenAIGenerator calls an OpenAI-compatible chat completions endpoint.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	temperature float64
}

// NewOpenAIGenerator creates an OpenAI generator. The SDK's own retries are
// disabled so each Generate is exactly one call.
func NewOpenAIGenerator(cfg Config) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		cfg.Model = OpenAIDefaultModel
	}
	if err := validateModel(cfg.Model); err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", ErrClientInit)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClientFor(cfg)),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Name returns the provider identifier.
func (g *OpenAIGenerator) Name() string { return OpenAIName }

// Model returns the configured model.
func (g *OpenAIGenerator) Model() string { return g.model }

// Generate sends the prompt as a single user message.
func (g *OpenAIGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}

	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params, option.WithHeader("X-Request-ID", requestID))
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	result := classifyOpenAI(resp)
	result.ExecutionTime = time.Since(start)
	result.Provider = OpenAIName
	result.ModelUsed = g.model
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	result.RequestID = requestID
	return result, nil
}

// classifyOpenAI turns a completion into a Result. A refusal or a
// content_filter finish without text is Blocked.
func classifyOpenAI(resp *openai.ChatCompletion) *Result {
	result := &Result{Outcome: OutcomeEmpty}
	if resp == nil {
		return result
	}

	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)

	if len(resp.Choices) == 0 {
		return result
	}
	choice := resp.Choices[0]
	result.FinishReason = choice.FinishReason

	if text := strings.TrimSpace(choice.Message.Content); text != "" {
		result.Outcome = OutcomeGenerated
		result.Text = text
		return result
	}

	switch {
	case choice.Message.Refusal != "":
		result.BlockReason = "refusal: " + strings.TrimSpace(choice.Message.Refusal)
	case choice.FinishReason == openAIFinishContentFilter:
		result.BlockReason = openAIFinishContentFilter
	}
	if result.HasBlockMetadata() {
		result.Outcome = OutcomeBlocked
	}
	return result
}

// mapOpenAIError converts SDK errors to *APIError where the service answered.
func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	out := &APIError{
		Provider:   OpenAIName,
		StatusCode: apiErr.StatusCode,
		Message:    apiErr.Message,
	}
	if apiErr.Response != nil {
		out.Status = apiErr.Response.Status
		out.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
	}
	return out
}

var _ Generator = (*OpenAIGenerator)(nil)
