package providers

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	MockName         = "mock"
	mockDefaultModel = "mock-model"
)

// MockResponse is one scripted reply of a MockGenerator.
type MockResponse struct {
	Result *Result
	Err    error
}

// MockGenerator is a Generator for tests and dry runs. Scripted responses
// are returned in order; once exhausted it returns ResponseText.
type MockGenerator struct {
	ModelName    string
	ResponseText string
	Latency      time.Duration

	// Func, when set, replaces the script.
	Func func(ctx context.Context, req *Request) (*Result, error)

	mu        sync.Mutex
	responses []MockResponse
	prompts   []string
}

// NewMockGenerator creates a mock generator with sensible defaults.
func NewMockGenerator(responses ...MockResponse) *MockGenerator {
	return &MockGenerator{
		ModelName:    mockDefaultModel,
		ResponseText: "mock feedback",
		responses:    responses,
	}
}

// Name returns the provider identifier.
func (m *MockGenerator) Name() string { return MockName }

// Model returns the configured model.
func (m *MockGenerator) Model() string { return m.ModelName }

// Generate records the prompt and returns the next scripted response.
func (m *MockGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	n := len(m.prompts)
	var next *MockResponse
	if len(m.responses) > 0 {
		next = &m.responses[0]
		m.responses = m.responses[1:]
	}
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if m.Func != nil {
		return m.Func(ctx, req)
	}

	if next != nil {
		if next.Err != nil {
			return nil, next.Err
		}
		if next.Result == nil {
			result := &Result{Outcome: OutcomeEmpty}
			m.stamp(result, req, n)
			return result, nil
		}
		result := *next.Result
		m.stamp(&result, req, n)
		return &result, nil
	}

	result := &Result{Outcome: OutcomeGenerated, Text: m.ResponseText}
	m.stamp(result, req, n)
	return result, nil
}

func (m *MockGenerator) stamp(r *Result, req *Request, n int) {
	r.Provider = MockName
	if r.ModelUsed == "" {
		r.ModelUsed = m.ModelName
	}
	if r.RequestID == "" {
		r.RequestID = req.RequestID
	}
	if r.RequestID == "" {
		r.RequestID = fmt.Sprintf("mock-%d", n)
	}
}

// Prompts returns the prompts received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// RequestCount returns the number of requests made.
func (m *MockGenerator) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

var _ Generator = (*MockGenerator)(nil)
