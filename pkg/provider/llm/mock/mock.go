// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider to return canned completions without a live model and to
// inspect the prompts the system under test builds.
package mock

import (
	"context"
	"sync"

	"github.com/lorevault/lorevault/pkg/provider/llm"
)

// Provider is a mock implementation of llm.Provider.
type Provider struct {
	mu sync.Mutex

	// CompleteResult is returned by Complete when CompleteFunc is nil.
	// When both are unset, Complete returns an empty response.
	CompleteResult *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, when non-nil, overrides CompleteResult/CompleteErr and
	// computes the response from the request. Useful for tests that issue
	// several different prompts.
	CompleteFunc func(req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// CompleteCalls records every request passed to Complete, in order.
	CompleteCalls []llm.CompletionRequest
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = append(p.CompleteCalls, req)
	if p.CompleteFunc != nil {
		return p.CompleteFunc(req)
	}
	if p.CompleteErr != nil {
		return nil, p.CompleteErr
	}
	if p.CompleteResult != nil {
		return p.CompleteResult, nil
	}
	return &llm.CompletionResponse{}, nil
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
