// Package mock provides a canned ai.Provider for testing and development.
package mock

import (
	"context"
	"log/slog"
	"time"

	"github.com/faxingberling1/mailward/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateResponse *ai.GenerateResult
	GenerateError    error

	// Call tracking for testing
	GenerateCalls int
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateSegmentCriteria returns a canned engaged-subscribers segment
func (p *Provider) GenerateSegmentCriteria(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.GenerateCalls++

	if p.GenerateError != nil {
		return nil, p.GenerateError
	}
	if p.GenerateResponse != nil {
		return p.GenerateResponse, nil
	}

	p.logger.Debug("mock criteria generation", "description", params.Description)

	return &ai.GenerateResult{
		CriteriaJSON: []byte(`{"min_engagement":70,"max_engagement":100,"active_within_days":30,"subscribed_only":true}`),
		Usage: ai.UsageInfo{
			Model:        "mock",
			InputTokens:  120,
			OutputTokens: 40,
			CostCents:    0,
			Duration:     5 * time.Millisecond,
		},
	}, nil
}
