// Package ai defines the provider interface for AI-assisted audience
// segmentation.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Provider defines the interface for AI-powered segmentation.
type Provider interface {
	// GenerateSegmentCriteria turns a natural-language audience description
	// into structured segment criteria.
	GenerateSegmentCriteria(ctx context.Context, params GenerateParams) (*GenerateResult, error)
}

// GenerateParams contains parameters for criteria generation.
type GenerateParams struct {
	Description string    // Natural-language audience description from the user
	WorkspaceID uuid.UUID // Workspace ID for tracking
}

// GenerateResult contains the generated criteria and usage accounting.
type GenerateResult struct {
	CriteriaJSON []byte    // Structured criteria as JSON
	Usage        UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	CostCents    int
	Duration     time.Duration
}

// ProviderConfig contains common configuration for AI providers.
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidInput indicates the request content is invalid
	EAIInvalidInput = errors.New("invalid segmentation request")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
