package solution

import (
	"context"
	"fmt"
	"time"

	"fixmystuff/internal/featureflags"
	"fixmystuff/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

// GeminiFlag routes a user to the Gemini generator when enabled for them.
const GeminiFlag = "gemini_solutions"

// Selector chooses the generator for a caller.
type Selector struct {
	fallback Generator
	gemini   Generator
	flags    *featureflags.Manager
	delay    time.Duration
}

// NewSelector returns a Selector. gemini may be nil when no API key is configured.
func NewSelector(fallback, gemini Generator, flags *featureflags.Manager, delay time.Duration) *Selector {
	return &Selector{fallback: fallback, gemini: gemini, flags: flags, delay: delay}
}

// For returns the generator to use for userID (0 for anonymous callers).
func (s *Selector) For(userID uint) Generator {
	if s.gemini != nil && s.flags.Enabled(GeminiFlag, userID) {
		return s.gemini
	}
	return s.fallback
}

// Generate runs the caller's generator after the configured processing
// delay, recording metrics and a span.
func (s *Selector) Generate(ctx context.Context, userID uint, req Request) (string, string, error) {
	gen := s.For(userID)

	ctx, span := observability.StartSpan(ctx, "solution", "generate",
		attribute.String("solution.provider", gen.Name()),
	)
	start := time.Now()

	text, err := s.run(ctx, gen, req)
	observability.ObserveSolution(gen.Name(), start, err)
	observability.EndSpan(span, err)
	return text, gen.Name(), err
}

func (s *Selector) run(ctx context.Context, gen Generator, req Request) (string, error) {
	if err := sleepContext(ctx, s.delay); err != nil {
		return "", err
	}
	text, err := gen.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s generator: %w", gen.Name(), err)
	}
	return text, nil
}

// New builds the generator named by provider.
func New(ctx context.Context, provider, geminiKey, geminiModel string) (Generator, error) {
	switch provider {
	case "", ProviderTemplate:
		return NewDetailed(nil), nil
	case ProviderQuick:
		return NewQuick(nil), nil
	case ProviderGemini:
		return NewGemini(ctx, geminiKey, geminiModel)
	default:
		return nil, fmt.Errorf("unknown solution provider %q", provider)
	}
}
