package diagnostics

import (
	"context"
	"time"
)

// Generator is the narrow surface InstrumentedGenerator wraps; structurally
// identical to pipeline.Generator, declared locally so this package doesn't
// import the pipeline package back.
type Generator interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

type stageKey struct{}
type jobIDKey struct{}

// WithStage tags ctx with the pipeline stage name for the next Complete call
// an InstrumentedGenerator makes against it.
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

// WithJobID tags ctx with the job id the call belongs to.
func WithJobID(ctx context.Context, jobID string) context.Context {
	return context.WithValue(ctx, jobIDKey{}, jobID)
}

func stageFrom(ctx context.Context) string {
	if v, ok := ctx.Value(stageKey{}).(string); ok {
		return v
	}
	return "unknown"
}

func jobIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(jobIDKey{}).(string); ok {
		return v
	}
	return ""
}

// InstrumentedGenerator wraps a Generator, recording one ProviderCallLog
// entry per Complete call against the bound Store.
type InstrumentedGenerator struct {
	Inner Generator
	Store *Store
}

// Complete delegates to Inner and records latency/outcome, tagging the
// entry with the stage and job id carried on ctx (WithStage/WithJobID).
func (g *InstrumentedGenerator) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	start := time.Now()
	text, err := g.Inner.Complete(ctx, model, systemPrompt, userPrompt, temperature, maxTokens)
	g.Store.Record(jobIDFrom(ctx), stageFrom(ctx), model, time.Since(start), err)
	return text, err
}
