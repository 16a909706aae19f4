package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/fitscore/internal/core/domain"
	"github.com/kirillkom/fitscore/internal/core/ports"
	"github.com/kirillkom/fitscore/internal/infrastructure/resilience"
)

// ErrUnsupportedDocument is returned by providers that cannot read the
// uploaded document type. It never counts against the upstream breaker.
var ErrUnsupportedDocument = errors.New("document type not supported by inference provider")

// Provider is a concrete inference backend.
type Provider interface {
	ports.InferenceService
	Name() string
	// CountsAsFailure reports whether err reflects upstream ill health.
	CountsAsFailure(err error) bool
}

// Guarded wraps a provider with a circuit breaker. Each call is attempted
// once; while the breaker is open calls fail fast with ErrTemporary.
type Guarded struct {
	provider Provider
	executor *resilience.Executor
}

func NewGuarded(provider Provider, executor *resilience.Executor) *Guarded {
	return &Guarded{provider: provider, executor: executor}
}

func (g *Guarded) Infer(ctx context.Context, object domain.StoredObject, mimeType, instruction string) (string, error) {
	op := "inference." + g.provider.Name()

	var text string
	err := g.executor.Execute(ctx, op, func(callCtx context.Context) error {
		out, err := g.provider.Infer(callCtx, object, mimeType, instruction)
		if err != nil {
			return err
		}
		text = out
		return nil
	}, g.countsAsFailure)
	if err != nil {
		if resilience.IsCircuitOpen(err) {
			return "", domain.WrapError(domain.ErrTemporary, op, err)
		}
		return "", domain.WrapError(domain.ErrAnalysis, op, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrAnalysis, op, errors.New("empty model response"))
	}
	return text, nil
}

func (g *Guarded) countsAsFailure(err error) bool {
	if errors.Is(err, ErrUnsupportedDocument) {
		return false
	}
	return g.provider.CountsAsFailure(err)
}
