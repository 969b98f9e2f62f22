package provider

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pd-triglav/contentd/internal/telemetry"
)

// ExhaustedError reports that every adapter configured for a use case
// failed. Failures holds the typed error from each adapter in the order
// they were tried.
type ExhaustedError struct {
	UseCase  string
	Failures []*Error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("all providers failed for %s: %s", e.UseCase, strings.Join(parts, "; "))
}

// Manager routes a generation request through the ordered adapter chain
// configured for its use case, falling through to the next adapter on any
// typed failure.
type Manager struct {
	adapters map[string]Adapter
	order    map[string][]string
	logger   *log.Logger
}

// NewManager wires adapters to the per-use-case order. Order entries that
// name an unknown adapter are rejected up front rather than at call time.
func NewManager(adapters []Adapter, order map[string][]string) (*Manager, error) {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	for useCase, names := range order {
		if len(names) == 0 {
			return nil, fmt.Errorf("use case %q has no providers", useCase)
		}
		for _, name := range names {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("use case %q references unknown provider %q", useCase, name)
			}
		}
	}
	return &Manager{
		adapters: byName,
		order:    order,
		logger:   log.New(log.Writer(), "[PROVIDER] ", log.LstdFlags),
	}, nil
}

// Generate tries each adapter for useCase in order and returns the first
// success. When every adapter fails it returns an *ExhaustedError listing
// each failure. A cancelled context stops the chain immediately.
func (m *Manager) Generate(ctx context.Context, useCase string, prompt Prompt) (Result, error) {
	names, ok := m.order[useCase]
	if !ok {
		return Result{}, fmt.Errorf("no providers configured for use case %q", useCase)
	}

	var failures []*Error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		adapter := m.adapters[name]
		telemetry.ProviderAttempts.WithLabelValues(name, useCase).Inc()

		res, err := adapter.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}

		perr, ok := err.(*Error)
		if !ok {
			perr = &Error{Provider: name, Kind: KindInvalidResponse, Err: err}
		}
		telemetry.ProviderFailures.WithLabelValues(name, useCase, string(perr.Kind)).Inc()
		m.logger.Printf("adapter %s failed for %s: %v", name, useCase, perr)
		failures = append(failures, perr)
	}

	return Result{}, &ExhaustedError{UseCase: useCase, Failures: failures}
}
