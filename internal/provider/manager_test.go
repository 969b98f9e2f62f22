package provider

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type stubAdapter struct {
	name  string
	data  string
	err   *Error
	calls int
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Generate(ctx context.Context, prompt Prompt) (Result, error) {
	s.calls++
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Data: json.RawMessage(s.data), Provider: s.name}, nil
}

func TestManagerFallsBackOnFailure(t *testing.T) {
	first := &stubAdapter{name: "moonshot", err: &Error{Provider: "moonshot", Kind: KindTimeout}}
	second := &stubAdapter{name: "deepseek", data: `{"title":"ok"}`}
	m, err := NewManager([]Adapter{first, second}, map[string][]string{
		"historical": {"moonshot", "deepseek"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	res, err := m.Generate(context.Background(), "historical", Prompt{User: "event"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Provider != "deepseek" {
		t.Fatalf("expected deepseek result, got %s", res.Provider)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Fatalf("expected both adapters called once, got %d/%d", first.calls, second.calls)
	}
}

func TestManagerFirstSuccessShortCircuits(t *testing.T) {
	first := &stubAdapter{name: "moonshot", data: `{"title":"ok"}`}
	second := &stubAdapter{name: "deepseek", data: `{"title":"other"}`}
	m, err := NewManager([]Adapter{first, second}, map[string][]string{
		"historical": {"moonshot", "deepseek"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	res, err := m.Generate(context.Background(), "historical", Prompt{User: "event"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Provider != "moonshot" {
		t.Fatalf("expected moonshot result, got %s", res.Provider)
	}
	if second.calls != 0 {
		t.Fatalf("fallback adapter should not be called, got %d calls", second.calls)
	}
}

func TestManagerExhaustedEnumeratesFailures(t *testing.T) {
	first := &stubAdapter{name: "moonshot", err: &Error{Provider: "moonshot", Kind: KindRateLimited}}
	second := &stubAdapter{name: "deepseek", err: &Error{Provider: "deepseek", Kind: KindAuthFailure}}
	m, err := NewManager([]Adapter{first, second}, map[string][]string{
		"digest": {"deepseek", "moonshot"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	_, err = m.Generate(context.Background(), "digest", Prompt{User: "digest"})
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ExhaustedError, got %v", err)
	}
	if exhausted.UseCase != "digest" {
		t.Fatalf("use case = %s", exhausted.UseCase)
	}
	if len(exhausted.Failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(exhausted.Failures))
	}
	// Failures keep the configured order, not the registration order.
	if exhausted.Failures[0].Provider != "deepseek" || exhausted.Failures[1].Provider != "moonshot" {
		t.Fatalf("unexpected failure order: %s, %s", exhausted.Failures[0].Provider, exhausted.Failures[1].Provider)
	}
	if exhausted.Failures[0].Kind != KindAuthFailure || exhausted.Failures[1].Kind != KindRateLimited {
		t.Fatalf("unexpected failure kinds: %s, %s", exhausted.Failures[0].Kind, exhausted.Failures[1].Kind)
	}
}

func TestManagerUnknownUseCase(t *testing.T) {
	m, err := NewManager([]Adapter{&stubAdapter{name: "moonshot", data: "{}"}}, map[string][]string{
		"historical": {"moonshot"},
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Generate(context.Background(), "unknown", Prompt{}); err == nil {
		t.Fatalf("expected error for unknown use case")
	}
}

func TestManagerRejectsUnknownProviderInOrder(t *testing.T) {
	_, err := NewManager([]Adapter{&stubAdapter{name: "moonshot"}}, map[string][]string{
		"historical": {"moonshot", "claude"},
	})
	if err == nil {
		t.Fatalf("expected error for unknown provider in order")
	}
}

func TestManagerStopsOnCancelledContext(t *testing.T) {
	first := &stubAdapter{name: "moonshot", err: &Error{Provider: "moonshot", Kind: KindTimeout}}
	m, err := NewManager([]Adapter{first}, map[string][]string{"historical": {"moonshot"}})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Generate(ctx, "historical", Prompt{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if first.calls != 0 {
		t.Fatalf("adapter should not run after cancellation")
	}
}
