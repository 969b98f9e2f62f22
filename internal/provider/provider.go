package provider

import (
	"context"
	"encoding/json"
	"fmt"
)

// ErrorKind classifies an adapter failure so the manager can decide how to
// report it. Every failure from an adapter is one of these.
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "RATE_LIMITED"
	KindTimeout         ErrorKind = "TIMEOUT"
	KindInvalidResponse ErrorKind = "INVALID_RESPONSE"
	KindAuthFailure     ErrorKind = "AUTH_FAILURE"
)

// Error is the typed failure an adapter returns. It always names the
// provider it came from.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Prompt is a single chat-completion request.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// Result carries the JSON document extracted from a completion, plus
// attribution for logging and persistence.
type Result struct {
	Data     json.RawMessage
	Raw      string
	Provider string
	Model    string
}

// Adapter is a single LLM backend. Generate returns either a Result whose
// Data holds a syntactically valid JSON document, or an *Error.
type Adapter interface {
	Name() string
	Generate(ctx context.Context, prompt Prompt) (Result, error)
}
