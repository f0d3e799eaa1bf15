// Package llmclient provides the chat-completion abstraction the sink
// identifier (P3) and taint analyzer (P5) drive, plus one thin
// Ollama/OpenAI-compatible HTTP implementation. Concrete per-provider
// clients are explicitly out of scope for this system's core design; this
// package exists so the rest of the pipeline has something real to run
// against, grounded on the teacher's own generic LLM client shape.
package llmclient

import (
	"context"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// ChatCompleter sends a conversation to a model and returns its reply. It is
// the only interface the taint analyzer and sink identifier depend on —
// swapping providers means swapping the implementation passed in, never
// touching the phases themselves.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, messages []Message) (string, error)
}

// ErrorClass taxonomizes failures so callers can decide retry policy and
// severity without string-matching error text.
type ErrorClass string

const (
	ErrTimeout       ErrorClass = "TIMEOUT"
	ErrRateLimit     ErrorClass = "RATE_LIMIT"
	ErrTokenLimit    ErrorClass = "TOKEN_LIMIT"
	ErrAuth          ErrorClass = "AUTH_ERROR"
	ErrContentFilter ErrorClass = "CONTENT_FILTER"
	ErrServer        ErrorClass = "SERVER_ERROR"
	ErrNetwork       ErrorClass = "NETWORK_ERROR"
	ErrUnknown       ErrorClass = "UNKNOWN"
)

// Error wraps a classified LLM failure.
type Error struct {
	Class   ErrorClass
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Class) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Class) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Retriable reports whether the retry policy (§4.6) should attempt this
// call again. Auth failures, token-limit overruns, and content-filter
// rejections never succeed on retry.
func (e *Error) Retriable() bool {
	switch e.Class {
	case ErrAuth, ErrTokenLimit, ErrContentFilter:
		return false
	default:
		return true
	}
}

func classify(class ErrorClass, msg string, cause error) *Error {
	return &Error{Class: class, Message: msg, Cause: cause}
}
