// Package backend implements the rate-limited LLM vendor clients and the
// registry that dispatches logical agent names to them. Each configured
// backend owns a token bucket governing both token and request budgets;
// the registry wraps every call in a deadline and an audit span.
package backend

import (
	"context"
	"fmt"
)

// ID identifies a configured backend. The set is closed: registry
// construction rejects anything outside the enum, so task routing can never
// reference a vendor that does not exist.
type ID string

const (
	GPT    ID = "gpt"
	Claude ID = "claude"
	Grok   ID = "grok"
)

// ParseID validates a backend name from configuration or task routing.
func ParseID(s string) (ID, error) {
	switch ID(s) {
	case GPT, Claude, Grok:
		return ID(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

func (id ID) String() string { return string(id) }

// DisplayName returns the human-readable agent name used in audit rows and
// contradiction reports.
func (id ID) DisplayName() string {
	switch id {
	case GPT:
		return "GPT-4"
	case Claude:
		return "Claude"
	case Grok:
		return "Grok"
	}
	return string(id)
}

// Backend is a single LLM vendor endpoint. Invoke returns the generated
// text or a *CallError; it never reports a vendor failure as output.
type Backend interface {
	Invoke(ctx context.Context, prompt string, maxOutputTokens int) (string, error)
}
