// Package ai wraps the LLM providers behind a failover pool. The pool is an
// explicitly constructed, dependency-injected object owned by the caller;
// rotation state lives in the pool instance, never in package globals.
package ai

import "context"

// Provider is one LLM backend able to answer a prompt.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Answer is a completed prompt with the provider that served it.
type Answer struct {
	Text     string `json:"text"`
	Provider string `json:"provider"`
}
