package ai

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Pool fans a prompt across providers with round-robin start selection and
// in-order failover: call n starts at provider n%len and walks the ring
// until one answers. An error is returned only when every provider fails.
type Pool struct {
	providers []Provider
	log       zerolog.Logger

	mu   sync.Mutex
	next int
}

// NewPool builds a pool over the given providers, tried in ring order.
func NewPool(log zerolog.Logger, providers ...Provider) *Pool {
	return &Pool{providers: providers, log: log}
}

// Size returns the number of configured providers.
func (p *Pool) Size() int { return len(p.providers) }

// rotate returns the start index for the next call and advances the ring.
func (p *Pool) rotate() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.next
	p.next = (p.next + 1) % len(p.providers)
	return idx
}

// Complete answers the prompt with the first provider that succeeds.
func (p *Pool) Complete(ctx context.Context, prompt string) (*Answer, error) {
	if len(p.providers) == 0 {
		return nil, fmt.Errorf("ai pool has no providers configured")
	}

	start := p.rotate()
	var lastErr error
	for i := 0; i < len(p.providers); i++ {
		prov := p.providers[(start+i)%len(p.providers)]
		text, err := prov.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			p.log.Warn().Err(err).Str("provider", prov.Name()).Msg("provider failed, trying next")
			continue
		}
		return &Answer{Text: text, Provider: prov.Name()}, nil
	}
	return nil, fmt.Errorf("all ai providers failed: %w", lastErr)
}
