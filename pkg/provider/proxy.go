package provider

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoSource is returned by Proxy.Get when no wallet is bound
var ErrNoSource = errors.New("no provider source bound")

// Source hands out the provider of one wallet
type Source interface {
	GetProvider(ctx context.Context) (Provider, error)
}

// AcquireError is returned when the bound source fails to produce a provider
type AcquireError struct {
	Err error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("failed to acquire provider: %v", e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// Proxy lazily resolves and caches the provider of the currently bound source.
// Rebinding invalidates the cache; an acquisition started before a rebind
// never populates the cache of the new binding.
type Proxy struct {
	mu         sync.RWMutex
	source     Source
	cached     Provider
	generation uint64

	group singleflight.Group
}

// NewProxy creates an unbound proxy
func NewProxy() *Proxy {
	return &Proxy{}
}

// Bind swaps the source and clears the cache.
// Returns the provider cached for the previous source, if any.
func (p *Proxy) Bind(source Source) Provider {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.cached
	p.source = source
	p.cached = nil
	p.generation++
	return old
}

// Invalidate clears the cache without changing the source.
// Returns the provider that was cached.
func (p *Proxy) Invalidate() Provider {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := p.cached
	p.cached = nil
	p.generation++
	return old
}

// Cached returns the cached provider without acquiring one
func (p *Proxy) Cached() Provider {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Get returns the cached provider, acquiring it from the source on first use
func (p *Proxy) Get(ctx context.Context) (Provider, error) {
	p.mu.RLock()
	source, cached, generation := p.source, p.cached, p.generation
	p.mu.RUnlock()

	if source == nil {
		return nil, ErrNoSource
	}
	if cached != nil {
		return cached, nil
	}

	key := strconv.FormatUint(generation, 10)
	v, err, _ := p.group.Do(key, func() (interface{}, error) {
		prov, err := source.GetProvider(ctx)
		if err != nil {
			return nil, &AcquireError{Err: err}
		}
		if prov == nil {
			return nil, &AcquireError{Err: errors.New("source returned nil provider")}
		}

		p.mu.Lock()
		if p.generation == generation {
			p.cached = prov
		}
		p.mu.Unlock()

		return prov, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}
