package pipeline

import (
	"context"

	"github.com/panjf2000/ants/v2"
)

// Default per-service concurrency caps. The fetch cap is per process, not
// per remote host.
const (
	defaultFetchSlots   = 4
	defaultExtractSlots = 2
	defaultEmbedSlots   = 4
	defaultStoreSlots   = 8
)

// Limiter caps concurrent calls to one external service. It is a thin
// wrapper over a bounded goroutine pool: Do blocks for a slot, runs fn,
// and returns its error.
type Limiter struct {
	pool *ants.Pool
}

// NewLimiter creates a limiter with the given number of slots.
func NewLimiter(slots int) (*Limiter, error) {
	if slots < 1 {
		slots = 1
	}
	pool, err := ants.NewPool(slots)
	if err != nil {
		return nil, err
	}
	return &Limiter{pool: pool}, nil
}

// Do runs fn under the limiter. It blocks until a slot is free, then waits
// for fn to finish. When ctx is done before fn completes, Do returns the
// context error; fn still runs to completion in the background.
func (l *Limiter) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if err := l.pool.Submit(func() {
		done <- fn()
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// Release frees the limiter's pool. The limiter must not be used afterwards.
func (l *Limiter) Release() {
	l.pool.Release()
}

// ServiceLimits groups the per-service limiters shared by every worker.
// Caps apply across the whole process regardless of worker count.
type ServiceLimits struct {
	Fetch   *Limiter
	Extract *Limiter
	Embed   *Limiter
	Store   *Limiter
}

// LimitsConfig sets the slot count per service. Zero or negative values
// fall back to the defaults.
type LimitsConfig struct {
	FetchSlots   int
	ExtractSlots int
	EmbedSlots   int
	StoreSlots   int
}

// NewServiceLimits creates the four service limiters.
func NewServiceLimits(cfg LimitsConfig) (*ServiceLimits, error) {
	if cfg.FetchSlots < 1 {
		cfg.FetchSlots = defaultFetchSlots
	}
	if cfg.ExtractSlots < 1 {
		cfg.ExtractSlots = defaultExtractSlots
	}
	if cfg.EmbedSlots < 1 {
		cfg.EmbedSlots = defaultEmbedSlots
	}
	if cfg.StoreSlots < 1 {
		cfg.StoreSlots = defaultStoreSlots
	}

	limits := &ServiceLimits{}
	var err error
	if limits.Fetch, err = NewLimiter(cfg.FetchSlots); err != nil {
		return nil, err
	}
	if limits.Extract, err = NewLimiter(cfg.ExtractSlots); err != nil {
		limits.Release()
		return nil, err
	}
	if limits.Embed, err = NewLimiter(cfg.EmbedSlots); err != nil {
		limits.Release()
		return nil, err
	}
	if limits.Store, err = NewLimiter(cfg.StoreSlots); err != nil {
		limits.Release()
		return nil, err
	}
	return limits, nil
}

// Release frees all underlying pools.
func (s *ServiceLimits) Release() {
	for _, l := range []*Limiter{s.Fetch, s.Extract, s.Embed, s.Store} {
		if l != nil {
			l.Release()
		}
	}
}
