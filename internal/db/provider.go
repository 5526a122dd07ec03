package db

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

// Resolver maps a connection profile name to a driver and DSN.
type Resolver func(name string) (driver, dsn string, err error)

// Provider opens one pool per profile on first use and leases it
// to callers until Reset.
type Provider struct {
	resolve Resolver

	mu    sync.Mutex
	pools map[string]*lease
}

// lease tracks the callers holding a pool. A retired pool is
// closed when its last holder releases it.
type lease struct {
	db      *DB
	refs    int
	retired bool
}

// NewProvider returns a Provider resolving profiles with r.
func NewProvider(r Resolver) *Provider {
	return &Provider{resolve: r, pools: make(map[string]*lease)}
}

// Acquire returns the pool for the named profile and a release
// func the caller must call when done with it. The pool stays
// open until released even if Reset runs in between.
func (p *Provider) Acquire(name string) (*DB, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.pools[name]
	if !ok {
		driver, dsn, err := p.resolve(name)
		if err != nil {
			return nil, nil, fmt.Errorf("resolving profile %q: %w", name, err)
		}
		d, err := Open(driver, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("profile %q: %w", name, err)
		}
		l = &lease{db: d}
		p.pools[name] = l
	}
	l.refs++
	var once sync.Once
	return l.db, func() { once.Do(func() { p.release(l) }) }, nil
}

func (p *Provider) release(l *lease) {
	p.mu.Lock()
	l.refs--
	closing := l.retired && l.refs == 0
	p.mu.Unlock()
	if closing {
		if err := l.db.Close(); err != nil {
			log.Printf("closing retired pool: %v", err)
		}
	}
}

// Reset retires every cached pool so the next Acquire re-resolves
// its profile. Idle pools close now; leased ones close on their
// last release. Used when profile definitions change.
func (p *Provider) Reset() error {
	p.mu.Lock()
	retired := p.pools
	p.pools = make(map[string]*lease)
	var idle []*DB
	for _, l := range retired {
		l.retired = true
		if l.refs == 0 {
			idle = append(idle, l.db)
		}
	}
	p.mu.Unlock()

	var errs []error
	for _, d := range idle {
		errs = append(errs, d.Close())
	}
	return errors.Join(errs...)
}

// Close releases all idle pools. Leased pools close when their
// holders release them.
func (p *Provider) Close() error {
	return p.Reset()
}
