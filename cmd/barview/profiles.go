package main

import (
	"sync"

	"github.com/wesm/barview/internal/config"
)

// profileStore holds the current connection profiles so a
// db.Provider resolves names against the latest file contents.
type profileStore struct {
	path string

	mu       sync.RWMutex
	profiles config.Profiles
}

// Reload re-reads the profiles file and the DB_* environment.
// On error the previous set is kept.
func (s *profileStore) Reload() error {
	profiles, err := config.LoadProfiles(s.path)
	if err != nil {
		return err
	}
	profiles, err = profiles.WithEnv()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profiles = profiles
	s.mu.Unlock()
	return nil
}

// Resolve implements db.Resolver.
func (s *profileStore) Resolve(name string) (driver, dsn string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles.Resolve(name)
}

func (s *profileStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles.Names()
}
