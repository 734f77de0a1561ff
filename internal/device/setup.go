package device

import (
	"context"
	"fmt"
)

// SetupRepository persists setup configurations.
type SetupRepository interface {
	SaveSetup(ctx context.Context, id Identity, cfg SetupConfig) error
}

// ConfigStore reads and replaces per-device setup configuration.
type ConfigStore struct {
	registry *Registry
	repo     SetupRepository
}

// NewConfigStore creates a config store over reg. Without a repository,
// setup is held in memory only.
func NewConfigStore(reg *Registry) *ConfigStore {
	return &ConfigStore{registry: reg}
}

// SetRepository enables write-through persistence.
func (s *ConfigStore) SetRepository(repo SetupRepository) {
	s.repo = repo
}

// GetSetup returns the current setup of id. Unknown devices get the
// all-zero default.
func (s *ConfigStore) GetSetup(id Identity) SetupConfig {
	rec, ok := s.registry.lookup(id)
	if !ok {
		return SetupConfig{}
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.setup
}

// SetSetup replaces the whole setup of id.
//
// Invalid configs are rejected with an error wrapping ErrValidation. When a
// repository is configured the config is persisted before it becomes
// visible; a persistence failure leaves the current config in place.
func (s *ConfigStore) SetSetup(ctx context.Context, id Identity, cfg SetupConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	rec := s.registry.Resolve(id)

	rec.setupMu.Lock()
	defer rec.setupMu.Unlock()

	if s.repo != nil {
		if err := s.repo.SaveSetup(ctx, id, cfg); err != nil {
			return fmt.Errorf("persisting setup for %s: %w", id, err)
		}
	}

	rec.mu.Lock()
	rec.setup = cfg
	rec.mu.Unlock()

	for _, o := range s.registry.snapshotObservers() {
		o.SetupChanged(id, cfg)
	}
	return nil
}

// WithSetup calls fn with the current setup of id while holding the
// device's setup write order, like ActuatorController.WithLED. fn must not
// call SetSetup for the same device.
func (s *ConfigStore) WithSetup(id Identity, fn func(SetupConfig)) {
	rec, ok := s.registry.lookup(id)
	if !ok {
		fn(SetupConfig{})
		return
	}

	rec.setupMu.Lock()
	defer rec.setupMu.Unlock()

	rec.mu.Lock()
	cfg := rec.setup
	rec.mu.Unlock()

	fn(cfg)
}
