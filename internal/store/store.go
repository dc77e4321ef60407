// Package store holds the loaded rule set and owns the rule definition file,
// including promotion of a staged update file.
package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"rgehrsitz/assist/internal/preprocessor"
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog"
)

// Store loads rules from Path, first promoting UpdatePath over it when a
// staged update is present.
type Store struct {
	path       string
	updatePath string
	logger     zerolog.Logger

	mu     sync.RWMutex
	rules  []*rules.Rule
	loaded bool
}

// New creates a store. updatePath may be empty to disable staged updates.
func New(path, updatePath string, logger zerolog.Logger) *Store {
	return &Store{
		path:       path,
		updatePath: updatePath,
		logger:     logger.With().Str("component", "store").Logger(),
	}
}

// Path returns the active definition file path.
func (s *Store) Path() string { return s.path }

// UpdatePath returns the staged update file path.
func (s *Store) UpdatePath() string { return s.updatePath }

// Load promotes a staged update if present, parses the definitions and
// replaces the cached rule set. It never fails: a missing or malformed file
// yields an empty rule set and a logged warning, and leaves the store
// unloaded so the next cycle tries again.
func (s *Store) Load() []*rules.Rule {
	if err := s.promoteUpdate(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to promote staged rule update")
	}

	loaded, err := s.read()
	if err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Rule definitions unavailable, continuing with no rules")
		s.mu.Lock()
		s.rules = nil
		s.loaded = false
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.rules = loaded
	s.loaded = true
	s.mu.Unlock()

	s.logger.Info().Int("rules", len(loaded)).Str("path", s.path).Msg("Loaded rule definitions")
	return loaded
}

// Rules returns the cached rule set. The slice must not be modified.
func (s *Store) Rules() []*rules.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Loaded reports whether the last Load succeeded and Clear has not run since.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// Clear drops the cached rule set.
func (s *Store) Clear() {
	s.mu.Lock()
	s.rules = nil
	s.loaded = false
	s.mu.Unlock()
}

// PendingUpdate reports whether a staged update file is waiting.
func (s *Store) PendingUpdate() bool {
	if s.updatePath == "" {
		return false
	}
	info, err := os.Stat(s.updatePath)
	return err == nil && info.Mode().IsRegular()
}

// promoteUpdate renames the staged file over the active one. The rename
// replaces the old file in one step, so a reader sees either the old or the
// new definitions and never a partial file.
func (s *Store) promoteUpdate() error {
	if !s.PendingUpdate() {
		return nil
	}
	if err := os.Rename(s.updatePath, s.path); err != nil {
		// Some platforms refuse to rename over an existing file.
		if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("remove old definitions: %w", rmErr)
		}
		if err := os.Rename(s.updatePath, s.path); err != nil {
			return fmt.Errorf("promote staged definitions: %w", err)
		}
	}
	s.logger.Info().Str("from", s.updatePath).Str("to", s.path).Msg("Promoted staged rule definitions")
	return nil
}

func (s *Store) read() ([]*rules.Rule, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read rule definitions: %w", err)
	}
	parsed, recErrs, err := preprocessor.ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("parse rule definitions: %w", err)
	}
	if len(recErrs) > 0 {
		s.logger.Warn().Int("skipped", len(recErrs)).Msg("Some rule records were skipped")
	}
	return preprocessor.OptimizeRules(parsed), nil
}
