package runtime

import (
	"context"
	"sync/atomic"
	"time"

	"rgehrsitz/assist/internal/metrics"
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog"
)

// Gate debounces suggestion popups. The presentation layer calls TryShow on
// every scene update; at most one caller wins for a given suggestion.
type Gate struct {
	state    *State
	interval time.Duration
	passive  atomic.Bool
	now      func() time.Time
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// NewGate creates a gate over state that allows one popup per interval.
func NewGate(state *State, interval time.Duration, passive bool, m *metrics.Collector, logger zerolog.Logger) *Gate {
	g := &Gate{
		state:    state,
		interval: interval,
		now:      time.Now,
		metrics:  m,
		logger:   logger.With().Str("component", "gate").Logger(),
	}
	g.passive.Store(passive)
	return g
}

// SetPassive switches passive presentation mode, in which popups are never
// forced and the host only signals that a suggestion exists.
func (g *Gate) SetPassive(passive bool) { g.passive.Store(passive) }

// Passive reports whether passive mode is on.
func (g *Gate) Passive() bool { return g.passive.Load() }

// TryShow returns the active suggestion when it may be shown now. A true
// result has already been recorded as the latest popup.
func (g *Gate) TryShow(ctx context.Context) (*rules.Rule, bool) {
	now := g.now()
	r, ok := g.state.claimPopup(now, g.interval, g.passive.Load())
	if !ok {
		return nil, false
	}
	g.logger.Info().Str("rule", r.ID).Msg("Suggestion found, triggering popup")
	g.metrics.RecordShown(ctx, r.ID, now)
	return r, true
}
