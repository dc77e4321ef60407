package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "rgehrsitz/assist"

// Collector aggregates per-rule suggestion counters and mirrors them to
// OpenTelemetry instruments. A nil Collector is valid and records nothing.
type Collector struct {
	mu      sync.RWMutex
	enabled bool
	started time.Time
	cycles  uint64
	rules   map[string]*RuleMetrics

	cycleCounter     metric.Int64Counter
	matchCounter     metric.Int64Counter
	popupCounter     metric.Int64Counter
	dismissCounter   metric.Int64Counter
	directiveCounter metric.Int64Counter
	cycleDuration    metric.Float64Histogram
}

// RuleMetrics captures per-rule counters tracked by the collector.
type RuleMetrics struct {
	Rule        string    `json:"rule"`
	Matched     uint64    `json:"matched"`
	Shown       uint64    `json:"shown"`
	Dismissed   uint64    `json:"dismissed"`
	Acted       uint64    `json:"acted"`
	LastMatched time.Time `json:"lastMatched,omitempty"`
	LastShown   time.Time `json:"lastShown,omitempty"`
}

// Totals aggregates counters across all rules in a snapshot.
type Totals struct {
	Cycles    uint64 `json:"cycles"`
	Matched   uint64 `json:"matched"`
	Shown     uint64 `json:"shown"`
	Dismissed uint64 `json:"dismissed"`
	Acted     uint64 `json:"acted"`
}

// Snapshot is the serializable view of the current metrics state.
type Snapshot struct {
	Enabled bool          `json:"enabled"`
	Started time.Time     `json:"started,omitempty"`
	Totals  Totals        `json:"totals"`
	Rules   []RuleMetrics `json:"rules,omitempty"`
}

// NewCollector returns a collector using the global meter provider.
func NewCollector(enabled bool) *Collector {
	return NewCollectorWithMeter(enabled, otel.Meter(meterName))
}

// NewCollectorWithMeter returns a collector recording to meter.
func NewCollectorWithMeter(enabled bool, meter metric.Meter) *Collector {
	c := &Collector{}
	// Instrument creation only fails on invalid names; the API hands back a
	// usable no-op instrument in that case.
	c.cycleCounter, _ = meter.Int64Counter("assist.cycles",
		metric.WithDescription("Completed suggestion evaluation cycles"))
	c.matchCounter, _ = meter.Int64Counter("assist.matches",
		metric.WithDescription("Cycles that selected a suggestion"))
	c.popupCounter, _ = meter.Int64Counter("assist.popups",
		metric.WithDescription("Suggestions released by the popup gate"))
	c.dismissCounter, _ = meter.Int64Counter("assist.dismissals",
		metric.WithDescription("Suggestions dismissed by the user"))
	c.directiveCounter, _ = meter.Int64Counter("assist.directives",
		metric.WithDescription("Action directives processed"))
	c.cycleDuration, _ = meter.Float64Histogram("assist.cycle.duration",
		metric.WithDescription("Evaluation cycle duration"),
		metric.WithUnit("ms"))
	c.SetEnabled(enabled)
	return c
}

// Enabled reports whether collection is currently active.
func (c *Collector) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// SetEnabled toggles collection, resetting counters when enabling.
func (c *Collector) SetEnabled(enabled bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enabled == enabled {
		return
	}
	c.enabled = enabled
	c.cycles = 0
	if !enabled {
		c.rules = nil
		c.started = time.Time{}
		return
	}
	c.started = time.Now()
	c.rules = make(map[string]*RuleMetrics)
}

// RecordCycle records one evaluation cycle and the rule it selected, if any.
func (c *Collector) RecordCycle(ctx context.Context, selected string, took time.Duration, when time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	c.cycles++
	if selected != "" {
		m := c.ruleLocked(selected)
		m.Matched++
		m.LastMatched = when
	}
	c.mu.Unlock()

	c.cycleCounter.Add(ctx, 1)
	c.cycleDuration.Record(ctx, float64(took)/float64(time.Millisecond))
	if selected != "" {
		c.matchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", selected)))
	}
}

// RecordShown records a suggestion released by the popup gate.
func (c *Collector) RecordShown(ctx context.Context, rule string, when time.Time) {
	if c == nil {
		return
	}
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	m := c.ruleLocked(rule)
	m.Shown++
	m.LastShown = when
	c.mu.Unlock()

	c.popupCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
}

// RecordResponse records a user response to a suggestion.
func (c *Collector) RecordResponse(ctx context.Context, rule string, dismissed bool) {
	if c == nil || rule == "" {
		return
	}
	c.mu.Lock()
	if !c.enabled {
		c.mu.Unlock()
		return
	}
	m := c.ruleLocked(rule)
	m.Acted++
	if dismissed {
		m.Dismissed++
	}
	c.mu.Unlock()

	if dismissed {
		c.dismissCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("rule", rule)))
	}
}

// RecordDirective records one processed directive and its outcome.
func (c *Collector) RecordDirective(ctx context.Context, kind string, executed bool) {
	if !c.Enabled() {
		return
	}
	c.directiveCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("executed", executed),
	))
}

// ruleLocked must be called with c.mu held and collection enabled.
func (c *Collector) ruleLocked(rule string) *RuleMetrics {
	if c.rules == nil {
		c.rules = make(map[string]*RuleMetrics)
	}
	m, ok := c.rules[rule]
	if !ok {
		m = &RuleMetrics{Rule: rule}
		c.rules[rule] = m
	}
	return m
}

// Snapshot returns a copy of the counters sorted by rule id.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := Snapshot{Enabled: c.enabled, Started: c.started}
	snap.Totals.Cycles = c.cycles
	for _, m := range c.rules {
		snap.Rules = append(snap.Rules, *m)
		snap.Totals.Matched += m.Matched
		snap.Totals.Shown += m.Shown
		snap.Totals.Dismissed += m.Dismissed
		snap.Totals.Acted += m.Acted
	}
	sort.Slice(snap.Rules, func(i, j int) bool { return snap.Rules[i].Rule < snap.Rules[j].Rule })
	return snap
}
