// pkg/assist/assistant.go

// Package assist embeds the suggestion engine in a host application. The
// host supplies its action log, scene queries and operator catalog through
// Host; the Assistant runs the background poller and exposes the popup gate
// and response handling to the presentation layer.
package assist

import (
	"context"
	"sync"
	"sync/atomic"

	"rgehrsitz/assist/internal/config"
	"rgehrsitz/assist/internal/history"
	"rgehrsitz/assist/internal/metrics"
	"rgehrsitz/assist/internal/rules"
	"rgehrsitz/assist/internal/runtime"
	"rgehrsitz/assist/internal/store"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
)

type (
	Rule            = rules.Rule
	Report          = runtime.Report
	Config          = config.Config
	MetricsSnapshot = metrics.Snapshot
)

var (
	ErrStopped     = runtime.ErrStopped
	ErrStopTimeout = runtime.ErrStopTimeout
)

// FallbackID identifies the rule returned by Fallback.
const FallbackID = "assist.fallback"

const fallbackMessage = "Oops! Looks like I'm fresh out of suggestions, but feel free to return the favor and help me learn.\n\nPress OK below to open the form in your web browser."

// Host is everything the engine needs from the embedding application.
type Host interface {
	history.Source
	runtime.Probe
	runtime.Host
}

// Option customizes an Assistant.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	meter  metric.Meter
}

// WithLogger sets the base logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMeter records metrics to meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) { o.meter = meter }
}

// Assistant is safe for concurrent use.
type Assistant struct {
	cfg      *config.Config
	store    *store.Store
	history  *history.Buffer
	engine   *runtime.Engine
	gate     *runtime.Gate
	disp     *runtime.Dispatcher
	metrics  *metrics.Collector
	fallback *rules.Rule
	logger   zerolog.Logger

	verbose atomic.Bool
	closed  atomic.Bool

	watchOnce   sync.Once
	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// New wires an assistant for host. A nil cfg selects config.Default().
func New(cfg *config.Config, host Host, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	collector := metrics.NewCollector(cfg.Metrics.Enabled)
	if o.meter != nil {
		collector = metrics.NewCollectorWithMeter(cfg.Metrics.Enabled, o.meter)
	}

	a := &Assistant{
		cfg:      cfg,
		metrics:  collector,
		logger:   o.logger.With().Str("component", "assistant").Logger(),
		fallback: rules.New(FallbackID, "", fallbackMessage, "ok", "url:"+cfg.FeedbackURL),
	}
	a.store = store.New(cfg.Rules.Path, cfg.Rules.UpdatePath, o.logger)

	var source history.Source
	var probe runtime.Probe
	var actions runtime.Host
	if host != nil {
		source, probe, actions = host, host, host
	}
	a.history = history.NewBuffer(source, cfg.HistoryCapacity, cfg.IgnoreActions, o.logger)
	a.engine = runtime.NewEngine(a.store, a.history, probe, runtime.Options{
		PollInterval: cfg.PollInterval,
		StopTimeout:  cfg.StopTimeout,
		Metrics:      collector,
		Logger:       o.logger,
	})
	a.gate = runtime.NewGate(a.engine.State(), cfg.PopupInterval, cfg.Passive, collector, o.logger)
	a.disp = runtime.NewDispatcher(a.engine.State(), actions, runtime.DispatcherOptions{
		FollowupRewind:    cfg.FollowupRewind,
		PersistDismissals: cfg.PersistDismissals,
		Metrics:           collector,
		Notify:            a.engine.Wake,
		Logger:            o.logger,
	})
	a.watchCtx, a.watchCancel = context.WithCancel(context.Background())
	a.SetVerbose(cfg.Verbose)
	return a, nil
}

// Start asks the background poller to run. It is meant to be called on
// every UI redraw; it reports whether a new worker was launched and fails
// only after Shutdown.
func (a *Assistant) Start(ctx context.Context) (bool, error) {
	if a.closed.Load() {
		return false, ErrStopped
	}
	started := a.engine.Start(ctx)
	if started && a.cfg.Rules.WatchEnabled() {
		a.watchOnce.Do(a.watchRules)
	}
	return started, nil
}

// watchRules forwards rule file changes to the poller as reload requests.
func (a *Assistant) watchRules() {
	requests := make(chan string, 1)
	if err := a.store.Watch(a.watchCtx, requests); err != nil {
		a.logger.Warn().Err(err).Msg("Rule file watching disabled")
		return
	}
	go func() {
		for {
			select {
			case <-a.watchCtx.Done():
				return
			case reason := <-requests:
				a.engine.RequestReload(reason)
			}
		}
	}()
}

// Suggestion returns the suggestion published by the last cycle, or nil.
func (a *Assistant) Suggestion() *Rule { return a.engine.ActiveSuggestion() }

// Fallback returns the rule shown when the user asks for a suggestion and
// none applies. It invites feedback and is never dismissable.
func (a *Assistant) Fallback() *Rule { return a.fallback }

// TryShow returns the active suggestion if the popup gate lets it through
// now. A true result counts as shown.
func (a *Assistant) TryShow(ctx context.Context) (*Rule, bool) {
	if a.closed.Load() {
		return nil, false
	}
	return a.gate.TryShow(ctx)
}

// Respond records the user's answer to r and runs its action. Responses to
// the fallback rule run its action without touching engine state.
func (a *Assistant) Respond(ctx context.Context, r *Rule, dismiss bool) Report {
	if r != nil && r.ID == FallbackID {
		return a.disp.RunDirectives(ctx, r.Directives)
	}
	return a.disp.Respond(ctx, r, dismiss)
}

// Dispatch is Respond for callers that hold only the id and action text.
func (a *Assistant) Dispatch(ctx context.Context, ruleID string, dismiss bool, action string) Report {
	return a.disp.Dispatch(ctx, ruleID, dismiss, action)
}

// Reload re-reads the rule definitions on the next cycle.
func (a *Assistant) Reload() { a.engine.RequestReload("requested by host") }

// Rules returns the loaded rule set in priority order.
func (a *Assistant) Rules() []*Rule { return a.store.Rules() }

// SetPassive switches passive presentation mode.
func (a *Assistant) SetPassive(passive bool) { a.gate.SetPassive(passive) }

// Passive reports whether passive presentation mode is on.
func (a *Assistant) Passive() bool { return a.gate.Passive() }

// SetVerbose switches debug logging. Verbosity is process-wide.
func (a *Assistant) SetVerbose(verbose bool) {
	a.verbose.Store(verbose)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Verbose reports whether debug logging is on.
func (a *Assistant) Verbose() bool { return a.verbose.Load() }

// SetMetricsEnabled toggles per-rule counters, resetting them when enabled.
func (a *Assistant) SetMetricsEnabled(enabled bool) { a.metrics.SetEnabled(enabled) }

// Metrics returns a copy of the per-rule counters.
func (a *Assistant) Metrics() MetricsSnapshot { return a.metrics.Snapshot() }

// Shutdown stops the poller and the rule watcher and clears all state. The
// assistant cannot be started again. Calling it twice is harmless.
func (a *Assistant) Shutdown() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	a.watchCancel()
	return a.engine.Stop()
}
