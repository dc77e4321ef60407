// internal/runtime/runtime.go

package runtime

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"rgehrsitz/assist/internal/metrics"
	"rgehrsitz/assist/internal/rules"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Phase is the lifecycle state of the poller.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseStopped
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseStopped:
		return "stopped"
	default:
		return fmt.Sprintf("phase(%d)", int32(p))
	}
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultStopTimeout  = 2 * time.Second
)

// Options configures an Engine.
type Options struct {
	PollInterval time.Duration
	StopTimeout  time.Duration
	Metrics      *metrics.Collector
	Logger       zerolog.Logger
}

// Engine is the background poller. It owns the shared State; at most one
// worker goroutine runs per Engine.
type Engine struct {
	id          uuid.UUID
	rules       RuleSource
	history     ActionHistory
	eval        *Evaluator
	state       *State
	metrics     *metrics.Collector
	logger      zerolog.Logger
	interval    time.Duration
	stopTimeout time.Duration
	now         func() time.Time

	phase     atomic.Int32
	lastStart atomic.Int64
	rejectLog rate.Sometimes

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	wake   chan struct{}
	reload chan string
}

// NewEngine creates an idle engine.
func NewEngine(rs RuleSource, hist ActionHistory, probe Probe, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	id := uuid.New()
	logger := opts.Logger.With().Str("component", "engine").Str("engine", id.String()).Logger()
	return &Engine{
		id:          id,
		rules:       rs,
		history:     hist,
		eval:        NewEvaluator(probe, opts.Logger),
		state:       NewState(),
		metrics:     opts.Metrics,
		logger:      logger,
		interval:    opts.PollInterval,
		stopTimeout: opts.StopTimeout,
		now:         time.Now,
		rejectLog:   rate.Sometimes{Interval: 30 * time.Second},
		wake:        make(chan struct{}, 1),
		reload:      make(chan string, 1),
	}
}

// ID identifies this engine instance in logs.
func (e *Engine) ID() uuid.UUID { return e.id }

// State returns the shared engine state.
func (e *Engine) State() *State { return e.state }

// Phase returns the current lifecycle phase.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

// ActiveSuggestion returns the suggestion published by the last cycle.
func (e *Engine) ActiveSuggestion() *rules.Rule { return e.state.Active() }

// Start launches the worker unless one is running, the engine is stopped, or
// the poll interval has not passed since the previous start. It is cheap
// enough to call on every UI redraw. It reports whether a worker was started.
// The worker keeps ctx's values but not its cancellation; only Stop ends it.
func (e *Engine) Start(ctx context.Context) bool {
	if e.Phase() != PhaseIdle {
		return false
	}
	now := e.now()
	if last := e.lastStart.Load(); last != 0 && now.Before(time.Unix(0, last).Add(e.interval)) {
		e.rejectLog.Do(func() {
			e.logger.Debug().Msg("Start requested before poll interval passed")
		})
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseRunning)) {
		return false
	}
	e.lastStart.Store(now.UnixNano())
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	e.logger.Info().Msg("Starting background assistant worker")
	go e.run(runCtx, done)
	return true
}

func (e *Engine) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Err(fmt.Errorf("%v", r)).Msg("Assistant worker panicked")
		}
		e.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseIdle))
		e.logger.Info().Msg("Stopping assistant worker")
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		e.Cycle(ctx)
		if !e.wait(ctx) {
			return
		}
	}
}

// wait blocks until the next poll is due. Wake-ups from the dispatcher make
// it recompute the deadline, since a response moves the last check time.
// It returns false once ctx is cancelled.
func (e *Engine) wait(ctx context.Context) bool {
	for {
		d := e.state.LastCheck().Add(e.interval).Sub(e.now())
		if d <= 0 {
			return true
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		case <-e.wake:
			timer.Stop()
		case reason := <-e.reload:
			timer.Stop()
			e.logger.Info().Str("reason", reason).Msg("Reloading rule definitions")
			e.rules.Load()
			return true
		}
	}
}

// Cycle refreshes the action history, selects a suggestion and publishes
// it. The worker calls it once per poll; hosts may call it directly.
func (e *Engine) Cycle(ctx context.Context) *rules.Rule {
	start := e.now()
	cycle := uuid.New()
	logger := e.logger.With().Str("cycle", cycle.String()).Logger()
	e.state.MarkCheck(start)

	if !e.rules.Loaded() {
		e.rules.Load()
	}
	logger.Debug().Msg("Checking now for suggestions")
	if err := e.history.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("Action history unavailable, evaluating without it")
	}

	selected := e.eval.Select(ctx, e.rules.Rules(), e.state.Snapshot(), e.history.View(), start)
	if ctx.Err() != nil {
		return nil
	}
	e.state.SetActive(selected)

	id := ""
	if selected != nil {
		id = selected.ID
	}
	e.metrics.RecordCycle(ctx, id, e.now().Sub(start), start)
	logger.Debug().Str("selected", id).Msg("Finished checking for suggestions")
	return selected
}

// Wake asks a waiting worker to recompute its deadline.
func (e *Engine) Wake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// RequestReload asks the worker to reload rule definitions before its next
// cycle. Evaluation in progress always finishes on the rule set it began with.
func (e *Engine) RequestReload(reason string) {
	select {
	case e.reload <- reason:
	default:
	}
}

// Stop signals the worker, waits up to the stop timeout for it to exit and
// then clears the state, rule cache and history. The engine cannot be
// restarted. It returns ErrStopTimeout if the worker outlived the timeout.
func (e *Engine) Stop() error {
	if Phase(e.phase.Swap(int32(PhaseStopped))) == PhaseStopped {
		return nil
	}
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	var err error
	if cancel != nil {
		cancel()
		timer := time.NewTimer(e.stopTimeout)
		select {
		case <-done:
			timer.Stop()
		case <-timer.C:
			e.logger.Warn().Dur("timeout", e.stopTimeout).Msg("Assistant worker did not exit in time")
			err = ErrStopTimeout
		}
	}

	e.state.Reset()
	e.rules.Clear()
	e.history.Clear()
	e.logger.Info().Msg("Engine stopped")
	return err
}
