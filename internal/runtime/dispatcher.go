package runtime

import (
	"context"
	"fmt"
	"time"

	"rgehrsitz/assist/internal/metrics"
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog"
)

// DefaultFollowupRewind is how far trigger_followup moves the check
// timestamps back.
const DefaultFollowupRewind = 10 * time.Second

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// FollowupRewind defaults to DefaultFollowupRewind.
	FollowupRewind time.Duration
	// PersistDismissals is recorded with each dismissal. Writing dismissals
	// to disk is not implemented; a warning is logged instead.
	PersistDismissals bool
	Metrics           *metrics.Collector
	// Notify is called after every dispatch so the poller can re-read its
	// deadline.
	Notify func()
	Logger zerolog.Logger
}

// Dispatcher applies a user's response to a suggestion.
type Dispatcher struct {
	state   *State
	host    Host
	rewind  time.Duration
	persist bool
	metrics *metrics.Collector
	notify  func()
	now     func() time.Time
	logger  zerolog.Logger
}

// Report lists the directives that ran and those that were skipped.
type Report struct {
	Executed []string
	Skipped  []string
}

// NewDispatcher creates a dispatcher. host may be nil, in which case url and
// ops directives are skipped.
func NewDispatcher(state *State, host Host, opts DispatcherOptions) *Dispatcher {
	rewind := opts.FollowupRewind
	if rewind == 0 {
		rewind = DefaultFollowupRewind
	}
	notify := opts.Notify
	if notify == nil {
		notify = func() {}
	}
	return &Dispatcher{
		state:   state,
		host:    host,
		rewind:  rewind,
		persist: opts.PersistDismissals,
		metrics: opts.Metrics,
		notify:  notify,
		now:     time.Now,
		logger:  opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch records the response to ruleID and runs the directives in
// action. ruleID may be empty for responses not tied to a rule.
func (d *Dispatcher) Dispatch(ctx context.Context, ruleID string, dismiss bool, action string) Report {
	return d.respond(ctx, ruleID, dismiss, rules.ParseAction(action))
}

// Respond is Dispatch for a loaded rule. It runs the directives parsed when
// the rule was loaded.
func (d *Dispatcher) Respond(ctx context.Context, r *rules.Rule, dismiss bool) Report {
	if r == nil {
		return d.respond(ctx, "", false, nil)
	}
	return d.respond(ctx, r.ID, dismiss, r.Directives)
}

// RunDirectives is Respond for a response not tied to a rule, such as the
// fallback suggestion.
func (d *Dispatcher) RunDirectives(ctx context.Context, directives []rules.Directive) Report {
	return d.respond(ctx, "", false, directives)
}

func (d *Dispatcher) respond(ctx context.Context, ruleID string, dismiss bool, directives []rules.Directive) Report {
	d.state.MarkCheck(d.now())
	if dismiss && ruleID != "" {
		d.state.Dismiss(ruleID, d.persist)
		d.logger.Info().Str("rule", ruleID).Msg("Suggestion dismissed")
		if d.persist {
			d.logger.Warn().Str("rule", ruleID).Msg("Saving dismissed suggestions to disk is not implemented")
		}
	}
	if ruleID != "" {
		d.state.SetPreviousSuggestion(ruleID)
	}
	d.metrics.RecordResponse(ctx, ruleID, dismiss)

	report := d.execute(ctx, directives)
	d.notify()
	return report
}

func (d *Dispatcher) execute(ctx context.Context, directives []rules.Directive) Report {
	var report Report
	if len(directives) == 0 {
		d.logger.Debug().Msg("No actions currently being taken")
		return report
	}
	for _, dir := range directives {
		err := d.run(ctx, dir)
		d.metrics.RecordDirective(ctx, dir.Kind.String(), err == nil)
		if err != nil {
			d.logger.Warn().Str("directive", dir.Raw).Err(err).Msg("Skipping action directive")
			report.Skipped = append(report.Skipped, dir.Raw)
			continue
		}
		report.Executed = append(report.Executed, dir.Raw)
	}
	return report
}

func (d *Dispatcher) run(ctx context.Context, dir rules.Directive) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("host panicked: %v", r)
		}
	}()

	switch dir.Kind {
	case rules.DirectiveURL:
		if dir.URL == "" {
			return fmt.Errorf("empty url")
		}
		if d.host == nil {
			return fmt.Errorf("no host to open url")
		}
		return d.host.OpenURL(ctx, dir.URL)
	case rules.DirectiveOperator:
		if dir.Operator == "" {
			return fmt.Errorf("invalid operator name, no period")
		}
		if d.host == nil {
			return fmt.Errorf("no host to invoke operator")
		}
		if !d.host.HasNamespace(dir.Namespace) {
			return fmt.Errorf("no base operator: %s", dir.Namespace)
		}
		if !d.host.HasOperator(dir.Namespace, dir.Operator) {
			return fmt.Errorf("no operator: %s.%s", dir.Namespace, dir.Operator)
		}
		d.logger.Info().Str("operator", dir.Namespace+"."+dir.Operator).Msg("Triggering operator")
		return d.host.InvokeOperator(ctx, dir.Namespace, dir.Operator)
	case rules.DirectiveFollowup:
		d.state.Rewind(d.rewind)
		return nil
	default:
		return fmt.Errorf("unrecognized directive")
	}
}
