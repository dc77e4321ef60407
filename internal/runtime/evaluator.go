package runtime

import (
	"context"
	"fmt"
	"slices"
	"time"

	"rgehrsitz/assist/internal/history"
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog"
)

// Evaluator decides whether a rule's conditions hold. It keeps no state of
// its own; everything it reads is passed in or queried from the probe.
type Evaluator struct {
	probe  Probe
	logger zerolog.Logger
}

// NewEvaluator creates an evaluator. probe may be nil, in which case every
// scene condition is false.
func NewEvaluator(probe Probe, logger zerolog.Logger) *Evaluator {
	return &Evaluator{
		probe:  probe,
		logger: logger.With().Str("component", "evaluator").Logger(),
	}
}

// Matches reports whether every condition of rule holds, stopping at the
// first one that does not.
func (e *Evaluator) Matches(ctx context.Context, rule *rules.Rule, snap Snapshot, hist history.View, now time.Time) bool {
	for _, c := range rule.Conditions {
		if !e.check(ctx, rule.ID, c, snap, hist, now) {
			e.logger.Debug().Str("rule", rule.ID).Str("condition", c.Raw).Msg("Condition not met")
			return false
		}
	}
	return true
}

// Select returns the first rule, in load order, that is not dismissed and
// whose conditions all hold. It returns nil when nothing matches.
func (e *Evaluator) Select(ctx context.Context, rs []*rules.Rule, snap Snapshot, hist history.View, now time.Time) *rules.Rule {
	for _, r := range rs {
		if snap.IsDismissed(r.ID) {
			continue
		}
		e.logger.Debug().
			Str("rule", r.ID).
			Str("prev", snap.PreviousSuggestion).
			Strs("conditions", r.ConditionTokens()).
			Msg("Checking rule")
		if e.Matches(ctx, r, snap, hist, now) {
			e.logger.Debug().Str("rule", r.ID).Msg("Conditions met")
			return r
		}
	}
	return nil
}

func (e *Evaluator) check(ctx context.Context, ruleID string, c rules.Condition, snap Snapshot, hist history.View, now time.Time) bool {
	switch c.Kind {
	case rules.CondNotDismissed:
		return true
	case rules.CondNoPrev:
		return snap.PreviousSuggestion == ""
	case rules.CondPrev:
		return snap.PreviousSuggestion != "" && slices.Contains(c.IDs, snap.PreviousSuggestion)
	case rules.CondElapsed:
		return now.Sub(snap.LastUICheck) >= c.Elapsed
	case rules.CondOpsLast:
		return hist.LastContains(c.Arg)
	case rules.CondOpsRecent:
		return hist.Contains(c.Arg)
	case rules.CondObjectExists:
		return e.query(ruleID, c, func(p Probe) (bool, error) { return p.ObjectExists(ctx, c.Arg) })
	case rules.CondNoObjectExists:
		return e.query(ruleID, c, func(p Probe) (bool, error) {
			exists, err := p.ObjectExists(ctx, c.Arg)
			return !exists, err
		})
	case rules.CondIsVoid:
		return e.query(ruleID, c, func(p Probe) (bool, error) { return p.SceneEmpty(ctx) })
	case rules.CondNoCamera:
		return e.query(ruleID, c, func(p Probe) (bool, error) { return p.HasNoCamera(ctx) })
	default:
		e.logger.Warn().Str("rule", ruleID).Str("condition", c.Raw).Msg("Condition type not recognized")
		return false
	}
}

// query runs a probe question. A missing probe, an error or a panic all
// count as the condition not holding.
func (e *Evaluator) query(ruleID string, c rules.Condition, q func(Probe) (bool, error)) (ok bool) {
	if e.probe == nil {
		e.logger.Warn().Str("rule", ruleID).Str("condition", c.Raw).Msg("No environment probe configured")
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("rule", ruleID).Str("condition", c.Raw).Err(fmt.Errorf("%v", r)).Msg("Environment probe panicked")
			ok = false
		}
	}()
	ok, err := q(e.probe)
	if err != nil {
		e.logger.Warn().Str("rule", ruleID).Str("condition", c.Raw).Err(err).Msg("Environment probe failed")
		return false
	}
	return ok
}
