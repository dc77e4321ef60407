package preprocessor

import (
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog/log"
)

// OptimizeRules normalizes a parsed rule set without changing what it selects.
// Load order is the priority order and is preserved.
func OptimizeRules(parsed []*rules.Rule) []*rules.Rule {
	optimized := dedupRules(parsed)
	optimized = simplifyConditions(optimized)
	return optimized
}

// dedupRules keeps the first rule for every id. A later duplicate could never
// be selected ahead of the first one anyway, and dismissal is keyed by id.
func dedupRules(parsed []*rules.Rule) []*rules.Rule {
	seen := make(map[string]struct{}, len(parsed))
	out := make([]*rules.Rule, 0, len(parsed))
	for _, r := range parsed {
		if r == nil {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			log.Warn().Str("rule", r.ID).Msg("Dropping duplicate rule id")
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}

func simplifyConditions(rulesToSimplify []*rules.Rule) []*rules.Rule {
	simplified := make([]*rules.Rule, 0, len(rulesToSimplify))
	for _, rule := range rulesToSimplify {
		conds := simplifyAndDedupConditions(rule.Conditions)
		if len(conds) == len(rule.Conditions) {
			simplified = append(simplified, rule)
			continue
		}
		copied := *rule
		copied.Conditions = conds
		simplified = append(simplified, &copied)
	}
	return simplified
}

// simplifyAndDedupConditions drops not_dismissed (dismissal is filtered
// before evaluation) and repeated tokens. Unknown tokens are kept so that the
// rule still fails closed.
func simplifyAndDedupConditions(conds []rules.Condition) []rules.Condition {
	out := make([]rules.Condition, 0, len(conds))
	seen := make(map[string]struct{}, len(conds))
	for _, c := range conds {
		if c.Kind == rules.CondNotDismissed {
			continue
		}
		if _, dup := seen[c.Raw]; dup {
			continue
		}
		seen[c.Raw] = struct{}{}
		out = append(out, c)
	}
	return out
}
