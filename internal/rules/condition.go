// internal/rules/condition.go

package rules

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ConditionKind identifies one predicate of the condition vocabulary.
type ConditionKind uint8

const (
	CondUnknown ConditionKind = iota
	CondNotDismissed
	CondNoPrev
	CondPrev
	CondElapsed
	CondOpsLast
	CondOpsRecent
	CondObjectExists
	CondNoObjectExists
	CondIsVoid
	CondNoCamera
)

// Condition keywords as they appear in rule definition files.
const (
	KeywordNotDismissed   = "not_dismissed"
	KeywordNoPrev         = "no_prev"
	KeywordPrev           = "prev"
	KeywordElapsed        = "elapsed"
	KeywordOpsLast        = "ops_last"
	KeywordOpsRecent      = "ops_recent"
	KeywordObjectExists   = "object_exists"
	KeywordNoObjectExists = "no_object_exists"
	KeywordIsVoid         = "is_void"
	KeywordNoCamera       = "no_camera"
)

var SupportedKeywords = []string{
	KeywordNotDismissed,
	KeywordNoPrev,
	KeywordPrev,
	KeywordElapsed,
	KeywordOpsLast,
	KeywordOpsRecent,
	KeywordObjectExists,
	KeywordNoObjectExists,
	KeywordIsVoid,
	KeywordNoCamera,
}

func (k ConditionKind) String() string {
	switch k {
	case CondNotDismissed:
		return KeywordNotDismissed
	case CondNoPrev:
		return KeywordNoPrev
	case CondPrev:
		return KeywordPrev
	case CondElapsed:
		return KeywordElapsed
	case CondOpsLast:
		return KeywordOpsLast
	case CondOpsRecent:
		return KeywordOpsRecent
	case CondObjectExists:
		return KeywordObjectExists
	case CondNoObjectExists:
		return KeywordNoObjectExists
	case CondIsVoid:
		return KeywordIsVoid
	case CondNoCamera:
		return KeywordNoCamera
	default:
		return "unknown"
	}
}

// Condition is one parsed condition token. Only the fields relevant to Kind
// are populated.
type Condition struct {
	Kind    ConditionKind
	Raw     string
	Arg     string        // substring or object name
	IDs     []string      // prev:<id1,id2,...>
	Elapsed time.Duration // elapsed:<N>s
}

// ParseCondition converts a single token into a Condition. Tokens that do not
// belong to the vocabulary, or carry a malformed argument, come back as
// CondUnknown so that evaluation fails closed.
func ParseCondition(token string) Condition {
	c := Condition{Kind: CondUnknown, Raw: token}
	keyword, arg, hasArg := strings.Cut(token, ":")

	switch keyword {
	case KeywordNotDismissed, KeywordNoPrev, KeywordIsVoid, KeywordNoCamera:
		if hasArg {
			return c
		}
		switch keyword {
		case KeywordNotDismissed:
			c.Kind = CondNotDismissed
		case KeywordNoPrev:
			c.Kind = CondNoPrev
		case KeywordIsVoid:
			c.Kind = CondIsVoid
		case KeywordNoCamera:
			c.Kind = CondNoCamera
		}
	case KeywordPrev:
		ids := splitList(arg)
		if len(ids) == 0 {
			return c
		}
		c.Kind = CondPrev
		c.IDs = ids
	case KeywordElapsed:
		d, ok := parseSeconds(arg)
		if !ok {
			return c
		}
		c.Kind = CondElapsed
		c.Elapsed = d
	case KeywordOpsLast, KeywordOpsRecent, KeywordObjectExists, KeywordNoObjectExists:
		if arg == "" {
			return c
		}
		c.Arg = arg
		switch keyword {
		case KeywordOpsLast:
			c.Kind = CondOpsLast
		case KeywordOpsRecent:
			c.Kind = CondOpsRecent
		case KeywordObjectExists:
			c.Kind = CondObjectExists
		case KeywordNoObjectExists:
			c.Kind = CondNoObjectExists
		}
	}
	return c
}

// ParseConditions splits a whitespace separated condition field.
func ParseConditions(field string) []Condition {
	tokens := strings.Fields(field)
	conds := make([]Condition, 0, len(tokens))
	for _, tok := range tokens {
		conds = append(conds, ParseCondition(tok))
	}
	return conds
}

func splitList(arg string) []string {
	var out []string
	for _, part := range strings.Split(arg, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// maxElapsedSeconds is the largest N whose duration fits in time.Duration.
const maxElapsedSeconds = math.MaxInt64 / int64(time.Second)

// parseSeconds accepts "<N>s" with N a non-negative integer small enough to
// be represented as a time.Duration.
func parseSeconds(arg string) (time.Duration, bool) {
	num, ok := strings.CutSuffix(arg, "s")
	if !ok || num == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil || n < 0 || n > maxElapsedSeconds {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}
