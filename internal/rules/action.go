package rules

import "strings"

// DirectiveKind identifies one action directive.
type DirectiveKind uint8

const (
	DirectiveUnknown DirectiveKind = iota
	DirectiveURL
	DirectiveOperator
	DirectiveFollowup
)

const (
	prefixURL       = "url:"
	prefixOperator  = "ops:"
	keywordFollowup = "trigger_followup"
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveURL:
		return "url"
	case DirectiveOperator:
		return "ops"
	case DirectiveFollowup:
		return keywordFollowup
	default:
		return "unknown"
	}
}

// Directive is one parsed action instruction.
type Directive struct {
	Kind DirectiveKind
	Raw  string
	// URL target for DirectiveURL.
	URL string
	// Namespace and Operator for DirectiveOperator. Operator is empty when the
	// reference had no period, which the dispatcher rejects.
	Namespace string
	Operator  string
}

// ParseDirective parses a single whitespace-free token. Prefixes match
// case-insensitively.
func ParseDirective(token string) Directive {
	d := Directive{Kind: DirectiveUnknown, Raw: token}
	lower := strings.ToLower(token)
	switch {
	case strings.HasPrefix(lower, prefixURL):
		d.Kind = DirectiveURL
		d.URL = token[len(prefixURL):]
	case strings.HasPrefix(lower, prefixOperator):
		d.Kind = DirectiveOperator
		ref := token[len(prefixOperator):]
		ns, op, ok := strings.Cut(ref, ".")
		d.Namespace = ns
		if ok {
			d.Operator = op
		}
	case token == keywordFollowup:
		d.Kind = DirectiveFollowup
	}
	return d
}

// ParseAction tokenizes an action string on whitespace.
func ParseAction(action string) []Directive {
	tokens := strings.Fields(action)
	if len(tokens) == 0 {
		return nil
	}
	out := make([]Directive, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, ParseDirective(tok))
	}
	return out
}
