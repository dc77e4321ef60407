// internal/rules/rule.go

package rules

import "strings"

// ButtonDismiss marks a rule whose dialog offers a "don't show again" option.
const ButtonDismiss = "dismiss"

// Rule is a suggestion definition. Rules are immutable once loaded; the
// engine hands out pointers and never writes through them.
type Rule struct {
	ID         string
	Conditions []Condition
	Message    string
	Buttons    []string
	Directives []Directive
	// Action keeps the directive text so the presentation layer can pass it
	// back to the dispatcher verbatim.
	Action string
}

// New builds a Rule from the raw textual fields of a definition record.
func New(id, conditions, message, buttons, action string) *Rule {
	return &Rule{
		ID:         id,
		Conditions: ParseConditions(conditions),
		Message:    message,
		Buttons:    splitButtons(buttons),
		Directives: ParseAction(action),
		Action:     strings.TrimSpace(action),
	}
}

// HasButton reports whether the rule carries the named button.
func (r *Rule) HasButton(name string) bool {
	for _, b := range r.Buttons {
		if strings.EqualFold(b, name) {
			return true
		}
	}
	return false
}

// Dismissable reports whether the user may dismiss the rule permanently.
func (r *Rule) Dismissable() bool {
	return r.HasButton(ButtonDismiss)
}

// ConditionTokens returns the raw tokens, useful for logging.
func (r *Rule) ConditionTokens() []string {
	out := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		out[i] = c.Raw
	}
	return out
}

func splitButtons(field string) []string {
	return strings.FieldsFunc(field, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
