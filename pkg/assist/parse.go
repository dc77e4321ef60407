// pkg/assist/parse.go

package assist

import (
	"rgehrsitz/assist/internal/preprocessor"
)

// RecordError describes a rule definition record that was skipped.
type RecordError = preprocessor.RecordError

// ErrMissingColumn is returned by ParseRules when the header lacks a
// required column.
var ErrMissingColumn = preprocessor.ErrMissingColumn

// ParseRules parses tab-delimited rule definitions into the ordered rule set
// the engine would load, with duplicate ids and no-op conditions removed.
// Rejected records are returned alongside the rules.
func ParseRules(data []byte) ([]*Rule, []*RecordError, error) {
	parsed, recErrs, err := preprocessor.ParseRules(data)
	if err != nil {
		return nil, recErrs, err
	}
	return preprocessor.OptimizeRules(parsed), recErrs, nil
}

// ValidateRule reports unknown condition tokens and directives in r. A rule
// with warnings still loads; unknown conditions never match.
func ValidateRule(r *Rule) error {
	return preprocessor.ValidateRule(r)
}
