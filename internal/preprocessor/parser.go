package preprocessor

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog/log"
)

// Column names of the rule definition header. Records are read by name, so
// column order in the file is free.
const (
	ColumnID         = "id"
	ColumnCondition  = "condition"
	ColumnSuggestion = "suggestion"
	ColumnButtons    = "buttons"
	ColumnAction     = "action"
)

var requiredColumns = []string{ColumnID, ColumnCondition, ColumnSuggestion}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// RecordError describes a single record that could not be turned into a rule.
type RecordError struct {
	Line   int
	Reason string
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record at line %d: %s", e.Line, e.Reason)
}

// ParseRules reads tab-delimited rule definitions. The returned error is
// non-nil only when the document as a whole is unusable (empty, unreadable
// header, missing required columns). Bad records are reported individually
// and skipped.
func ParseRules(data []byte) ([]*rules.Rule, []*RecordError, error) {
	log.Debug().Int("bytes", len(data)).Msg("Started parsing rules")

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("rule definitions are empty")
		}
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	index, err := headerIndex(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		parsed  []*rules.Rule
		recErrs []*RecordError
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				recErrs = append(recErrs, &RecordError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return parsed, recErrs, fmt.Errorf("failed to read rule definitions: %w", err)
		}
		if isBlank(record) {
			continue
		}
		line, _ := r.FieldPos(0)
		rule, recErr := parseRecord(record, index, line)
		if recErr != nil {
			log.Warn().Err(recErr).Msg("Skipping rule record")
			recErrs = append(recErrs, recErr)
			continue
		}
		parsed = append(parsed, rule)
	}

	log.Debug().Int("rules", len(parsed)).Int("skipped", len(recErrs)).Msg("Finished parsing rules")
	return parsed, recErrs, nil
}

func headerIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w %q", ErrMissingColumn, col)
		}
	}
	return index, nil
}

func parseRecord(record []string, index map[string]int, line int) (*rules.Rule, *RecordError) {
	field := func(name string) (string, bool) {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return record[i], true
	}

	for _, col := range requiredColumns {
		if _, ok := field(col); !ok {
			return nil, &RecordError{Line: line, Reason: fmt.Sprintf("missing field %q", col)}
		}
	}
	id, _ := field(ColumnID)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, &RecordError{Line: line, Reason: "empty id"}
	}
	if strings.ContainsAny(id, " \t") {
		return nil, &RecordError{Line: line, Reason: fmt.Sprintf("id '%s' contains whitespace", id)}
	}

	conditions, _ := field(ColumnCondition)
	message, _ := field(ColumnSuggestion)
	buttons, _ := field(ColumnButtons)
	action, _ := field(ColumnAction)

	rule := rules.New(id, conditions, message, buttons, action)
	if err := ValidateRule(rule); err != nil {
		log.Warn().Str("rule", id).Err(err).Msg("Rule loaded with warnings")
	}
	return rule, nil
}

// ValidateRule reports vocabulary problems that do not prevent loading:
// unknown condition tokens (which never match) and unknown directives
// (which are skipped on dispatch).
func ValidateRule(rule *rules.Rule) error {
	var errs []error
	for i, c := range rule.Conditions {
		if c.Kind == rules.CondUnknown {
			errs = append(errs, fmt.Errorf("unrecognized condition '%s' at position %d of rule '%s'", c.Raw, i, rule.ID))
		}
	}
	for _, d := range rule.Directives {
		switch {
		case d.Kind == rules.DirectiveUnknown:
			errs = append(errs, fmt.Errorf("unrecognized action directive '%s' in rule '%s'", d.Raw, rule.ID))
		case d.Kind == rules.DirectiveOperator && d.Operator == "":
			errs = append(errs, fmt.Errorf("operator reference '%s' in rule '%s' has no period", d.Raw, rule.ID))
		}
	}
	return errors.Join(errs...)
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
