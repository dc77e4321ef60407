package history

import "strings"

// View is an immutable newest-first list of actions handed to the evaluator.
type View []string

// Last returns the most recent entry.
func (v View) Last() (string, bool) {
	if len(v) == 0 {
		return "", false
	}
	return v[0], true
}

// LastContains reports whether the most recent entry contains sub.
func (v View) LastContains(sub string) bool {
	last, ok := v.Last()
	return ok && strings.Contains(last, sub)
}

// Contains reports whether any entry contains sub.
func (v View) Contains(sub string) bool {
	for _, e := range v {
		if strings.Contains(e, sub) {
			return true
		}
	}
	return false
}

// View returns an immutable snapshot of the buffer.
func (b *Buffer) View() View {
	return View(b.Snapshot())
}
