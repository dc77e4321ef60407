// Package history keeps a bounded, newest-first view of the host's recent
// actions.
package history

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultCapacity is the number of recent actions kept.
const DefaultCapacity = 20

// DefaultIgnore lists noisy or internal action patterns. An entry containing
// any of them is not recorded.
var DefaultIgnore = []string{
	"Warning:",
	"bpy.ops.object.select_all",
	"bpy.context.area.type =",
	"bpy.context.space_data.context =",
	"bpy.ops.object.location_clear",
	"bpy.ops.assist.suggestion_action",
}

// Handle is an opaque capture of the host's raw action log.
type Handle interface {
	// Lines returns the captured entries, oldest first.
	Lines() []string
}

// Source is the host collaborator that owns the raw action log. Every handle
// returned by Capture is passed back to Release, including on error paths.
type Source interface {
	Capture(ctx context.Context) (Handle, error)
	Release(h Handle)
}

// Buffer is safe for concurrent use.
type Buffer struct {
	source   Source
	capacity int
	ignore   []string
	logger   zerolog.Logger

	mu      sync.RWMutex
	entries []string
}

// NewBuffer creates a buffer. A non-positive capacity selects DefaultCapacity
// and a nil ignore list selects DefaultIgnore.
func NewBuffer(source Source, capacity int, ignore []string, logger zerolog.Logger) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if ignore == nil {
		ignore = DefaultIgnore
	}
	return &Buffer{
		source:   source,
		capacity: capacity,
		ignore:   append([]string(nil), ignore...),
		logger:   logger.With().Str("component", "history").Logger(),
	}
}

// Capacity returns the configured maximum number of entries.
func (b *Buffer) Capacity() int { return b.capacity }

// Refresh rebuilds the buffer from the source. On any failure the buffer is
// emptied so that evaluation never runs on stale history; the error is
// returned for logging only.
func (b *Buffer) Refresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action log source panicked: %v", r)
			b.reset()
		}
	}()

	if b.source == nil {
		b.reset()
		return fmt.Errorf("no action log source")
	}
	h, err := b.source.Capture(ctx)
	if h != nil {
		defer b.source.Release(h)
	}
	if err != nil {
		b.reset()
		return fmt.Errorf("capture action log: %w", err)
	}
	if h == nil {
		b.reset()
		return fmt.Errorf("capture action log: no handle")
	}

	entries := b.collect(h.Lines())
	b.mu.Lock()
	b.entries = entries
	b.mu.Unlock()
	b.logger.Debug().Int("actions", len(entries)).Msg("Loaded recent actions")
	return nil
}

// collect walks lines newest first, skipping blanks and ignored entries,
// until the buffer is full.
func (b *Buffer) collect(lines []string) []string {
	entries := make([]string, 0, min(len(lines), b.capacity))
	for i := len(lines) - 1; i >= 0 && len(entries) < b.capacity; i-- {
		line := strings.TrimRight(lines[i], "\r\n")
		if strings.TrimSpace(line) == "" || b.ignored(line) {
			continue
		}
		entries = append(entries, line)
	}
	return entries
}

func (b *Buffer) ignored(line string) bool {
	for _, pattern := range b.ignore {
		if pattern != "" && strings.Contains(line, pattern) {
			return true
		}
	}
	return false
}

func (b *Buffer) reset() {
	b.mu.Lock()
	b.entries = nil
	b.mu.Unlock()
}

// Clear empties the buffer.
func (b *Buffer) Clear() { b.reset() }

// Snapshot returns a copy of the entries, newest first.
func (b *Buffer) Snapshot() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.entries...)
}

// Len returns the number of entries.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
