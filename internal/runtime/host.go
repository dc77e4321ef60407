package runtime

import (
	"context"
	"errors"

	"rgehrsitz/assist/internal/history"
	"rgehrsitz/assist/internal/rules"
)

var (
	// ErrStopped is returned when the engine has been shut down.
	ErrStopped = errors.New("engine stopped")
	// ErrStopTimeout is returned when the worker did not exit in time.
	ErrStopTimeout = errors.New("timed out waiting for worker to exit")
)

// Probe answers read-only questions about the host scene.
type Probe interface {
	ObjectExists(ctx context.Context, name string) (bool, error)
	SceneEmpty(ctx context.Context) (bool, error)
	HasNoCamera(ctx context.Context) (bool, error)
}

// Host executes action directives on behalf of the dispatcher.
type Host interface {
	OpenURL(ctx context.Context, url string) error
	HasNamespace(namespace string) bool
	HasOperator(namespace, operator string) bool
	InvokeOperator(ctx context.Context, namespace, operator string) error
}

// RuleSource provides the ordered rule set.
type RuleSource interface {
	Load() []*rules.Rule
	Rules() []*rules.Rule
	Loaded() bool
	Clear()
}

// ActionHistory provides the recent action view.
type ActionHistory interface {
	Refresh(ctx context.Context) error
	View() history.View
	Clear()
}
