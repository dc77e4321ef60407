package runtime

import (
	"context"
	"testing"
	"time"

	"rgehrsitz/assist/internal/metrics"
	"rgehrsitz/assist/internal/rules"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestDispatcher(host Host, opts DispatcherOptions) (*Dispatcher, *State, *clock) {
	c := newClock()
	state := NewState()
	opts.Logger = zerolog.Nop()
	d := NewDispatcher(state, host, opts)
	d.now = c.Now
	return d, state, c
}

func TestDispatch_RecordsResponse(t *testing.T) {
	d, state, c := newTestDispatcher(nil, DispatcherOptions{})

	report := d.Dispatch(context.Background(), "tip1", false, "")
	assert.Empty(t, report.Executed)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, "tip1", state.PreviousSuggestion())
	assert.Equal(t, c.Now(), state.LastCheck())
	assert.False(t, state.IsDismissed("tip1"))
}

func TestDispatch_Dismiss(t *testing.T) {
	d, state, _ := newTestDispatcher(nil, DispatcherOptions{PersistDismissals: true})
	d.Dispatch(context.Background(), "tip1", true, "")
	assert.True(t, state.IsDismissed("tip1"))
	assert.Equal(t, map[string]bool{"tip1": true}, state.Dismissed())
	assert.Equal(t, "tip1", state.PreviousSuggestion())
}

func TestDispatch_EmptyRuleID(t *testing.T) {
	d, state, _ := newTestDispatcher(nil, DispatcherOptions{})
	state.SetPreviousSuggestion("intro")
	d.Dispatch(context.Background(), "", true, "")
	assert.Equal(t, "intro", state.PreviousSuggestion())
	assert.Empty(t, state.Dismissed())
}

func TestDispatch_Directives(t *testing.T) {
	host := newFakeHost([2]string{"mesh", "primitive_cube_add"})
	d, _, _ := newTestDispatcher(host, DispatcherOptions{})

	report := d.Dispatch(context.Background(), "tip1", false,
		"url:https://docs.example.org ops:mesh.primitive_cube_add ops:mesh.missing ops:nosuch.op ops:noperiod bogus")

	assert.Equal(t, []string{"url:https://docs.example.org", "ops:mesh.primitive_cube_add"}, report.Executed)
	assert.Equal(t, []string{"ops:mesh.missing", "ops:nosuch.op", "ops:noperiod", "bogus"}, report.Skipped)
	assert.Equal(t, []string{"https://docs.example.org"}, host.opened)
	assert.Equal(t, []string{"mesh.primitive_cube_add"}, host.invoked)
}

func TestDispatch_HostFailuresDoNotStopLaterDirectives(t *testing.T) {
	host := newFakeHost([2]string{"mesh", "primitive_cube_add"})
	host.failURL = true
	d, state, _ := newTestDispatcher(host, DispatcherOptions{})

	report := d.Dispatch(context.Background(), "tip1", false, "url:https://a.example ops:mesh.primitive_cube_add")
	assert.Equal(t, []string{"url:https://a.example"}, report.Skipped)
	assert.Equal(t, []string{"ops:mesh.primitive_cube_add"}, report.Executed)
	assert.Equal(t, "tip1", state.PreviousSuggestion())

	host.panicOps = true
	report = d.Dispatch(context.Background(), "tip2", false, "ops:mesh.primitive_cube_add")
	assert.Equal(t, []string{"ops:mesh.primitive_cube_add"}, report.Skipped)
}

func TestDispatch_NoHost(t *testing.T) {
	d, _, _ := newTestDispatcher(nil, DispatcherOptions{})
	report := d.Dispatch(context.Background(), "tip1", false, "url:https://a.example ops:mesh.add")
	assert.Empty(t, report.Executed)
	assert.Len(t, report.Skipped, 2)
}

func TestDispatch_FollowupRewinds(t *testing.T) {
	d, state, c := newTestDispatcher(nil, DispatcherOptions{})
	state.MarkUICheck(c.Now().Add(-time.Second))

	report := d.Dispatch(context.Background(), "tip1", false, "trigger_followup")
	assert.Equal(t, []string{"trigger_followup"}, report.Executed)

	want := c.Now().Add(-DefaultFollowupRewind)
	assert.Equal(t, want, state.LastCheck())
	assert.Equal(t, want, state.LastUICheck())
}

func TestDispatch_CustomRewindAndNotify(t *testing.T) {
	notified := 0
	d, state, c := newTestDispatcher(nil, DispatcherOptions{
		FollowupRewind: 3 * time.Second,
		Notify:         func() { notified++ },
	})
	d.Dispatch(context.Background(), "tip1", false, "trigger_followup")
	assert.Equal(t, c.Now().Add(-3*time.Second), state.LastCheck())
	assert.Equal(t, 1, notified)

	d.Dispatch(context.Background(), "tip1", false, "")
	assert.Equal(t, 2, notified)
}

func TestDispatch_Metrics(t *testing.T) {
	m := metrics.NewCollector(true)
	host := newFakeHost([2]string{"mesh", "primitive_cube_add"})
	d, _, _ := newTestDispatcher(host, DispatcherOptions{Metrics: m})

	d.Dispatch(context.Background(), "tip1", true, "ops:mesh.primitive_cube_add bogus")
	d.Dispatch(context.Background(), "tip2", false, "")
	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.Totals.Dismissed)
	assert.Equal(t, uint64(2), snap.Totals.Acted)
	assert.Len(t, snap.Rules, 2)
}

func TestRespond(t *testing.T) {
	host := newFakeHost()
	d, state, _ := newTestDispatcher(host, DispatcherOptions{})
	r := rules.New("tip1", "", "Read the manual", "ok dismiss", "url:https://docs.example.org")

	report := d.Respond(context.Background(), r, true)
	assert.Equal(t, []string{"url:https://docs.example.org"}, report.Executed)
	assert.True(t, state.IsDismissed("tip1"))

	report = d.Respond(context.Background(), nil, true)
	assert.Empty(t, report.Executed)
}

func TestRespond_RunsDirectivesParsedAtLoad(t *testing.T) {
	host := newFakeHost()
	d, state, _ := newTestDispatcher(host, DispatcherOptions{})
	r := rules.New("tip1", "", "Read the docs", "ok", "url:https://docs.example.org")
	r.Action = "url:https://elsewhere.example.org"

	report := d.Respond(context.Background(), r, true)
	assert.Equal(t, []string{"url:https://docs.example.org"}, report.Executed)
	assert.Equal(t, []string{"https://docs.example.org"}, host.opened)
	assert.True(t, state.IsDismissed("tip1"))
}

func TestRunDirectives_LeavesStateUntouched(t *testing.T) {
	host := newFakeHost()
	d, state, _ := newTestDispatcher(host, DispatcherOptions{})
	state.SetPreviousSuggestion("intro")

	report := d.RunDirectives(context.Background(), rules.ParseAction("url:https://docs.example.org"))
	assert.Equal(t, []string{"url:https://docs.example.org"}, report.Executed)
	assert.Equal(t, "intro", state.PreviousSuggestion())
	assert.Empty(t, state.Dismissed())
}
