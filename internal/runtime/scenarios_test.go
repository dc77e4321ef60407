package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// harness wires an engine, gate and dispatcher over one state and clock.
type harness struct {
	clock  *clock
	probe  *fakeProbe
	host   *fakeHost
	engine *Engine
	gate   *Gate
	disp   *Dispatcher
}

func newHarness(t *testing.T, rs *staticRules) *harness {
	t.Helper()
	h := &harness{clock: newClock(), probe: newFakeProbe(), host: newFakeHost()}
	h.engine = newTestEngine(rs, &fakeHistory{}, h.probe, 5*time.Second)
	h.engine.now = h.clock.Now
	h.gate = NewGate(h.engine.State(), 7*time.Second, false, nil, zerolog.Nop())
	h.gate.now = h.clock.Now
	h.disp = NewDispatcher(h.engine.State(), h.host, DispatcherOptions{
		Notify: h.engine.Wake,
		Logger: zerolog.Nop(),
	})
	h.disp.now = h.clock.Now
	return h
}

func (h *harness) selected() string {
	if r := h.engine.Cycle(context.Background()); r != nil {
		return r.ID
	}
	return ""
}

func TestScenario_IntroShownOnce(t *testing.T) {
	h := newHarness(t, newStaticRules(rule("intro", "no_prev")))

	assert.Equal(t, "intro", h.selected())
	r, ok := h.gate.TryShow(context.Background())
	require.True(t, ok)

	h.disp.Respond(context.Background(), r, false)
	assert.Equal(t, "intro", h.engine.State().PreviousSuggestion())
	assert.Empty(t, h.selected())
}

func TestScenario_ObjectAppears(t *testing.T) {
	h := newHarness(t, newStaticRules(rule("camera_tip", "object_exists:Camera")))

	assert.Empty(t, h.selected())
	h.probe.add("Camera", "CAMERA")
	assert.Equal(t, "camera_tip", h.selected())
}

func TestScenario_DismissedNeverReturns(t *testing.T) {
	h := newHarness(t, newStaticRules(rule("tip1", ""), rule("tip2", "is_void")))

	assert.Equal(t, "tip1", h.selected())
	h.disp.Dispatch(context.Background(), "tip1", true, "")

	for i := 0; i < 5; i++ {
		h.clock.Advance(time.Minute)
		assert.Equal(t, "tip2", h.selected())
	}
	h.probe.add("Cube", "MESH")
	assert.Empty(t, h.selected())
}

func TestScenario_FollowupRewindsElapsed(t *testing.T) {
	rs := newStaticRules(rule("intro", "no_prev"), rule("next", "prev:intro elapsed:10s"))
	h := newHarness(t, rs)

	assert.Equal(t, "intro", h.selected())
	r, ok := h.gate.TryShow(context.Background())
	require.True(t, ok)

	h.clock.Advance(2 * time.Second)
	h.disp.Respond(context.Background(), r, false)
	assert.Empty(t, h.selected(), "elapsed:10s has not passed since the popup")

	report := h.disp.Dispatch(context.Background(), "intro", false, "trigger_followup")
	assert.Equal(t, []string{"trigger_followup"}, report.Executed)
	assert.Equal(t, "next", h.selected())
}
