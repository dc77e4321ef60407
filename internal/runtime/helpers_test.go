package runtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rgehrsitz/assist/internal/history"
	"rgehrsitz/assist/internal/rules"
)

type fakeProbe struct {
	mu       sync.Mutex
	objects  map[string]string // name -> type
	err      error
	panicMsg string
	queries  int
}

func newFakeProbe(objects ...string) *fakeProbe {
	p := &fakeProbe{objects: map[string]string{}}
	for _, name := range objects {
		p.objects[name] = "MESH"
	}
	return p
}

func (p *fakeProbe) add(name, kind string) {
	p.mu.Lock()
	p.objects[name] = kind
	p.mu.Unlock()
}

func (p *fakeProbe) ObjectExists(_ context.Context, name string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return false, p.err
	}
	_, ok := p.objects[name]
	return ok, nil
}

func (p *fakeProbe) SceneEmpty(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if p.err != nil {
		return false, p.err
	}
	return len(p.objects) == 0, nil
}

func (p *fakeProbe) HasNoCamera(context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries++
	if p.err != nil {
		return false, p.err
	}
	for _, kind := range p.objects {
		if kind == "CAMERA" {
			return false, nil
		}
	}
	return true, nil
}

type fakeHost struct {
	mu        sync.Mutex
	operators map[string]map[string]bool
	opened    []string
	invoked   []string
	failURL   bool
	panicOps  bool
}

func newFakeHost(ops ...[2]string) *fakeHost {
	h := &fakeHost{operators: map[string]map[string]bool{}}
	for _, op := range ops {
		if h.operators[op[0]] == nil {
			h.operators[op[0]] = map[string]bool{}
		}
		h.operators[op[0]][op[1]] = true
	}
	return h
}

func (h *fakeHost) OpenURL(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failURL {
		return errors.New("no browser")
	}
	h.opened = append(h.opened, url)
	return nil
}

func (h *fakeHost) HasNamespace(ns string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.operators[ns]
	return ok
}

func (h *fakeHost) HasOperator(ns, op string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.operators[ns][op]
}

func (h *fakeHost) InvokeOperator(_ context.Context, ns, op string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.panicOps {
		panic("operator crashed")
	}
	h.invoked = append(h.invoked, ns+"."+op)
	return nil
}

// staticRules is a RuleSource over a fixed slice.
type staticRules struct {
	mu     sync.Mutex
	rules  []*rules.Rule
	next   []*rules.Rule
	loaded bool
	loads  int
}

func newStaticRules(rs ...*rules.Rule) *staticRules {
	return &staticRules{next: rs}
}

func (s *staticRules) Load() []*rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	s.rules = s.next
	s.loaded = true
	return s.rules
}

func (s *staticRules) Rules() []*rules.Rule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rules
}

func (s *staticRules) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *staticRules) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	s.loaded = false
}

func (s *staticRules) stage(rs ...*rules.Rule) {
	s.mu.Lock()
	s.next = rs
	s.mu.Unlock()
}

func (s *staticRules) loadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// fakeHistory is an ActionHistory with a fixed view.
type fakeHistory struct {
	mu        sync.Mutex
	view      history.View
	err       error
	refreshes int
}

func (h *fakeHistory) Refresh(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refreshes++
	return h.err
}

func (h *fakeHistory) View() history.View {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append(history.View(nil), h.view...)
}

func (h *fakeHistory) Clear() {
	h.mu.Lock()
	h.view = nil
	h.mu.Unlock()
}

func (h *fakeHistory) refreshCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refreshes
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Unix(1_700_000_000, 0)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func rule(id, conditions string) *rules.Rule {
	return rules.New(id, conditions, "message for "+id, "ok dismiss", "")
}

func waitForCondition(t *testing.T, timeout time.Duration, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
