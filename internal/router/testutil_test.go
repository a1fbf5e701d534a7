package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tierd/internal/backend"
	"tierd/internal/resource"
	"tierd/pkg/types"
)

type invokeCall struct {
	Model   string
	Prompt  string
	Timeout time.Duration
}

// fakeBackend answers per model id; models without a behaviour answer "ok".
type fakeBackend struct {
	mu        sync.Mutex
	calls     []invokeCall
	behaviour map[string]func() (backend.Result, error)
	healthy   map[string]bool
	unloaded  []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{behaviour: map[string]func() (backend.Result, error){}, healthy: map[string]bool{}}
}

func (f *fakeBackend) on(model string, fn func() (backend.Result, error)) {
	f.mu.Lock()
	f.behaviour[model] = fn
	f.mu.Unlock()
}

func (f *fakeBackend) Invoke(_ context.Context, model, prompt string, timeout time.Duration) (backend.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, invokeCall{Model: model, Prompt: prompt, Timeout: timeout})
	fn := f.behaviour[model]
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return backend.Result{Text: "ok from " + model, InputTokens: 10, OutputTokens: 3, Duration: time.Second}, nil
}

func (f *fakeBackend) HealthCheck(_ context.Context, model string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy[model]
}

func (f *fakeBackend) Unload(_ context.Context, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloaded = append(f.unloaded, model)
	return nil
}

func (f *fakeBackend) Calls() []invokeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]invokeCall(nil), f.calls...)
}

func timeoutErr(model string) func() (backend.Result, error) {
	return func() (backend.Result, error) {
		return backend.Result{}, backend.ErrTimeout(model, context.DeadlineExceeded)
	}
}

func failErr(model string) func() (backend.Result, error) {
	return func() (backend.Result, error) {
		return backend.Result{}, backend.ErrFailure(model, errors.New("connection refused"))
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	r     *Router
	be    *fakeBackend
	pub   *MemoryPublisher
	clock *fakeClock
}

func newFixture(t *testing.T, mon resource.Monitor, mutate ...func(*Config)) fixture {
	t.Helper()
	f := fixture{be: newFakeBackend(), pub: NewMemoryPublisher(), clock: newFakeClock()}
	cfg := Config{Backend: f.be, Monitor: mon, Publisher: f.pub, Now: f.clock.Now, SystemPrompt: "SYS"}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := New(cfg)
	require.NoError(t, err)
	f.r = r
	return f
}

var profiles = types.DefaultTierProfiles()

const (
	heavyQuery       = "Bestimme die mathematisch optimale Puffergröße für I/O-Operationen"
	specializedQuery = "Schreibe eine Python-Funktion zur Berechnung von Fibonacci-Zahlen"
	lightQuery       = "Welcher Befehl zeigt die Festplattenbelegung an?"
)

// plenty fits every tier.
var plenty = resource.Static{Label: "gpu0", TotalMB: 96000, UsedMB: 4000}
