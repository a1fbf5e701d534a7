// Package tasks holds the administrative task handlers. A handler turns
// parameters into a command plan; nothing is executed here.
package tasks

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Plan is the validated, ready-to-review form of a task.
type Plan struct {
	Type                 string
	Parameters           map[string]any
	Commands             []string
	Description          string
	RequiresConfirmation bool
	ConfirmationMessage  string
}

// Handler plans one task type.
type Handler interface {
	Type() string
	Description() string
	// Plan validates params, applying defaults, and renders the commands.
	Plan(params map[string]any) (Plan, error)
}

// ErrDuplicate is returned when a task type is registered twice.
var ErrDuplicate = errors.New("task type already registered")

type unknownTaskError struct{ typ string }

func (e unknownTaskError) Error() string { return "unknown task type: " + e.typ }

// IsUnknownTask reports whether err names an unregistered task type.
func IsUnknownTask(err error) bool {
	var u unknownTaskError
	return errors.As(err, &u)
}

type invalidParamError struct {
	key string
	msg string
}

func (e invalidParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.key, e.msg)
}

// IsInvalidParam reports whether err rejects a task parameter.
func IsInvalidParam(err error) bool {
	var p invalidParamError
	return errors.As(err, &p)
}

// Registry maps task types to their single handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds h. A second handler for the same type is rejected.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handlers[h.Type()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, h.Type())
	}
	r.handlers[h.Type()] = h
	return nil
}

// List returns the handlers sorted by type.
func (r *Registry) List() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Handler, 0, len(r.handlers))
	for _, h := range r.handlers {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type() < out[j].Type() })
	return out
}

// Plan runs the handler registered for typ.
func (r *Registry) Plan(typ string, params map[string]any) (Plan, error) {
	r.mu.RLock()
	h, ok := r.handlers[typ]
	r.mu.RUnlock()
	if !ok {
		return Plan{}, unknownTaskError{typ: typ}
	}
	if params == nil {
		params = map[string]any{}
	}
	p, err := h.Plan(params)
	if err != nil {
		return Plan{}, fmt.Errorf("%s: %w", typ, err)
	}
	p.Type = typ
	return p, nil
}

// Default returns a registry with every built-in handler.
func Default() *Registry {
	r := NewRegistry()
	for _, h := range []Handler{DiskCheck{}, MemoryCheck{}, ProcessCheck{}, LogAnalyze{}, BackupCreate{}} {
		if err := r.Register(h); err != nil {
			panic(err)
		}
	}
	return r
}
