package triggers

import (
	"fmt"

	"github.com/nathoo/rulecore/engine/args"
)

// entry is a registered callback with the state it owns.
type entry struct {
	cb       Callback
	cursors  args.Cursors
	disabled error
}

// Registry holds callbacks in registration order. It is filled at load
// time and read during dispatch; there is no unregistration.
type Registry struct {
	entries []*entry
	byName  map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{byName: map[string]*entry{}}
}

// Add validates and registers a callback.
func (r *Registry) Add(cb Callback, vocab Vocabulary) error {
	if err := Validate(cb, vocab); err != nil {
		return err
	}
	if _, dup := r.byName[cb.Name]; dup {
		return &ConfigError{Callback: cb.Name, Err: fmt.Errorf("already registered")}
	}
	e := &entry{cb: cb, cursors: args.Cursors{}}
	r.entries = append(r.entries, e)
	r.byName[cb.Name] = e
	return nil
}

// Disable stops a callback from being considered again.
func (r *Registry) Disable(name string, err error) {
	if e, ok := r.byName[name]; ok && e.disabled == nil {
		e.disabled = err
	}
}

// Disabled returns why a callback was disabled, or nil.
func (r *Registry) Disabled(name string) error {
	if e, ok := r.byName[name]; ok {
		return e.disabled
	}
	return nil
}

// Callback returns a registered callback by name.
func (r *Registry) Callback(name string) (Callback, bool) {
	e, ok := r.byName[name]
	if !ok {
		return Callback{}, false
	}
	return e.cb, true
}

// Names returns callback names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.cb.Name
	}
	return out
}
