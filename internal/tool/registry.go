package tool

import (
	"iter"
	"log/slog"
	"slices"
	"sync"
)

// Registry is the ordered collection of device tools.
//
// Insertion order is preserved and drives the tools/list pagination
// contract: frequently used tools should be registered first so early pages
// benefit from response caching upstream. No removal operation exists; the
// registry owns its tools for the process lifetime.
type Registry struct {
	log *slog.Logger

	mu    sync.RWMutex
	tools []*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log: log.With("component", "registry"),
	}
}

// Register appends a tool to the collection. Registering a name that
// already exists is a no-op with a warning, not an error.
func (r *Registry) Register(t *Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.tools {
		if existing.Name() == t.Name() {
			r.log.Warn("tool already registered", "tool", t.Name())

			return
		}
	}

	r.log.Debug("registered tool", "tool", t.Name(), "restricted", t.Restricted())
	r.tools = append(r.tools, t)
}

// Lookup finds a tool by name.
func (r *Registry) Lookup(name string) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.tools {
		if t.Name() == name {
			return t, true
		}
	}

	return nil, false
}

// Len reports the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// List returns the ordered subsequence of tools starting at the tool whose
// name equals cursor (an empty cursor starts at the beginning), skipping
// restricted tools unless includeRestricted is set.
//
// The sequence is restartable and retains no iterator state between calls:
// the cursor is the state. A cursor that matches no tool yields nothing.
func (r *Registry) List(cursor string, includeRestricted bool) iter.Seq[*Tool] {
	r.mu.RLock()
	snapshot := slices.Clone(r.tools)
	r.mu.RUnlock()

	return func(yield func(*Tool) bool) {
		found := cursor == ""

		for _, t := range snapshot {
			if !found {
				if t.Name() != cursor {
					continue
				}

				found = true
			}

			if t.Restricted() && !includeRestricted {
				continue
			}

			if !yield(t) {
				return
			}
		}
	}
}
