package page

import "sync"

// Globals is the page-wide name table host script resolves identifiers
// against (the widget namespace, the host's ready callback).
type Globals interface {
	Lookup(name string) (any, bool)
	Bind(name string, v any)
	Unbind(name string)
}

// MapGlobals is an in-memory Globals.
type MapGlobals struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewGlobals returns an empty MapGlobals.
func NewGlobals() *MapGlobals {
	return &MapGlobals{m: make(map[string]any)}
}

func (g *MapGlobals) Lookup(name string) (any, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.m[name]
	return v, ok
}

func (g *MapGlobals) Bind(name string, v any) {
	g.mu.Lock()
	g.m[name] = v
	g.mu.Unlock()
}

func (g *MapGlobals) Unbind(name string) {
	g.mu.Lock()
	delete(g.m, name)
	g.mu.Unlock()
}
