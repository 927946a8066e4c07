package shim

import (
	"sync"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/page"
)

// Registry maps page elements to widget instances and remembers which
// placeholder stands in for which real element.
//
// All methods are safe for concurrent use.
type Registry struct {
	doc *page.Document

	mu           sync.RWMutex
	instances    map[*page.Element]*Instance
	aliases      map[*page.Element]*page.Element
	placeholders map[*page.Element]*page.Element
	reals        map[*page.Element]*page.Element
}

// NewRegistry creates an empty registry over doc.
func NewRegistry(doc *page.Document) *Registry {
	return &Registry{
		doc:          doc,
		instances:    make(map[*page.Element]*Instance),
		aliases:      make(map[*page.Element]*page.Element),
		placeholders: make(map[*page.Element]*page.Element),
		reals:        make(map[*page.Element]*page.Element),
	}
}

// Resolve turns a constructor target into an element. It accepts an
// *page.Element or an element id.
func (r *Registry) Resolve(target any) (*page.Element, error) {
	switch t := target.(type) {
	case *page.Element:
		if t != nil {
			return t, nil
		}
	case string:
		if el := r.doc.GetElementByID(t); el != nil {
			return el, nil
		}
	}
	return nil, &shimerrors.NotFoundError{Target: target}
}

// Register records inst under target.
func (r *Registry) Register(target *page.Element, inst *Instance) {
	r.mu.Lock()
	r.instances[target] = inst
	r.mu.Unlock()
}

// Unregister drops inst and any alias pointing at its target.
func (r *Registry) Unregister(inst *Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, inst.Target)
	for from, to := range r.aliases {
		if to == inst.Target {
			delete(r.aliases, from)
		}
	}
}

// Alias makes lookups for from resolve to the instance registered under to.
func (r *Registry) Alias(from, to *page.Element) {
	if from == to {
		return
	}
	r.mu.Lock()
	r.aliases[from] = to
	r.mu.Unlock()
}

// Lookup returns the instance for el. Placeholders and aliased elements
// normalize to the element the instance was registered under.
func (r *Registry) Lookup(el *page.Element) (*Instance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if real, ok := r.reals[el]; ok {
		el = real
	}
	if to, ok := r.aliases[el]; ok {
		el = to
	}
	inst, ok := r.instances[el]
	return inst, ok
}

// LookupByExternalID returns the instance whose frame carries id.
func (r *Registry) LookupByExternalID(id string) (*Instance, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inst := range r.instances {
		if inst.ExternalID == id {
			return inst, true
		}
	}
	return nil, false
}

// AssociatePlaceholder pairs a real element with its placeholder. The first
// association for a real element wins; later ones are ignored.
func (r *Registry) AssociatePlaceholder(real, placeholder *page.Element) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.placeholders[real]; ok {
		return false
	}
	r.placeholders[real] = placeholder
	r.reals[placeholder] = real
	return true
}

// Placeholder returns the placeholder associated with real.
func (r *Registry) Placeholder(real *page.Element) (*page.Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ph, ok := r.placeholders[real]
	return ph, ok
}

// Instances returns every registered instance.
func (r *Registry) Instances() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}
