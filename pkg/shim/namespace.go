package shim

import (
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// Namespace is the host-facing widget API the shim installs under
// Config.Namespace until the real library replaces it.
type Namespace struct {
	s *Shim
}

// NewPlayer constructs a player on target, which is an element or an element
// id. Before the library is loaded the returned handle is a stub; afterwards
// it is real from the start. The only error is a target that cannot be
// resolved.
func (n *Namespace) NewPlayer(target any, opts widgetapi.Options) (*Player, error) {
	if h, ok := n.s.loader.Handle(); ok {
		return n.s.stubs.CreateActive(target, opts, h.Library)
	}
	return n.s.stubs.CreateStub(target, opts)
}

// Get returns the player whose frame has the given id.
func (n *Namespace) Get(id string) (widgetapi.Player, bool) {
	if inst, ok := n.s.registry.LookupByExternalID(id); ok {
		return inst.handle, true
	}
	if h, ok := n.s.loader.Handle(); ok {
		return h.PlayerByID(id)
	}
	return nil, false
}

// PlayerState returns the state enumeration by name.
func (n *Namespace) PlayerState() map[string]widgetapi.PlayerState {
	return widgetapi.PlayerStates()
}

// Loaded mirrors the real namespace's loaded flag, which host scripts test
// before constructing players.
func (n *Namespace) Loaded() int {
	return 1
}

// Subscribe, Unsubscribe, Ready and Scan exist so host code that checks for
// them keeps working. They do nothing.
func (n *Namespace) Subscribe(string, func(any)) {}

func (n *Namespace) Unsubscribe(string, func(any)) {}

func (n *Namespace) Ready(func()) {}

func (n *Namespace) Scan() {}
