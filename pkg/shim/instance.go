package shim

import (
	"sync"

	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// Lifecycle is the phase a widget instance is in. It only moves forward.
type Lifecycle int

const (
	// LifecycleStub means the handle is served by the local stand-in.
	LifecycleStub Lifecycle = iota
	// LifecycleLoading means an authentic player is being constructed.
	LifecycleLoading
	// LifecycleActive means the handle forwards to the authentic player.
	LifecycleActive
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleStub:
		return "stub"
	case LifecycleLoading:
		return "loading"
	case LifecycleActive:
		return "active"
	default:
		return "unknown"
	}
}

// buffered is a listener registered while stubbed. detach is set once the
// listener has been replayed onto the authentic player.
type buffered struct {
	event   string
	fn      widgetapi.Listener
	removed bool
	detach  func()
}

// Instance is the registry record for one widget.
type Instance struct {
	// Target is the embed frame the widget lives in.
	Target *page.Element
	// Origin is the element the host passed, when the frame replaced it.
	Origin *page.Element
	// ExternalID is the frame's id attribute, used by Namespace.Get.
	ExternalID string
	// Options are the constructor options as the host gave them.
	Options widgetapi.Options

	handle *Player

	mu            sync.Mutex
	state         Lifecycle
	buffered      []*buffered
	onReady       widgetapi.Listener
	onStateChange widgetapi.Listener
	readyFired    bool
	synthesized   bool
	activation    *loop.Future[struct{}]
}

// Handle returns the stable handle given to host code.
func (i *Instance) Handle() *Player {
	return i.handle
}

// State returns the current lifecycle phase.
func (i *Instance) State() Lifecycle {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// advance moves to next if that is forward; it reports whether it moved.
func (i *Instance) advance(next Lifecycle) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if next <= i.state {
		return false
	}
	i.state = next
	return true
}

// buffer records a listener in registration order and returns its record.
func (i *Instance) buffer(event string, fn widgetapi.Listener) *buffered {
	b := &buffered{event: event, fn: fn}
	i.mu.Lock()
	i.buffered = append(i.buffered, b)
	i.mu.Unlock()
	return b
}

// live returns the buffered listeners that have not been removed.
func (i *Instance) live() []*buffered {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*buffered, 0, len(i.buffered))
	for _, b := range i.buffered {
		if !b.removed {
			out = append(out, b)
		}
	}
	return out
}

// liveFor returns the live buffered listeners for one event.
func (i *Instance) liveFor(event string) []widgetapi.Listener {
	var out []widgetapi.Listener
	for _, b := range i.live() {
		if b.event == event {
			out = append(out, b.fn)
		}
	}
	return out
}

func (i *Instance) clearBuffered() {
	i.mu.Lock()
	i.buffered = nil
	i.mu.Unlock()
}

// fireReady calls the ready listener unless it already fired.
func (i *Instance) fireReady(data any) {
	i.mu.Lock()
	if i.readyFired || i.onReady == nil {
		i.mu.Unlock()
		return
	}
	i.readyFired = true
	fn := i.onReady
	i.mu.Unlock()

	fn(widgetapi.Event{Name: widgetapi.EventReady, Target: i.handle, Data: data})
}

func (i *Instance) stateListener() widgetapi.Listener {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.onStateChange
}

func (i *Instance) markSynthesized() {
	i.mu.Lock()
	i.synthesized = true
	i.mu.Unlock()
}

func (i *Instance) wasSynthesized() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.synthesized
}
