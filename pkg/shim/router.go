package shim

import (
	"sync"

	"go.uber.org/zap"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/signal"
)

// Announcement is the payload of the element and placeholder signals.
type Announcement struct {
	ElementRef  int64
	Entity      string
	ReplaceWith string
	ExternalID  string
}

func parseAnnouncement(channel string) func(data any) (Announcement, error) {
	return func(data any) (Announcement, error) {
		m, ok := data.(map[string]any)
		if !ok {
			return Announcement{}, &shimerrors.ParseError{Signal: channel, Got: data}
		}
		ref, ok := m["elementRef"].(float64)
		if !ok {
			return Announcement{}, &shimerrors.ParseError{Signal: channel, Field: "elementRef", Got: m["elementRef"]}
		}
		a := Announcement{ElementRef: int64(ref)}
		a.Entity, _ = m["entity"].(string)
		a.ReplaceWith, _ = m["replaceWith"].(string)
		a.ExternalID, _ = m["externalId"].(string)
		return a, nil
	}
}

// hostReady holds the host page's own ready callback. It fires at most once,
// whichever of the host and the loader gets there first.
type hostReady struct {
	mu    sync.Mutex
	cb    func()
	fired bool
}

func (h *hostReady) capture(cb func()) {
	h.mu.Lock()
	if h.cb == nil {
		h.cb = cb
	}
	h.mu.Unlock()
}

func (h *hostReady) fire() bool {
	h.mu.Lock()
	if h.fired || h.cb == nil {
		h.mu.Unlock()
		return false
	}
	h.fired = true
	cb := h.cb
	h.mu.Unlock()

	defer shimerrors.Recover("router.hostReady")
	cb()
	return true
}

// EventRouter turns substitution-subsystem signals into registry updates and
// activations.
type EventRouter struct {
	bus      *signal.Bus
	doc      *page.Document
	registry *Registry
	bridge   *ActivationBridge
	cfg      Config
	host     *hostReady

	mu                 sync.Mutex
	started            bool
	unsubs             []func()
	pendingReal        map[string]*page.Element
	pendingPlaceholder map[string]*page.Element
}

// NewEventRouter creates a router. Call Start to subscribe.
func NewEventRouter(bus *signal.Bus, doc *page.Document, reg *Registry, bridge *ActivationBridge, cfg Config) *EventRouter {
	return &EventRouter{
		bus:                bus,
		doc:                doc,
		registry:           reg,
		bridge:             bridge,
		cfg:                cfg,
		host:               &hostReady{},
		pendingReal:        make(map[string]*page.Element),
		pendingPlaceholder: make(map[string]*page.Element),
	}
}

// Start subscribes to the signal channels. Later calls do nothing.
func (r *EventRouter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true

	r.unsubs = append(r.unsubs,
		r.listen(ChannelElementAnnounced, func(el *page.Element, a Announcement) {
			r.ElementAnnounced(el, a.ExternalID)
		}),
		r.listen(ChannelPlaceholderAnnounced, func(el *page.Element, a Announcement) {
			r.PlaceholderAnnounced(el, a.ExternalID)
		}),
		r.listen(ChannelPlaceholderActivated, func(el *page.Element, _ Announcement) {
			r.PlaceholderActivated(el)
		}),
	)
}

func (r *EventRouter) listen(channel string, handle func(*page.Element, Announcement)) func() {
	stream := signal.NewStream(r.bus.Channel(channel), parseAnnouncement(channel))
	return stream.Listen(func(a Announcement) {
		if !r.cfg.concerns(a.Entity, a.ReplaceWith) {
			Logger().Debug("signal for other entity ignored",
				zap.String("channel", channel),
				zap.String("entity", a.Entity),
				zap.String("replaceWith", a.ReplaceWith))
			return
		}
		el := r.doc.ElementByRef(a.ElementRef)
		if el == nil {
			shimerrors.Report(&shimerrors.ShimError{
				Op:     "router.resolveElement",
				Kind:   shimerrors.KindParsing,
				Err:    &shimerrors.NotFoundError{Target: a.ElementRef},
				Signal: channel,
			})
			return
		}
		handle(el, a)
	})
}

// Stop cancels the subscriptions.
func (r *EventRouter) Stop() {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	r.started = false
	r.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// HostAPIReady captures the host page's ready callback and calls it. The
// callback runs at most once over the life of the shim.
func (r *EventRouter) HostAPIReady(cb func()) {
	if cb == nil {
		return
	}
	r.host.capture(cb)
	r.host.fire()
}

// ElementAnnounced records that the substitution subsystem saw a real
// widget element.
func (r *EventRouter) ElementAnnounced(el *page.Element, externalID string) {
	r.mu.Lock()
	ph, ok := r.pendingPlaceholder[externalID]
	if ok {
		delete(r.pendingPlaceholder, externalID)
	} else {
		r.pendingReal[externalID] = el
	}
	r.mu.Unlock()
	if ok {
		r.registry.AssociatePlaceholder(el, ph)
	}
}

// PlaceholderAnnounced records a placeholder that stands in for a real
// element. Either announcement may come first.
func (r *EventRouter) PlaceholderAnnounced(el *page.Element, externalID string) {
	r.mu.Lock()
	real, ok := r.pendingReal[externalID]
	if ok {
		delete(r.pendingReal, externalID)
	} else {
		r.pendingPlaceholder[externalID] = el
	}
	r.mu.Unlock()
	if ok {
		r.registry.AssociatePlaceholder(real, el)
	}
}

// PlaceholderActivated starts activation for the real element whose
// placeholder the user clicked.
func (r *EventRouter) PlaceholderActivated(real *page.Element) *loop.Future[struct{}] {
	return r.bridge.Activate(real)
}

// Pending returns how many announcements are waiting for their pair.
func (r *EventRouter) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pendingReal) + len(r.pendingPlaceholder)
}
