// Package shim stands in for an embeddable video widget's scripting API on
// pages where the widget has been replaced by a click-to-load placeholder.
//
// Host code constructs players against the [Namespace] as usual. Until the
// user opts in, every player is a stub that answers synchronously and never
// contacts the widget's origin. When the substitution subsystem reports that
// a placeholder was clicked, the real library is loaded once and the stub is
// migrated in place to an authentic player, replaying the listeners the host
// registered in the meantime.
//
// All shim work runs on a single [loop.Loop]; signal delivery, library
// readiness and activation continuations are posted to it.
package shim

import (
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/signal"
)

// Deps are the page services the shim runs against.
type Deps struct {
	Loop     *loop.Loop
	Document *page.Document
	Globals  page.Globals
	Bus      *signal.Bus
	Source   Source
	Config   Config
}

var errMissingDep = stderrors.New("shim: missing dependency")

// Shim ties the registry, stub factory, loader, bridge and router together.
type Shim struct {
	cfg     Config
	loop    *loop.Loop
	doc     *page.Document
	globals page.Globals
	bus     *signal.Bus

	registry *Registry
	stubs    *StubFactory
	loader   *DeferredLoader
	bridge   *ActivationBridge
	router   *EventRouter
	ns       *Namespace

	installed bool
}

// New wires a shim. Nothing is visible to the page until Install.
func New(d Deps) (*Shim, error) {
	switch {
	case d.Loop == nil:
		return nil, stderrors.Join(errMissingDep, stderrors.New("loop"))
	case d.Document == nil:
		return nil, stderrors.Join(errMissingDep, stderrors.New("document"))
	case d.Globals == nil:
		return nil, stderrors.Join(errMissingDep, stderrors.New("globals"))
	case d.Bus == nil:
		return nil, stderrors.Join(errMissingDep, stderrors.New("bus"))
	case d.Source == nil:
		return nil, stderrors.Join(errMissingDep, stderrors.New("source"))
	}

	s := &Shim{
		cfg:     d.Config,
		loop:    d.Loop,
		doc:     d.Document,
		globals: d.Globals,
		bus:     d.Bus,
	}
	s.registry = NewRegistry(d.Document)
	s.stubs = NewStubFactory(d.Loop, d.Document, s.registry, d.Config)
	s.loader = NewDeferredLoader(d.Loop, d.Source, d.Globals, d.Config)
	s.bridge = NewActivationBridge(d.Loop, d.Document, s.registry, s.loader, d.Config)
	s.router = NewEventRouter(d.Bus, d.Document, s.registry, s.bridge, d.Config)
	s.ns = &Namespace{s: s}
	s.loader.onLoaded = s.chainHostReady
	return s, nil
}

// Install binds the namespace global, subscribes to signals and announces
// the shim to the substitution subsystem.
func (s *Shim) Install() error {
	if s.installed {
		return nil
	}
	s.installed = true

	s.globals.Bind(s.cfg.Namespace, s.ns)
	s.router.Start()

	err := s.bus.Broadcast(ChannelInstalled, map[string]any{"entity": s.cfg.Entity})
	switch {
	case stderrors.Is(err, signal.ErrNoOutlet):
		Logger().Debug("no outlet for install broadcast")
	case err != nil:
		return err
	}
	Logger().Info("shim installed", zap.String("namespace", s.cfg.Namespace))
	return nil
}

// Close unsubscribes from signals, abandons an in-flight load and removes
// the namespace global if it is still the shim's.
func (s *Shim) Close() {
	s.router.Stop()
	s.loader.close()
	if v, ok := s.globals.Lookup(s.cfg.Namespace); ok && v == any(s.ns) {
		s.globals.Unbind(s.cfg.Namespace)
	}
	s.installed = false
}

// chainHostReady hands over to the host page's own ready callback once the
// real library is loaded, unless it already ran.
func (s *Shim) chainHostReady() {
	if s.router.host.fire() {
		return
	}
	v, ok := s.globals.Lookup(s.cfg.HostReadyCallback)
	if !ok {
		return
	}
	if cb, ok := v.(func()); ok {
		s.router.host.capture(cb)
		s.router.host.fire()
	}
}

// Config returns the configuration the shim was built with.
func (s *Shim) Config() Config { return s.cfg }

// Loop returns the shim's loop.
func (s *Shim) Loop() *loop.Loop { return s.loop }

// Document returns the page document.
func (s *Shim) Document() *page.Document { return s.doc }

// Namespace returns the host-facing API.
func (s *Shim) Namespace() *Namespace { return s.ns }

// Registry returns the instance registry.
func (s *Shim) Registry() *Registry { return s.registry }

// Loader returns the deferred loader.
func (s *Shim) Loader() *DeferredLoader { return s.loader }

// Bridge returns the activation bridge.
func (s *Shim) Bridge() *ActivationBridge { return s.bridge }

// Router returns the event router.
func (s *Shim) Router() *EventRouter { return s.router }
