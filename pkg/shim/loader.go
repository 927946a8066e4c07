package shim

import (
	"context"
	"sync"

	"go.uber.org/zap"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// Source fetches and installs the real widget library. Load must not block:
// it starts the fetch and returns. ready is called once the library's own
// readiness signal fires. A source that never calls ready stalls every
// pending activation; there is no timeout.
type Source interface {
	Load(ctx context.Context, ready func(widgetapi.Library)) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, ready func(widgetapi.Library)) error

func (f SourceFunc) Load(ctx context.Context, ready func(widgetapi.Library)) error {
	return f(ctx, ready)
}

// LoadPhase is the loader's progress.
type LoadPhase int

const (
	LoadNotStarted LoadPhase = iota
	LoadLoading
	LoadLoaded
)

func (p LoadPhase) String() string {
	switch p {
	case LoadNotStarted:
		return "not-started"
	case LoadLoading:
		return "loading"
	case LoadLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// LoadedHandle captures the authentic library entry points.
type LoadedHandle struct {
	Library widgetapi.Library
}

// NewPlayer is the authentic constructor.
func (h *LoadedHandle) NewPlayer(target *page.Element, opts widgetapi.Options) (widgetapi.Player, error) {
	return h.Library.NewPlayer(target, opts)
}

// PlayerByID is the authentic instance lookup.
func (h *LoadedHandle) PlayerByID(id string) (widgetapi.Player, bool) {
	return h.Library.PlayerByID(id)
}

// DeferredLoader loads the real library at most once, on first demand.
type DeferredLoader struct {
	loop    *loop.Loop
	source  Source
	globals page.Globals
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc

	// onLoaded runs on the loop after the handle is published.
	onLoaded func()

	mu     sync.Mutex
	phase  LoadPhase
	future *loop.Future[*LoadedHandle]
	handle *LoadedHandle
}

// NewDeferredLoader creates a loader that has not started.
func NewDeferredLoader(l *loop.Loop, src Source, globals page.Globals, cfg Config) *DeferredLoader {
	ctx, cancel := context.WithCancel(context.Background())
	return &DeferredLoader{
		loop:    l,
		source:  src,
		globals: globals,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Phase returns the current phase.
func (d *DeferredLoader) Phase() LoadPhase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Handle returns the loaded handle once the library is ready.
func (d *DeferredLoader) Handle() (*LoadedHandle, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handle, d.handle != nil
}

// EnsureLoaded starts the load on first call and returns the shared future
// every caller waits on.
func (d *DeferredLoader) EnsureLoaded() *loop.Future[*LoadedHandle] {
	d.mu.Lock()
	if d.phase != LoadNotStarted {
		f := d.future
		d.mu.Unlock()
		return f
	}
	d.phase = LoadLoading
	d.future = loop.NewFuture[*LoadedHandle](d.loop)
	f := d.future
	d.mu.Unlock()

	// The real library installs its own namespace under the same name.
	d.globals.Unbind(d.cfg.Namespace)

	Logger().Info("loading widget library")
	var once sync.Once
	ready := func(lib widgetapi.Library) {
		once.Do(func() {
			d.loop.Post(func() { d.complete(lib) })
		})
	}
	if err := d.source.Load(d.ctx, ready); err != nil {
		shimerrors.Report(&shimerrors.ShimError{
			Op:   "loader.ensureLoaded",
			Kind: shimerrors.KindLoad,
			Err:  err,
		})
	}
	return f
}

func (d *DeferredLoader) complete(lib widgetapi.Library) {
	h := &LoadedHandle{Library: lib}
	d.mu.Lock()
	d.phase = LoadLoaded
	d.handle = h
	f := d.future
	hook := d.onLoaded
	d.mu.Unlock()

	Logger().Info("widget library loaded", zap.String("namespace", d.cfg.Namespace))
	f.Resolve(h)
	if hook != nil {
		hook()
	}
}

// close cancels an in-flight fetch.
func (d *DeferredLoader) close() {
	d.cancel()
}
