package shim

import (
	"fmt"
	"sync"
	"testing"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/signal"
	"github.com/go-drift/embedshim/pkg/simplayer"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

const testPage = `<html><body>
<div id="player"></div>
<div id="second"></div>
<iframe id="existing" src="https://www.youtube.com/embed/abc123?rel=0"></iframe>
</body></html>`

type fixture struct {
	loop    *loop.Loop
	doc     *page.Document
	globals *page.MapGlobals
	bus     *signal.Bus
	outlet  *signal.Recorder
	lib     *simplayer.Library
	source  *simplayer.Source
	shim    *Shim
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithConfig(t, DefaultConfig())
}

func newFixtureWithConfig(t *testing.T, cfg Config) *fixture {
	t.Helper()
	l, err := loop.New()
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	t.Cleanup(l.Close)
	doc, err := page.ParseString(testPage)
	if err != nil {
		t.Fatalf("parse page: %v", err)
	}
	f := &fixture{
		loop:    l,
		doc:     doc,
		globals: page.NewGlobals(),
		bus:     signal.NewBus(func(fn func()) { l.Post(fn) }),
		outlet:  &signal.Recorder{},
	}
	f.bus.SetOutlet(f.outlet)
	f.lib = simplayer.New(l, doc, cfg.Embed)
	f.source = simplayer.NewSource(f.lib)

	s, err := New(Deps{
		Loop:     l,
		Document: doc,
		Globals:  f.globals,
		Bus:      f.bus,
		Source:   f.source,
		Config:   cfg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	f.shim = s
	t.Cleanup(s.Close)
	return f
}

func (f *fixture) newPlayer(t *testing.T, target any, opts widgetapi.Options) *Player {
	t.Helper()
	p, err := f.shim.Namespace().NewPlayer(target, opts)
	if err != nil {
		t.Fatalf("NewPlayer(%v): %v", target, err)
	}
	return p
}

func (f *fixture) element(t *testing.T, id string) *page.Element {
	t.Helper()
	el := f.doc.GetElementByID(id)
	if el == nil {
		t.Fatalf("element %q not found", id)
	}
	return el
}

// eventLog records listener calls as "name:state" strings.
type eventLog struct {
	mu      sync.Mutex
	entries []string
	targets []widgetapi.Player
}

func (l *eventLog) listener(name string) widgetapi.Listener {
	return func(e widgetapi.Event) {
		l.mu.Lock()
		defer l.mu.Unlock()
		entry := name
		if s, ok := e.Data.(widgetapi.PlayerState); ok {
			entry = fmt.Sprintf("%s:%s", name, s)
		}
		l.entries = append(l.entries, entry)
		l.targets = append(l.targets, e.Target)
	}
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

func (l *eventLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

type reportRecorder struct {
	mu   sync.Mutex
	errs []*shimerrors.ShimError
}

func (r *reportRecorder) HandleError(err *shimerrors.ShimError) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *reportRecorder) HandlePanic(*shimerrors.PanicError) {}

func (r *reportRecorder) kinds() []shimerrors.ErrorKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shimerrors.ErrorKind, 0, len(r.errs))
	for _, e := range r.errs {
		out = append(out, e.Kind)
	}
	return out
}

func recordReports(t *testing.T) *reportRecorder {
	t.Helper()
	r := &reportRecorder{}
	shimerrors.SetHandler(r)
	t.Cleanup(func() { shimerrors.SetHandler(nil) })
	return r
}
