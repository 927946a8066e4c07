package jsbind

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/shim"
	"github.com/go-drift/embedshim/pkg/signal"
)

type harness struct {
	loop *loop.Loop
	doc  *page.Document
	rt   *Runtime
	bus  *signal.Bus
	shim *shim.Shim
	src  *ScriptSource
}

func readTestdata(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func newHarness(t *testing.T, libraryHandler http.Handler) *harness {
	t.Helper()
	l, err := loop.New()
	require.NoError(t, err)
	t.Cleanup(l.Close)
	doc, err := page.ParseString(readTestdata(t, "page.html"))
	require.NoError(t, err)
	rt, err := New(l, doc)
	require.NoError(t, err)

	srv := httptest.NewServer(libraryHandler)
	t.Cleanup(srv.Close)

	cfg := shim.DefaultConfig()
	h := &harness{
		loop: l,
		doc:  doc,
		rt:   rt,
		bus:  signal.NewBus(func(fn func()) { l.Post(fn) }),
	}
	h.src = &ScriptSource{
		Runtime:       h.rt,
		URL:           srv.URL + "/iframe_api",
		Client:        srv.Client(),
		Namespace:     cfg.Namespace,
		ReadyCallback: cfg.HostReadyCallback,
	}
	s, err := shim.New(shim.Deps{
		Loop:     l,
		Document: doc,
		Globals:  h.rt.Globals(),
		Bus:      h.bus,
		Source:   h.src,
		Config:   cfg,
	})
	require.NoError(t, err)
	require.NoError(t, s.Install())
	h.rt.Attach(s)
	h.shim = s
	t.Cleanup(s.Close)
	return h
}

func libraryServer(t *testing.T) http.Handler {
	script := readTestdata(t, "iframe_api.js")
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		fmt.Fprint(w, script)
	})
}

func (h *harness) eval(t *testing.T, expr string) any {
	t.Helper()
	v, err := h.rt.VM().RunString(expr)
	require.NoError(t, err)
	return v.Export()
}

func (h *harness) activate(t *testing.T, id string) {
	t.Helper()
	el := h.doc.GetElementByID(id)
	require.NotNil(t, el)
	payload := fmt.Sprintf(`{"elementRef":%d,"entity":"Youtube","replaceWith":"youtube-video"}`, el.Ref())
	require.NoError(t, h.bus.HandleEvent(shim.ChannelPlaceholderActivated, []byte(payload)))
}

func TestHostScriptAgainstStub(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	require.NoError(t, h.rt.RunScript("host.js", readTestdata(t, "host.js")))

	h.loop.Drain()
	require.Equal(t, []any{"ready:true"}, h.eval(t, "events"))
	require.Equal(t, "IFRAME", h.eval(t, "player.getIframe().tagName"))
	require.EqualValues(t, -1, h.eval(t, "player.getPlayerState()"))
	require.Equal(t, true, h.eval(t, "player instanceof YT.Player"))
	require.Equal(t, true, h.eval(t, "player.constructor === YT.Player"))

	h.eval(t, "player.playVideo()")
	require.Equal(t, []any{"ready:true", "state:1"}, h.eval(t, "events"))
	require.EqualValues(t, 1, h.eval(t, "player.getPlayerState()"))
}

func TestActivationLoadsScriptLibrary(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	require.NoError(t, h.rt.RunScript("host.js", readTestdata(t, "host.js")))
	h.loop.Drain()

	h.activate(t, "player")
	p, ok := h.shim.Namespace().Get("player")
	require.True(t, ok)
	handle := p.(*shim.Player)

	require.Eventually(t, func() bool {
		h.loop.Drain()
		return handle.Instance().State() == shim.LifecycleActive
	}, 5*time.Second, 10*time.Millisecond)
	h.loop.Drain()

	require.Equal(t, []any{"ready:true", "state:5", "state:3", "state:1"}, h.eval(t, "events"))
	require.EqualValues(t, 1, h.eval(t, "player.getPlayerState()"))
	require.Equal(t, "1", h.eval(t, `player.getIframe().getAttribute("data-authentic")`))
	require.EqualValues(t, 212, h.eval(t, "player.getDuration()"))
	require.Equal(t, true, h.eval(t, "player instanceof YT.Player"))
	require.Equal(t, true, h.eval(t, "player.constructor === YT.Player"))

	authentic, ok := handle.Authentic()
	require.True(t, ok)
	require.IsType(t, &jsPlayer{}, authentic)
	require.Equal(t, h.doc.GetElementByID("player"), authentic.GetIframe())
}

func TestLibraryFetchFailureIsReported(t *testing.T) {
	var (
		mu    sync.Mutex
		kinds []shimerrors.ErrorKind
	)
	shimerrors.SetHandler(shimerrors.Funcs{OnError: func(err *shimerrors.ShimError) {
		mu.Lock()
		kinds = append(kinds, err.Kind)
		mu.Unlock()
	}})
	t.Cleanup(func() { shimerrors.SetHandler(nil) })

	h := newHarness(t, http.NotFoundHandler())
	h.shim.Loader().EnsureLoaded()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(kinds) > 0
	}, 5*time.Second, 10*time.Millisecond)
	mu.Lock()
	require.Equal(t, shimerrors.KindLoad, kinds[0])
	mu.Unlock()
	require.Equal(t, shim.LoadLoading, h.shim.Loader().Phase())
}

func TestHandleObjectMembers(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	require.NoError(t, h.rt.RunScript("members.js", `
		var seen = [];
		var p = new YT.Player("player", {videoId: "abc"});
		function record(e) { seen.push(e.data); }
		p.addEventListener("onStateChange", record);
		p.playVideo();
		p.removeEventListener("onStateChange", record);
		p.pauseVideo();
		p.setVolume(30);
	`))

	require.Equal(t, []any{int64(1)}, h.eval(t, "seen"))
	require.EqualValues(t, 30, h.eval(t, "p.getVolume()"))
	require.Equal(t, true, h.eval(t, `typeof p.getVideoUrl === "function"`))
	require.Equal(t, "https://www.youtube.com/watch?v=abc", h.eval(t, "p.getVideoUrl()"))
	require.Equal(t, true, h.eval(t, `YT.get("player") === p`))
	require.EqualValues(t, 1, h.eval(t, "YT.PlayerState.PLAYING"))
	require.EqualValues(t, 1, h.eval(t, "YT.loaded"))

	h.eval(t, `p.id = "renamed"`)
	require.Equal(t, "renamed", h.eval(t, "p.id"))
}

func TestConstructorRejectsUnknownTarget(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	err := h.rt.RunScript("bad.js", `new YT.Player("missing", {})`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestGlobalsRoundTrip(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	g := h.rt.Globals()

	v, ok := g.Lookup("YT")
	require.True(t, ok)
	require.Same(t, h.shim.Namespace(), v)

	calls := 0
	g.Bind("bump", func() { calls++ })
	h.eval(t, "bump(); bump()")
	require.Equal(t, 2, calls)

	require.NoError(t, h.rt.RunScript("fn.js", "var hits = 0; function hit() { hits++; }"))
	fn, ok := g.Lookup("hit")
	require.True(t, ok)
	fn.(func())()
	require.EqualValues(t, 1, h.eval(t, "hits"))

	g.Unbind("bump")
	_, ok = g.Lookup("bump")
	require.False(t, ok)
}

func TestTimers(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	require.NoError(t, h.rt.RunScript("timers.js", `
		var n = 0;
		setTimeout(function () { n += 1; }, 0);
		var id = setTimeout(function () { n += 10; }, 0);
		clearTimeout(id);
	`))
	require.EqualValues(t, 0, h.eval(t, "n"))
	h.loop.Drain()
	require.EqualValues(t, 1, h.eval(t, "n"))
}

func TestDocumentBindings(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	require.Equal(t, true, h.eval(t, `document.getElementById("inline") === document.getElementById("inline")`))
	require.Nil(t, h.eval(t, `document.getElementById("nope")`))

	h.eval(t, `var d = document.createElement("DIV"); d.id = "late"; document.body.appendChild(d);`)
	el := h.doc.GetElementByID("late")
	require.NotNil(t, el)
	require.Equal(t, "div", el.Tag())
}

// runOnLoop evaluates src from inside a loop task and drains.
func (h *harness) runOnLoop(t *testing.T, name, src string) {
	t.Helper()
	var err error
	require.True(t, h.loop.Post(func() { err = h.rt.RunScript(name, src) }))
	h.loop.Drain()
	require.NoError(t, err)
}

func TestEventLoopGlobals(t *testing.T) {
	h := newHarness(t, libraryServer(t))
	h.runOnLoop(t, "async.js", `
		var order = [];
		setTimeout(function () { order.push("timer"); }, 0);
		Promise.resolve("promise").then(function (v) { order.push(v); });
		queueMicrotask(function () { order.push("microtask"); });
		order.push("sync");
	`)

	order, ok := h.eval(t, "order").([]any)
	require.True(t, ok)
	require.Len(t, order, 4)
	require.Equal(t, "sync", order[0])
	require.ElementsMatch(t, []any{"promise", "microtask"}, order[1:3])
	require.Equal(t, "timer", order[3])
}

func TestConsoleRoutedToLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	shim.SetLogger(zap.New(core))
	t.Cleanup(func() { shim.SetLogger(zap.NewNop()) })

	h := newHarness(t, libraryServer(t))
	h.runOnLoop(t, "console.js", `
		console.log("hello", 1);
		console.warn("careful");
		console.count("clicks");
	`)

	var messages []string
	for _, e := range logs.FilterField(zap.String("source", "console")).All() {
		messages = append(messages, e.Message)
	}
	require.Contains(t, messages, "hello 1")
	require.Contains(t, messages, "careful")
	require.Contains(t, messages, "clicks: 1")
}
