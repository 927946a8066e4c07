package jsbind

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/joeycumines/goja"
	"go.uber.org/zap"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// ScriptSource loads the real widget library by fetching its script and
// evaluating it in the runtime. The library announces readiness by calling
// the global named ReadyCallback; that call completes the load.
type ScriptSource struct {
	Runtime       *Runtime
	URL           string
	Client        *http.Client
	Namespace     string
	ReadyCallback string
	// SHA256 pins the script's hex digest. Empty skips the check.
	SHA256 string
}

// Load fetches off the loop and evaluates on it.
func (s *ScriptSource) Load(ctx context.Context, ready func(widgetapi.Library)) error {
	if s.URL == "" {
		return fmt.Errorf("jsbind: no library script URL")
	}
	go func() {
		src, err := s.fetch(ctx)
		if err != nil {
			shimerrors.Report(&shimerrors.ShimError{
				Op:   "jsbind.fetchLibrary",
				Kind: shimerrors.KindLoad,
				Err:  err,
			})
			return
		}
		s.Runtime.loop.Post(func() { s.evaluate(src, ready) })
	}()
	return nil
}

func (s *ScriptSource) fetch(ctx context.Context) (string, error) {
	client := s.Client
	if client == nil {
		client = defaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("jsbind: fetch %s: %s", s.URL, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if err := verifyScript(s.URL, s.SHA256, body); err != nil {
		return "", err
	}
	logger().Debug("library script fetched", zap.String("url", s.URL), zap.Int("bytes", len(body)))
	return string(body), nil
}

// evaluate swaps in a hook under the ready callback name, runs the script,
// and restores whatever the host had there once the hook fires.
func (s *ScriptSource) evaluate(src string, ready func(widgetapi.Library)) {
	r := s.Runtime
	global := r.vm.GlobalObject()
	prev := global.Get(s.ReadyCallback)

	_ = global.Set(s.ReadyCallback, func(goja.FunctionCall) goja.Value {
		if prev == nil || goja.IsUndefined(prev) {
			_ = global.Delete(s.ReadyCallback)
		} else {
			_ = global.Set(s.ReadyCallback, prev)
		}
		ns, ok := global.Get(s.Namespace).(*goja.Object)
		if !ok {
			shimerrors.Report(&shimerrors.ShimError{
				Op:   "jsbind.evaluateLibrary",
				Kind: shimerrors.KindLoad,
				Err:  fmt.Errorf("library did not define %s", s.Namespace),
			})
			return goja.Undefined()
		}
		ready(&jsLibrary{r: r, ns: ns})
		return goja.Undefined()
	})

	if _, err := r.vm.RunScript(s.URL, src); err != nil {
		shimerrors.Report(&shimerrors.ShimError{
			Op:   "jsbind.evaluateLibrary",
			Kind: shimerrors.KindLoad,
			Err:  err,
		})
	}
}

// jsLibrary is a widget library implemented in script.
type jsLibrary struct {
	r  *Runtime
	ns *goja.Object
}

func (l *jsLibrary) NewPlayer(target *page.Element, opts widgetapi.Options) (widgetapi.Player, error) {
	r := l.r
	jsOpts := r.vm.NewObject()
	for name, v := range map[string]string{
		"videoId": opts.VideoID,
		"width":   opts.Width,
		"height":  opts.Height,
		"host":    opts.Host,
	} {
		if v != "" {
			_ = jsOpts.Set(name, v)
		}
	}
	if len(opts.PlayerVars) > 0 {
		vars := r.vm.NewObject()
		for k, v := range opts.PlayerVars {
			_ = vars.Set(k, v)
		}
		_ = jsOpts.Set("playerVars", vars)
	}
	if len(opts.Events) > 0 {
		events := r.vm.NewObject()
		for name, fn := range opts.Events {
			_ = events.Set(name, r.authenticListener(name, fn))
		}
		_ = jsOpts.Set("events", events)
	}

	obj, err := r.vm.New(l.ns.Get("Player"), r.elementValue(target), jsOpts)
	if err != nil {
		return nil, err
	}
	return r.wrapAuthentic(obj, target), nil
}

func (l *jsLibrary) PlayerByID(id string) (widgetapi.Player, bool) {
	get, ok := goja.AssertFunction(l.ns.Get("get"))
	if !ok {
		return nil, false
	}
	v, err := get(l.ns, l.r.vm.ToValue(id))
	if err != nil {
		return nil, false
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	return l.r.wrapAuthentic(obj, nil), true
}

// authenticListener adapts a Go listener for a script player's events.
func (r *Runtime) authenticListener(event string, l widgetapi.Listener) goja.Value {
	return r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		ev, _ := call.Argument(0).(*goja.Object)
		var target widgetapi.Player
		var data any
		if ev != nil {
			if t, ok := ev.Get("target").(*goja.Object); ok {
				target = r.wrapAuthentic(t, nil)
			}
			data = authenticData(event, ev.Get("data"))
		}
		l(widgetapi.Event{Name: event, Target: target, Data: data})
		return goja.Undefined()
	})
}

func authenticData(event string, v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if event == widgetapi.EventStateChange {
		return widgetapi.PlayerState(v.ToInteger())
	}
	return v.Export()
}

func (r *Runtime) wrapAuthentic(obj *goja.Object, frame *page.Element) *jsPlayer {
	if p, ok := r.players[obj]; ok {
		if p.frame == nil {
			p.frame = frame
		}
		return p
	}
	p := &jsPlayer{r: r, obj: obj, frame: frame}
	r.players[obj] = p
	return p
}

// jsPlayer is an authentic player implemented in script.
type jsPlayer struct {
	r     *Runtime
	obj   *goja.Object
	frame *page.Element
}

var _ widgetapi.Player = (*jsPlayer)(nil)

func (p *jsPlayer) call(name string, args ...any) goja.Value {
	fn, ok := goja.AssertFunction(p.obj.Get(name))
	if !ok {
		return goja.Undefined()
	}
	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		if v, ok := a.(goja.Value); ok {
			jsArgs[i] = v
			continue
		}
		jsArgs[i] = p.r.vm.ToValue(a)
	}
	v, err := fn(p.obj, jsArgs...)
	if err != nil {
		p.r.reportScriptError("jsbind.player."+name, err)
		return goja.Undefined()
	}
	return v
}

func (p *jsPlayer) PlayVideo() { p.call("playVideo") }
func (p *jsPlayer) PauseVideo() { p.call("pauseVideo") }
func (p *jsPlayer) StopVideo() { p.call("stopVideo") }

func (p *jsPlayer) SeekTo(seconds float64, allowSeekAhead bool) {
	p.call("seekTo", seconds, allowSeekAhead)
}

func (p *jsPlayer) LoadVideoByID(videoID string, startSeconds float64) {
	p.call("loadVideoById", videoID, startSeconds)
}

func (p *jsPlayer) CueVideoByID(videoID string, startSeconds float64) {
	p.call("cueVideoById", videoID, startSeconds)
}

func (p *jsPlayer) Mute() { p.call("mute") }
func (p *jsPlayer) UnMute() { p.call("unMute") }
func (p *jsPlayer) IsMuted() bool { return p.call("isMuted").ToBoolean() }
func (p *jsPlayer) SetVolume(volume int) { p.call("setVolume", volume) }
func (p *jsPlayer) GetVolume() int { return int(p.call("getVolume").ToInteger()) }

func (p *jsPlayer) GetCurrentTime() float64 { return p.call("getCurrentTime").ToFloat() }
func (p *jsPlayer) GetDuration() float64 { return p.call("getDuration").ToFloat() }

func (p *jsPlayer) GetPlayerState() widgetapi.PlayerState {
	return widgetapi.PlayerState(p.call("getPlayerState").ToInteger())
}

func (p *jsPlayer) GetVideoURL() string {
	v := p.call("getVideoUrl")
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}

func (p *jsPlayer) GetIframe() *page.Element {
	if el := p.r.elementFrom(p.call("getIframe")); el != nil {
		return el
	}
	return p.frame
}

func (p *jsPlayer) AddEventListener(event string, l widgetapi.Listener) func() {
	fn := p.r.authenticListener(event, l)
	p.call("addEventListener", event, fn)
	return func() { p.call("removeEventListener", event, fn) }
}

func (p *jsPlayer) Destroy() {
	p.call("destroy")
	delete(p.r.players, p.obj)
}

func (p *jsPlayer) Field(name string) (any, bool) {
	v := p.obj.Get(name)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	return v.Export(), true
}

func (p *jsPlayer) SetField(name string, value any) bool {
	if !widgetapi.IsField(name) {
		return false
	}
	return p.obj.Set(name, value) == nil
}
