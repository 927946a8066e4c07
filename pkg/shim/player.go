package shim

import (
	"fmt"
	"sync"

	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// Player is the handle host code holds. It is either a stub, served by the
// shim, or real, forwarding to the authentic player; activation switches it
// from the first to the second in place so references the host kept stay
// valid.
//
// Player implements [widgetapi.Player] and [widgetapi.Unwrapper].
type Player struct {
	inst *Instance
	reg  *Registry

	mu        sync.RWMutex
	stub      *stubPlayer
	real      widgetapi.Player
	bound     map[string]widgetapi.BoundMethod
	onMigrate []func(widgetapi.Player)
}

var (
	_ widgetapi.Player    = (*Player)(nil)
	_ widgetapi.Unwrapper = (*Player)(nil)
)

func newHandle(inst *Instance, reg *Registry) *Player {
	p := &Player{inst: inst, reg: reg}
	inst.handle = p
	return p
}

func (p *Player) useStub(s *stubPlayer) {
	p.mu.Lock()
	p.stub = s
	p.real = nil
	p.bound = widgetapi.Bind(s)
	p.mu.Unlock()
}

// migrate switches the handle to the authentic player. Methods are bound
// with real as receiver; data members read and write through to it.
func (p *Player) migrate(real widgetapi.Player) {
	p.mu.Lock()
	p.stub = nil
	p.real = real
	p.bound = widgetapi.Bind(real)
	hooks := p.onMigrate
	p.onMigrate = nil
	p.mu.Unlock()

	for _, fn := range hooks {
		fn(real)
	}
}

// OnMigrate registers fn to run with the authentic player right after the
// handle switches to it. If the handle has already migrated, fn runs now.
func (p *Player) OnMigrate(fn func(authentic widgetapi.Player)) {
	p.mu.Lock()
	real := p.real
	if real == nil {
		p.onMigrate = append(p.onMigrate, fn)
	}
	p.mu.Unlock()
	if real != nil {
		fn(real)
	}
}

func (p *Player) current() (widgetapi.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.real != nil {
		return p.real, true
	}
	return p.stub, false
}

func (p *Player) impl() widgetapi.Player {
	cur, _ := p.current()
	return cur
}

// Instance returns the registry record behind the handle.
func (p *Player) Instance() *Instance {
	return p.inst
}

// Stubbed reports whether the handle is still served by the stub.
func (p *Player) Stubbed() bool {
	_, real := p.current()
	return !real
}

// Authentic returns the authentic player once the handle has migrated.
func (p *Player) Authentic() (widgetapi.Player, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.real, p.real != nil
}

// Unwrap returns the authentic player, or nil while stubbed.
func (p *Player) Unwrap() widgetapi.Player {
	real, _ := p.Authentic()
	return real
}

func (p *Player) PlayVideo() { p.impl().PlayVideo() }
func (p *Player) PauseVideo() { p.impl().PauseVideo() }
func (p *Player) StopVideo() { p.impl().StopVideo() }

func (p *Player) SeekTo(seconds float64, allowSeekAhead bool) {
	p.impl().SeekTo(seconds, allowSeekAhead)
}

func (p *Player) LoadVideoByID(videoID string, startSeconds float64) {
	p.impl().LoadVideoByID(videoID, startSeconds)
}

func (p *Player) CueVideoByID(videoID string, startSeconds float64) {
	p.impl().CueVideoByID(videoID, startSeconds)
}

func (p *Player) Mute() { p.impl().Mute() }
func (p *Player) UnMute() { p.impl().UnMute() }
func (p *Player) IsMuted() bool { return p.impl().IsMuted() }
func (p *Player) SetVolume(volume int) { p.impl().SetVolume(volume) }
func (p *Player) GetVolume() int { return p.impl().GetVolume() }
func (p *Player) GetCurrentTime() float64 { return p.impl().GetCurrentTime() }
func (p *Player) GetDuration() float64 { return p.impl().GetDuration() }

func (p *Player) GetPlayerState() widgetapi.PlayerState {
	return p.impl().GetPlayerState()
}

func (p *Player) GetVideoURL() string { return p.impl().GetVideoURL() }
func (p *Player) GetIframe() *page.Element { return p.impl().GetIframe() }

// AddEventListener registers l. While stubbed the listener is buffered and
// replayed onto the authentic player at activation; the returned function
// removes it in either phase.
func (p *Player) AddEventListener(event string, l widgetapi.Listener) func() {
	cur, real := p.current()
	if real {
		return cur.AddEventListener(event, retarget(p, l))
	}
	return cur.AddEventListener(event, l)
}

// Destroy tears the widget down and drops it from the registry.
func (p *Player) Destroy() {
	p.impl().Destroy()
	if p.reg != nil {
		p.reg.Unregister(p.inst)
	}
}

func (p *Player) Field(name string) (any, bool) {
	return p.impl().Field(name)
}

func (p *Player) SetField(name string, value any) bool {
	return p.impl().SetField(name, value)
}

// Get reads a data member by schema name.
func (p *Player) Get(name string) (any, bool) {
	return p.Field(name)
}

// Set writes a data member by schema name.
func (p *Player) Set(name string, value any) bool {
	return p.SetField(name, value)
}

// Call invokes a method by schema name against the current variant.
func (p *Player) Call(name string, args ...any) (any, error) {
	p.mu.RLock()
	m, ok := p.bound[name]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", widgetapi.ErrUnknownMember, name)
	}
	return m(args...)
}

func (p *Player) String() string {
	cur, real := p.current()
	if real {
		return fmt.Sprintf("shim.Player(real %v)", cur)
	}
	return fmt.Sprintf("shim.Player(stub #%s)", p.inst.ExternalID)
}

// retarget delivers events with the handle as target, so host listeners
// never observe the authentic object directly.
func retarget(handle *Player, l widgetapi.Listener) widgetapi.Listener {
	return func(e widgetapi.Event) {
		e.Target = handle
		l(e)
	}
}
