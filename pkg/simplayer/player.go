package simplayer

import (
	"sync"
	"time"

	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

type listener struct {
	fn      widgetapi.Listener
	removed bool
}

// Player is an authentic player. Events are delivered on later loop turns,
// the way the production library relays them from its frame.
type Player struct {
	lib   *Library
	id    int
	frame *page.Element

	mu        sync.Mutex
	videoID   string
	state     widgetapi.PlayerState
	muted     bool
	volume    int
	position  float64
	playingAt time.Time
	ready     bool
	destroyed bool
	autoplay  bool
	listeners map[string][]*listener
	fields    map[string]any
}

func (p *Player) frameLoaded() {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	p.ready = true
	cued := p.videoID != ""
	autoplay := p.autoplay && cued
	p.mu.Unlock()

	p.emit(widgetapi.EventReady, nil)
	p.setState(widgetapi.StateUnstarted, true)
	if cued {
		p.setState(widgetapi.StateCued, true)
	}
	if autoplay {
		p.PlayVideo()
	}
}

func (p *Player) PlayVideo() {
	p.setState(widgetapi.StateBuffering, false)
	p.lib.loop.Post(func() {
		p.mu.Lock()
		p.playingAt = p.lib.Now()
		p.mu.Unlock()
		p.setState(widgetapi.StatePlaying, false)
	})
}

func (p *Player) PauseVideo() {
	p.freezePosition()
	p.setState(widgetapi.StatePaused, false)
}

func (p *Player) StopVideo() {
	p.mu.Lock()
	p.position = 0
	p.playingAt = time.Time{}
	p.mu.Unlock()
	p.setState(widgetapi.StateCued, false)
}

func (p *Player) SeekTo(seconds float64, _ bool) {
	p.mu.Lock()
	p.position = seconds
	if !p.playingAt.IsZero() {
		p.playingAt = p.lib.Now()
	}
	p.mu.Unlock()
}

func (p *Player) LoadVideoByID(videoID string, startSeconds float64) {
	p.cue(videoID, startSeconds)
	p.PlayVideo()
}

func (p *Player) CueVideoByID(videoID string, startSeconds float64) {
	p.cue(videoID, startSeconds)
	p.setState(widgetapi.StateCued, false)
}

func (p *Player) cue(videoID string, startSeconds float64) {
	p.mu.Lock()
	p.videoID = videoID
	p.position = startSeconds
	p.playingAt = time.Time{}
	p.mu.Unlock()
	p.frame.SetAttr("src", p.lib.policy.Compose(p.frame.Attr("src"), videoID, nil))
}

func (p *Player) Mute() {
	p.mu.Lock()
	p.muted = true
	p.mu.Unlock()
}

func (p *Player) UnMute() {
	p.mu.Lock()
	p.muted = false
	p.mu.Unlock()
}

func (p *Player) IsMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

func (p *Player) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
}

func (p *Player) GetVolume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) GetCurrentTime() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *Player) currentLocked() float64 {
	pos := p.position
	if p.state == widgetapi.StatePlaying && !p.playingAt.IsZero() {
		pos += p.lib.Now().Sub(p.playingAt).Seconds()
	}
	if pos > DefaultDuration {
		pos = DefaultDuration
	}
	return pos
}

func (p *Player) freezePosition() {
	p.mu.Lock()
	p.position = p.currentLocked()
	p.playingAt = time.Time{}
	p.mu.Unlock()
}

func (p *Player) GetDuration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.videoID == "" {
		return 0
	}
	return DefaultDuration
}

func (p *Player) GetPlayerState() widgetapi.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) GetVideoURL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lib.policy.Watch(p.videoID)
}

func (p *Player) GetIframe() *page.Element {
	return p.frame
}

func (p *Player) AddEventListener(event string, fn widgetapi.Listener) func() {
	l := &listener{fn: fn}
	p.mu.Lock()
	p.listeners[event] = append(p.listeners[event], l)
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		l.removed = true
		p.mu.Unlock()
	}
}

func (p *Player) Destroy() {
	p.mu.Lock()
	p.destroyed = true
	p.listeners = make(map[string][]*listener)
	p.mu.Unlock()
	p.lib.forget(p)
	p.lib.doc.Remove(p.frame)
}

func (p *Player) Field(name string) (any, bool) {
	if name == "playerInfo" {
		p.mu.Lock()
		defer p.mu.Unlock()
		return map[string]any{
			"videoData":   map[string]any{"video_id": p.videoID},
			"playerState": int(p.state),
			"currentTime": p.currentLocked(),
			"volume":      p.volume,
			"muted":       p.muted,
		}, true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.fields[name]
	return v, ok
}

func (p *Player) SetField(name string, value any) bool {
	if !widgetapi.IsField(name) {
		return false
	}
	p.mu.Lock()
	p.fields[name] = value
	p.mu.Unlock()
	return true
}

// setState records the state and posts onStateChange when it changed.
// Repeated states are dropped. force emits even when unchanged.
func (p *Player) setState(state widgetapi.PlayerState, force bool) {
	p.mu.Lock()
	changed := state != p.state
	p.state = state
	ready := p.ready
	p.mu.Unlock()

	if ready && (changed || force) {
		p.lib.loop.Post(func() { p.emit(widgetapi.EventStateChange, state) })
	}
}

func (p *Player) emit(event string, data any) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return
	}
	ls := make([]*listener, 0, len(p.listeners[event]))
	for _, l := range p.listeners[event] {
		if !l.removed {
			ls = append(ls, l)
		}
	}
	p.mu.Unlock()

	for _, l := range ls {
		l.fn(widgetapi.Event{Name: event, Target: p, Data: data})
	}
}

func (p *Player) String() string {
	return "simplayer#" + itoa(p.id)
}
