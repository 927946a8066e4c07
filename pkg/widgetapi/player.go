// Package widgetapi describes the object model of the embeddable video
// widget library: its player surface, events, state codes, constructor
// options and the embed URL conventions its frames follow.
//
// Both the shim's stand-in players and authentic players satisfy [Player],
// so host code written against this package cannot tell them apart.
package widgetapi

import (
	"errors"

	"github.com/go-drift/embedshim/pkg/page"
)

// Event names understood by AddEventListener and Options.Events.
const (
	EventReady                 = "onReady"
	EventStateChange           = "onStateChange"
	EventPlaybackQualityChange = "onPlaybackQualityChange"
	EventPlaybackRateChange    = "onPlaybackRateChange"
	EventError                 = "onError"
	EventAPIChange             = "onApiChange"
)

// ErrUnknownMember is returned when a call names something outside the
// member schema.
var ErrUnknownMember = errors.New("widgetapi: unknown player member")

// Event is delivered to listeners. Target is the player the listener was
// registered on; Data carries the event payload (a PlayerState for
// onStateChange, nil for onReady).
type Event struct {
	Name   string
	Target Player
	Data   any
}

// Listener receives player events.
type Listener func(Event)

// Options are the constructor arguments the host passes to NewPlayer.
type Options struct {
	Width      string
	Height     string
	VideoID    string
	Host       string
	PlayerVars map[string]string
	Events     map[string]Listener
}

// Listener returns the config listener registered for event, if any.
func (o Options) Listener(event string) Listener {
	if o.Events == nil {
		return nil
	}
	return o.Events[event]
}

// Player is the per-widget object the library hands out.
type Player interface {
	PlayVideo()
	PauseVideo()
	StopVideo()
	SeekTo(seconds float64, allowSeekAhead bool)
	LoadVideoByID(videoID string, startSeconds float64)
	CueVideoByID(videoID string, startSeconds float64)
	Mute()
	UnMute()
	IsMuted() bool
	SetVolume(volume int)
	GetVolume() int
	GetCurrentTime() float64
	GetDuration() float64
	GetPlayerState() PlayerState
	GetVideoURL() string
	GetIframe() *page.Element
	// AddEventListener registers l for event and returns a function that
	// removes it again.
	AddEventListener(event string, l Listener) (remove func())
	Destroy()

	// Field reads a plain data member of the player object.
	Field(name string) (any, bool)
	// SetField writes a plain data member; false if name is not a field.
	SetField(name string, value any) bool
}

// Library is the loaded widget library: its constructor and its
// instance lookup.
type Library interface {
	NewPlayer(target *page.Element, opts Options) (Player, error)
	PlayerByID(id string) (Player, bool)
}

// Unwrapper is implemented by players that forward to another player.
type Unwrapper interface {
	Unwrap() Player
}

// SameInstance reports whether a and b are, or forward to, the same
// authentic player. Identity checks against the real API go through this.
func SameInstance(a, b Player) bool {
	return innermost(a) == innermost(b)
}

func innermost(p Player) Player {
	for {
		u, ok := p.(Unwrapper)
		if !ok {
			return p
		}
		inner := u.Unwrap()
		if inner == nil || inner == p {
			return p
		}
		p = inner
	}
}
