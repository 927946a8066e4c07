// Package simplayer is an in-process authentic widget library. It behaves
// like the production library as seen from the page: players adopt or
// create an embed frame, report ready asynchronously once the frame has
// "loaded", and emit the usual burst of transient states (UNSTARTED, CUED,
// BUFFERING) before settling. Tests and the shimctl harness load it in place
// of the network script.
package simplayer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// ErrNoTarget is returned when NewPlayer is called without an element.
var ErrNoTarget = errors.New("simplayer: no target element")

// DefaultDuration is the length reported for every simulated video.
const DefaultDuration = 212.0

// Library is a loaded widget library.
type Library struct {
	loop   *loop.Loop
	doc    *page.Document
	policy widgetapi.EmbedPolicy

	// Now is the clock used for playback position. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	players map[string]*Player
	nextID  int
}

// New creates a library bound to a page and its loop.
func New(l *loop.Loop, doc *page.Document, policy widgetapi.EmbedPolicy) *Library {
	return &Library{
		loop:    l,
		doc:     doc,
		policy:  policy,
		Now:     time.Now,
		players: make(map[string]*Player),
	}
}

// NewPlayer constructs a player on target. A non-frame target is replaced by
// a new iframe carrying the same id.
func (lib *Library) NewPlayer(target *page.Element, opts widgetapi.Options) (widgetapi.Player, error) {
	if target == nil {
		return nil, ErrNoTarget
	}

	videoID := opts.VideoID
	if videoID == "" && target.IsFrame() {
		videoID = lib.policy.VideoIDFromURL(target.Attr("src"))
	}

	frame := target
	if !target.IsFrame() {
		frame = lib.doc.CreateElement("iframe")
		if id := target.ID(); id != "" {
			frame.SetAttr("id", id)
		}
		if err := lib.doc.Replace(target, frame); err != nil {
			return nil, err
		}
	}
	existing := ""
	if target.IsFrame() {
		existing = target.Attr("src")
	}
	frame.SetAttr("src", lib.policy.Compose(existing, videoID, opts.PlayerVars))
	if opts.Width != "" {
		frame.SetAttr("width", opts.Width)
	}
	if opts.Height != "" {
		frame.SetAttr("height", opts.Height)
	}

	lib.mu.Lock()
	lib.nextID++
	id := lib.nextID
	lib.mu.Unlock()

	p := &Player{
		lib:       lib,
		id:        id,
		frame:     frame,
		videoID:   videoID,
		volume:    100,
		state:     widgetapi.StateUnstarted,
		listeners: make(map[string][]*listener),
		fields:    map[string]any{"id": id},
		autoplay:  opts.PlayerVars["autoplay"] == "1",
	}
	for event, l := range opts.Events {
		if l != nil {
			p.AddEventListener(event, l)
		}
	}

	if key := frame.ID(); key != "" {
		lib.mu.Lock()
		lib.players[key] = p
		lib.mu.Unlock()
	}

	lib.loop.Post(p.frameLoaded)
	return p, nil
}

// PlayerByID returns the player whose frame has the given id.
func (lib *Library) PlayerByID(id string) (widgetapi.Player, bool) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	p, ok := lib.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (lib *Library) forget(p *Player) {
	lib.mu.Lock()
	defer lib.mu.Unlock()
	for k, v := range lib.players {
		if v == p {
			delete(lib.players, k)
		}
	}
}

// Source installs a Library when asked to load. Latency delays the ready
// callback by that many loop turns; Hold keeps it pending until Release.
type Source struct {
	Library *Library
	Latency int

	mu       sync.Mutex
	loads    int
	hold     bool
	held     func(widgetapi.Library)
	released bool
}

// NewSource returns a Source serving lib.
func NewSource(lib *Library) *Source {
	return &Source{Library: lib}
}

// Hold makes subsequent loads wait for Release.
func (s *Source) Hold() {
	s.mu.Lock()
	s.hold = true
	s.mu.Unlock()
}

// Release completes a held load.
func (s *Source) Release() {
	s.mu.Lock()
	ready := s.held
	s.held = nil
	s.hold = false
	s.released = true
	s.mu.Unlock()
	if ready != nil {
		s.Library.loop.Post(func() { ready(s.Library) })
	}
}

// Loads returns how many times Load was called.
func (s *Source) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

// Load implements shim.Source.
func (s *Source) Load(_ context.Context, ready func(widgetapi.Library)) error {
	s.mu.Lock()
	s.loads++
	if s.hold {
		s.held = ready
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.after(s.Latency, func() { ready(s.Library) })
	return nil
}

func (s *Source) after(turns int, fn func()) {
	if turns <= 0 {
		s.Library.loop.Post(fn)
		return
	}
	s.Library.loop.Post(func() { s.after(turns-1, fn) })
}

func itoa(i int) string { return strconv.Itoa(i) }
