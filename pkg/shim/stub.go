package shim

import (
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/go-drift/embedshim/pkg/loop"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

// StubFactory builds stand-in players for constructor calls made before the
// real library is loaded.
type StubFactory struct {
	loop     *loop.Loop
	doc      *page.Document
	registry *Registry
	cfg      Config
	nextID   atomic.Int64
}

// NewStubFactory creates a factory.
func NewStubFactory(l *loop.Loop, doc *page.Document, reg *Registry, cfg Config) *StubFactory {
	return &StubFactory{loop: l, doc: doc, registry: reg, cfg: cfg}
}

// CreateStub resolves target, puts an embed frame in place and returns a
// stub handle. The only error is an unresolvable target (or one that cannot
// be replaced because it is detached).
func (f *StubFactory) CreateStub(target any, opts widgetapi.Options) (*Player, error) {
	el, err := f.registry.Resolve(target)
	if err != nil {
		return nil, err
	}

	existing := ""
	if el.IsFrame() {
		existing = el.Attr("src")
	}
	videoID := opts.VideoID
	if videoID == "" {
		videoID = f.cfg.Embed.VideoIDFromURL(existing)
	}

	n := f.nextID.Add(1)
	frame, err := f.frameFor(el, n)
	if err != nil {
		return nil, err
	}
	frame.SetAttr("src", f.cfg.Embed.Compose(existing, videoID, opts.PlayerVars))
	if opts.Width != "" {
		frame.SetAttr("width", opts.Width)
	}
	if opts.Height != "" {
		frame.SetAttr("height", opts.Height)
	}

	inst := &Instance{
		Target:        frame,
		ExternalID:    frame.ID(),
		Options:       opts,
		onReady:       opts.Listener(widgetapi.EventReady),
		onStateChange: opts.Listener(widgetapi.EventStateChange),
	}
	if frame != el {
		inst.Origin = el
	}
	// Other config events behave like listeners added before activation.
	for _, name := range configEvents(opts) {
		inst.buffer(name, opts.Events[name])
	}

	handle := newHandle(inst, f.registry)
	stub := &stubPlayer{
		factory: f,
		inst:    inst,
		id:      n,
		videoID: videoID,
		volume:  100,
		state:   widgetapi.StateUnstarted,
		fields:  map[string]any{"id": n},
	}
	handle.useStub(stub)

	f.registry.Register(frame, inst)
	if inst.Origin != nil {
		f.registry.Alias(inst.Origin, frame)
	}

	if inst.onReady != nil {
		if videoID != "" {
			stub.scheduleReady()
		} else {
			stub.mu.Lock()
			stub.readyPending = true
			stub.mu.Unlock()
		}
	}

	Logger().Debug("stub created",
		zap.String("id", inst.ExternalID),
		zap.String("videoId", videoID),
		zap.Bool("replacedTarget", inst.Origin != nil))
	return handle, nil
}

// CreateActive builds a handle that is real from the start, for constructor
// calls made after the library has loaded.
func (f *StubFactory) CreateActive(target any, opts widgetapi.Options, lib widgetapi.Library) (*Player, error) {
	el, err := f.registry.Resolve(target)
	if err != nil {
		return nil, err
	}

	inst := &Instance{Options: opts, state: LifecycleActive, readyFired: true}
	handle := newHandle(inst, f.registry)

	forwarded := opts
	forwarded.Events = make(map[string]widgetapi.Listener, len(opts.Events))
	for name, l := range opts.Events {
		if l != nil {
			forwarded.Events[name] = retarget(handle, l)
		}
	}
	real, err := lib.NewPlayer(el, forwarded)
	if err != nil {
		return nil, err
	}
	handle.migrate(real)

	frame := real.GetIframe()
	if frame == nil {
		frame = el
	}
	inst.Target = frame
	inst.ExternalID = frame.ID()
	if frame != el {
		inst.Origin = el
	}
	f.registry.Register(frame, inst)
	if inst.Origin != nil {
		f.registry.Alias(inst.Origin, frame)
	}
	return handle, nil
}

func (f *StubFactory) frameFor(el *page.Element, n int64) (*page.Element, error) {
	frame := el
	if !el.IsFrame() {
		frame = f.doc.CreateElement("iframe")
		if err := f.doc.Replace(el, frame); err != nil {
			return nil, fmt.Errorf("shim: replace target: %w", err)
		}
	}
	id := el.ID()
	if id == "" {
		id = fmt.Sprintf("widget-player-%d", n)
	}
	frame.SetAttr("id", id)
	frame.SetAttr("frameborder", "0")
	frame.SetAttr("allowfullscreen", "")
	return frame, nil
}

// configEvents returns the config events other than ready and state-change,
// sorted so buffering order is deterministic.
func configEvents(opts widgetapi.Options) []string {
	var names []string
	for name, l := range opts.Events {
		if l == nil || name == widgetapi.EventReady || name == widgetapi.EventStateChange {
			continue
		}
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// stubPlayer serves a handle until activation. Playback controls never fail:
// they answer with the state change the host expects, synchronously.
type stubPlayer struct {
	factory *StubFactory
	inst    *Instance
	id      int64

	mu           sync.Mutex
	videoID      string
	state        widgetapi.PlayerState
	muted        bool
	volume       int
	destroyed    bool
	readyPending bool
	fields       map[string]any
}

var _ widgetapi.Player = (*stubPlayer)(nil)

func (s *stubPlayer) PlayVideo() { s.synthesize(widgetapi.StatePlaying) }
func (s *stubPlayer) PauseVideo() { s.synthesize(widgetapi.StatePaused) }
func (s *stubPlayer) StopVideo()  { s.synthesize(widgetapi.StateEnded) }

// synthesize records state and reports it to the config state-change
// listener and every buffered state-change listener.
func (s *stubPlayer) synthesize(state widgetapi.PlayerState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.inst.markSynthesized()

	ev := widgetapi.Event{Name: widgetapi.EventStateChange, Target: s.inst.handle, Data: state}
	if l := s.inst.stateListener(); l != nil {
		l(ev)
	}
	for _, l := range s.inst.liveFor(widgetapi.EventStateChange) {
		l(ev)
	}
}

func (s *stubPlayer) SeekTo(float64, bool) {}

func (s *stubPlayer) LoadVideoByID(videoID string, _ float64) {
	s.setVideo(videoID)
}

func (s *stubPlayer) CueVideoByID(videoID string, _ float64) {
	s.setVideo(videoID)
}

func (s *stubPlayer) setVideo(videoID string) {
	s.mu.Lock()
	s.videoID = videoID
	pending := s.readyPending && videoID != ""
	if pending {
		s.readyPending = false
	}
	s.mu.Unlock()

	frame := s.inst.Target
	policy := s.factory.cfg.Embed
	frame.SetAttr("src", policy.Compose(frame.Attr("src"), videoID, s.inst.Options.PlayerVars))
	if pending {
		s.scheduleReady()
	}
}

func (s *stubPlayer) scheduleReady() {
	s.factory.loop.Post(func() { s.inst.fireReady(nil) })
}

func (s *stubPlayer) Mute() {
	s.mu.Lock()
	s.muted = true
	s.mu.Unlock()
}

func (s *stubPlayer) UnMute() {
	s.mu.Lock()
	s.muted = false
	s.mu.Unlock()
}

func (s *stubPlayer) IsMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *stubPlayer) SetVolume(volume int) {
	s.mu.Lock()
	s.volume = min(max(volume, 0), 100)
	s.mu.Unlock()
}

func (s *stubPlayer) GetVolume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *stubPlayer) GetCurrentTime() float64 { return 0 }
func (s *stubPlayer) GetDuration() float64 { return 0 }

func (s *stubPlayer) GetPlayerState() widgetapi.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *stubPlayer) GetVideoURL() string {
	s.mu.Lock()
	id := s.videoID
	s.mu.Unlock()
	return s.factory.cfg.Embed.Watch(id)
}

func (s *stubPlayer) GetIframe() *page.Element {
	return s.inst.Target
}

func (s *stubPlayer) AddEventListener(event string, l widgetapi.Listener) func() {
	b := s.inst.buffer(event, l)
	return func() {
		s.inst.mu.Lock()
		b.removed = true
		detach := b.detach
		b.detach = nil
		s.inst.mu.Unlock()
		if detach != nil {
			detach()
		}
	}
}

func (s *stubPlayer) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()
	s.factory.doc.Remove(s.inst.Target)
}

func (s *stubPlayer) Field(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "playerInfo" {
		return map[string]any{
			"videoData":   map[string]any{"video_id": s.videoID},
			"playerState": int(s.state),
			"currentTime": 0.0,
			"volume":      s.volume,
			"muted":       s.muted,
		}, true
	}
	v, ok := s.fields[name]
	return v, ok
}

func (s *stubPlayer) SetField(name string, value any) bool {
	if !widgetapi.IsField(name) {
		return false
	}
	s.mu.Lock()
	s.fields[name] = value
	s.mu.Unlock()
	return true
}
