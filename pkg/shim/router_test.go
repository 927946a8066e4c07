package shim

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	shimerrors "github.com/go-drift/embedshim/pkg/errors"
	"github.com/go-drift/embedshim/pkg/page"
	"github.com/go-drift/embedshim/pkg/widgetapi"
)

func announce(el *page.Element, entity, externalID string) string {
	return fmt.Sprintf(`{"elementRef":%d,"entity":%q,"replaceWith":"youtube-video","externalId":%q}`,
		el.Ref(), entity, externalID)
}

func (f *fixture) send(t *testing.T, channel, payload string) {
	t.Helper()
	if err := f.bus.HandleEvent(channel, []byte(payload)); err != nil {
		t.Fatalf("HandleEvent(%s): %v", channel, err)
	}
}

func (f *fixture) appendDiv(t *testing.T) *page.Element {
	t.Helper()
	el := f.doc.CreateElement("div")
	f.doc.Append(f.doc.Body(), el)
	return el
}

func TestPlaceholderAssociationEitherOrder(t *testing.T) {
	f := newFixture(t)
	real1, ph1 := f.appendDiv(t), f.appendDiv(t)
	real2, ph2 := f.appendDiv(t), f.appendDiv(t)

	f.send(t, ChannelElementAnnounced, announce(real1, "Youtube", "x1"))
	f.send(t, ChannelPlaceholderAnnounced, announce(ph1, "Youtube", "x1"))
	f.send(t, ChannelPlaceholderAnnounced, announce(ph2, "Youtube", "x2"))
	f.send(t, ChannelElementAnnounced, announce(real2, "Youtube", "x2"))
	f.loop.Drain()

	reg := f.shim.Registry()
	for _, tt := range []struct{ real, ph *page.Element }{{real1, ph1}, {real2, ph2}} {
		got, ok := reg.Placeholder(tt.real)
		if !ok || got != tt.ph {
			t.Errorf("Placeholder(%d) = %v, want %v", tt.real.Ref(), got, tt.ph)
		}
	}
	if got := f.shim.Router().Pending(); got != 0 {
		t.Errorf("pending announcements = %d, want 0", got)
	}
}

func TestRouterIgnoresOtherEntities(t *testing.T) {
	f := newFixture(t)
	real, ph := f.appendDiv(t), f.appendDiv(t)

	f.send(t, ChannelElementAnnounced, announce(real, "Vimeo", "x1"))
	f.send(t, ChannelPlaceholderAnnounced, announce(ph, "Vimeo", "x1"))
	f.loop.Drain()

	if _, ok := f.shim.Registry().Placeholder(real); ok {
		t.Error("association recorded for another entity")
	}
	if got := f.shim.Router().Pending(); got != 0 {
		t.Errorf("pending announcements = %d, want 0", got)
	}
}

func TestRouterReportsMalformedPayloads(t *testing.T) {
	reports := recordReports(t)
	f := newFixture(t)

	f.send(t, ChannelElementAnnounced, `[1,2]`)
	f.send(t, ChannelElementAnnounced, `{"entity":"Youtube","replaceWith":"youtube-video"}`)
	f.send(t, ChannelPlaceholderActivated, `{"elementRef":9999,"entity":"Youtube","replaceWith":"youtube-video"}`)
	f.loop.Drain()

	want := []shimerrors.ErrorKind{shimerrors.KindParsing, shimerrors.KindParsing, shimerrors.KindParsing}
	if diff := cmp.Diff(want, reports.kinds()); diff != "" {
		t.Errorf("reported kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestPlaceholderActivationRestoresFrame(t *testing.T) {
	f := newFixture(t)
	var log eventLog
	p := f.newPlayer(t, "existing", widgetapi.Options{
		Events: map[string]widgetapi.Listener{widgetapi.EventStateChange: log.listener("state")},
	})
	frame := p.GetIframe()

	// The substitution subsystem swaps the frame for its placeholder.
	ph := f.doc.CreateElement("div")
	if err := f.doc.Replace(frame, ph); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	f.send(t, ChannelElementAnnounced, announce(frame, "Youtube", "e1"))
	f.send(t, ChannelPlaceholderAnnounced, announce(ph, "Youtube", "e1"))
	f.loop.Drain()

	f.send(t, ChannelPlaceholderActivated, announce(ph, "Youtube", "e1"))
	f.loop.Drain()

	if !frame.Attached() || ph.Attached() {
		t.Errorf("frame attached = %v, placeholder attached = %v; want frame back in place",
			frame.Attached(), ph.Attached())
	}
	if got := p.Instance().State(); got != LifecycleActive {
		t.Errorf("state = %v, want active", got)
	}
	if got := p.GetPlayerState(); got != widgetapi.StatePlaying {
		t.Errorf("GetPlayerState() = %v, want PLAYING", got)
	}
	if got := log.all(); len(got) == 0 || got[len(got)-1] != "state:PLAYING" {
		t.Errorf("state events = %v, want to end with PLAYING", got)
	}
}

func TestRouterStopUnsubscribes(t *testing.T) {
	f := newFixture(t)
	f.shim.Router().Stop()

	err := f.bus.HandleEvent(ChannelElementAnnounced, []byte(`{}`))
	if err == nil {
		t.Error("HandleEvent succeeded after Stop")
	}
}
