package page

import (
	"strings"
	"testing"
)

const testPage = `<!doctype html><html><body>
<div id="player"></div>
<iframe id="existing" src="https://www.youtube.com/embed/abc123?rel=0"></iframe>
</body></html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(testPage)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestDocument_GetElementByID_StableHandles(t *testing.T) {
	doc := mustParse(t)

	a := doc.GetElementByID("player")
	b := doc.GetElementByID("player")
	if a == nil {
		t.Fatal("expected element")
	}
	if a != b {
		t.Error("handles for the same node should be identical")
	}
	if doc.ElementByRef(a.Ref()) != a {
		t.Error("ElementByRef should return the same handle")
	}
	if doc.GetElementByID("missing") != nil {
		t.Error("expected nil for missing id")
	}
}

func TestDocument_Frames(t *testing.T) {
	doc := mustParse(t)
	frames := doc.Frames()
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !frames[0].IsFrame() || frames[0].ID() != "existing" {
		t.Errorf("unexpected frame %q", frames[0].ID())
	}
}

func TestDocument_Replace(t *testing.T) {
	doc := mustParse(t)
	div := doc.GetElementByID("player")

	frame := doc.CreateElement("iframe")
	frame.SetAttr("id", "player")
	frame.SetAttr("src", "https://www.youtube.com/embed/xyz")
	if err := doc.Replace(div, frame); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if div.Attached() {
		t.Error("replaced element should be detached")
	}
	if got := doc.GetElementByID("player"); got != frame {
		t.Error("lookup should now find the frame")
	}
	if err := doc.Replace(div, frame); err != ErrDetached {
		t.Errorf("Replace on detached = %v, want ErrDetached", err)
	}
	if !strings.Contains(doc.String(), `src="https://www.youtube.com/embed/xyz"`) {
		t.Error("rendered document should contain the new frame")
	}
}

func TestElement_SetAttrOverwrites(t *testing.T) {
	doc := mustParse(t)
	el := doc.GetElementByID("existing")
	el.SetAttr("src", "about:blank")
	if got := el.Attr("src"); got != "about:blank" {
		t.Errorf("src = %q", got)
	}
	if el.Parent() == nil || el.Parent().Tag() != "body" {
		t.Error("expected body parent")
	}
}

func TestMapGlobals(t *testing.T) {
	g := NewGlobals()
	g.Bind("YT", 1)
	if v, ok := g.Lookup("YT"); !ok || v != 1 {
		t.Errorf("Lookup = %v, %v", v, ok)
	}
	g.Unbind("YT")
	if _, ok := g.Lookup("YT"); ok {
		t.Error("expected binding removed")
	}
}
