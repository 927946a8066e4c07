// Package page models the hosting page the shim runs in: a parsed HTML
// document whose elements have stable handles, and the page-wide global
// bindings host script resolves names against.
package page

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrDetached is returned when a DOM operation needs an element that is not
// attached to the document tree.
var ErrDetached = errors.New("page: element is not attached")

// Document wraps a parsed HTML tree. Each node gets at most one *Element
// handle, so handles can be compared with ==.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	byNode  map[*html.Node]*Element
	byRef   map[int64]*Element
	nextRef atomic.Int64
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return &Document{
		root:   root,
		byNode: make(map[*html.Node]*Element),
		byRef:  make(map[int64]*Element),
	}, nil
}

// ParseString parses an HTML document from a string.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Body returns the body element, or nil.
func (d *Document) Body() *Element {
	d.mu.RLock()
	n := htmlquery.FindOne(d.root, "//body")
	d.mu.RUnlock()
	return d.wrap(n)
}

// GetElementByID returns the first element whose id attribute equals id.
func (d *Document) GetElementByID(id string) *Element {
	if id == "" {
		return nil
	}
	d.mu.RLock()
	var found *html.Node
	for _, n := range htmlquery.Find(d.root, "//*[@id]") {
		if htmlquery.SelectAttr(n, "id") == id {
			found = n
			break
		}
	}
	d.mu.RUnlock()
	return d.wrap(found)
}

// Query returns the elements matching an XPath expression.
func (d *Document) Query(expr string) ([]*Element, error) {
	d.mu.RLock()
	nodes, err := htmlquery.QueryAll(d.root, expr)
	d.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	out := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, d.wrap(n))
	}
	return out, nil
}

// Frames returns every iframe element in document order.
func (d *Document) Frames() []*Element {
	frames, _ := d.Query("//iframe")
	return frames
}

// ElementByRef returns the handle with the given ref, or nil.
func (d *Document) ElementByRef(ref int64) *Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.byRef[ref]
}

// CreateElement returns a detached element with the given tag.
func (d *Document) CreateElement(tag string) *Element {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	return d.wrap(n)
}

// Append attaches child as the last child of parent.
func (d *Document) Append(parent, child *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	parent.node.AppendChild(child.node)
}

// Replace puts repl where old is in the tree and detaches old.
func (d *Document) Replace(old, repl *Element) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	parent := old.node.Parent
	if parent == nil {
		return ErrDetached
	}
	if repl.node.Parent != nil {
		repl.node.Parent.RemoveChild(repl.node)
	}
	parent.InsertBefore(repl.node, old.node)
	parent.RemoveChild(old.node)
	return nil
}

// Remove detaches el from the tree. Its handle stays valid.
func (d *Document) Remove(el *Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if el.node.Parent != nil {
		el.node.Parent.RemoveChild(el.node)
	}
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return html.Render(w, d.root)
}

// String renders the document, or returns "" on error.
func (d *Document) String() string {
	var buf bytes.Buffer
	if err := d.Render(&buf); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) wrap(n *html.Node) *Element {
	if n == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if el, ok := d.byNode[n]; ok {
		return el
	}
	el := &Element{ref: d.nextRef.Add(1), node: n, doc: d}
	d.byNode[n] = el
	d.byRef[el.ref] = el
	return el
}
