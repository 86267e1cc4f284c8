// Package dom provides a single-threaded document model on top of
// golang.org/x/net/html.
//
// A Document stands in for a browser page: it owns the node tree, the event
// listeners registered on its nodes and the mutation observers watching it.
// Work happens in turns. Do runs one turn at a time, and the mutation records
// produced during a turn are delivered to observers when the turn ends,
// before the next turn can start.
//
// Mutations made through Document methods are observable. Code that edits
// html.Node fields directly bypasses observers, the same way changes the
// browser does not report (late shadow content, for example) bypass a
// MutationObserver.
package dom

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed page plus its listeners and observers.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	href *url.URL

	turn     atomic.Uint64
	inTurn   bool
	flushing bool
	pending  []MutationRecord

	obsMu     sync.Mutex
	observers []*Observer

	listeners map[*html.Node][]listener
	navigate  func(href string)
}

// Parse reads an HTML page. pageURL is the address the page was loaded from;
// it may be empty.
func Parse(r io.Reader, pageURL string) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return New(root, pageURL)
}

// ParseString is Parse for an in-memory page.
func ParseString(s, pageURL string) (*Document, error) {
	return Parse(strings.NewReader(s), pageURL)
}

// New wraps an existing node tree.
func New(root *html.Node, pageURL string) (*Document, error) {
	if root == nil {
		return nil, fmt.Errorf("document root is nil")
	}
	d := &Document{
		root:      root,
		listeners: make(map[*html.Node][]listener),
	}
	if pageURL != "" {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("invalid page URL %q: %w", pageURL, err)
		}
		d.href = u
	}
	return d, nil
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// URL returns the page address, or an empty string.
func (d *Document) URL() string {
	if d.href == nil {
		return ""
	}
	return d.href.String()
}

// Hostname returns the host of the page URL without port.
func (d *Document) Hostname() string {
	if d.href == nil {
		return ""
	}
	return d.href.Hostname()
}

// Do runs fn as one turn. Mutation records produced by fn are delivered to
// observers after fn returns and before Do releases the document.
// fn must not call Do or Dispatch.
func (d *Document) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.turn.Add(1)
	d.inTurn = true
	defer func() {
		d.inTurn = false
		d.flush()
	}()
	fn()
}

// Turn returns the number of the current (or last) turn.
func (d *Document) Turn() uint64 {
	return d.turn.Load()
}

// Head returns the head element, creating one when the tree has none.
func (d *Document) Head() *html.Node {
	if head := d.findElement(atom.Head); head != nil {
		return head
	}
	htmlEl := d.findElement(atom.Html)
	if htmlEl == nil {
		return nil
	}
	head := NewElement("head")
	d.InsertBefore(htmlEl, head, htmlEl.FirstChild)
	return head
}

// Body returns the body element, or nil.
func (d *Document) Body() *html.Node {
	return d.findElement(atom.Body)
}

func (d *Document) findElement(a atom.Atom) *html.Node {
	var found *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return false
		}
		return true
	})
	return found
}

// GetElementByID returns the first element with the given id.
func (d *Document) GetElementByID(id string) *html.Node {
	var found *html.Node
	Walk(d.root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if n.Type == html.ElementNode && Attr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Select returns the elements matching sel in document order.
func (d *Document) Select(sel cascadia.Selector) []*html.Node {
	return sel.MatchAll(d.root)
}

// QueryAll compiles selector and returns the matching elements.
func (d *Document) QueryAll(selector string) ([]*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return d.Select(sel), nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	return html.Render(w, d.root)
}

// String renders the document, returning an empty string on error.
func (d *Document) String() string {
	var b strings.Builder
	if err := d.Render(&b); err != nil {
		return ""
	}
	return b.String()
}

// TextContent returns the concatenated text of the whole document.
func (d *Document) TextContent() string {
	return TextContent(d.root)
}
