package highlight

import (
	"github.com/entrhq/gloss/pkg/dom"
	"golang.org/x/net/html"
)

// Handlers receive the pointer events of highlight spans. Nil fields are
// skipped.
type Handlers struct {
	// Hover gets the canonical term and page coordinates of the pointer.
	Hover func(term string, x, y float64)
	// Click gets the canonical term.
	Click func(term string)
	Leave func()
}

func (h Handlers) hover(term string, x, y float64) {
	if h.Hover != nil {
		h.Hover(term, x, y)
	}
}

func (h Handlers) click(term string) {
	if h.Click != nil {
		h.Click(term)
	}
}

func (h Handlers) leave() {
	if h.Leave != nil {
		h.Leave()
	}
}

// rewrite replaces one text node with its segments, turning every match
// into a highlight span. It returns the nodes that replaced n, or nil when
// nothing matched.
func (h *Highlighter) rewrite(doc *dom.Document, n *html.Node, handlers Handlers, st *passState) []*html.Node {
	segments := h.pattern.Segment(n.Data)
	if len(segments) == 0 || (len(segments) == 1 && !segments[0].Match) {
		return nil
	}

	nodes := make([]*html.Node, 0, len(segments))
	for _, seg := range segments {
		if !seg.Match {
			nodes = append(nodes, dom.NewText(seg.Text))
			continue
		}
		nodes = append(nodes, h.newSpan(doc, seg.Text, handlers, st))
	}

	doc.ReplaceChild(n.Parent, n, nodes...)
	return nodes
}

func (h *Highlighter) newSpan(doc *dom.Document, matched string, handlers Handlers, st *passState) *html.Node {
	term, entry, found := h.terms.Lookup(matched)

	class := HighlightClass
	if cc := CategoryClass(entry.Category); cc != "" {
		class += " " + cc
	}
	attrs := []html.Attribute{{Key: "class", Val: class}}
	if found {
		attrs = append(attrs, html.Attribute{Key: AttrTerm, Val: term})
	}
	attrs = append(attrs, html.Attribute{Key: AttrProcessed, Val: "true"})

	span := dom.NewElement("span", attrs...)
	span.AppendChild(dom.NewText(matched))
	st.spans++

	dispatch := found
	if found {
		if err := entry.Validate(); err != nil {
			dispatch = false
			if !st.warned[term] {
				st.warned[term] = true
				h.log.Warnf("Skipping callbacks for glossary term %q: %v", term, err)
			}
		}
	}

	doc.AddEventListener(span, dom.PointerEnter, func(ev *dom.Event) {
		if dispatch {
			handlers.hover(term, ev.PageX, ev.PageY)
		}
	})
	doc.AddEventListener(span, dom.PointerLeave, func(*dom.Event) {
		handlers.leave()
	})
	doc.AddEventListener(span, dom.Click, func(ev *dom.Event) {
		ev.PreventDefault()
		ev.StopPropagation()
		if dispatch {
			handlers.click(term)
		}
	})
	return span
}
