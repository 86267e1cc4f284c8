package dom

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// EventType names a pointer event.
type EventType string

const (
	// PointerEnter fires when the pointer moves onto a node.
	PointerEnter EventType = "mouseover"
	// PointerLeave fires when the pointer moves off a node.
	PointerLeave EventType = "mouseout"
	// Click fires on a primary-button click.
	Click EventType = "click"
)

// Event is a pointer event travelling from its target up to the root.
type Event struct {
	Type   EventType
	Target *html.Node
	// PageX and PageY are page-relative pointer coordinates.
	PageX, PageY float64

	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the default action, link navigation for clicks.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation keeps the event from reaching ancestors of the current node.
func (e *Event) StopPropagation() { e.stopped = true }

// DefaultPrevented reports whether PreventDefault was called.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// PropagationStopped reports whether StopPropagation was called.
func (e *Event) PropagationStopped() bool { return e.stopped }

type listener struct {
	typ EventType
	fn  func(*Event)
}

// AddEventListener registers fn for events of typ that reach n.
// Listeners are dropped when n leaves the tree through a Document method.
func (d *Document) AddEventListener(n *html.Node, typ EventType, fn func(*Event)) {
	d.listeners[n] = append(d.listeners[n], listener{typ: typ, fn: fn})
}

// ListenerCount returns the number of listeners registered on n.
func (d *Document) ListenerCount(n *html.Node) int {
	return len(d.listeners[n])
}

func (d *Document) dropListeners(n *html.Node) {
	if len(d.listeners) == 0 {
		return
	}
	Walk(n, func(c *html.Node) bool {
		delete(d.listeners, c)
		return true
	})
}

// OnNavigate installs the handler run as the default action of a click
// inside a link. Without one, navigation is a no-op.
func (d *Document) OnNavigate(fn func(href string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigate = fn
}

// Dispatch delivers ev to ev.Target and its ancestors as one turn, then runs
// the default action unless it was prevented. It returns ev.
func (d *Document) Dispatch(ev *Event) *Event {
	d.Do(func() {
		for n := ev.Target; n != nil; n = n.Parent {
			for _, l := range d.listeners[n] {
				if l.typ == ev.Type {
					l.fn(ev)
				}
			}
			if ev.stopped {
				break
			}
		}
		if ev.Type == Click && !ev.defaultPrevented && d.navigate != nil {
			if href := linkTarget(ev.Target); href != "" {
				d.navigate(href)
			}
		}
	})
	return ev
}

func linkTarget(n *html.Node) string {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			if href := Attr(n, "href"); href != "" {
				return href
			}
		}
	}
	return ""
}
