// Package tooltip shows glossary definitions next to highlighted terms.
//
// The Coordinator is a small state machine. Hovering a term shows its
// definition, leaving hides it, and clicking locks it in place until the
// tooltip itself is clicked. The tooltip is rendered into the container
// element the highlighter never scans.
package tooltip

import (
	"fmt"
	"sync"

	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"golang.org/x/net/html"
)

const (
	// Class is set on the rendered tooltip element.
	Class = "gloss-tooltip"
	// Offset is added to both pointer coordinates.
	Offset = 10
)

var tooltipLog *logging.Logger

func init() {
	var err error
	tooltipLog, err = logging.NewLogger("tooltip")
	if err != nil {
		tooltipLog.Warnf("Failed to initialize tooltip logger, using stderr fallback: %v", err)
	}
}

// State is a snapshot of the tooltip.
type State struct {
	Visible bool
	Locked  bool
	X, Y    float64
	Term    string
}

// Coordinator owns the tooltip of one document. Its methods mutate the
// document and must run inside a document turn, as span handlers do.
type Coordinator struct {
	doc         *dom.Document
	terms       *glossary.Terms
	containerID string
	log         *logging.Logger

	mu     sync.Mutex
	state  State
	hoverX float64
	hoverY float64
	el     *html.Node
}

// New creates a Coordinator rendering into the element with containerID.
func New(doc *dom.Document, terms *glossary.Terms, containerID string, log *logging.Logger) *Coordinator {
	if terms == nil {
		terms = &glossary.Terms{}
	}
	if containerID == "" {
		containerID = highlight.DefaultContainerID
	}
	if log == nil {
		log = tooltipLog
	}
	return &Coordinator{
		doc:         doc,
		terms:       terms,
		containerID: containerID,
		log:         log,
	}
}

// State returns the current tooltip state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Show displays the definition of term at (x, y). Ignored while locked.
func (c *Coordinator) Show(x, y float64, term string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Locked {
		return
	}
	if _, ok := c.terms.Get(term); !ok {
		c.log.Debugf("No glossary entry for %q, tooltip not shown", term)
		return
	}
	c.state.X, c.state.Y = x, y
	c.state.Term = term
	c.state.Visible = true
	c.render()
}

// Hide removes the tooltip. Ignored while locked.
func (c *Coordinator) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Locked {
		return
	}
	c.state.Visible = false
	c.render()
}

// Lock pins the tooltip at (x, y) keeping its content.
func (c *Coordinator) Lock(x, y float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Locked = true
	c.state.X, c.state.Y = x, y
	c.render()
}

// Unlock releases a locked tooltip and hides it.
func (c *Coordinator) Unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Locked = false
	c.state.Visible = false
	c.render()
}

// Handlers adapts the coordinator to highlight span events. A click locks
// the tooltip at the position of the last hover.
func (c *Coordinator) Handlers() highlight.Handlers {
	return highlight.Handlers{
		Hover: func(term string, x, y float64) {
			c.mu.Lock()
			c.hoverX, c.hoverY = x, y
			c.mu.Unlock()
			c.Show(x, y, term)
		},
		Click: func(term string) {
			c.mu.Lock()
			x, y := c.hoverX, c.hoverY
			c.mu.Unlock()
			c.Show(x, y, term)
			c.Lock(x, y)
		},
		Leave: c.Hide,
	}
}

// render replaces the tooltip element. Called with c.mu held.
func (c *Coordinator) render() {
	if c.el != nil && c.el.Parent != nil {
		c.doc.RemoveChild(c.el.Parent, c.el)
	}
	c.el = nil

	if !c.state.Visible {
		return
	}
	container := c.doc.GetElementByID(c.containerID)
	if container == nil {
		c.log.Warnf("Tooltip container #%s is missing", c.containerID)
		return
	}
	entry, _ := c.terms.Get(c.state.Term)

	el := dom.NewElement("div",
		html.Attribute{Key: "class", Val: Class},
		html.Attribute{Key: "style", Val: position(c.state.X, c.state.Y)},
	)
	el.AppendChild(dom.NewText(entry.Definition + " "))
	el.AppendChild(dom.NewElement("br"))
	link := dom.NewElement("a",
		html.Attribute{Key: "href", Val: entry.Link},
		html.Attribute{Key: "target", Val: "_blank"},
	)
	link.AppendChild(dom.NewText("Learn more"))
	el.AppendChild(link)

	if c.state.Locked {
		c.doc.AddEventListener(el, dom.Click, func(*dom.Event) {
			c.Unlock()
		})
	}

	c.doc.AppendChild(container, el)
	c.el = el
}

func position(x, y float64) string {
	return fmt.Sprintf("position: absolute; top: %gpx; left: %gpx;", y+Offset, x+Offset)
}
