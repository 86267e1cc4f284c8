// Package highlight finds glossary terms in a document and wraps each match
// in an interactive span.
//
// A Highlighter is built once per glossary. Each call to Run is one
// highlight pass: it makes sure the stylesheet is present, unwraps the spans
// of the previous pass, and rescans the text of every element in scope.
// Spans carry the canonical term in data-gloss-term and every scanned
// element is marked with data-gloss-processed, which Pending reads to find
// content added behind the observers' back.
package highlight

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/logging"
	"golang.org/x/net/html"
)

const (
	// HighlightClass marks spans created by a pass.
	HighlightClass = "gloss-highlighted-term"
	// StyleID identifies the injected stylesheet.
	StyleID = "gloss-styles"
	// DefaultContainerID is the id of the tooltip container, never scanned.
	DefaultContainerID = "gloss-tooltip-container"
	// AttrTerm holds the canonical glossary key on a span.
	AttrTerm = "data-gloss-term"
	// AttrProcessed marks scanned elements and spans.
	AttrProcessed = "data-gloss-processed"

	categoryClassPrefix = "gloss-category-"
)

var highlightLog *logging.Logger

func init() {
	var err error
	highlightLog, err = logging.NewLogger("highlight")
	if err != nil {
		highlightLog.Warnf("Failed to initialize highlight logger, using stderr fallback: %v", err)
	}
}

// Options configure a Highlighter.
type Options struct {
	// ContainerID is the element holding the tooltip UI. Defaults to
	// DefaultContainerID.
	ContainerID string
	// Sites extend the scanned selectors per host. Nil means the built-in
	// LinkedIn family; an empty, non-nil slice disables site families.
	Sites []SiteFamily
	// Logger overrides the package logger.
	Logger *logging.Logger
}

// PassResult summarizes one pass.
type PassResult struct {
	// Skipped is set when the pass was refused because another was running.
	Skipped   bool
	Site      string
	Unwrapped int
	Elements  int
	TextNodes int
	Spans     int
	Duration  time.Duration
}

type passState struct {
	visited map[*html.Node]bool
	warned  map[string]bool
	spans   int
}

// Highlighter runs highlight passes for one glossary.
type Highlighter struct {
	terms       *glossary.Terms
	pattern     *Pattern
	filter      *Filter
	scope       *Scope
	containerID string
	log         *logging.Logger
	running     atomic.Bool
}

// New compiles the glossary into a Highlighter. An empty glossary is valid
// and every pass is then a no-op.
func New(terms *glossary.Terms, opts Options) (*Highlighter, error) {
	if terms == nil {
		terms = &glossary.Terms{}
	}
	if opts.ContainerID == "" {
		opts.ContainerID = DefaultContainerID
	}
	if opts.Sites == nil {
		opts.Sites = []SiteFamily{LinkedIn}
	}
	if opts.Logger == nil {
		opts.Logger = highlightLog
	}

	scope, err := NewScope(opts.Sites)
	if err != nil {
		return nil, fmt.Errorf("failed to build selector scope: %w", err)
	}

	return &Highlighter{
		terms:       terms,
		pattern:     BuildPattern(terms.Keys()),
		filter:      NewFilter(opts.ContainerID),
		scope:       scope,
		containerID: opts.ContainerID,
		log:         opts.Logger,
	}, nil
}

// Pattern returns the compiled matcher, nil for an empty glossary.
func (h *Highlighter) Pattern() *Pattern {
	return h.pattern
}

// Terms returns the glossary the highlighter was built from.
func (h *Highlighter) Terms() *glossary.Terms {
	return h.terms
}

// ContainerID returns the id of the excluded tooltip container.
func (h *Highlighter) ContainerID() string {
	return h.containerID
}

// Run performs one highlight pass over doc. It must run inside a document
// turn or on the goroutine that owns doc. A call made while another pass is
// in progress returns a Skipped result without touching the document.
func (h *Highlighter) Run(doc *dom.Document, handlers Handlers) PassResult {
	if !h.running.CompareAndSwap(false, true) {
		return PassResult{Skipped: true}
	}
	defer h.running.Store(false)

	if h.pattern == nil {
		return PassResult{}
	}

	start := time.Now()
	st := &passState{
		visited: make(map[*html.Node]bool),
		warned:  make(map[string]bool),
	}

	ensureStyles(doc)

	var res PassResult
	res.Unwrapped = Unwrap(doc)

	sel, site := h.scope.For(doc.Hostname())
	res.Site = site

	for _, el := range doc.Select(sel) {
		if dom.InsideID(el, h.containerID) || isHighlightSpan(el) {
			continue
		}
		for _, tn := range dom.TextNodes(el) {
			if st.visited[tn] {
				continue
			}
			st.visited[tn] = true
			if !h.filter.Accept(tn, h.pattern) {
				continue
			}
			for _, n := range h.rewrite(doc, tn, handlers, st) {
				st.visited[n] = true
			}
			res.TextNodes++
		}
		doc.SetAttr(el, AttrProcessed, "true")
		res.Elements++
	}

	res.Spans = st.spans
	res.Duration = time.Since(start)
	h.log.Debugf("Highlight pass on %q: site=%q unwrapped=%d elements=%d text_nodes=%d spans=%d in %s",
		doc.Hostname(), res.Site, res.Unwrapped, res.Elements, res.TextNodes, res.Spans, res.Duration)
	return res
}

// Pending reports whether any element in scope lacks the processed marker,
// meaning content arrived that no pass has seen.
func (h *Highlighter) Pending(doc *dom.Document) bool {
	if h.pattern == nil {
		return false
	}
	sel, _ := h.scope.For(doc.Hostname())
	for _, el := range doc.Select(sel) {
		if dom.InsideID(el, h.containerID) {
			continue
		}
		if dom.Attr(el, AttrProcessed) != "true" {
			return true
		}
	}
	return false
}
