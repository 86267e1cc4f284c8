// Package preview renders highlighted text for the terminal.
//
// Terms are shown in the accent color with a footnote number, and the
// definitions follow as a numbered list.
package preview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/highlight"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	accentBlue = lipgloss.Color("#2563EB")
	accentTeal = lipgloss.Color("#22C55E")
	mutedGray  = lipgloss.Color("#6B7280")
)

var (
	termStyle = lipgloss.NewStyle().
			Foreground(accentBlue).
			Bold(true)

	markerStyle = lipgloss.NewStyle().
			Foreground(mutedGray)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentTeal).
			Bold(true)

	linkStyle = lipgloss.NewStyle().
			Foreground(mutedGray).
			Underline(true)
)

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true, atom.Br: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Ul: true, atom.Ol: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
}

var skippedTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Head: true, atom.Template: true,
}

type piece struct {
	text string
	// term is the canonical glossary key for highlighted text.
	term      string
	lineBreak bool
}

// Renderer formats highlighted text.
type Renderer struct {
	terms   *glossary.Terms
	pattern *highlight.Pattern
	// Width wraps body lines; zero disables wrapping.
	Width int
}

// New creates a Renderer for terms.
func New(terms *glossary.Terms, width int) *Renderer {
	if terms == nil {
		terms = &glossary.Terms{}
	}
	return &Renderer{
		terms:   terms,
		pattern: highlight.BuildPattern(terms.Keys()),
		Width:   width,
	}
}

// Text highlights plain text.
func (r *Renderer) Text(text string) string {
	var pieces []piece
	for _, line := range strings.Split(text, "\n") {
		for _, seg := range r.pattern.Segment(line) {
			p := piece{text: seg.Text}
			if seg.Match {
				if term, ok := r.terms.Resolve(seg.Text); ok {
					p.term = term
				}
			}
			pieces = append(pieces, p)
		}
		pieces = append(pieces, piece{lineBreak: true})
	}
	return r.render(pieces)
}

// Document renders the visible text of an already highlighted document,
// leaving out the tooltip container.
func (r *Renderer) Document(doc *dom.Document, containerID string) string {
	root := doc.Body()
	if root == nil {
		root = doc.Root()
	}

	var pieces []piece
	dom.Walk(root, func(n *html.Node) bool {
		switch n.Type {
		case html.ElementNode:
			if skippedTags[n.DataAtom] || (containerID != "" && dom.Attr(n, "id") == containerID) {
				return false
			}
			if dom.HasClass(n, highlight.HighlightClass) {
				term := dom.Attr(n, highlight.AttrTerm)
				pieces = append(pieces, piece{text: dom.TextContent(n), term: term})
				return false
			}
			if blockTags[n.DataAtom] {
				pieces = append(pieces, piece{lineBreak: true})
			}
		case html.TextNode:
			pieces = append(pieces, piece{text: n.Data})
		}
		return true
	})
	return r.render(pieces)
}

func (r *Renderer) render(pieces []piece) string {
	var order []string
	index := make(map[string]int)

	var lines []string
	var line strings.Builder
	flush := func() {
		text := strings.TrimSpace(line.String())
		line.Reset()
		if text == "" {
			return
		}
		if r.Width > 0 {
			text = lipgloss.NewStyle().Width(r.Width).Render(text)
		}
		lines = append(lines, text)
	}

	for _, p := range pieces {
		if p.lineBreak {
			flush()
			continue
		}
		if p.term == "" {
			line.WriteString(collapseSpace(p.text))
			continue
		}
		n, ok := index[p.term]
		if !ok {
			order = append(order, p.term)
			n = len(order)
			index[p.term] = n
		}
		line.WriteString(termStyle.Render(p.text))
		line.WriteString(markerStyle.Render(fmt.Sprintf("[%d]", n)))
	}
	flush()

	var b strings.Builder
	b.WriteString(strings.Join(lines, "\n"))
	if len(order) == 0 {
		return b.String()
	}

	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render("Definitions"))
	for i, term := range order {
		entry, _ := r.terms.Get(term)
		fmt.Fprintf(&b, "\n%2d. %s: %s", i+1, termStyle.Render(term), entry.Definition)
		if entry.Link != "" {
			fmt.Fprintf(&b, "\n    %s", linkStyle.Render(entry.Link))
		}
	}
	return b.String()
}

// collapseSpace replaces every run of whitespace with one space.
func collapseSpace(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Fields(s)
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if len(fields) > 0 && isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
