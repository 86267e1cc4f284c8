package highlight

import (
	"strings"

	"github.com/entrhq/gloss/pkg/dom"
	"golang.org/x/net/html"
)

// excludedParents are elements whose text is never page prose.
var excludedParents = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"object":   true,
	"embed":    true,
	"input":    true,
	"textarea": true,
}

var clickableTags = map[string]bool{
	"button":  true,
	"select":  true,
	"option":  true,
	"summary": true,
}

var clickableRoles = map[string]bool{
	"button":   true,
	"link":     true,
	"menuitem": true,
	"tab":      true,
	"switch":   true,
	"checkbox": true,
	"radio":    true,
	"option":   true,
}

var clickableClasses = map[string]bool{
	"btn":       true,
	"button":    true,
	"clickable": true,
}

// isClickable reports whether an element is an interactive control.
// Highlighting inside one would change what a click on it does.
func isClickable(n *html.Node) bool {
	tag := dom.Tag(n)
	if clickableTags[tag] {
		return true
	}
	if tag == "a" && strings.TrimSpace(dom.Attr(n, "href")) != "" {
		return true
	}
	if clickableRoles[strings.ToLower(strings.TrimSpace(dom.Attr(n, "role")))] {
		return true
	}
	if dom.HasAttr(n, "onclick") {
		return true
	}
	for _, class := range dom.Classes(n) {
		if clickableClasses[class] || strings.HasPrefix(class, "btn-") {
			return true
		}
	}
	return false
}

// isHighlightSpan reports whether n is a span created by a highlight pass.
func isHighlightSpan(n *html.Node) bool {
	return n != nil && n.Type == html.ElementNode && dom.HasClass(n, HighlightClass)
}

// Filter decides which text nodes a pass may rewrite.
type Filter struct {
	containerID string
}

// NewFilter returns a filter that also excludes everything inside the
// element with containerID.
func NewFilter(containerID string) *Filter {
	return &Filter{containerID: containerID}
}

// Eligible runs the structural checks on a text node.
func (f *Filter) Eligible(n *html.Node) bool {
	if n == nil || n.Type != html.TextNode {
		return false
	}
	if strings.TrimSpace(n.Data) == "" {
		return false
	}
	parent := n.Parent
	if parent == nil {
		return false
	}
	if isHighlightSpan(parent) {
		return false
	}
	if excludedParents[dom.Tag(parent)] {
		return false
	}
	if dom.Closest(parent, isClickable) != nil {
		return false
	}
	if dom.InsideID(parent, f.containerID) {
		return false
	}
	return true
}

// Accept runs the structural checks and then the content match.
func (f *Filter) Accept(n *html.Node, p *Pattern) bool {
	return f.Eligible(n) && p.Match(n.Data)
}
