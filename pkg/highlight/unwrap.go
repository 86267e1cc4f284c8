package highlight

import (
	"github.com/andybalholm/cascadia"
	"github.com/entrhq/gloss/pkg/dom"
	"golang.org/x/net/html"
)

var highlightSelector = cascadia.MustCompile("span." + HighlightClass)

// Unwrap removes every highlight span from doc, splicing its children back
// into the parent and merging the text around it into one node, so the page
// gets its original text nodes back. It returns the number of spans removed.
func Unwrap(doc *dom.Document) int {
	spans := doc.Select(highlightSelector)
	for _, span := range spans {
		if span.Parent == nil {
			continue
		}
		moved := doc.Unwrap(span)
		for _, n := range moved {
			if n.Type == html.TextNode && n.Parent != nil {
				mergeText(doc, n)
			}
		}
	}
	return len(spans)
}

// mergeText joins n with its adjacent text siblings. The surviving node is
// the leftmost one.
func mergeText(doc *dom.Document, n *html.Node) {
	first := n
	for first.PrevSibling != nil && first.PrevSibling.Type == html.TextNode {
		first = first.PrevSibling
	}
	if first.NextSibling == nil || first.NextSibling.Type != html.TextNode {
		return
	}

	text := first.Data
	parent := first.Parent
	for next := first.NextSibling; next != nil && next.Type == html.TextNode; next = first.NextSibling {
		text += next.Data
		doc.RemoveChild(parent, next)
	}
	doc.SetText(first, text)
}
