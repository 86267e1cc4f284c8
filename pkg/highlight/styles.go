package highlight

import (
	"github.com/entrhq/gloss/pkg/dom"
	"golang.org/x/net/html"
)

const highlightCSS = `
.gloss-highlighted-term {
  background-color: #fff3cd !important;
  border-bottom: 2px solid #ffc107 !important;
  cursor: pointer !important;
  padding: 1px 2px !important;
  border-radius: 2px !important;
  transition: background-color 0.2s !important;
  position: relative !important;
  z-index: 1 !important;
}
.gloss-highlighted-term:hover {
  background-color: #ffeaa7 !important;
}
`

// ensureStyles adds the highlight stylesheet unless the page already has
// one. It reports whether a style element was added.
func ensureStyles(doc *dom.Document) bool {
	if doc.GetElementByID(StyleID) != nil {
		return false
	}
	head := doc.Head()
	if head == nil {
		return false
	}
	style := dom.NewElement("style", html.Attribute{Key: "id", Val: StyleID})
	style.AppendChild(dom.NewText(highlightCSS))
	doc.AppendChild(head, style)
	return true
}
