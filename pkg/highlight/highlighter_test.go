package highlight

import (
	"bytes"
	"strings"
	"testing"

	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func testTerms(t *testing.T) *glossary.Terms {
	t.Helper()
	terms, err := glossary.Parse([]byte(`{
		"API": {"definition": "Application Programming Interface", "link": "https://x", "category": "Web Dev"},
		"REST API": {"definition": "Representational state transfer API", "link": "https://y"},
		"SQL": {"definition": "Structured Query Language", "link": "https://sql"},
		"NoSQL": {"definition": "Not only SQL", "link": "https://nosql"},
		"HTTP": {"definition": "Hypertext Transfer Protocol", "link": "https://http"}
	}`))
	require.NoError(t, err)
	return terms
}

func newTestHighlighter(t *testing.T, terms *glossary.Terms) (*Highlighter, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h, err := New(terms, Options{Logger: logging.New(&buf, "highlight-test")})
	require.NoError(t, err)
	return h, &buf
}

func parseDoc(t *testing.T, body, pageURL string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString("<html><head></head><body>"+body+"</body></html>", pageURL)
	require.NoError(t, err)
	return doc
}

func spans(doc *dom.Document) []*html.Node {
	return doc.Select(highlightSelector)
}

func spanTerms(doc *dom.Document) []string {
	var out []string
	for _, s := range spans(doc) {
		out = append(out, dom.Attr(s, AttrTerm))
	}
	return out
}

func TestRun_RestAPIIsOneSpan(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<p id="p">The REST API uses HTTP.</p>`, "https://example.com")

	res := h.Run(doc, Handlers{})

	assert.Equal(t, []string{"REST API", "HTTP"}, spanTerms(doc))
	assert.Equal(t, 2, res.Spans)
	assert.Equal(t, 1, res.TextNodes)

	p := doc.GetElementByID("p")
	assert.Equal(t, "The REST API uses HTTP.", dom.TextContent(p))
	assert.Equal(t, "true", dom.Attr(p, AttrProcessed))

	first := spans(doc)[0]
	assert.Equal(t, "REST API", dom.TextContent(first))
	assert.Equal(t, HighlightClass, dom.Attr(first, "class"))
}

func TestRun_CategoryClassAndCanonicalTerm(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<p>the api and NOSQL</p>`, "")

	h.Run(doc, Handlers{})

	got := spans(doc)
	require.Len(t, got, 2)
	assert.Equal(t, "API", dom.Attr(got[0], AttrTerm))
	assert.Equal(t, "api", dom.TextContent(got[0]))
	assert.True(t, dom.HasClass(got[0], "gloss-category-web-dev"))
	assert.Equal(t, "NoSQL", dom.Attr(got[1], AttrTerm))
	assert.Equal(t, HighlightClass, dom.Attr(got[1], "class"))
}

func TestRun_Exclusions(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	body := `
		<script>var API = 1;</script>
		<style>.API {}</style>
		<noscript>API</noscript>
		<textarea>API</textarea>
		<div><button>API</button></div>
		<div><a href="/docs">the API docs</a></div>
		<div role="button">API</div>
		<div onclick="go()"><em>API</em></div>
		<div class="btn-primary"><span>API</span></div>
		<div class="clickable">API</div>
		<div id="gloss-tooltip-container"><p>API</p></div>
		<p id="ok">API</p>
		<a id="anchor">API without href</a>`
	doc := parseDoc(t, body, "")

	h.Run(doc, Handlers{})

	got := spans(doc)
	require.Len(t, got, 2)
	assert.Equal(t, "ok", dom.Attr(got[0].Parent, "id"))
	assert.Equal(t, "anchor", dom.Attr(got[1].Parent, "id"))
	assert.Empty(t, dom.Attr(doc.GetElementByID(DefaultContainerID), AttrProcessed))
}

func TestRun_RoundTripRestoresText(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	bodies := []string{
		`<p>The REST API uses HTTP.</p>`,
		`<div>SQL <b>NoSQL</b> and   API<i>API</i>api</div>`,
		`<ul><li>HTTP/2</li><li>no terms</li><li>  </li></ul>`,
		`<p>ünïcode API ✓</p><table><tr><td>SQL</td><th>API</th></tr></table>`,
	}
	for _, body := range bodies {
		doc := parseDoc(t, body, "")
		before := dom.TextContent(doc.Body())
		beforeNodes := len(dom.TextNodes(doc.Body()))

		h.Run(doc, Handlers{})
		assert.Equal(t, before, dom.TextContent(doc.Body()), "pass must not change text")

		Unwrap(doc)
		assert.Equal(t, before, dom.TextContent(doc.Body()))
		assert.Equal(t, beforeNodes, len(dom.TextNodes(doc.Body())), "original text nodes are restored")
		assert.Empty(t, spans(doc))
	}
}

func TestRun_Idempotent(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<div><p>The REST API uses HTTP and SQL.</p><span>NoSQL</span></div>`, "")

	h.Run(doc, Handlers{})
	once := doc.String()

	h.Run(doc, Handlers{})
	assert.Equal(t, once, doc.String())

	styles, err := doc.QueryAll("#" + StyleID)
	require.NoError(t, err)
	assert.Len(t, styles, 1)
}

func TestRun_NestedElementsProcessTextOnce(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<div><p><span><b>API</b> and SQL</span></p></div>`, "")

	res := h.Run(doc, Handlers{})

	assert.Equal(t, []string{"API", "SQL"}, spanTerms(doc))
	assert.Equal(t, 2, res.TextNodes)
	for _, s := range spans(doc) {
		assert.False(t, isHighlightSpan(s.Parent))
	}
}

func TestRun_EmptyGlossaryIsNoop(t *testing.T) {
	h, _ := newTestHighlighter(t, &glossary.Terms{})
	doc := parseDoc(t, `<p>API</p>`, "")
	before := doc.String()

	res := h.Run(doc, Handlers{})

	assert.Equal(t, PassResult{}, res)
	assert.Equal(t, before, doc.String())
	assert.False(t, h.Pending(doc))
}

func TestRun_SiteFamilyExtendsScope(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	body := `<section class="job-description">Build a REST API</section>`

	plain := parseDoc(t, body, "https://example.com/jobs")
	res := h.Run(plain, Handlers{})
	assert.Empty(t, spans(plain))
	assert.Equal(t, "", res.Site)

	linkedin := parseDoc(t, body, "https://www.linkedin.com/jobs/view/1")
	res = h.Run(linkedin, Handlers{})
	assert.Equal(t, []string{"REST API"}, spanTerms(linkedin))
	assert.Equal(t, "linkedin", res.Site)
}

func TestRun_HoverLeaveClick(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<div id="wrap"><p>Call the API</p></div>`, "")

	var hovered []string
	var xs, ys []float64
	var clicked []string
	leaves := 0
	h.Run(doc, Handlers{
		Hover: func(term string, x, y float64) {
			hovered = append(hovered, term)
			xs = append(xs, x)
			ys = append(ys, y)
		},
		Click: func(term string) { clicked = append(clicked, term) },
		Leave: func() { leaves++ },
	})

	span := spans(doc)[0]
	assert.Equal(t, 3, doc.ListenerCount(span))

	parentClicks := 0
	doc.AddEventListener(doc.GetElementByID("wrap"), dom.Click, func(*dom.Event) { parentClicks++ })

	doc.Dispatch(&dom.Event{Type: dom.PointerEnter, Target: span.FirstChild, PageX: 120, PageY: 340})
	assert.Equal(t, []string{"API"}, hovered)
	assert.Equal(t, []float64{120}, xs)
	assert.Equal(t, []float64{340}, ys)

	doc.Dispatch(&dom.Event{Type: dom.PointerLeave, Target: span})
	assert.Equal(t, 1, leaves)

	ev := doc.Dispatch(&dom.Event{Type: dom.Click, Target: span})
	assert.Equal(t, []string{"API"}, clicked)
	assert.True(t, ev.DefaultPrevented())
	assert.True(t, ev.PropagationStopped())
	assert.Equal(t, 0, parentClicks)
}

func TestRun_MalformedEntrySkipsCallbacks(t *testing.T) {
	terms, err := glossary.Parse([]byte(`{
		"API": {"definition": "ok", "link": "https://x"},
		"Broken": {"definition": "no link here"}
	}`))
	require.NoError(t, err)
	h, logs := newTestHighlighter(t, terms)
	doc := parseDoc(t, `<p>Broken API, Broken again</p>`, "")

	var hovered, clicked []string
	res := h.Run(doc, Handlers{
		Hover: func(term string, _, _ float64) { hovered = append(hovered, term) },
		Click: func(term string) { clicked = append(clicked, term) },
	})
	require.Equal(t, 3, res.Spans)

	for _, s := range spans(doc) {
		doc.Dispatch(&dom.Event{Type: dom.PointerEnter, Target: s})
		ev := doc.Dispatch(&dom.Event{Type: dom.Click, Target: s})
		assert.True(t, ev.DefaultPrevented())
	}
	assert.Equal(t, []string{"API"}, hovered)
	assert.Equal(t, []string{"API"}, clicked)
	assert.Equal(t, 1, strings.Count(logs.String(), `glossary term "Broken"`), "warned once per pass")
}

func TestRun_ReentrantCallIsSkipped(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<p>API</p>`, "")

	var inner PassResult
	h.Run(doc, Handlers{})
	span := spans(doc)[0]
	doc.AddEventListener(span, dom.Click, func(*dom.Event) {
		inner = h.Run(doc, Handlers{})
	})

	h.running.Store(true)
	doc.Dispatch(&dom.Event{Type: dom.Click, Target: span})
	h.running.Store(false)
	assert.True(t, inner.Skipped)
}

func TestPending(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<p>API</p><div id="gloss-tooltip-container"><div>tip</div></div>`, "")

	assert.True(t, h.Pending(doc))
	h.Run(doc, Handlers{})
	assert.False(t, h.Pending(doc), "container content is never pending")

	// Content attached without going through the document is caught by the marker.
	late := dom.NewElement("p")
	late.AppendChild(dom.NewText("late SQL"))
	doc.Body().AppendChild(late)
	assert.True(t, h.Pending(doc))

	h.Run(doc, Handlers{})
	assert.False(t, h.Pending(doc))
	assert.Contains(t, spanTerms(doc), "SQL")
}

func TestRun_MutationRecordsOnePerRewrittenNode(t *testing.T) {
	h, _ := newTestHighlighter(t, testTerms(t))
	doc := parseDoc(t, `<p>API one</p><p>SQL two</p><p>nothing</p>`, "")

	var replaced int
	doc.Observe(dom.ObserveOptions{ChildList: true}, func(recs []dom.MutationRecord) {
		for _, r := range recs {
			if len(r.Removed) == 1 && r.Removed[0].Type == html.TextNode {
				replaced++
			}
		}
	})

	doc.Do(func() { h.Run(doc, Handlers{}) })
	assert.Equal(t, 2, replaced)
}
