package content

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const testPage = `<html><head></head><body>
<h1>Backend roles</h1>
<p id="intro">Design a REST API on Kubernetes with CI/CD.</p>
</body></html>`

func testLogger() *logging.Logger {
	return logging.New(io.Discard, "content-test")
}

func parse(t *testing.T, src, pageURL string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src, pageURL)
	require.NoError(t, err)
	return doc
}

func spanTerms(doc *dom.Document) []string {
	var out []string
	doc.Do(func() {
		spans, _ := doc.QueryAll("span." + highlight.HighlightClass)
		for _, s := range spans {
			out = append(out, dom.Attr(s, highlight.AttrTerm))
		}
	})
	return out
}

func TestStart_BundledGlossary(t *testing.T) {
	doc := parse(t, testPage, "https://jobs.example.com/1")

	s, err := Start(doc, Options{Logger: testLogger(), DisableWatcher: true})
	require.NoError(t, err)
	defer s.Stop()

	assert.Equal(t, []string{"REST API", "Kubernetes", "CI/CD"}, spanTerms(doc))
	assert.Equal(t, 3, s.LastPass().Spans)
	assert.NotNil(t, doc.GetElementByID(highlight.DefaultContainerID))
	assert.False(t, s.Watching())
}

func TestStart_GlossaryLoadFailure(t *testing.T) {
	doc := parse(t, testPage, "")
	before := doc.String()

	_, err := Start(doc, Options{
		Glossary: filepath.Join(t.TempDir(), "missing.json"),
		Logger:   testLogger(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load glossary")
	assert.Equal(t, before, doc.String(), "nothing is touched")
}

func TestStart_BookmarkGate(t *testing.T) {
	svc := bookmark.NewService(bookmark.NewMemoryStore(), testLogger())
	opts := Options{
		Bookmarks:       svc,
		RequireBookmark: true,
		DisableWatcher:  true,
		Logger:          testLogger(),
	}

	doc := parse(t, testPage, "https://www.linkedin.com/jobs")
	_, err := Start(doc, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSiteNotBookmarked))
	assert.Contains(t, err.Error(), "linkedin.com")
	assert.Empty(t, spanTerms(doc))

	require.NoError(t, svc.Add("https://linkedin.com"))
	s, err := Start(doc, opts)
	require.NoError(t, err)
	defer s.Stop()
	assert.NotEmpty(t, spanTerms(doc))

	_, err = Start(parse(t, testPage, ""), Options{RequireBookmark: true, Logger: testLogger()})
	assert.Error(t, err)
}

func TestStart_ReusesExistingContainer(t *testing.T) {
	doc := parse(t, `<html><body><div id="tips"></div><p>SQL</p></body></html>`, "")

	s, err := Start(doc, Options{ContainerID: "tips", DisableWatcher: true, Logger: testLogger()})
	require.NoError(t, err)
	defer s.Stop()

	containers, err := doc.QueryAll("#tips")
	require.NoError(t, err)
	assert.Len(t, containers, 1)
	assert.Nil(t, doc.GetElementByID(highlight.DefaultContainerID))
}

func TestStart_NoBody(t *testing.T) {
	doc, err := dom.New(&html.Node{Type: html.DocumentNode}, "")
	require.NoError(t, err)

	_, err = Start(doc, Options{DisableWatcher: true, Logger: testLogger()})
	assert.Error(t, err)
}

func TestSession_HoverShowsTooltip(t *testing.T) {
	doc := parse(t, testPage, "")
	s, err := Start(doc, Options{DisableWatcher: true, Logger: testLogger()})
	require.NoError(t, err)
	defer s.Stop()

	spans, err := doc.QueryAll(`span[data-gloss-term="Kubernetes"]`)
	require.NoError(t, err)
	require.Len(t, spans, 1)

	doc.Dispatch(&dom.Event{Type: dom.PointerEnter, Target: spans[0], PageX: 5, PageY: 6})
	state := s.Tooltip().State()
	assert.True(t, state.Visible)
	assert.Equal(t, "Kubernetes", state.Term)

	tips, err := doc.QueryAll("#" + highlight.DefaultContainerID + " .gloss-tooltip")
	require.NoError(t, err)
	assert.Len(t, tips, 1)
}

func TestSession_WatchesDynamicContent(t *testing.T) {
	doc := parse(t, testPage, "")
	s, err := Start(doc, Options{
		Debounce:      20 * time.Millisecond,
		SweepInterval: time.Hour,
		Logger:        testLogger(),
	})
	require.NoError(t, err)
	defer s.Stop()
	require.True(t, s.Watching())

	doc.Do(func() {
		p := dom.NewElement("p")
		p.AppendChild(dom.NewText("Now with Machine Learning"))
		doc.AppendChild(doc.Body(), p)
	})

	require.Eventually(t, func() bool {
		return len(spanTerms(doc)) == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, spanTerms(doc), "Machine Learning")
}

func TestSession_StopAndRescan(t *testing.T) {
	doc := parse(t, testPage, "")
	s, err := Start(doc, Options{
		Debounce:      20 * time.Millisecond,
		SweepInterval: time.Hour,
		Logger:        testLogger(),
	})
	require.NoError(t, err)

	doc.Do(func() {
		// Unobserved edit, picked up only by an explicit rescan.
		p := dom.NewElement("p")
		p.AppendChild(dom.NewText("SQL"))
		doc.Body().AppendChild(p)
	})
	res := s.Rescan()
	assert.Equal(t, 4, res.Spans)

	s.Stop()
	s.Stop()
	assert.False(t, s.Watching())

	doc.Do(func() {
		p := dom.NewElement("p")
		p.AppendChild(dom.NewText("NoSQL"))
		doc.AppendChild(doc.Body(), p)
	})
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, spanTerms(doc), 4)
	assert.Equal(t, 4, s.Rescan().Spans, "rescan after stop is a no-op")
}
