package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Render(_ context.Context, pageURL string) (*dom.Document, error) {
	src, ok := f.pages[pageURL]
	if !ok {
		return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
	}
	return dom.ParseString(src, pageURL)
}

func newTestServer(t *testing.T, mutate func(*Options)) *httptest.Server {
	t.Helper()

	terms, err := glossary.Parse([]byte(`{
		"API": {"definition": "Application Programming Interface", "link": "https://x", "category": "Web"},
		"REST API": {"definition": "Representational state transfer", "link": "https://y"},
		"SQL": {"definition": "Structured Query Language", "link": "https://z"}
	}`))
	require.NoError(t, err)

	log := logging.New(io.Discard, "server-test")
	opts := Options{
		Terms:     terms,
		Bookmarks: bookmark.NewService(bookmark.NewMemoryStore(), log),
		Fetcher: &fakeFetcher{pages: map[string]string{
			"https://shop.example.com/": `<html><body><p>Our REST API and SQL</p></body></html>`,
		}},
		Logger: log,
	}
	if mutate != nil {
		mutate(&opts)
	}
	srv, err := New(opts)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.Client().Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := get(t, ts, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestHighlight_HTML(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts, "/api/v1/highlight", HighlightRequest{
		HTML: `<html><body><p>The REST API speaks SQL, like any API.</p></body></html>`,
		URL:  "https://example.com/docs",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out HighlightResponse
	decode(t, resp, &out)
	assert.Equal(t, 3, out.Spans)
	assert.Equal(t, 1, out.TextNodes)
	assert.Equal(t, []string{"REST API", "SQL", "API"}, out.Terms)
	assert.Equal(t, "https://example.com/docs", out.URL)
	assert.Contains(t, out.HTML, `class="gloss-highlighted-term gloss-category-web"`)
	assert.Contains(t, out.HTML, `id="gloss-styles"`)
	assert.Contains(t, out.HTML, `id="gloss-tooltip-container"`)
}

func TestHighlight_Render(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := postJSON(t, ts, "/api/v1/highlight", HighlightRequest{URL: "https://shop.example.com/", Render: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out HighlightResponse
	decode(t, resp, &out)
	assert.Equal(t, []string{"REST API", "SQL"}, out.Terms)

	resp = postJSON(t, ts, "/api/v1/highlight", HighlightRequest{URL: "https://nowhere.invalid/", Render: true})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	resp = postJSON(t, ts, "/api/v1/highlight", HighlightRequest{Render: true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHighlight_RenderDisabled(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Fetcher = nil })
	resp := postJSON(t, ts, "/api/v1/highlight", HighlightRequest{URL: "https://shop.example.com/", Render: true})
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHighlight_BadRequests(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.Client().Post(ts.URL+"/api/v1/highlight", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts, "/api/v1/highlight", HighlightRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHighlight_BookmarkGate(t *testing.T) {
	var svc *bookmark.Service
	ts := newTestServer(t, func(o *Options) {
		o.RequireBookmark = true
		svc = o.Bookmarks
	})

	req := HighlightRequest{HTML: `<p>API</p>`, URL: "https://docs.example.com/"}
	resp := postJSON(t, ts, "/api/v1/highlight", req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	require.NoError(t, svc.Add("https://example.com"))
	resp = postJSON(t, ts, "/api/v1/highlight", req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGlossaryRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/v1/glossary")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	apiAt := bytes.Index(raw, []byte(`"API"`))
	restAt := bytes.Index(raw, []byte(`"REST API"`))
	assert.True(t, apiAt >= 0 && apiAt < restAt, "glossary order is preserved")

	resp = get(t, ts, "/api/v1/glossary/"+url.PathEscape("rest api"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var term TermResponse
	decode(t, resp, &term)
	assert.Equal(t, "REST API", term.Term)
	assert.Equal(t, "Representational state transfer", term.Definition)
	assert.Equal(t, "https://y", term.Link)

	resp = get(t, ts, "/api/v1/glossary/Kubernetes")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBookmarkRoutes(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts, "/api/v1/bookmarks")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list map[string][]string
	decode(t, resp, &list)
	assert.Equal(t, []string{}, list["bookmarks"])

	resp = postJSON(t, ts, "/api/v1/bookmarks/toggle", map[string]string{"url": "https://www.linkedin.com/jobs"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var toggled BookmarkResponse
	decode(t, resp, &toggled)
	assert.Equal(t, BookmarkResponse{Site: "linkedin.com", Bookmarked: true}, toggled)

	resp = get(t, ts, "/api/v1/icon?url="+url.QueryEscape("https://jobs.linkedin.com/"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var icon BookmarkResponse
	decode(t, resp, &icon)
	assert.Equal(t, bookmark.IconBookmarked, icon.Icon)
	assert.True(t, icon.Bookmarked)

	resp = get(t, ts, "/api/v1/icon")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, ts, "/api/v1/bookmarks/toggle", map[string]string{"url": ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBookmarkRoutes_Disabled(t *testing.T) {
	ts := newTestServer(t, func(o *Options) { o.Bookmarks = nil })
	resp := get(t, ts, "/api/v1/bookmarks")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{Terms: &glossary.Terms{}, RequireBookmark: true})
	assert.Error(t, err)
}
