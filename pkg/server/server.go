// Package server exposes the highlighter over HTTP.
//
// Routes:
//
//	POST /api/v1/highlight           highlight an HTML body or a rendered URL
//	GET  /api/v1/glossary            list the glossary
//	GET  /api/v1/glossary/{term}     look a term up, case-insensitively
//	GET  /api/v1/bookmarks           list bookmarked sites
//	POST /api/v1/bookmarks/toggle    toggle the bookmark of a page's site
//	GET  /api/v1/icon?url=...        indicator icon for a page
//	GET  /healthz
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/content"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 8 << 20

var serverLog *logging.Logger

func init() {
	var err error
	serverLog, err = logging.NewLogger("server")
	if err != nil {
		serverLog.Warnf("Failed to initialize server logger, using stderr fallback: %v", err)
	}
}

// Fetcher loads a live page as a document.
type Fetcher interface {
	Render(ctx context.Context, pageURL string) (*dom.Document, error)
}

// Options configure a Server.
type Options struct {
	Terms *glossary.Terms
	// Bookmarks enables the bookmark routes and the gate.
	Bookmarks       *bookmark.Service
	RequireBookmark bool
	// Fetcher enables highlighting by URL.
	Fetcher     Fetcher
	Sites       []highlight.SiteFamily
	ContainerID string
	Logger      *logging.Logger
}

// Server serves the gloss API.
type Server struct {
	opts Options
	log  *logging.Logger
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Terms == nil {
		return nil, fmt.Errorf("glossary is required")
	}
	if opts.RequireBookmark && opts.Bookmarks == nil {
		return nil, fmt.Errorf("bookmark gate is enabled without a bookmark service")
	}
	log := opts.Logger
	if log == nil {
		log = serverLog
	}
	return &Server{opts: opts, log: log}, nil
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthzHandler)

	r.Post("/api/v1/highlight", s.highlightHandler)
	r.Get("/api/v1/glossary", s.glossaryHandler)
	r.Get("/api/v1/glossary/{term}", s.termHandler)

	r.Get("/api/v1/bookmarks", s.listBookmarksHandler)
	r.Post("/api/v1/bookmarks/toggle", s.toggleBookmarkHandler)
	r.Get("/api/v1/icon", s.iconHandler)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	}
}

func healthzHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HighlightRequest is the body of POST /api/v1/highlight. With Render set
// the page at URL is loaded in a browser; otherwise HTML is highlighted and
// URL only names the page.
type HighlightRequest struct {
	HTML   string `json:"html"`
	URL    string `json:"url"`
	Render bool   `json:"render"`
}

// HighlightResponse describes a highlighted page.
type HighlightResponse struct {
	HTML      string   `json:"html"`
	URL       string   `json:"url"`
	Site      string   `json:"site,omitempty"`
	Spans     int      `json:"spans"`
	TextNodes int      `json:"text_nodes"`
	Terms     []string `json:"terms"`
}

func (s *Server) highlightHandler(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var doc *dom.Document
	var err error
	switch {
	case req.Render:
		if s.opts.Fetcher == nil {
			http.Error(w, "rendering is not enabled", http.StatusNotImplemented)
			return
		}
		if req.URL == "" {
			http.Error(w, "url is required when render is set", http.StatusBadRequest)
			return
		}
		doc, err = s.opts.Fetcher.Render(r.Context(), req.URL)
		if err != nil {
			s.log.Warnf("Render %s failed: %v", req.URL, err)
			http.Error(w, "failed to render page", http.StatusBadGateway)
			return
		}
	case req.HTML != "":
		doc, err = dom.ParseString(req.HTML, req.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, "html or render is required", http.StatusBadRequest)
		return
	}

	sess, err := content.Start(doc, content.Options{
		Terms:           s.opts.Terms,
		Bookmarks:       s.opts.Bookmarks,
		RequireBookmark: s.opts.RequireBookmark,
		ContainerID:     s.opts.ContainerID,
		Sites:           s.opts.Sites,
		DisableWatcher:  true,
		Logger:          s.opts.Logger,
	})
	if errors.Is(err, content.ErrSiteNotBookmarked) {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}
	if err != nil {
		s.log.Errorf("Highlight failed: %v", err)
		http.Error(w, "failed to highlight page", http.StatusInternalServerError)
		return
	}
	defer sess.Stop()

	res := sess.LastPass()
	writeJSON(w, http.StatusOK, HighlightResponse{
		HTML:      doc.String(),
		URL:       doc.URL(),
		Site:      res.Site,
		Spans:     res.Spans,
		TextNodes: res.TextNodes,
		Terms:     highlightedTerms(doc),
	})
}

// highlightedTerms returns the distinct canonical terms on the page in
// order of first appearance.
func highlightedTerms(doc *dom.Document) []string {
	terms := []string{}
	seen := make(map[string]bool)
	nodes, _ := doc.QueryAll("span." + highlight.HighlightClass)
	for _, n := range nodes {
		term := dom.Attr(n, highlight.AttrTerm)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}

// TermResponse is a single glossary entry.
type TermResponse struct {
	Term string `json:"term"`
	glossary.Entry
}

func (s *Server) glossaryHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.opts.Terms); err != nil {
		s.log.Errorf("encode glossary: %v", err)
	}
}

func (s *Server) termHandler(w http.ResponseWriter, r *http.Request) {
	term, entry, ok := s.opts.Terms.Lookup(chi.URLParam(r, "term"))
	if !ok {
		http.Error(w, "term not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, TermResponse{Term: term, Entry: entry})
}

// BookmarkResponse reports the bookmark state of one site.
type BookmarkResponse struct {
	Site       string `json:"site"`
	Bookmarked bool   `json:"bookmarked"`
	Icon       string `json:"icon,omitempty"`
}

func (s *Server) bookmarks(w http.ResponseWriter) (*bookmark.Service, bool) {
	if s.opts.Bookmarks == nil {
		http.Error(w, "bookmarks are not enabled", http.StatusServiceUnavailable)
		return nil, false
	}
	return s.opts.Bookmarks, true
}

func (s *Server) listBookmarksHandler(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.bookmarks(w)
	if !ok {
		return
	}
	list, err := svc.List()
	if err != nil {
		s.log.Errorf("List bookmarks: %v", err)
		http.Error(w, "failed to read bookmarks", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"bookmarks": list})
}

func (s *Server) toggleBookmarkHandler(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.bookmarks(w)
	if !ok {
		return
	}
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	on, err := svc.Toggle(req.URL)
	if errors.Is(err, bookmark.ErrNoSite) {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Errorf("Toggle bookmark: %v", err)
		http.Error(w, "failed to update bookmarks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkResponse{Site: bookmark.RootDomain(req.URL), Bookmarked: on})
}

func (s *Server) iconHandler(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.bookmarks(w)
	if !ok {
		return
	}
	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	icon, err := svc.IconPath(pageURL)
	if err != nil {
		s.log.Errorf("Icon lookup: %v", err)
		http.Error(w, "failed to read bookmarks", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, BookmarkResponse{
		Site:       bookmark.RootDomain(pageURL),
		Bookmarked: icon == bookmark.IconBookmarked,
		Icon:       icon,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		serverLog.Errorf("encode JSON response: %v", err)
	}
}
