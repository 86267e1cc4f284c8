// Package content wires a glossary highlighter into one page.
//
// Start loads the glossary, applies the bookmark gate, creates the tooltip
// container, runs the first highlight pass and leaves a mutation watcher
// behind to keep the page highlighted. The returned Session is torn down
// with Stop.
package content

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/highlight"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/entrhq/gloss/pkg/tooltip"
	"github.com/entrhq/gloss/pkg/watcher"
	"golang.org/x/net/html"
)

// ErrSiteNotBookmarked is returned by Start when the bookmark gate is on and
// the page's site is not bookmarked.
var ErrSiteNotBookmarked = errors.New("site is not bookmarked")

var contentLog *logging.Logger

func init() {
	var err error
	contentLog, err = logging.NewLogger("content")
	if err != nil {
		contentLog.Warnf("Failed to initialize content logger, using stderr fallback: %v", err)
	}
}

// Options configure Start.
type Options struct {
	// Terms is a preloaded glossary. When nil, Glossary is loaded.
	Terms *glossary.Terms
	// Glossary is a glossary file; empty selects the bundled glossary.
	Glossary string

	// Bookmarks backs the gate. Required when RequireBookmark is set.
	Bookmarks       *bookmark.Service
	RequireBookmark bool

	ContainerID string
	// Sites are passed to the highlighter; nil selects the built-in families.
	Sites []highlight.SiteFamily

	Debounce      time.Duration
	SweepInterval time.Duration
	// DisableWatcher highlights once and never again.
	DisableWatcher bool

	Logger *logging.Logger
}

// Session is a highlighted page.
type Session struct {
	doc         *dom.Document
	highlighter *highlight.Highlighter
	tooltip     *tooltip.Coordinator
	watcher     *watcher.Watcher
	handlers    highlight.Handlers
	log         *logging.Logger

	mu       sync.Mutex
	last     highlight.PassResult
	stopped  bool
	stopOnce sync.Once
}

// Start highlights doc and keeps it highlighted until Stop.
func Start(doc *dom.Document, opts Options) (*Session, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is required")
	}
	log := opts.Logger
	if log == nil {
		log = contentLog
	}
	if opts.ContainerID == "" {
		opts.ContainerID = highlight.DefaultContainerID
	}

	terms := opts.Terms
	if terms == nil {
		loaded, err := glossary.Load(opts.Glossary)
		if err != nil {
			return nil, fmt.Errorf("failed to load glossary: %w", err)
		}
		terms = loaded
	}

	if opts.RequireBookmark {
		if opts.Bookmarks == nil {
			return nil, fmt.Errorf("bookmark gate is enabled without a bookmark service")
		}
		ok, err := opts.Bookmarks.IsBookmarked(doc.URL())
		if err != nil {
			return nil, fmt.Errorf("failed to check bookmark: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrSiteNotBookmarked, bookmark.RootDomain(doc.URL()))
		}
	}

	h, err := highlight.New(terms, highlight.Options{
		ContainerID: opts.ContainerID,
		Sites:       opts.Sites,
		Logger:      opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create highlighter: %w", err)
	}

	s := &Session{
		doc:         doc,
		highlighter: h,
		tooltip:     tooltip.New(doc, terms, opts.ContainerID, opts.Logger),
		log:         log,
	}
	s.handlers = s.tooltip.Handlers()

	var containerErr error
	doc.Do(func() {
		if containerErr = ensureContainer(doc, opts.ContainerID); containerErr != nil {
			return
		}
		s.run()
	})
	if containerErr != nil {
		return nil, containerErr
	}

	if terms.Len() == 0 {
		log.Warnf("Glossary is empty, nothing to highlight on %q", doc.Hostname())
	}

	if !opts.DisableWatcher {
		s.watcher = s.startWatcher(opts)
	}

	last := s.LastPass()
	log.Infof("Highlighted %d terms on %q (%d text nodes)", last.Spans, doc.Hostname(), last.TextNodes)
	return s, nil
}

func (s *Session) startWatcher(opts Options) *watcher.Watcher {
	w, err := watcher.New(s.doc, s.run, func() bool { return s.highlighter.Pending(s.doc) }, watcher.Options{
		Debounce:      opts.Debounce,
		SweepInterval: opts.SweepInterval,
		ContainerID:   opts.ContainerID,
		Logger:        opts.Logger,
	})
	if err == nil {
		err = w.Start()
	}
	if err != nil {
		s.log.Warnf("Mutation watcher unavailable, page highlighted once: %v", err)
		return nil
	}
	return w
}

// ensureContainer creates the tooltip container at the end of body unless
// the page already has one.
func ensureContainer(doc *dom.Document, id string) error {
	if doc.GetElementByID(id) != nil {
		return nil
	}
	body := doc.Body()
	if body == nil {
		return fmt.Errorf("document has no body")
	}
	doc.AppendChild(body, dom.NewElement("div", html.Attribute{Key: "id", Val: id}))
	return nil
}

// run performs one pass. Called inside a document turn.
func (s *Session) run() {
	res := s.highlighter.Run(s.doc, s.handlers)
	if res.Skipped {
		return
	}
	s.mu.Lock()
	s.last = res
	s.mu.Unlock()
}

// Document returns the highlighted document.
func (s *Session) Document() *dom.Document {
	return s.doc
}

// Highlighter returns the session's highlighter.
func (s *Session) Highlighter() *highlight.Highlighter {
	return s.highlighter
}

// Tooltip returns the tooltip coordinator.
func (s *Session) Tooltip() *tooltip.Coordinator {
	return s.tooltip
}

// Watching reports whether the mutation watcher is running.
func (s *Session) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil && !s.stopped
}

// LastPass returns the result of the most recent pass.
func (s *Session) LastPass() highlight.PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Rescan runs a pass now and returns its result. It is a no-op after Stop.
// It must not be called from inside a document turn.
func (s *Session) Rescan() highlight.PassResult {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return s.LastPass()
	}

	if s.watcher != nil {
		s.watcher.RunNow()
	} else {
		s.doc.Do(s.run)
	}
	return s.LastPass()
}

// Stop ends the session. Highlights already on the page stay.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		if s.watcher != nil {
			s.watcher.Stop()
		}
		s.log.Debugf("Session on %q stopped", s.doc.Hostname())
	})
}
