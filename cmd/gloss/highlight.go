package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/config"
	"github.com/entrhq/gloss/pkg/content"
	"github.com/entrhq/gloss/pkg/dom"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/logging"
	"github.com/entrhq/gloss/pkg/render"
)

// highlighter holds what every highlighted page shares.
type highlighter struct {
	cfg       *config.Config
	terms     *glossary.Terms
	bookmarks *bookmark.Service
	require   bool
	log       *logging.Logger
}

func runHighlight(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("highlight", "[options]")
	in := fs.String("in", "", "HTML file to highlight, - for stdin")
	pageURL := fs.String("url", "", "Page URL, used for site scoping and the bookmark gate")
	live := fs.Bool("render", false, "Fetch -url with a headless browser instead of reading a file")
	dir := fs.String("dir", ".", "Base directory for -glob")
	pattern := fs.String("glob", "", "Highlight every file under -dir matching this pattern (e.g. '**/*.html')")
	out := fs.String("out", "", "Output file, or output directory with -glob (default: stdout)")
	requireBookmark := fs.Bool("require-bookmark", false, "Only highlight bookmarked sites")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath, "cli")
	if err != nil {
		return err
	}
	defer logger.Close()

	h, closeStore, err := newHighlighter(cfg, logger, *requireBookmark)
	if err != nil {
		return err
	}
	defer closeStore()

	target := normalizeURL(*pageURL)
	switch {
	case *pattern != "":
		if *out == "" {
			return fmt.Errorf("-glob requires -out to name an output directory")
		}
		return h.batch(*dir, *pattern, *out, target)
	case *live:
		if target == "" {
			return fmt.Errorf("-render requires -url")
		}
		doc, err := fetch(ctx, cfg, logger, target)
		if err != nil {
			return err
		}
		return h.writePage(doc, *out)
	default:
		doc, err := readDocument(*in, target)
		if err != nil {
			return err
		}
		return h.writePage(doc, *out)
	}
}

// newHighlighter loads the glossary and, when the gate is on, the bookmark
// store. The returned func closes the store.
func newHighlighter(cfg *config.Config, logger *logging.Logger, requireFlag bool) (*highlighter, func(), error) {
	terms, err := glossary.Load(cfg.Glossary)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load glossary: %w", err)
	}

	h := &highlighter{
		cfg:     cfg,
		terms:   terms,
		require: requireFlag || cfg.Bookmarks.Require,
		log:     logger,
	}
	if !h.require {
		return h, func() {}, nil
	}

	svc, closeStore, err := openBookmarks(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	h.bookmarks = svc
	return h, closeStore, nil
}

// highlight runs one pass over doc. A site that is not bookmarked is left
// unchanged.
func (h *highlighter) highlight(doc *dom.Document) error {
	session, err := content.Start(doc, content.Options{
		Terms:           h.terms,
		Bookmarks:       h.bookmarks,
		RequireBookmark: h.require,
		ContainerID:     h.cfg.Highlight.ContainerID,
		Sites:           h.cfg.SiteFamilies(),
		DisableWatcher:  true,
		Logger:          h.log,
	})
	if errors.Is(err, content.ErrSiteNotBookmarked) {
		h.log.Infof("Skipping page: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	defer session.Stop()

	res := session.LastPass()
	h.log.Infof("Highlighted %d terms in %d text nodes on %q", res.Spans, res.TextNodes, doc.URL())
	return nil
}

func (h *highlighter) writePage(doc *dom.Document, out string) error {
	if err := h.highlight(doc); err != nil {
		return err
	}
	if out == "" {
		return doc.Render(os.Stdout)
	}
	return writeDocument(doc, out)
}

// batch highlights every file under dir matching pattern into outDir,
// keeping relative paths.
func (h *highlighter) batch(dir, pattern, outDir, pageURL string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("invalid glob pattern %q", pattern)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return fmt.Errorf("failed to expand %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		h.log.Warnf("No files under %s match %q", dir, pattern)
		return nil
	}

	for _, rel := range matches {
		doc, err := readDocument(filepath.Join(dir, filepath.FromSlash(rel)), pageURL)
		if err != nil {
			return err
		}
		if err := h.highlight(doc); err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		if err := writeDocument(doc, filepath.Join(outDir, filepath.FromSlash(rel))); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Highlighted %d files into %s\n", len(matches), outDir)
	return nil
}

// readDocument parses an HTML file; an empty path or "-" reads stdin.
func readDocument(path, pageURL string) (*dom.Document, error) {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		r = f
	}
	doc, err := dom.Parse(r, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(doc *dom.Document, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := doc.Render(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}

// newRenderer starts a headless browser configured from cfg.
func newRenderer(cfg *config.Config, logger *logging.Logger) (*render.Renderer, error) {
	r, err := render.New(render.Options{
		Headless:  cfg.Render.Headless,
		Timeout:   cfg.Render.Timeout,
		WaitUntil: cfg.Render.WaitUntil,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid render options: %w", err)
	}
	if err := r.Start(); err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return r, nil
}

func fetch(ctx context.Context, cfg *config.Config, logger *logging.Logger, pageURL string) (*dom.Document, error) {
	r, err := newRenderer(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.Render(ctx, pageURL)
}
