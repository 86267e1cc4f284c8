package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/entrhq/gloss/pkg/preview"
)

func runPreview(_ context.Context, args []string) error {
	fs, configPath := newFlagSet("preview", "[options] [text]")
	in := fs.String("in", "", "Text or HTML file to preview, - for stdin")
	pageURL := fs.String("url", "", "Page URL for HTML input, used for site scoping")
	width := fs.Int("width", 0, "Wrap lines at this width (0 disables wrapping)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath, "cli")
	if err != nil {
		return err
	}
	defer logger.Close()

	h, closeStore, err := newHighlighter(cfg, logger, false)
	if err != nil {
		return err
	}
	defer closeStore()

	r := preview.New(h.terms, *width)

	if text := strings.Join(fs.Args(), " "); text != "" {
		fmt.Println(r.Text(text))
		return nil
	}

	if isHTML(*in) {
		doc, err := readDocument(*in, normalizeURL(*pageURL))
		if err != nil {
			return err
		}
		if err := h.highlight(doc); err != nil {
			return err
		}
		fmt.Println(r.Document(doc, cfg.Highlight.ContainerID))
		return nil
	}

	var src io.Reader = os.Stdin
	if *in != "" && *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", *in, err)
		}
		defer f.Close()
		src = f
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	fmt.Println(r.Text(string(data)))
	return nil
}

func isHTML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm", ".xhtml":
		return true
	}
	return false
}
