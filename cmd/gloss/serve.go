package main

import (
	"context"
	"fmt"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/glossary"
	"github.com/entrhq/gloss/pkg/server"
)

func runServe(ctx context.Context, args []string) error {
	fs, configPath := newFlagSet("serve", "[options]")
	addr := fs.String("addr", "", "Listen address (overrides server.addr)")
	live := fs.Bool("render", false, "Allow highlighting live pages with a headless browser")
	noBookmarks := fs.Bool("no-bookmarks", false, "Disable the bookmark routes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	cfg, logger, err := loadConfig(*configPath, "cli")
	if err != nil {
		return err
	}
	defer logger.Close()
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *noBookmarks && cfg.Bookmarks.Require {
		return fmt.Errorf("-no-bookmarks conflicts with bookmarks.require")
	}

	terms, err := glossary.Load(cfg.Glossary)
	if err != nil {
		return fmt.Errorf("failed to load glossary: %w", err)
	}

	opts := server.Options{
		Terms:           terms,
		RequireBookmark: cfg.Bookmarks.Require,
		Sites:           cfg.SiteFamilies(),
		ContainerID:     cfg.Highlight.ContainerID,
		Logger:          logger,
	}

	if !*noBookmarks {
		var svc *bookmark.Service
		var closeStore func()
		svc, closeStore, err = openBookmarks(cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		opts.Bookmarks = svc
	}

	if *live {
		r, err := newRenderer(cfg, logger)
		if err != nil {
			return err
		}
		defer r.Close()
		opts.Fetcher = r
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	fmt.Printf("gloss v%s serving %d terms on %s\n", version, terms.Len(), cfg.Server.Addr)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
