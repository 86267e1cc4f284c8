package main

import (
	"context"
	"fmt"

	"github.com/entrhq/gloss/pkg/bookmark"
	"github.com/entrhq/gloss/pkg/config"
	"github.com/entrhq/gloss/pkg/logging"
)

// openBookmarks opens the configured store. The returned func closes it.
func openBookmarks(cfg *config.Config, logger *logging.Logger) (*bookmark.Service, func(), error) {
	store, err := bookmark.OpenStore(cfg.Bookmarks.Backend, cfg.Bookmarks.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open bookmark store: %w", err)
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			logger.Warnf("Failed to close bookmark store: %v", err)
		}
	}
	return bookmark.NewService(store, logger), closeStore, nil
}

func runBookmark(_ context.Context, args []string) error {
	fs, configPath := newFlagSet("bookmark", "[options] list | add <url> | remove <url> | toggle <url> | icon <url>")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}
	action := fs.Arg(0)
	if action != "list" && fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}

	cfg, logger, err := loadConfig(*configPath, "cli")
	if err != nil {
		return err
	}
	defer logger.Close()

	svc, closeStore, err := openBookmarks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	target := normalizeURL(fs.Arg(1))
	switch action {
	case "list":
		sites, err := svc.List()
		if err != nil {
			return err
		}
		for _, site := range sites {
			fmt.Println(site)
		}
		return nil
	case "add":
		if err := svc.Add(target); err != nil {
			return err
		}
		fmt.Printf("Bookmarked %s\n", bookmark.RootDomain(target))
		return nil
	case "remove":
		if err := svc.Remove(target); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", bookmark.RootDomain(target))
		return nil
	case "toggle":
		on, err := svc.Toggle(target)
		if err != nil {
			return err
		}
		if on {
			fmt.Printf("Bookmarked %s\n", bookmark.RootDomain(target))
		} else {
			fmt.Printf("Removed %s\n", bookmark.RootDomain(target))
		}
		return nil
	case "icon":
		icon, err := svc.IconPath(target)
		if err != nil {
			return err
		}
		fmt.Println(icon)
		return nil
	default:
		fmt.Printf("Unknown bookmark action %q\n\n", action)
		fs.Usage()
		return errUsage
	}
}
