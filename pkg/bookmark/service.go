// Package bookmark tracks the sites a user has opted in to highlighting.
//
// Bookmarks are root domains (the last two hostname labels) kept as one
// list under StorageKey in a Store. The Service reads and toggles that list,
// notifies listeners of changes and picks the toolbar icon for a page.
package bookmark

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/entrhq/gloss/pkg/logging"
)

const (
	// IconBookmarked is shown for pages on a bookmarked site.
	IconBookmarked = "glossy_green_128.png"
	// IconDefault is shown everywhere else.
	IconDefault = "glossy_blue_128.png"
)

// Store backends accepted by OpenStore.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// ErrNoSite is returned when a page address has no root domain to bookmark.
var ErrNoSite = errors.New("no site to bookmark")

var bookmarkLog *logging.Logger

func init() {
	var err error
	bookmarkLog, err = logging.NewLogger("bookmark")
	if err != nil {
		bookmarkLog.Warnf("Failed to initialize bookmark logger, using stderr fallback: %v", err)
	}
}

// IconSetter updates the indicator icon of a tab.
type IconSetter interface {
	SetIcon(tabID int, path string) error
}

// OpenStore opens a Store for the given backend. An empty backend selects
// the file store; path may be empty for the file store's default location.
func OpenStore(backend, path string) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		if path == "" {
			return nil, fmt.Errorf("sqlite bookmark store requires a path")
		}
		return OpenSQLite(path)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown bookmark backend %q", backend)
	}
}

// Service manages the bookmark list.
type Service struct {
	store Store
	log   *logging.Logger

	mu        sync.Mutex
	listeners []func([]string)
}

// NewService creates a Service over store. A nil log selects the package
// logger.
func NewService(store Store, log *logging.Logger) *Service {
	if log == nil {
		log = bookmarkLog
	}
	return &Service{store: store, log: log}
}

// List returns the bookmarked root domains in the order they were added.
func (s *Service) List() ([]string, error) {
	list, err := s.store.Get(StorageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookmarks: %w", err)
	}
	return list, nil
}

// IsBookmarked reports whether the site of rawURL is bookmarked.
func (s *Service) IsBookmarked(rawURL string) (bool, error) {
	root := RootDomain(rawURL)
	if root == "" {
		return false, nil
	}
	list, err := s.List()
	if err != nil {
		return false, err
	}
	return slices.Contains(list, root), nil
}

// Toggle adds the site of rawURL to the bookmarks, or removes it when it is
// already there. It returns the new state.
func (s *Service) Toggle(rawURL string) (bool, error) {
	return s.update(rawURL, func(present bool) bool { return !present })
}

// Add bookmarks the site of rawURL. Adding a bookmarked site is a no-op.
func (s *Service) Add(rawURL string) error {
	_, err := s.update(rawURL, func(bool) bool { return true })
	return err
}

// Remove drops the site of rawURL. Removing an unknown site is a no-op.
func (s *Service) Remove(rawURL string) error {
	_, err := s.update(rawURL, func(bool) bool { return false })
	return err
}

func (s *Service) update(rawURL string, want func(present bool) bool) (bool, error) {
	root := RootDomain(rawURL)
	if root == "" {
		return false, ErrNoSite
	}

	s.mu.Lock()
	list, err := s.store.Get(StorageKey)
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("failed to read bookmarks: %w", err)
	}

	present := slices.Contains(list, root)
	target := want(present)
	if target == present {
		s.mu.Unlock()
		return present, nil
	}

	var updated []string
	if target {
		updated = append(slices.Clone(list), root)
	} else {
		updated = slices.DeleteFunc(slices.Clone(list), func(b string) bool { return b == root })
	}
	if err := s.store.Set(StorageKey, updated); err != nil {
		s.mu.Unlock()
		return present, fmt.Errorf("failed to save bookmarks: %w", err)
	}
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	if target {
		s.log.Infof("Bookmarked %s", root)
	} else {
		s.log.Infof("Removed bookmark %s", root)
	}
	for _, fn := range listeners {
		fn(slices.Clone(updated))
	}
	return target, nil
}

// OnChange registers fn to receive the bookmark list after every change.
func (s *Service) OnChange(fn func(bookmarks []string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// IconPath returns the icon for a page on rawURL.
func (s *Service) IconPath(rawURL string) (string, error) {
	bookmarked, err := s.IsBookmarked(rawURL)
	if err != nil {
		return "", err
	}
	if bookmarked {
		return IconBookmarked, nil
	}
	return IconDefault, nil
}

// UpdateIcon sets the icon of tabID to reflect the bookmark state of rawURL.
func (s *Service) UpdateIcon(setter IconSetter, tabID int, rawURL string) error {
	path, err := s.IconPath(rawURL)
	if err != nil {
		return err
	}
	if err := setter.SetIcon(tabID, path); err != nil {
		return fmt.Errorf("failed to set icon for tab %d: %w", tabID, err)
	}
	return nil
}
