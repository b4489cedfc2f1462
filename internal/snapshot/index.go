package snapshot

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ListDates returns the sorted distinct dates with at least one valid
// snapshot file in dir.
func ListDates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	set := make(map[string]struct{})
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ref, ok := ParseName(e.Name()); ok {
			set[ref.Date] = struct{}{}
		}
	}

	dates := make([]string, 0, len(set))
	for d := range set {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates, nil
}

// Index keeps the list of available snapshot dates. Queries never read it;
// it only backs the date listing.
type Index struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	dates []string
}

// NewIndex creates an empty index over dir. Call Refresh before use.
func NewIndex(dir string, log *slog.Logger) *Index {
	if log == nil {
		log = slog.Default()
	}
	return &Index{dir: dir, log: log}
}

// Refresh rescans the directory.
func (x *Index) Refresh() error {
	dates, err := ListDates(x.dir)
	if err != nil {
		return err
	}
	if dates == nil {
		dates = []string{}
	}
	x.mu.Lock()
	x.dates = dates
	x.mu.Unlock()
	return nil
}

// Dates returns a copy of the indexed dates, ascending.
func (x *Index) Dates() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, len(x.dates))
	copy(out, x.dates)
	return out
}

// Latest returns the most recent indexed date, or "".
func (x *Index) Latest() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.dates) == 0 {
		return ""
	}
	return x.dates[len(x.dates)-1]
}

// Watch refreshes the index whenever a snapshot file appears, disappears, or
// is renamed in the directory. It blocks until ctx is done. The directory
// must exist.
func (x *Index) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(x.dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if _, _, ok := splitName(filepath.Base(ev.Name)); !ok {
				continue
			}
			if err := x.Refresh(); err != nil {
				x.log.Warn("refreshing snapshot index", "error", err)
				continue
			}
			x.log.Debug("snapshot index refreshed", "event", ev.Op.String(), "file", ev.Name)

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			x.log.Warn("snapshot watcher error", "error", err)
		}
	}
}
