package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Watch rebuilds the index whenever a matching file under dir is created,
// written or renamed. Bursts of events are coalesced by the debounce delay.
// onBuild, when set, receives the outcome of every rebuild. Watch blocks
// until ctx is done.
func (ix *Indexer) Watch(ctx context.Context, dir string, onBuild func(Stats, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := addTree(w, dir); err != nil {
		return err
	}
	ix.log.Info("watching corpus", "dir", dir, "glob", ix.cfg.Glob)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				if isDir(event.Name) {
					if err := addTree(w, event.Name); err != nil {
						ix.log.Warn("watch new directory", "path", event.Name, "err", err)
					}
					continue
				}
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !ix.matches(dir, event.Name) {
				continue
			}
			ix.log.Debug("corpus changed", "path", event.Name, "op", event.Op.String())
			timer.Reset(ix.cfg.Debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.log.Warn("watcher error", "err", err)
		case <-timer.C:
			stats, err := ix.BuildIndex(ctx, dir)
			if err != nil {
				ix.log.Error("rebuild failed", "err", err)
			}
			if onBuild != nil {
				onBuild(stats, err)
			}
		}
	}
}

func (ix *Indexer) matches(dir, name string) bool {
	rel, err := filepath.Rel(dir, name)
	if err != nil {
		return false
	}
	ok, err := doublestar.Match(ix.cfg.Glob, filepath.ToSlash(rel))
	return err == nil && ok
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
