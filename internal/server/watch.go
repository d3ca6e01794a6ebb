package server

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/leapstack-labs/leapdq/pkg/rules"
)

// watchPacks swaps rule packs into the registry whenever a pack file in
// the rules directory changes. Reload failures are logged and the
// previously loaded rules stay active, so a half-saved file cannot take
// the running rule set down.
func (s *Server) watchPacks(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(s.rulesDir); err != nil {
		s.logger.Error("failed to watch rules directory", "dir", s.rulesDir, "error", err)
		// Don't fail - serve without watching
		return nil
	}

	s.logger.Info("watching rule packs", "dir", s.rulesDir)

	// Debounce timer
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			return nil

		case event := <-watcher.Events:
			ext := strings.ToLower(filepath.Ext(event.Name))
			if ext != ".yaml" && ext != ".yml" {
				continue
			}

			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				s.registry.RemoveOrigin(event.Name)
				s.logger.Info("rule pack removed", "pack", event.Name)
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			// Debounce
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("pack file changed, reloading", "file", event.Name)
				s.reloadPacks()
			})

		case err := <-watcher.Errors:
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// reloadPacks re-applies every pack in the rules directory.
func (s *Server) reloadPacks() {
	count, err := rules.ApplyDir(s.registry, s.rulesDir)
	if err != nil {
		s.logger.Error("rule pack reload failed", "dir", s.rulesDir, "error", err)
		return
	}
	s.logger.Info("rule packs reloaded", "dir", s.rulesDir, "rules", count)
}
