package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 500 * time.Millisecond

// reloader is the part of the secrets vault the watcher drives.
type reloader interface {
	Reload() ([]string, error)
}

// watchSecrets reloads secrets on SIGHUP and whenever the config file
// changes, and requests a sync when a value actually changed. A missing
// config directory leaves SIGHUP as the only trigger.
func watchSecrets(ctx context.Context, cfgPath string, vault reloader, syncs *syncTrigger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("config watcher unavailable", "error", err)
	} else {
		defer func() { _ = watcher.Close() }()
		// Watch the directory: editors and config management replace the
		// file instead of writing it in place.
		if err := watcher.Add(filepath.Dir(cfgPath)); err != nil {
			slog.Warn("config watcher unavailable", "path", cfgPath, "error", err)
		} else {
			events, errs = watcher.Events, watcher.Errors
		}
	}

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			reloadSecrets(vault, syncs, "sighup")
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if isConfigChange(ev, cfgPath) {
				debounce = time.After(reloadDebounce)
			}
		case <-debounce:
			debounce = nil
			reloadSecrets(vault, syncs, "config file changed")
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func isConfigChange(ev fsnotify.Event, cfgPath string) bool {
	if filepath.Clean(ev.Name) != filepath.Clean(cfgPath) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func reloadSecrets(vault reloader, syncs *syncTrigger, reason string) {
	changed, err := vault.Reload()
	if err != nil {
		slog.Error("secret reload failed, keeping previous values", "reason", reason, "error", err)
		return
	}
	if len(changed) == 0 {
		slog.Debug("secret reload: nothing changed", "reason", reason)
		return
	}
	slog.Info("secrets reloaded", "reason", reason, "changed", changed)
	syncs.fire("secret rotated")
}
