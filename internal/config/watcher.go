// Package config reloads the relay configuration at runtime. Reloads are
// triggered by changes to the config file on disk and by SIGHUP, the
// standard Unix signal for configuration reload.
package config

import (
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// ReloadFunc is called when a config reload is triggered.
// Errors are logged but never stop the watcher; the relay keeps running
// on the previous configuration.
type ReloadFunc func(configPath string) error

// debounceWindow collapses editor write bursts (truncate, write, chmod)
// into a single reload.
const debounceWindow = 200 * time.Millisecond

// Watcher triggers configuration reloads from two sources: filesystem
// changes to the config file and SIGHUP.
//
// The filesystem watch covers the directory containing the file, not the
// file itself. Editors like vim save atomically (write a temp file, then
// rename over the original), which replaces the inode and breaks a
// file-level watch. A directory watch catches both direct writes and
// atomic renames.
type Watcher struct {
	path     string
	reloadFn ReloadFunc

	fsw    *fsnotify.Watcher
	sighup chan os.Signal

	quit      chan struct{}
	closeOnce sync.Once
}

// NewWatcher starts watching the given config file and installs the SIGHUP
// handler. The caller should defer Close.
//
// Usage:
//
//	watcher, err := config.NewWatcher("/etc/spanrelay/config.yaml", server.ReloadConfig)
//	if err != nil {
//	    log.Warnf("Config watcher setup failed: %v", err)
//	} else {
//	    defer watcher.Close()
//	}
//	// Now: editing the file or kill -HUP <pid> triggers a reload
func NewWatcher(configPath string, reloadFn ReloadFunc) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(configPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w := &Watcher{
		path:     configPath,
		reloadFn: reloadFn,
		fsw:      fsw,
		sighup:   make(chan os.Signal, 1),
		quit:     make(chan struct{}),
	}

	signal.Notify(w.sighup, syscall.SIGHUP)
	go w.loop()

	log.Infof("Watching config file: %s", configPath)
	return w, nil
}

func (w *Watcher) loop() {
	debounce := time.NewTimer(debounceWindow)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	configName := filepath.Base(w.path)

	for {
		select {
		case <-w.quit:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configName {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				debounce.Reset(debounceWindow)
			}
		case <-debounce.C:
			w.fire("file change")
		case <-w.sighup:
			w.fire("SIGHUP")
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Errorf("Config watcher error: %v", err)
		}
	}
}

func (w *Watcher) fire(trigger string) {
	log.Infof("Reloading configuration (%s)", trigger)
	if err := w.reloadFn(w.path); err != nil {
		log.Errorf("Configuration reload failed: %v", err)
	}
}

// Close stops the filesystem watch and the SIGHUP handler.
// Safe to call more than once.
func (w *Watcher) Close() {
	w.closeOnce.Do(func() {
		signal.Stop(w.sighup)
		close(w.quit)
		_ = w.fsw.Close()
	})
}
