package slides

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the registry when the slides directory changes. New slide
// exports land as whole directories, so any create/write/remove under the
// root triggers a debounced full reload.
type Watcher struct {
	registry *Registry
	onReload func()
	watcher  *fsnotify.Watcher
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	running  bool
	debounce time.Duration
}

// NewWatcher creates a watcher over the registry's directory. onReload, if
// non-nil, runs after each successful reload (used to re-sync the store).
func NewWatcher(registry *Registry, onReload func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Watcher{
		registry: registry,
		onReload: onReload,
		watcher:  fsw,
		ctx:      ctx,
		cancel:   cancel,
		debounce: 500 * time.Millisecond,
	}, nil
}

// Start begins watching for slide directory changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.watcher.Add(w.registry.dir); err != nil {
		log.Warn().Err(err).Str("path", w.registry.dir).Msg("Failed to watch slides directory")
		// Continue anyway; the initial load still stands.
	}

	go w.watchLoop()
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	w.cancel()
	return w.watcher.Close()
}

// watchLoop is the main event loop. Events are debounced because a slide
// export writes many files in a burst.
func (w *Watcher) watchLoop() {
	var debounceTimer *time.Timer

	for {
		select {
		case <-w.ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Slides directory changed")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Slides watcher error")
		}
	}
}

func (w *Watcher) reload() {
	if err := w.registry.LoadAll(); err != nil {
		log.Warn().Err(err).Msg("Slide registry reload failed")
		return
	}
	if w.onReload != nil {
		w.onReload()
	}
}
