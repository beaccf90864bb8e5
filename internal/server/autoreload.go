package server

import (
	"io"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/r9s-ai/jsonlog/pkg/config"
)

// installAutoReload watches the directory holding cfgPath and reloads the
// access log format after writes settle for DebounceMs. The directory is
// watched instead of the file so editors that replace the file by rename
// keep triggering.
func installAutoReload(cfgPath string, ar config.AutoReloadConfig, rt *runtime, mu *sync.Mutex) (io.Closer, error) {
	if rt == nil || mu == nil || !ar.Enabled {
		return nil, nil
	}
	path := strings.TrimSpace(cfgPath)
	if path == "" {
		return nil, nil
	}
	path = filepath.Clean(path)
	debounce := time.Duration(ar.DebounceMs) * time.Millisecond

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		var (
			timer  *time.Timer
			timerC <-chan time.Time
		)
		resetTimer := func() {
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
				return
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)
			timerC = timer.C
		}
		runReload := func() {
			mu.Lock()
			res, err := rt.Reload()
			mu.Unlock()
			if err != nil {
				log.Printf("reload failed (auto): %v", err)
				return
			}
			log.Printf("reload ok (auto): config=%q mode=%s fields=%s", path, res.Mode, fieldNamesForLog(res.Keys))
		}

		for {
			select {
			case <-stopCh:
				if timer != nil {
					timer.Stop()
				}
				return
			case <-timerC:
				timerC = nil
				runReload()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("auto-reload watcher error: %v", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if shouldTriggerReload(evt, path) {
					resetTimer()
				}
			}
		}
	}()

	log.Printf("auto-reload enabled: config=%q debounce_ms=%d", path, ar.DebounceMs)
	return closerFunc(func() error {
		close(stopCh)
		_ = watcher.Close()
		<-doneCh
		return nil
	}), nil
}

func shouldTriggerReload(evt fsnotify.Event, cfgPath string) bool {
	if strings.TrimSpace(evt.Name) == "" {
		return false
	}
	if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(evt.Name) == filepath.Clean(cfgPath)
}
