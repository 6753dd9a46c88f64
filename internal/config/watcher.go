package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"sqltalk/internal/logging"
)

// Watcher reloads the config file when it changes on disk and notifies a
// callback with the fresh config. Threshold calibration is the intended
// use: tuning followup_threshold without restarting the host.
type Watcher struct {
	path     string
	onChange func(*Config)

	fw   *fsnotify.Watcher
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

// Watch starts watching path. onChange is called from the watcher
// goroutine with each successfully reloaded config; reload errors are
// logged and skipped.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch dies with the old inode.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	w := &Watcher{
		path:     path,
		onChange: onChange,
		fw:       fw,
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Stop ends the watch.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
	w.fw.Close()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				logging.Get(logging.CategoryBoot).Warn("Config reload failed: %v", err)
				continue
			}
			if err := cfg.Validate(); err != nil {
				logging.Get(logging.CategoryBoot).Warn("Reloaded config invalid, keeping previous: %v", err)
				continue
			}
			logging.Get(logging.CategoryBoot).Info("Config reloaded from %s", w.path)
			w.onChange(cfg)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryBoot).Warn("Config watcher error: %v", err)
		}
	}
}
