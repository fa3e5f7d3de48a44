// monitor.go
package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileMonitor watches the data directory and fires a handler when the
// dataset file is rewritten. It is the invalidation point for the base
// dataset: the handler is expected to reload it.
type FileMonitor struct {
	watchDir string
	fileName string // only react to this file; empty matches everything
	watcher  *fsnotify.Watcher
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileMonitor(dir, fileName string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		fileName: fileName,
		watcher:  watcher,
	}, nil
}

// Watch blocks, invoking handler for each fresh write of the watched file.
// It returns when the watcher is closed.
func (m *FileMonitor) Watch(handler func(string)) error {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if m.fileName != "" && filepath.Base(event.Name) != m.fileName {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}

			m.mu.Lock()
			if info.ModTime().After(m.lastMod) {
				m.lastMod = info.ModTime()
				go handler(event.Name)
			}
			m.mu.Unlock()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
