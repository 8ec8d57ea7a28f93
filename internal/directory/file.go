package directory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
	"loan-assistant/pkg/customerfile"

	"github.com/fsnotify/fsnotify"
)

// FileDirectory serves customers from a JSON file held in memory.
type FileDirectory struct {
	path   string
	logger logger.Logger

	mu        sync.RWMutex
	customers map[string]models.Customer
}

// NewFileDirectory loads path once. Call Watch to pick up later edits.
func NewFileDirectory(path string, log logger.Logger) (*FileDirectory, error) {
	d := &FileDirectory{path: path, logger: logger.ForComponent(log, "directory.file")}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *FileDirectory) Lookup(_ context.Context, phone string) (*models.Customer, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	c, ok := d.customers[phone]
	if !ok {
		return nil, models.ErrCustomerNotFound
	}
	return &c, nil
}

// Reload re-reads the file. On error the previous records stay in place.
func (d *FileDirectory) Reload() error {
	list, err := customerfile.Load(d.path)
	if err != nil {
		return fmt.Errorf("load customers from %s: %w", d.path, err)
	}

	byPhone := make(map[string]models.Customer, len(list))
	for _, c := range list {
		byPhone[c.Phone] = c
	}

	d.mu.Lock()
	d.customers = byPhone
	d.mu.Unlock()

	d.logger.Info("customer file loaded", map[string]interface{}{
		"path":      d.path,
		"customers": len(byPhone),
	})
	return nil
}

// Len reports the number of loaded customers.
func (d *FileDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.customers)
}

// Watch reloads the file whenever it is written or replaced, until ctx ends.
// The parent directory is watched so editors that rename over the file are seen.
func (d *FileDirectory) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(d.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", d.path, err)
	}

	go d.watchLoop(ctx, watcher)
	return nil
}

func (d *FileDirectory) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	target := filepath.Clean(d.path)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(200*time.Millisecond, func() {
				if err := d.Reload(); err != nil {
					d.logger.Error("customer file reload failed", map[string]interface{}{
						"path":  d.path,
						"error": err.Error(),
					})
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			d.logger.Error("customer file watcher error", map[string]interface{}{"error": err.Error()})
		}
	}
}
