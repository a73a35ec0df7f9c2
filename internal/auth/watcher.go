package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/ringlink/ringlink/internal/logging"
	"github.com/ringlink/ringlink/internal/models"
)

// TokenImporter watches for a token drop-in file and imports it into the
// credential store. This is the bootstrap path: the user obtains an initial
// token out of band and drops the JSON next to the config instead of
// completing the browser flow.
type TokenImporter struct {
	path    string
	manager *Manager
	logger  *logging.Logger
}

// NewTokenImporter creates an importer for the given file path. An empty
// path disables the importer.
func NewTokenImporter(path string, manager *Manager) *TokenImporter {
	return &TokenImporter{
		path:    path,
		manager: manager,
		logger:  logging.NewLogger(),
	}
}

// ImportOnce reads the drop-in file if present, saves the token, and
// removes the file so credentials do not linger on disk.
func (ti *TokenImporter) ImportOnce() (bool, error) {
	if ti.path == "" {
		return false, nil
	}

	data, err := os.ReadFile(ti.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	var token models.OAuthToken
	if err := json.Unmarshal(data, &token); err != nil {
		ti.logger.Error("token file is not valid JSON", "path", ti.path, "error", err.Error())
		return false, err
	}
	token.SetCreatedAt(ti.manager.now())

	if err := ti.manager.creds.Save(&token); err != nil {
		ti.logger.Error("token file rejected", "path", ti.path, "error", err.Error())
		return false, err
	}

	ti.manager.ClearAuthNotice()
	if err := os.Remove(ti.path); err != nil {
		ti.logger.Error("failed to remove token file", "path", ti.path, "error", err.Error())
	}
	ti.logger.Info("imported token file", "path", ti.path)
	return true, nil
}

// Watch imports any existing file, then watches the parent directory for
// the file to appear. The watcher stops when the context is cancelled.
func (ti *TokenImporter) Watch(ctx context.Context) error {
	if ti.path == "" {
		return nil
	}

	if _, err := ti.ImportOnce(); err != nil {
		ti.logger.Error("initial token import failed", "error", err.Error())
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := filepath.Dir(ti.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != ti.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					_, _ = ti.ImportOnce()
				}
			case <-watcher.Errors:
				// Watcher errors are non-fatal; ImportOnce can be retried
				// at the next event.
			}
		}
	}()

	return nil
}
