package componentdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Loader opens component databases by path and caches them by content
// hash, so repeated loads of an unchanged file return the same *Database.
// Concurrent loads of the same file are collapsed into one parse.
type Loader struct {
	cache   map[string]*Database // SHA256 of file content -> database
	cacheMu sync.RWMutex
	sf      singleflight.Group
}

// NewLoader creates a Loader with an empty cache.
func NewLoader() *Loader {
	return &Loader{cache: make(map[string]*Database)}
}

// Load opens the database at path. An empty path returns Default().
// Files ending in .db, .sqlite or .sqlite3 are read as SQLite; .yaml and
// .yml as YAML. Any other extension is an error.
func (l *Loader) Load(ctx context.Context, path string) (*Database, error) {
	if path == "" {
		return Default()
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	l.cacheMu.RLock()
	db, ok := l.cache[key]
	l.cacheMu.RUnlock()
	if ok {
		return db, nil
	}

	v, err, _ := l.sf.Do(key, func() (any, error) {
		var (
			loaded *Database
			err    error
		)
		switch strings.ToLower(filepath.Ext(cleanPath)) {
		case ".db", ".sqlite", ".sqlite3":
			loaded, err = OpenSQLite(ctx, cleanPath)
		case ".yaml", ".yml":
			loaded, err = ParseYAML(data)
		default:
			return nil, fmt.Errorf("unsupported component database format %q", filepath.Ext(cleanPath))
		}
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cleanPath, err)
		}

		l.cacheMu.Lock()
		l.cache[key] = loaded
		l.cacheMu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Database), nil
}

// ClearCache drops every cached database.
func (l *Loader) ClearCache() {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()

	l.cache = make(map[string]*Database)
}
