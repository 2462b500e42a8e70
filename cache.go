// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqltype

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/canonical/sqltype/internal/schema"
)

// Request identifies the database a query preparation call is made on.
type Request struct {
	// Filename is the source file containing the call.
	Filename string
	// Name is the logical database name, usually the expression the
	// prepare method is called on.
	Name string
}

// Database is what a DatabaseResolver returns: either an open handle, or
// the path or file: URL of a database file to open read-only.
type Database struct {
	Handle *schema.Handle
	Path   string
}

// DatabaseResolver maps a request to its database.
type DatabaseResolver func(ctx context.Context, req Request) (Database, error)

// DatabaseCache caches schema handles for the lifetime of a run. Handles
// are indexed by request and, for databases given by path, by the file
// path so that requests resolving to the same file share a handle. Nothing
// is evicted.
//
// The mutex must be locked when accessing either byRequest or byPath.
type DatabaseCache struct {
	resolve   DatabaseResolver
	log       *zap.SugaredLogger
	byRequest map[Request]*schema.Handle
	byPath    map[string]*schema.Handle
	mutex     sync.RWMutex
}

// NewDatabaseCache returns a cache resolving databases with resolve.
func NewDatabaseCache(resolve DatabaseResolver, log *zap.SugaredLogger) *DatabaseCache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &DatabaseCache{
		resolve:   resolve,
		log:       log,
		byRequest: map[Request]*schema.Handle{},
		byPath:    map[string]*schema.Handle{},
	}
}

// Handle returns the schema handle for the named database of a source
// file.
func (dc *DatabaseCache) Handle(ctx context.Context, filename, name string) (*schema.Handle, error) {
	req := Request{Filename: filename, Name: name}
	dc.mutex.RLock()
	h, ok := dc.byRequest[req]
	dc.mutex.RUnlock()
	if ok {
		return h, nil
	}

	db, err := dc.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if db.Handle != nil {
		return dc.store(req, "", db.Handle), nil
	}

	path, err := databasePath(db.Path)
	if err != nil {
		return nil, err
	}
	dc.mutex.RLock()
	h, ok = dc.byPath[path]
	dc.mutex.RUnlock()
	if ok {
		return dc.store(req, path, h), nil
	}

	h, err = schema.Open(path, schema.WithLogger(dc.log.With("database", name)))
	if err != nil {
		return nil, err
	}
	return dc.store(req, path, h), nil
}

// store records h for req and path. If a handle has been stored for path
// by someone else since we last checked, h is closed and that one is used.
func (dc *DatabaseCache) store(req Request, path string, h *schema.Handle) *schema.Handle {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	if path != "" {
		if other, ok := dc.byPath[path]; ok && other != h {
			h.Close()
			h = other
		}
		dc.byPath[path] = h
	}
	if other, ok := dc.byRequest[req]; ok {
		return other
	}
	dc.byRequest[req] = h
	return h
}

// Close closes the handles the cache opened. Handles returned by the
// resolver are left to their owner.
func (dc *DatabaseCache) Close() error {
	dc.mutex.Lock()
	defer dc.mutex.Unlock()
	var errs []error
	for path, h := range dc.byPath {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("cannot close %s: %w", path, err))
		}
	}
	dc.byPath = map[string]*schema.Handle{}
	dc.byRequest = map[Request]*schema.Handle{}
	return errors.Join(errs...)
}

// databasePath converts a path or file: URL to a clean file path.
func databasePath(p string) (string, error) {
	if p == "" {
		return "", errors.New("empty database path")
	}
	if strings.HasPrefix(p, "file:") {
		u, err := url.Parse(p)
		if err != nil {
			return "", fmt.Errorf("invalid database URL %q: %w", p, err)
		}
		if u.Host != "" && u.Host != "localhost" {
			return "", fmt.Errorf("database URL %q must not name a host", p)
		}
		if u.Opaque != "" {
			p = u.Opaque
		} else {
			p = u.Path
		}
	}
	return filepath.Clean(p), nil
}
