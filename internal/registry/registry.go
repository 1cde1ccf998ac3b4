// Package registry persists the set of daemons this client knows
// about in a single JSON file, guarded by an flock(2) exclusive lock
// so concurrent mvndc invocations never interleave writes.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mvnd-go/mvndc/internal/daemoninfo"
)

// Registry is a JSON-file-backed store of daemoninfo.Info records,
// keyed by daemon ID.
type Registry struct {
	path     string
	lockPath string
}

// New returns a Registry backed by the given data file and lock file.
func New(path, lockPath string) *Registry {
	return &Registry{path: path, lockPath: lockPath}
}

type document struct {
	Daemons map[string]daemoninfo.Info `json:"daemons"`
}

// List returns every daemon currently recorded, ordered by ID for
// deterministic output.
func (r *Registry) List() ([]daemoninfo.Info, error) {
	var result []daemoninfo.Info
	err := r.withLock(func(doc *document) (bool, error) {
		result = make([]daemoninfo.Info, 0, len(doc.Daemons))
		for _, info := range doc.Daemons {
			result = append(result, info)
		}
		sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
		return false, nil
	})
	return result, err
}

// Register adds or overwrites a daemon's record.
func (r *Registry) Register(info daemoninfo.Info) error {
	if info.ID == "" {
		return errors.New("registry: cannot register daemon with empty ID")
	}
	return r.withLock(func(doc *document) (bool, error) {
		doc.Daemons[info.ID] = info
		return true, nil
	})
}

// Remove evicts a daemon record by ID. Removing an ID that is not
// present is not an error — the Connector calls this defensively after
// a StaleAddress failure without first checking existence.
func (r *Registry) Remove(id string) error {
	return r.withLock(func(doc *document) (bool, error) {
		if _, ok := doc.Daemons[id]; !ok {
			return false, nil
		}
		delete(doc.Daemons, id)
		return true, nil
	})
}

// withLock opens the lock file, flocks it exclusively (blocking — the
// registry is a low-contention file touched briefly per invocation, so
// this does not need a non-blocking fast path), loads the document,
// runs fn, and persists
// the document back to disk iff fn reports a mutation.
func (r *Registry) withLock(fn func(doc *document) (mutated bool, err error)) error {
	if err := os.MkdirAll(filepath.Dir(r.lockPath), 0o700); err != nil {
		return fmt.Errorf("registry: create lock dir: %w", err)
	}

	lockFile, err := os.OpenFile(r.lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("registry: open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := lockExclusive(lockFile); err != nil {
		return fmt.Errorf("registry: acquire lock: %w", err)
	}
	defer unlockFile(lockFile) //nolint:errcheck

	doc, err := r.load()
	if err != nil {
		return err
	}

	mutated, err := fn(doc)
	if err != nil {
		return err
	}
	if !mutated {
		return nil
	}

	return r.save(doc)
}

func (r *Registry) load() (*document, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{Daemons: map[string]daemoninfo.Info{}}, nil
		}
		return nil, fmt.Errorf("registry: read %s: %w", r.path, err)
	}
	if len(data) == 0 {
		return &document{Daemons: map[string]daemoninfo.Info{}}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("registry: parse %s: %w", r.path, err)
	}
	if doc.Daemons == nil {
		doc.Daemons = map[string]daemoninfo.Info{}
	}
	return &doc, nil
}

func (r *Registry) save(doc *document) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("registry: create data dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("registry: write temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("registry: rename temp file: %w", err)
	}
	return nil
}
