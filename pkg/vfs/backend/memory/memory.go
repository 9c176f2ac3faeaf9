// Package memory provides an in-memory backend adapter for testing and for
// scratch mounts that need deferred-sync semantics without persistence.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// entry is one stored file or directory, keyed by mount-relative path.
type entry struct {
	kind    backend.Kind
	data    []byte
	modTime time.Time
}

// Adapter is an in-memory implementation of backend.Adapter. Like the
// persistent key/value adapter it defers everything to explicit sync: the
// core never mirrors operations into it outside a flush.
type Adapter struct {
	mu      sync.RWMutex
	entries map[string]*entry
	closed  bool

	// failWrite, when set, makes the next mutating call fail. Used by
	// sync-engine tests to exercise first-error-abort behavior.
	failWrite error
}

// New creates an empty in-memory adapter.
func New() *Adapter {
	return &Adapter{entries: make(map[string]*entry)}
}

// FailNextWrite arms a one-shot error returned by the next mutating call.
func (a *Adapter) FailNextWrite(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failWrite = err
}

func (a *Adapter) takeFailure() error {
	err := a.failWrite
	a.failWrite = nil
	return err
}

// ReadDir enumerates the direct children of the directory at rel.
func (a *Adapter) ReadDir(ctx context.Context, rel string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, closedErr(rel)
	}
	if rel != "" {
		e, ok := a.entries[rel]
		if !ok {
			return nil, fserrors.NewNotFound(rel)
		}
		if e.kind != backend.KindDirectory {
			return nil, fserrors.NewNotDirectory(rel)
		}
	}

	prefix := ""
	if rel != "" {
		prefix = rel + "/"
	}
	var out []backend.Entry
	for path, e := range a.entries {
		if !strings.HasPrefix(path, prefix) {
			continue
		}
		name := path[len(prefix):]
		if strings.ContainsRune(name, '/') {
			continue
		}
		out = append(out, backend.Entry{
			Name:    name,
			Kind:    e.kind,
			Size:    int64(len(e.data)),
			ModTime: e.modTime,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ReadFile returns a copy of the file content at rel.
func (a *Adapter) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, closedErr(rel)
	}
	e, ok := a.entries[rel]
	if !ok {
		return nil, fserrors.NewNotFound(rel)
	}
	if e.kind == backend.KindDirectory {
		return nil, fserrors.NewIsDirectory(rel)
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

// WriteFile creates or replaces the file at rel.
func (a *Adapter) WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return closedErr(rel)
	}
	if err := a.takeFailure(); err != nil {
		return err
	}
	if e, ok := a.entries[rel]; ok && e.kind == backend.KindDirectory {
		return fserrors.NewIsDirectory(rel)
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	a.entries[rel] = &entry{kind: backend.KindFile, data: copied, modTime: modTime}
	return nil
}

// Mkdir creates the directory at rel.
func (a *Adapter) Mkdir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return closedErr(rel)
	}
	if err := a.takeFailure(); err != nil {
		return err
	}
	if _, ok := a.entries[rel]; ok {
		return fserrors.NewAlreadyExists(rel)
	}
	a.entries[rel] = &entry{kind: backend.KindDirectory, modTime: time.Now()}
	return nil
}

// Remove deletes the file or empty directory at rel.
func (a *Adapter) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return closedErr(rel)
	}
	if err := a.takeFailure(); err != nil {
		return err
	}
	e, ok := a.entries[rel]
	if !ok {
		return fserrors.NewNotFound(rel)
	}
	if e.kind == backend.KindDirectory {
		prefix := rel + "/"
		for path := range a.entries {
			if strings.HasPrefix(path, prefix) {
				return fserrors.NewNotEmpty(rel)
			}
		}
	}
	delete(a.entries, rel)
	return nil
}

// Rename moves oldRel to newRel, carrying any subtree along.
func (a *Adapter) Rename(ctx context.Context, oldRel, newRel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return closedErr(oldRel)
	}
	if err := a.takeFailure(); err != nil {
		return err
	}
	e, ok := a.entries[oldRel]
	if !ok {
		return fserrors.NewNotFound(oldRel)
	}
	if dst, ok := a.entries[newRel]; ok && dst.kind == backend.KindDirectory {
		return fserrors.NewIsDirectory(newRel)
	}
	delete(a.entries, oldRel)
	a.entries[newRel] = e

	if e.kind == backend.KindDirectory {
		oldPrefix := oldRel + "/"
		moved := make(map[string]*entry)
		for path, child := range a.entries {
			if strings.HasPrefix(path, oldPrefix) {
				moved[newRel+"/"+path[len(oldPrefix):]] = child
				delete(a.entries, path)
			}
		}
		for path, child := range moved {
			a.entries[path] = child
		}
	}
	return nil
}

// Stat describes the entry at rel.
func (a *Adapter) Stat(ctx context.Context, rel string) (backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return backend.Entry{}, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return backend.Entry{}, closedErr(rel)
	}
	if rel == "" {
		return backend.Entry{Kind: backend.KindDirectory}, nil
	}
	e, ok := a.entries[rel]
	if !ok {
		return backend.Entry{}, fserrors.NewNotFound(rel)
	}
	_, name := splitRel(rel)
	return backend.Entry{
		Name:    name,
		Kind:    e.kind,
		Size:    int64(len(e.data)),
		ModTime: e.modTime,
	}, nil
}

// Flush is a no-op: memory writes are immediately visible.
func (a *Adapter) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Close marks the adapter as closed. Stored entries are kept: the backing
// "store" outlives the mount, the way a persistent backend would.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Reopen clears the closed flag so a test can remount the same backing
// entries, simulating a persistent store surviving an unmount.
func (a *Adapter) Reopen() *Adapter {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = false
	return a
}

// EntryCount returns the number of stored entries (for tests).
func (a *Adapter) EntryCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

func closedErr(rel string) error {
	return &fserrors.FSError{
		Code:    fserrors.ErrIO,
		Message: "adapter is closed",
		Path:    rel,
	}
}

func splitRel(rel string) (dir, name string) {
	idx := strings.LastIndexByte(rel, '/')
	if idx < 0 {
		return "", rel
	}
	return rel[:idx], rel[idx+1:]
}

var _ backend.Adapter = (*Adapter)(nil)
