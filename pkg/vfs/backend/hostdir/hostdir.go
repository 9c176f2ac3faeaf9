// Package hostdir provides a write-through backend adapter over a directory
// on the local filesystem.
//
// Unlike the deferred backends, every namespace mutation is applied to the
// host directory as it happens; sync only reconciles content written through
// open descriptors and picks up external changes made by other processes.
package hostdir

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Adapter implements backend.Adapter over a host directory rooted at a
// fixed path. All relative paths are resolved below that root.
type Adapter struct {
	root    string
	watcher *watcher
}

var (
	_ backend.Adapter        = (*Adapter)(nil)
	_ backend.WriteThrougher = (*Adapter)(nil)
	_ backend.ChangeDetector = (*Adapter)(nil)
)

// Option configures an Adapter.
type Option func(*options)

type options struct {
	watch bool
}

// WithWatcher enables filesystem notifications on the host directory, so
// external modifications mark the mount for repopulation on the next sync.
func WithWatcher() Option {
	return func(o *options) {
		o.watch = true
	}
}

// New creates an adapter rooted at hostPath. The path must already exist
// and be a directory.
func New(hostPath string, opts ...Option) (*Adapter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(hostPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fserrors.NewHostPathMissing(hostPath)
		}
		return nil, fserrors.NewIO(hostPath, err)
	}
	if !info.IsDir() {
		return nil, fserrors.NewHostPathNotDirectory(hostPath)
	}

	a := &Adapter{root: hostPath}

	if o.watch {
		w, err := newWatcher(hostPath)
		if err != nil {
			return nil, err
		}
		a.watcher = w
	}

	return a, nil
}

// Root returns the host directory this adapter is rooted at.
func (a *Adapter) Root() string {
	return a.root
}

// WriteThrough reports that namespace changes must be mirrored immediately.
func (a *Adapter) WriteThrough() bool {
	return true
}

// Stale reports whether the host directory changed since the last sync.
// Without a watcher the adapter is conservative and always reports stale,
// so every populate re-reads the host tree.
func (a *Adapter) Stale() bool {
	if a.watcher == nil {
		return true
	}
	return a.watcher.stale()
}

// ClearStale resets the external-change flag after a populate.
func (a *Adapter) ClearStale() {
	if a.watcher != nil {
		a.watcher.clearStale()
	}
}

// hostPath resolves rel below the adapter root.
func (a *Adapter) hostPath(rel string) string {
	if rel == "" {
		return a.root
	}
	return filepath.Join(a.root, filepath.FromSlash(rel))
}

// ReadDir lists the direct children of the directory at rel.
func (a *Adapter) ReadDir(ctx context.Context, rel string) ([]backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(a.hostPath(rel))
	if err != nil {
		return nil, mapOSError(rel, err)
	}

	entries := make([]backend.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			// Entry vanished between ReadDir and Info.
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, mapOSError(rel, err)
		}

		kind := backend.KindFile
		if de.IsDir() {
			kind = backend.KindDirectory
		} else if !info.Mode().IsRegular() {
			// Sockets, devices and symlinks are not representable.
			continue
		}

		entries = append(entries, backend.Entry{
			Name:    de.Name(),
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	return entries, nil
}

// ReadFile returns the content of the file at rel.
func (a *Adapter) ReadFile(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(a.hostPath(rel))
	if err != nil {
		return nil, mapOSError(rel, err)
	}
	return data, nil
}

// WriteFile stores the content of the file at rel.
func (a *Adapter) WriteFile(ctx context.Context, rel string, data []byte, modTime time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p := a.hostPath(rel)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return mapOSError(rel, err)
	}
	if !modTime.IsZero() {
		_ = os.Chtimes(p, modTime, modTime)
	}
	return nil
}

// Mkdir creates a directory at rel.
func (a *Adapter) Mkdir(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Mkdir(a.hostPath(rel), 0o755); err != nil {
		return mapOSError(rel, err)
	}
	return nil
}

// Remove deletes the file or empty directory at rel.
func (a *Adapter) Remove(ctx context.Context, rel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(a.hostPath(rel)); err != nil {
		return mapOSError(rel, err)
	}
	return nil
}

// Rename moves the entry at oldRel to newRel.
func (a *Adapter) Rename(ctx context.Context, oldRel, newRel string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Rename(a.hostPath(oldRel), a.hostPath(newRel)); err != nil {
		return mapOSError(oldRel, err)
	}
	return nil
}

// Stat returns metadata for the entry at rel.
func (a *Adapter) Stat(ctx context.Context, rel string) (backend.Entry, error) {
	if err := ctx.Err(); err != nil {
		return backend.Entry{}, err
	}

	info, err := os.Stat(a.hostPath(rel))
	if err != nil {
		return backend.Entry{}, mapOSError(rel, err)
	}

	kind := backend.KindFile
	if info.IsDir() {
		kind = backend.KindDirectory
	}

	return backend.Entry{
		Name:    info.Name(),
		Kind:    kind,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Flush is a no-op: the host filesystem is the system of record and every
// mutation already went through the OS.
func (a *Adapter) Flush(ctx context.Context) error {
	return ctx.Err()
}

// Close stops the watcher if one is running.
func (a *Adapter) Close() error {
	if a.watcher != nil {
		return a.watcher.close()
	}
	return nil
}

// mapOSError converts os package errors into filesystem error codes.
func mapOSError(rel string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fserrors.NewNotFound(rel)
	case errors.Is(err, fs.ErrExist):
		return fserrors.NewAlreadyExists(rel)
	case errors.Is(err, fs.ErrPermission):
		return fserrors.NewPermissionDenied(rel)
	default:
		return fserrors.NewIO(rel, err)
	}
}
