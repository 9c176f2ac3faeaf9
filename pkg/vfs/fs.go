// Package vfs implements the virtual filesystem core: a single POSIX-like
// tree multiplexing heterogeneous storage backends behind mount points.
//
// One process-scoped *FS owns the in-memory node tree (the cache of record),
// the mount table, and the descriptor table. All tree mutations serialize on
// the FS mutex; backend adapter calls are the only operations that may block
// on host I/O, and the sync engine performs them outside the tree lock.
package vfs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Metrics receives operation and sync observations from the core. A nil
// Metrics disables instrumentation with zero overhead.
type Metrics interface {
	// IncOp counts one filesystem operation by name.
	IncOp(op string)

	// ObserveSync records one sync pass for a mount.
	ObserveSync(direction string, duration time.Duration, err error)
}

// FS is the process-scoped filesystem context. Create one with New, pass it
// explicitly to everything that needs filesystem access, and Close it on
// process teardown.
type FS struct {
	mu sync.Mutex

	nodes  map[NodeID]*node
	nextID NodeID
	root   NodeID

	// mounts maps exact absolute mount path to its active mount.
	mounts map[string]*Mount

	// fds maps open descriptor ids to shared open-file state.
	fds map[int]*openFile

	onCloseFile func(path string)
	metrics     Metrics
	closed      bool
}

// Option configures an FS at construction time.
type Option func(*FS)

// WithMetrics attaches a metrics sink to the filesystem.
func WithMetrics(m Metrics) Option {
	return func(fs *FS) { fs.metrics = m }
}

// New creates an empty filesystem containing only the root directory.
func New(opts ...Option) *FS {
	fs := &FS{
		nodes:  make(map[NodeID]*node),
		mounts: make(map[string]*Mount),
		fds:    make(map[int]*openFile),
	}
	root := fs.newNode("", backend.KindDirectory)
	fs.root = root.id
	for _, opt := range opts {
		opt(fs)
	}
	return fs
}

// Close unmounts every active mount and tears the filesystem down. Backend
// data is left as-is; callers sync first if persistence is desired.
func (fs *FS) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil
	}
	fs.closed = true

	var firstErr error
	for path, m := range fs.mounts {
		if err := m.adapter.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(fs.mounts, path)
	}
	fs.fds = make(map[int]*openFile)
	fs.nodes = make(map[NodeID]*node)
	return firstErr
}

func (fs *FS) countOp(op string) {
	if fs.metrics != nil {
		fs.metrics.IncOp(op)
	}
}

// ============================================================================
// Directory Operations
// ============================================================================

// Mkdir creates a single directory. The parent must already exist.
func (fs *FS) Mkdir(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("mkdir")

	dir, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	if _, exists := dir.children[name]; exists {
		return fserrors.NewAlreadyExists(path)
	}
	_, err = fs.createDir(ctx, dir, name)
	return err
}

// MkdirTree creates a directory and any missing ancestors, like the guest
// runtime's mkdirTree. Existing directories along the way are fine; an
// existing file component fails with NotADirectory.
func (fs *FS) MkdirTree(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("mkdir_tree")

	_, err := fs.mkdirTree(ctx, path)
	return err
}

// mkdirTree is the lock-held worker shared with the mount table.
func (fs *FS) mkdirTree(ctx context.Context, path string) (*node, error) {
	n, _, err := fs.mkdirTreeTracking(ctx, path)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, fserrors.NewNotDirectory(path)
	}
	return n, nil
}

// createDir makes a directory node under dir, mirroring to a write-through
// backend first so a backend failure leaves the tree untouched.
func (fs *FS) createDir(ctx context.Context, dir *node, name string) (*node, error) {
	m, rel := fs.mountOf(dir)
	childRel := joinRel(rel, name)

	if m != nil && m.writeThrough {
		if err := m.adapter.Mkdir(ctx, childRel); err != nil &&
			!fserrors.IsCode(err, fserrors.ErrAlreadyExists) {
			return nil, err
		}
	}

	n := fs.newNode(name, backend.KindDirectory)
	fs.link(dir, n)
	if m != nil {
		if m.writeThrough {
			n.synced = true
		} else {
			fs.markDirty(m, n)
		}
	}
	return n, nil
}

// ReadDir returns the sorted entries of the directory at path.
func (fs *FS) ReadDir(ctx context.Context, path string) ([]backend.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("readdir")

	dir, err := fs.resolveDir(path)
	if err != nil {
		return nil, err
	}
	entries := make([]backend.Entry, 0, len(dir.children))
	for _, name := range fs.childNames(dir) {
		child := fs.getNode(dir.children[name])
		entries = append(entries, entryOf(child))
	}
	return entries, nil
}

// Rmdir removes an empty directory. Mount points cannot be removed; they
// must be unmounted instead.
func (fs *FS) Rmdir(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("rmdir")

	dir, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	childID, ok := dir.children[name]
	if !ok {
		return fserrors.NewNotFound(path)
	}
	child := fs.getNode(childID)
	if !child.isDir() {
		return fserrors.NewNotDirectory(path)
	}
	if child.mount != nil {
		return &fserrors.FSError{
			Code:    fserrors.ErrPermissionDenied,
			Message: "cannot remove an active mount point",
			Path:    path,
		}
	}
	if len(child.children) > 0 {
		return fserrors.NewNotEmpty(path)
	}
	return fs.removeNode(ctx, dir, child)
}

// ============================================================================
// File Operations
// ============================================================================

// ReadFile returns the full content of the file at path.
func (fs *FS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("read_file")

	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, fserrors.NewIsDirectory(path)
	}
	out := make([]byte, len(n.data))
	copy(out, n.data)
	return out, nil
}

// WriteFile creates or replaces the file at path with data. On write-through
// mounts the content reaches the backend before the call returns.
func (fs *FS) WriteFile(ctx context.Context, path string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("write_file")

	n, err := fs.createOrGetFile(ctx, path)
	if err != nil {
		return err
	}
	n.data = append(n.data[:0], data...)
	n.mtime = time.Now()
	return fs.commitContent(ctx, n)
}

// createOrGetFile resolves path to a file node, creating it when missing.
func (fs *FS) createOrGetFile(ctx context.Context, path string) (*node, error) {
	dir, name, err := fs.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if childID, ok := dir.children[name]; ok {
		child := fs.getNode(childID)
		if child.isDir() {
			return nil, fserrors.NewIsDirectory(path)
		}
		return child, nil
	}
	n := fs.newNode(name, backend.KindFile)
	fs.link(dir, n)
	// Write-through mounts get an empty file now so a create with no write
	// still reaches the backend; deferred mounts leave the existence
	// unsynced until the next flush. A failed mirror undoes the create.
	if err := fs.commitContent(ctx, n); err != nil {
		fs.unlink(dir, n.name)
		fs.dropSubtree(n)
		return nil, err
	}
	return n, nil
}

// commitContent records a content change: deferred mounts accumulate dirty
// state for the next sync, write-through mounts push the bytes now.
func (fs *FS) commitContent(ctx context.Context, n *node) error {
	m, rel := fs.mountOf(n)
	if m == nil {
		return nil
	}
	if !m.writeThrough {
		fs.markDirty(m, n)
		return nil
	}
	if err := m.adapter.WriteFile(ctx, rel, n.data, n.mtime); err != nil {
		return err
	}
	n.dirty = false
	n.synced = true
	delete(m.dirtyNodes, n.id)
	return nil
}

// Unlink removes a file.
func (fs *FS) Unlink(ctx context.Context, path string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("unlink")

	dir, name, err := fs.resolveParent(path)
	if err != nil {
		return err
	}
	childID, ok := dir.children[name]
	if !ok {
		return fserrors.NewNotFound(path)
	}
	child := fs.getNode(childID)
	if child.isDir() {
		return fserrors.NewIsDirectory(path)
	}
	return fs.removeNode(ctx, dir, child)
}

// removeNode deletes child (a file or validated-empty directory) from dir,
// mirroring or journaling the removal for the owning mount.
func (fs *FS) removeNode(ctx context.Context, dir, child *node) error {
	m, rel := fs.mountOf(child)
	if m != nil {
		if m.writeThrough {
			if err := m.adapter.Remove(ctx, rel); err != nil &&
				!fserrors.IsCode(err, fserrors.ErrNotFound) {
				return err
			}
		} else if child.synced {
			m.journal = append(m.journal, journalOp{kind: opRemove, rel: rel})
		}
		delete(m.dirtyNodes, child.id)
	}
	fs.unlink(dir, child.name)
	fs.dropSubtree(child)
	return nil
}

// Rename moves oldPath to newPath. A file at newPath is replaced; a
// directory at newPath must be empty. Renames never cross a mount boundary.
func (fs *FS) Rename(ctx context.Context, oldPath, newPath string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("rename")

	srcDir, srcName, err := fs.resolveParent(oldPath)
	if err != nil {
		return err
	}
	srcID, ok := srcDir.children[srcName]
	if !ok {
		return fserrors.NewNotFound(oldPath)
	}
	src := fs.getNode(srcID)
	if src.mount != nil {
		return &fserrors.FSError{
			Code:    fserrors.ErrPermissionDenied,
			Message: "cannot rename an active mount point",
			Path:    oldPath,
		}
	}

	dstDir, dstName, err := fs.resolveParent(newPath)
	if err != nil {
		return err
	}

	srcMount, srcRel := fs.mountOf(src)
	dstMount, dstDirRel := fs.mountOf(dstDir)
	if srcMount != dstMount {
		return &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "rename across mount boundaries is not supported",
			Path:    oldPath,
		}
	}
	dstRel := joinRel(dstDirRel, dstName)

	// Validate the destination before touching anything.
	var dst *node
	if dstID, exists := dstDir.children[dstName]; exists {
		dst = fs.getNode(dstID)
		if dst.id == src.id {
			return nil
		}
		if dst.isDir() {
			if !src.isDir() {
				return fserrors.NewIsDirectory(newPath)
			}
			if len(dst.children) > 0 {
				return fserrors.NewNotEmpty(newPath)
			}
		} else if src.isDir() {
			return fserrors.NewNotDirectory(newPath)
		}
	}

	if srcMount != nil {
		if err := fs.recordRename(ctx, srcMount, src, dst, srcRel, dstRel); err != nil {
			return err
		}
	}

	if dst != nil {
		fs.unlink(dstDir, dstName)
		if srcMount != nil {
			delete(srcMount.dirtyNodes, dst.id)
		}
		fs.dropSubtree(dst)
	}
	fs.unlink(srcDir, srcName)
	src.name = dstName
	fs.link(dstDir, src)
	src.mtime = time.Now()
	return nil
}

// recordRename mirrors or journals a rename for the owning mount.
//
// Backend rename replaces plain-file destinations but not directories, so a
// surviving synced directory destination is removed first. For deferred
// mounts an unsynced source needs no journal entry at all: the dirty node is
// simply flushed at its new location on the next sync.
func (fs *FS) recordRename(ctx context.Context, m *Mount, src, dst *node, srcRel, dstRel string) error {
	dirDst := dst != nil && dst.isDir()

	if m.writeThrough {
		if dirDst {
			if err := m.adapter.Remove(ctx, dstRel); err != nil &&
				!fserrors.IsCode(err, fserrors.ErrNotFound) {
				return err
			}
		}
		if src.synced {
			if err := m.adapter.Rename(ctx, srcRel, dstRel); err != nil {
				return err
			}
		}
		return nil
	}

	if dst != nil && dst.synced && (dirDst || !src.synced) {
		m.journal = append(m.journal, journalOp{kind: opRemove, rel: dstRel})
	}
	if src.synced {
		m.journal = append(m.journal, journalOp{kind: opRename, rel: srcRel, newRel: dstRel})
	}
	return nil
}

// Stat describes the entry at path.
func (fs *FS) Stat(ctx context.Context, path string) (backend.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("stat")

	n, err := fs.resolve(path)
	if err != nil {
		return backend.Entry{}, err
	}
	return entryOf(n), nil
}

// Truncate resizes the file at path. Growth zero-fills.
func (fs *FS) Truncate(ctx context.Context, path string, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("truncate")

	n, err := fs.resolve(path)
	if err != nil {
		return err
	}
	if n.isDir() {
		return fserrors.NewIsDirectory(path)
	}
	if err := truncateNode(n, size); err != nil {
		return err
	}
	return fs.commitContent(ctx, n)
}

// truncateNode applies the resize on the node itself. Shared with the
// descriptor table, where the change must be immediately visible through
// every other open view of the same node.
func truncateNode(n *node, size int64) error {
	if size < 0 {
		return &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "negative truncate size",
		}
	}
	switch {
	case size < int64(len(n.data)):
		n.data = n.data[:size]
	case size > int64(len(n.data)):
		n.data = append(n.data, make([]byte, size-int64(len(n.data)))...)
	}
	n.mtime = time.Now()
	return nil
}

// markDirty flags n for the next flush of mount m.
func (fs *FS) markDirty(m *Mount, n *node) {
	n.dirty = true
	m.dirtyNodes[n.id] = n
}

func joinRel(dirRel, name string) string {
	if dirRel == "" {
		return name
	}
	return dirRel + "/" + name
}

func joinParts(parts []string) string {
	return strings.Join(parts, "/")
}
