package vfs

import (
	"context"
	"sort"

	"github.com/R3gardless/pyodide/internal/logger"
	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Mount is one active backend attachment: an absolute mount path, the
// backend adapter serving it, and the in-memory root node of its subtree.
type Mount struct {
	fs      *FS
	path    string
	adapter backend.Adapter
	root    NodeID

	// writeThrough caches the adapter's capability answer.
	writeThrough bool

	// busy is true while a sync or mount/unmount operation for this path
	// is in flight. Guarded by fs.mu.
	busy bool

	// needsPopulate is set when the in-memory subtree may lag the backend:
	// at mount time for deferred-sync backends and after Invalidate.
	needsPopulate bool

	// dirtyNodes tracks nodes with unflushed content or existence.
	dirtyNodes map[NodeID]*node

	// journal records removals and renames since the last flush, replayed
	// against the backend in order.
	journal []journalOp
}

type journalKind int

const (
	opRemove journalKind = iota
	opRename
)

type journalOp struct {
	kind   journalKind
	rel    string
	newRel string
}

// Path returns the absolute mount path.
func (m *Mount) Path() string {
	return m.path
}

// Adapter returns the backend adapter serving this mount.
func (m *Mount) Adapter() backend.Adapter {
	return m.adapter
}

// Invalidate marks the mount's in-memory subtree as possibly stale so the
// next populate re-enumerates the backend. Needed when the backend is
// mutated behind an adapter that cannot detect external changes.
func (m *Mount) Invalidate() {
	m.fs.mu.Lock()
	defer m.fs.mu.Unlock()
	m.needsPopulate = true
}

// ============================================================================
// Mount Table
// ============================================================================

// Mount attaches adapter at path. Missing ancestors are created; an existing
// directory at path must be empty. Error paths leave the tree unchanged.
//
// Concurrent mounts on the same path are linearized here: the path is
// reserved in the mount table before the adapter is consulted, so exactly
// one caller succeeds and every other caller observes AlreadyMounted with no
// partial mount state.
//
// Write-through backends (host directories, handle stores, object stores)
// are enumerated immediately so their existing entries are visible without
// an explicit sync; deferred backends stay empty until Syncfs(populate).
func (fs *FS) Mount(ctx context.Context, path string, adapter backend.Adapter) (*Mount, error) {
	path = normPath(path)
	fs.countOp("mount")

	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil, &fserrors.FSError{Code: fserrors.ErrIO, Message: "filesystem is closed"}
	}
	if _, exists := fs.mounts[path]; exists {
		fs.mu.Unlock()
		return nil, fserrors.NewAlreadyMounted(path)
	}

	// Validate the mount point without mutating anything.
	var mountNode *node
	var createdTop *node
	existing, err := fs.resolve(path)
	switch {
	case err == nil:
		if !existing.isDir() {
			fs.mu.Unlock()
			return nil, fserrors.NewNotDirectory(path)
		}
		if existing.mount != nil {
			fs.mu.Unlock()
			return nil, fserrors.NewAlreadyMounted(path)
		}
		if len(existing.children) > 0 {
			fs.mu.Unlock()
			return nil, fserrors.NewNotEmpty(path)
		}
		mountNode = existing
	case fserrors.IsCode(err, fserrors.ErrNotFound):
		mountNode, createdTop, err = fs.mkdirTreeTracking(ctx, path)
		if err != nil {
			fs.mu.Unlock()
			return nil, err
		}
	default:
		fs.mu.Unlock()
		return nil, err
	}

	m := &Mount{
		fs:           fs,
		path:         path,
		adapter:      adapter,
		root:         mountNode.id,
		writeThrough: backend.IsWriteThrough(adapter),
		dirtyNodes:   make(map[NodeID]*node),
	}
	mountNode.mount = m
	fs.mounts[path] = m
	m.busy = true
	m.needsPopulate = true
	fs.mu.Unlock()

	if m.writeThrough {
		// Initial population: existing backend entries become visible at
		// mount time, the way the host runtime exposes a native directory.
		err = m.populate(ctx)
	}

	fs.mu.Lock()
	m.busy = false
	if err != nil {
		// Roll back so a failed mount leaves the tree byte-for-byte as it
		// was: drop any directories created for the mount path, or empty
		// the pre-existing directory again.
		delete(fs.mounts, path)
		mountNode.mount = nil
		if createdTop != nil {
			if parent := fs.getNode(createdTop.parent); parent != nil {
				fs.unlink(parent, createdTop.name)
			}
			fs.dropSubtree(createdTop)
		} else {
			for name := range mountNode.children {
				child := fs.getNode(mountNode.children[name])
				fs.unlink(mountNode, name)
				fs.dropSubtree(child)
			}
		}
		fs.mu.Unlock()
		return nil, err
	}
	fs.mu.Unlock()

	logger.Info("Mounted backend", logger.KeyPath, path)
	return m, nil
}

// mkdirTreeTracking creates the directory chain for path and reports the
// topmost newly created node so a failed mount can undo exactly what it did.
func (fs *FS) mkdirTreeTracking(ctx context.Context, path string) (*node, *node, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, nil, err
	}
	n := fs.getNode(fs.root)
	var createdTop *node
	for i, part := range parts {
		if !n.isDir() {
			return nil, nil, fserrors.NewNotDirectory(normPath("/" + joinParts(parts[:i])))
		}
		if childID, ok := n.children[part]; ok {
			n = fs.getNode(childID)
			continue
		}
		child, err := fs.createDir(ctx, n, part)
		if err != nil {
			return nil, nil, err
		}
		if createdTop == nil {
			createdTop = child
		}
		n = child
	}
	return n, createdTop, nil
}

// Unmount detaches the mount at path, leaving an empty directory behind, as
// if freshly created. Backend data is untouched; callers that want
// persistence sync before unmounting. Open descriptors into the detached
// subtree stay readable until closed.
func (fs *FS) Unmount(path string) error {
	path = normPath(path)
	fs.countOp("unmount")

	fs.mu.Lock()
	defer fs.mu.Unlock()

	m, ok := fs.mounts[path]
	if !ok {
		return fserrors.NewNotMounted(path)
	}
	if m.busy {
		return &fserrors.FSError{
			Code:    fserrors.ErrIO,
			Message: "mount is busy: sync in progress",
			Path:    path,
		}
	}

	root := fs.getNode(m.root)
	for name := range root.children {
		child := fs.getNode(root.children[name])
		fs.unlink(root, name)
		fs.dropSubtree(child)
	}
	root.mount = nil
	delete(fs.mounts, path)

	err := m.adapter.Close()
	logger.Info("Unmounted backend", logger.KeyPath, path)
	if err != nil {
		return fserrors.NewIO(path, err)
	}
	return nil
}

// MountFor returns the mount whose path is the longest prefix of path.
func (fs *FS) MountFor(path string) (*Mount, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	m := fs.lookupMount(path)
	return m, m != nil
}

// MountPaths returns the sorted paths of all active mounts.
func (fs *FS) MountPaths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	paths := make([]string, 0, len(fs.mounts))
	for p := range fs.mounts {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
