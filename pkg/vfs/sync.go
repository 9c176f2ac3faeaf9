package vfs

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/R3gardless/pyodide/internal/logger"
	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// Syncfs reconciles every mount with its backend. populate=false flushes
// in-memory state out; populate=true merges backend state in. Mounts are
// visited in path order; the first error aborts the remaining mounts.
func (fs *FS) Syncfs(ctx context.Context, populate bool) error {
	fs.mu.Lock()
	mounts := make([]*Mount, 0, len(fs.mounts))
	for _, m := range fs.mounts {
		mounts = append(mounts, m)
	}
	fs.mu.Unlock()
	sort.Slice(mounts, func(i, j int) bool { return mounts[i].path < mounts[j].path })

	for _, m := range mounts {
		if err := m.Syncfs(ctx, populate); err != nil {
			return err
		}
	}
	return nil
}

// Syncfs reconciles this mount with its backend.
//
// Flush (populate=false) replays removals and renames recorded since the
// last sync in the order they occurred, then writes every dirty node, then
// flushes the adapter's own buffers. Populate (populate=true) enumerates the
// backend and merges it into the subtree; backend-newer content wins, and
// nodes the backend has never seen are left untouched.
//
// Sync is idempotent: a second call with no intervening mutation performs no
// adapter calls. It reports the first error encountered and aborts the rest
// of that call; operations already applied stay applied (at-least-once per
// file operation, not atomic across the subtree) and a retry is safe.
//
// A second Syncfs while one is in flight on the same mount fails rather
// than interleaving adapter writes.
func (m *Mount) Syncfs(ctx context.Context, populate bool) error {
	fs := m.fs
	fs.mu.Lock()
	if fs.mounts[m.path] != m {
		fs.mu.Unlock()
		return fserrors.NewNotMounted(m.path)
	}
	if m.busy {
		fs.mu.Unlock()
		return &fserrors.FSError{
			Code:    fserrors.ErrIO,
			Message: "sync already in progress",
			Path:    m.path,
		}
	}
	m.busy = true
	fs.mu.Unlock()

	direction := "flush"
	if populate {
		direction = "populate"
	}
	start := time.Now()

	var err error
	if populate {
		err = m.populate(ctx)
	} else {
		err = m.flush(ctx)
	}

	fs.mu.Lock()
	m.busy = false
	fs.mu.Unlock()

	if fs.metrics != nil {
		fs.metrics.ObserveSync(direction, time.Since(start), err)
	}
	if err != nil {
		logger.Warn("Sync failed", logger.KeyPath, m.path, "direction", direction, "error", err)
	}
	return err
}

// ============================================================================
// Flush
// ============================================================================

// flushItem is one dirty node snapshotted under the tree lock so adapter
// calls can run without it.
type flushItem struct {
	node    *node
	rel     string
	isDir   bool
	data    []byte
	modTime time.Time
}

func (m *Mount) flush(ctx context.Context) error {
	fs := m.fs

	fs.mu.Lock()
	journal := make([]journalOp, len(m.journal))
	copy(journal, m.journal)

	items := make([]flushItem, 0, len(m.dirtyNodes))
	for id, n := range m.dirtyNodes {
		owner, rel := fs.mountOf(n)
		if owner != m {
			// detached or re-homed since it was marked; nothing to write
			delete(m.dirtyNodes, id)
			continue
		}
		item := flushItem{node: n, rel: rel, isDir: n.isDir(), modTime: n.mtime}
		if !item.isDir {
			item.data = append([]byte(nil), n.data...)
		}
		items = append(items, item)
	}
	dirtyCount := len(items)
	fs.mu.Unlock()

	// Write-through mounts rarely queue anything here, but their adapter
	// may still hold staged state that only Flush promotes.
	if len(journal) == 0 && dirtyCount == 0 {
		if !m.writeThrough {
			return nil
		}
		return m.adapter.Flush(ctx)
	}

	// Parents before children so directory creation precedes the files
	// inside them.
	sort.Slice(items, func(i, j int) bool {
		if items[i].isDir != items[j].isDir {
			return items[i].isDir
		}
		di, dj := strings.Count(items[i].rel, "/"), strings.Count(items[j].rel, "/")
		if di != dj {
			return di < dj
		}
		return items[i].rel < items[j].rel
	})

	for _, op := range journal {
		switch op.kind {
		case opRemove:
			if err := m.adapter.Remove(ctx, op.rel); err != nil &&
				!fserrors.IsCode(err, fserrors.ErrNotFound) {
				return err
			}
		case opRename:
			if err := m.adapter.Rename(ctx, op.rel, op.newRel); err != nil &&
				!fserrors.IsCode(err, fserrors.ErrNotFound) {
				// a retried rename already applied surfaces as NotFound
				return err
			}
		}
	}

	for _, item := range items {
		if item.isDir {
			if err := m.adapter.Mkdir(ctx, item.rel); err != nil &&
				!fserrors.IsCode(err, fserrors.ErrAlreadyExists) {
				return err
			}
			continue
		}
		if err := m.adapter.WriteFile(ctx, item.rel, item.data, item.modTime); err != nil {
			return err
		}
	}

	if err := m.adapter.Flush(ctx); err != nil {
		return err
	}

	fs.mu.Lock()
	m.journal = m.journal[len(journal):]
	for _, item := range items {
		item.node.dirty = false
		item.node.synced = true
		delete(m.dirtyNodes, item.node.id)
	}
	fs.mu.Unlock()

	logger.Debug("Flushed mount",
		logger.KeyPath, m.path, "journal_ops", len(journal), "dirty_nodes", dirtyCount)
	return nil
}

// ============================================================================
// Populate
// ============================================================================

// backendEntry is one entry discovered while walking the backend tree.
type backendEntry struct {
	rel   string
	entry backend.Entry
}

func (m *Mount) populate(ctx context.Context) error {
	fs := m.fs

	fs.mu.Lock()
	skip := !m.needsPopulate
	if skip {
		if cd, ok := m.adapter.(backend.ChangeDetector); ok && cd.Stale() {
			skip = false
		}
	}
	fs.mu.Unlock()
	if skip {
		return nil
	}

	var found []backendEntry
	if err := m.walkBackend(ctx, "", &found); err != nil {
		return err
	}

	// Decide which file contents are actually needed before fetching them:
	// files missing from memory, and files whose backend copy is newer.
	fs.mu.Lock()
	root := fs.getNode(m.root)
	if root == nil || root.mount != m {
		fs.mu.Unlock()
		return fserrors.NewNotMounted(m.path)
	}
	need := make([]string, 0)
	for _, be := range found {
		if be.entry.Kind != backend.KindFile {
			continue
		}
		n := fs.lookupRel(root, be.rel)
		if n == nil || (!n.isDir() && be.entry.ModTime.After(n.mtime)) {
			need = append(need, be.rel)
		}
	}
	fs.mu.Unlock()

	contents := make(map[string][]byte, len(need))
	for _, rel := range need {
		data, err := m.adapter.ReadFile(ctx, rel)
		if err != nil {
			return err
		}
		contents[rel] = data
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	// Shallower entries first so parent directories exist before children.
	sort.Slice(found, func(i, j int) bool {
		return strings.Count(found[i].rel, "/") < strings.Count(found[j].rel, "/")
	})

	seen := make(map[string]bool, len(found))
	for _, be := range found {
		seen[be.rel] = true
		m.mergeEntry(root, be, contents[be.rel])
	}

	// Prune nodes the backend used to have but no longer does. Anything the
	// backend never saw (unsynced, dirty) survives populate.
	m.pruneMissing(root, "", seen)

	m.needsPopulate = false
	if cd, ok := m.adapter.(backend.ChangeDetector); ok {
		cd.ClearStale()
	}

	logger.Debug("Populated mount", logger.KeyPath, m.path, "entries", len(found))
	return nil
}

// walkBackend enumerates the backend subtree rooted at rel, depth-first.
func (m *Mount) walkBackend(ctx context.Context, rel string, out *[]backendEntry) error {
	entries, err := m.adapter.ReadDir(ctx, rel)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childRel := joinRel(rel, e.Name)
		*out = append(*out, backendEntry{rel: childRel, entry: e})
		if e.Kind == backend.KindDirectory {
			if err := m.walkBackend(ctx, childRel, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// lookupRel resolves a mount-relative path inside the subtree. Callers hold
// fs.mu.
func (fs *FS) lookupRel(root *node, rel string) *node {
	if rel == "" {
		return root
	}
	n := root
	for _, part := range strings.Split(rel, "/") {
		if !n.isDir() {
			return nil
		}
		childID, ok := n.children[part]
		if !ok {
			return nil
		}
		n = fs.getNode(childID)
	}
	return n
}

// mergeEntry applies one backend entry to the in-memory subtree. Callers
// hold fs.mu.
func (m *Mount) mergeEntry(root *node, be backendEntry, content []byte) {
	fs := m.fs
	dirRel, name := splitRel(be.rel)
	dir := fs.lookupRel(root, dirRel)
	if dir == nil || !dir.isDir() {
		return
	}

	existing := fs.lookupRel(dir, name)
	if be.entry.Kind == backend.KindDirectory {
		if existing != nil && existing.isDir() {
			existing.synced = true
			return
		}
		if existing != nil {
			// a backend directory displaced an in-memory file
			fs.unlink(dir, name)
			delete(m.dirtyNodes, existing.id)
			fs.dropSubtree(existing)
		}
		n := fs.newNode(name, backend.KindDirectory)
		fs.link(dir, n)
		n.synced = true
		return
	}

	if existing != nil && existing.isDir() {
		// backend has a file where memory has a directory; the directory
		// is local-only state and populate never deletes it
		return
	}
	if existing != nil {
		if !be.entry.ModTime.After(existing.mtime) {
			existing.synced = true
			return
		}
		existing.data = content
		existing.mtime = be.entry.ModTime
		existing.dirty = false
		existing.synced = true
		delete(m.dirtyNodes, existing.id)
		return
	}
	n := fs.newNode(name, backend.KindFile)
	fs.link(dir, n)
	n.data = content
	n.mtime = be.entry.ModTime
	n.synced = true
}

// pruneMissing removes synced, clean nodes that vanished from the backend.
// Post-order so a directory goes only after everything under it. Callers
// hold fs.mu.
func (m *Mount) pruneMissing(n *node, rel string, seen map[string]bool) {
	fs := m.fs
	if n.isDir() {
		for _, name := range fs.childNames(n) {
			child := fs.getNode(n.children[name])
			m.pruneMissing(child, joinRel(rel, name), seen)
		}
	}
	if rel == "" || seen[rel] {
		return
	}
	if !n.synced || n.dirty {
		return
	}
	if n.isDir() && len(n.children) > 0 {
		return
	}
	parent := fs.getNode(n.parent)
	if parent == nil {
		return
	}
	fs.unlink(parent, n.name)
	delete(m.dirtyNodes, n.id)
	fs.dropSubtree(n)
}

func splitRel(rel string) (dir, name string) {
	idx := strings.LastIndexByte(rel, '/')
	if idx < 0 {
		return "", rel
	}
	return rel[:idx], rel[idx+1:]
}
