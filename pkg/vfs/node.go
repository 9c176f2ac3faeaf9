package vfs

import (
	"sort"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
)

// NodeID identifies a node within the FS arena. IDs are process-unique and
// never reused. The zero value is reserved and never refers to a live node.
type NodeID uint64

// node is one file or directory in the in-memory tree.
//
// Nodes live in the FS arena and reference each other by NodeID, never by
// pointer: the parent back-reference is an index into the arena, so the tree
// carries no ownership cycles and detaching a subtree is a map deletion.
// Open descriptors hold *node directly, which keeps a detached node readable
// until its last descriptor closes.
type node struct {
	id   NodeID
	name string
	kind backend.Kind

	// data holds file content. nil for directories.
	data []byte

	// children maps child name to node ID. nil for files.
	children map[string]NodeID

	// parent is the containing directory, 0 for the root node and for
	// nodes detached by unmount.
	parent NodeID

	// mount is non-nil when this node is the root of an active mount.
	mount *Mount

	mtime time.Time

	// dirty marks content (files) or existence (directories) not yet
	// flushed to the owning mount's backend.
	dirty bool

	// synced marks nodes that the backend has seen, either because a flush
	// wrote them or because a populate created them. Populate only prunes
	// synced nodes; anything the backend never saw survives.
	synced bool

	// openRefs counts open-file objects referencing this node. The close
	// tracking hook fires when it drops back to zero.
	openRefs int
}

func (n *node) isDir() bool {
	return n.kind == backend.KindDirectory
}

func (n *node) size() int64 {
	if n.isDir() {
		return 0
	}
	return int64(len(n.data))
}

// newNode allocates a node in the arena. The caller links it to a parent.
func (fs *FS) newNode(name string, kind backend.Kind) *node {
	fs.nextID++
	n := &node{
		id:    fs.nextID,
		name:  name,
		kind:  kind,
		mtime: time.Now(),
	}
	if kind == backend.KindDirectory {
		n.children = make(map[string]NodeID)
	}
	fs.nodes[n.id] = n
	return n
}

// getNode returns the arena node for id, or nil if it was detached.
func (fs *FS) getNode(id NodeID) *node {
	return fs.nodes[id]
}

// link attaches child under dir and bumps the directory's mtime.
func (fs *FS) link(dir, child *node) {
	dir.children[child.name] = child.id
	child.parent = dir.id
	dir.mtime = time.Now()
}

// unlink detaches the named child from dir. The node stays in the arena
// until dropSubtree removes it; callers that are deleting (not renaming)
// follow up with dropSubtree.
func (fs *FS) unlink(dir *node, name string) {
	delete(dir.children, name)
	dir.mtime = time.Now()
}

// dropSubtree removes n and every descendant from the arena. Parent links
// are cleared so a stale descriptor cannot walk back into the live tree.
func (fs *FS) dropSubtree(n *node) {
	if n.isDir() {
		for _, id := range n.children {
			if child := fs.getNode(id); child != nil {
				fs.dropSubtree(child)
			}
		}
	}
	n.parent = 0
	delete(fs.nodes, n.id)
}

// childNames returns the sorted child names of dir.
func (fs *FS) childNames(dir *node) []string {
	names := make([]string, 0, len(dir.children))
	for name := range dir.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entryOf builds a backend.Entry view of a node.
func entryOf(n *node) backend.Entry {
	return backend.Entry{
		Name:    n.name,
		Kind:    n.kind,
		Size:    n.size(),
		ModTime: n.mtime,
	}
}
