package vfs

import (
	"strings"

	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// splitPath validates an absolute path and splits it into components.
// "/" yields an empty slice. "." and empty components are rejected rather
// than normalized: the guest runtime hands us already-normalized paths.
func splitPath(path string) ([]string, error) {
	if path == "" || path[0] != '/' {
		return nil, &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "path must be absolute",
			Path:    path,
		}
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, part := range parts {
		if part == "" || part == "." || part == ".." {
			return nil, &fserrors.FSError{
				Code:    fserrors.ErrInvalidArgument,
				Message: "path contains invalid component",
				Path:    path,
			}
		}
	}
	return parts, nil
}

// normPath returns path with a leading slash and no trailing slash.
func normPath(path string) string {
	if path == "" {
		return "/"
	}
	if path != "/" {
		path = "/" + strings.Trim(path, "/")
	}
	return path
}

// resolve walks the tree from the root, one component at a time, and returns
// the node at path. Crossing into a mount's subtree needs no special case:
// the mount's in-memory root node hangs off the tree like any directory, and
// the in-memory tree is the cache of record. The backend is only consulted
// during explicit sync.
//
// Callers hold fs.mu.
func (fs *FS) resolve(path string) (*node, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	n := fs.getNode(fs.root)
	for i, part := range parts {
		if !n.isDir() {
			return nil, fserrors.NewNotDirectory("/" + strings.Join(parts[:i], "/"))
		}
		childID, ok := n.children[part]
		if !ok {
			return nil, fserrors.NewNotFound(path)
		}
		n = fs.getNode(childID)
	}
	return n, nil
}

// resolveDir resolves path and requires it to be a directory.
func (fs *FS) resolveDir(path string) (*node, error) {
	n, err := fs.resolve(path)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, fserrors.NewNotDirectory(path)
	}
	return n, nil
}

// resolveParent resolves the parent directory of path and returns it with
// the final path component.
func (fs *FS) resolveParent(path string) (*node, string, error) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "operation not valid on the filesystem root",
			Path:    path,
		}
	}
	parent := "/" + strings.Join(parts[:len(parts)-1], "/")
	dir, err := fs.resolveDir(parent)
	if err != nil {
		return nil, "", err
	}
	return dir, parts[len(parts)-1], nil
}

// mountOf walks the parent chain from n to the nearest enclosing mount root
// and returns the mount together with n's mount-relative path. Returns nil
// for nodes outside any mount and for nodes detached by unmount.
func (fs *FS) mountOf(n *node) (*Mount, string) {
	var parts []string
	for n != nil {
		if n.mount != nil {
			rel := ""
			if len(parts) > 0 {
				// components were collected leaf-first
				for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
					parts[i], parts[j] = parts[j], parts[i]
				}
				rel = strings.Join(parts, "/")
			}
			return n.mount, rel
		}
		if n.id == fs.root {
			return nil, ""
		}
		parts = append(parts, n.name)
		n = fs.getNode(n.parent)
	}
	return nil, ""
}

// lookupMount returns the mount whose path is the longest prefix of path,
// or nil when path lies outside every mount.
func (fs *FS) lookupMount(path string) *Mount {
	path = normPath(path)
	var best *Mount
	for mpath, m := range fs.mounts {
		if path != mpath && !strings.HasPrefix(path, mpath+"/") && mpath != "/" {
			continue
		}
		if best == nil || len(mpath) > len(best.path) {
			best = m
		}
	}
	return best
}
