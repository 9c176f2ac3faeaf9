package vfs

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/R3gardless/pyodide/pkg/vfs/backend"
	"github.com/R3gardless/pyodide/pkg/vfs/fserrors"
)

// openFile is the shared open-file state behind one or more descriptors.
// Dup'd descriptors point at the same openFile, so offset mutations through
// one are visible through the other. The node reference keeps a file
// readable even after it is unlinked or its mount detached.
type openFile struct {
	node *node

	// path is the absolute path resolved at open time, reported to the
	// close-tracking hook.
	path string

	flag   int
	offset int64

	// refs counts descriptors sharing this state.
	refs int
}

func (f *openFile) readable() bool {
	acc := f.flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	return acc == os.O_RDONLY || acc == os.O_RDWR
}

func (f *openFile) writable() bool {
	acc := f.flag & (os.O_RDONLY | os.O_WRONLY | os.O_RDWR)
	return acc == os.O_WRONLY || acc == os.O_RDWR
}

// Open opens path with os-style flags (os.O_RDONLY, os.O_CREATE, ...) and
// returns a descriptor. Descriptor ids are process-unique and the lowest
// free id is reused, POSIX-style. Reads and writes go through the node
// tree; on write-through mounts a create or truncate is mirrored to the
// backend before the descriptor is handed out.
func (fs *FS) Open(ctx context.Context, path string, flag int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("open")

	n, err := fs.resolve(path)
	switch {
	case err == nil:
		if flag&os.O_CREATE != 0 && flag&os.O_EXCL != 0 {
			return -1, fserrors.NewAlreadyExists(path)
		}
	case fserrors.IsCode(err, fserrors.ErrNotFound) && flag&os.O_CREATE != 0:
		n, err = fs.createOrGetFile(ctx, path)
		if err != nil {
			return -1, err
		}
	default:
		return -1, err
	}

	f := &openFile{node: n, path: normPath(path), flag: flag, refs: 1}
	if n.isDir() {
		if f.writable() {
			return -1, fserrors.NewIsDirectory(path)
		}
	} else if flag&os.O_TRUNC != 0 && f.writable() {
		if err := truncateNode(n, 0); err != nil {
			return -1, err
		}
		if err := fs.commitContent(ctx, n); err != nil {
			return -1, err
		}
	}

	fd := fs.allocFD()
	fs.fds[fd] = f
	n.openRefs++
	return fd, nil
}

// allocFD returns the lowest descriptor id not currently open.
func (fs *FS) allocFD() int {
	fd := 0
	for {
		if _, used := fs.fds[fd]; !used {
			return fd
		}
		fd++
	}
}

// Dup duplicates a descriptor. The new descriptor references the same
// underlying open-file state: the byte offset is shared, and closing one
// descriptor does not tear down the state while the other remains open.
func (fs *FS) Dup(fd int) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("dup")

	f, ok := fs.fds[fd]
	if !ok {
		return -1, fserrors.NewInvalidDescriptor(fd)
	}
	dup := fs.allocFD()
	fs.fds[dup] = f
	f.refs++
	return dup, nil
}

// CloseFD releases a descriptor. When the last descriptor referencing the
// underlying open-file state goes away, buffered content is pushed to a
// write-through backend; when the last descriptor referencing the node
// itself goes away, the close-tracking hook fires exactly once with the
// absolute path and the adapter is notified.
func (fs *FS) CloseFD(ctx context.Context, fd int) error {
	fs.mu.Lock()
	fs.countOp("close")

	f, ok := fs.fds[fd]
	if !ok {
		fs.mu.Unlock()
		return fserrors.NewInvalidDescriptor(fd)
	}
	delete(fs.fds, fd)
	f.refs--
	if f.refs > 0 {
		fs.mu.Unlock()
		return nil
	}

	n := f.node
	var commitErr error
	if n.dirty && !n.isDir() {
		if m, _ := fs.mountOf(n); m != nil && m.writeThrough {
			commitErr = fs.commitContent(ctx, n)
		}
	}

	n.openRefs--
	var hook func(path string)
	var notifier backend.CloseNotifier
	var rel string
	if n.openRefs == 0 {
		hook = fs.onCloseFile
		if m, r := fs.mountOf(n); m != nil {
			if cn, ok := m.adapter.(backend.CloseNotifier); ok {
				notifier = cn
				rel = r
			}
		}
	}
	path := f.path
	fs.mu.Unlock()

	// hooks run outside the tree lock; they may re-enter the filesystem
	if notifier != nil {
		notifier.FileClosed(rel)
	}
	if hook != nil {
		hook(path)
	}
	return commitErr
}

// ============================================================================
// Descriptor I/O
// ============================================================================

// Read reads up to len(buf) bytes at the shared offset, advancing it.
// Returns io.EOF at end of file.
func (fs *FS) Read(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return 0, fserrors.NewInvalidDescriptor(fd)
	}
	if !f.readable() {
		return 0, readDenied(f.path)
	}
	if f.node.isDir() {
		return 0, fserrors.NewIsDirectory(f.path)
	}
	n := copy(buf, f.node.data[min64(f.offset, f.node.size()):])
	f.offset += int64(n)
	if n == 0 && len(buf) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write writes buf at the shared offset, advancing it. O_APPEND descriptors
// seek to end-of-file first. The file grows and zero-fills as needed.
func (fs *FS) Write(fd int, buf []byte) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return 0, fserrors.NewInvalidDescriptor(fd)
	}
	if !f.writable() {
		return 0, writeDenied(f.path)
	}
	if f.node.isDir() {
		return 0, fserrors.NewIsDirectory(f.path)
	}
	if f.flag&os.O_APPEND != 0 {
		f.offset = f.node.size()
	}
	writeAt(f.node, f.offset, buf)
	f.offset += int64(len(buf))
	fs.markOpenWrite(f.node)
	return len(buf), nil
}

// Pread reads at an absolute offset without moving the shared offset.
func (fs *FS) Pread(fd int, buf []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return 0, fserrors.NewInvalidDescriptor(fd)
	}
	if !f.readable() {
		return 0, readDenied(f.path)
	}
	if offset < 0 {
		return 0, &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "negative read offset",
		}
	}
	if offset >= f.node.size() {
		return 0, io.EOF
	}
	return copy(buf, f.node.data[offset:]), nil
}

// Pwrite writes at an absolute offset without moving the shared offset.
func (fs *FS) Pwrite(fd int, buf []byte, offset int64) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return 0, fserrors.NewInvalidDescriptor(fd)
	}
	if !f.writable() {
		return 0, writeDenied(f.path)
	}
	if offset < 0 {
		return 0, &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "negative write offset",
		}
	}
	writeAt(f.node, offset, buf)
	fs.markOpenWrite(f.node)
	return len(buf), nil
}

// Seek moves the shared offset. Whence follows io.SeekStart/Current/End.
func (fs *FS) Seek(fd int, offset int64, whence int) (int64, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return 0, fserrors.NewInvalidDescriptor(fd)
	}
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = f.offset
	case io.SeekEnd:
		base = f.node.size()
	default:
		return 0, &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "invalid seek whence",
		}
	}
	if base+offset < 0 {
		return 0, &fserrors.FSError{
			Code:    fserrors.ErrInvalidArgument,
			Message: "negative seek offset",
		}
	}
	f.offset = base + offset
	return f.offset, nil
}

// Ftruncate resizes the open file. The new size is immediately visible
// through every other descriptor and size query on the same node.
func (fs *FS) Ftruncate(fd int, size int64) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.countOp("truncate")

	f, ok := fs.fds[fd]
	if !ok {
		return fserrors.NewInvalidDescriptor(fd)
	}
	if !f.writable() {
		return writeDenied(f.path)
	}
	if f.node.isDir() {
		return fserrors.NewIsDirectory(f.path)
	}
	if err := truncateNode(f.node, size); err != nil {
		return err
	}
	fs.markOpenWrite(f.node)
	return nil
}

// Fstat describes the open file.
func (fs *FS) Fstat(fd int) (backend.Entry, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.fds[fd]
	if !ok {
		return backend.Entry{}, fserrors.NewInvalidDescriptor(fd)
	}
	return entryOf(f.node), nil
}

// markOpenWrite records a descriptor write as dirty state for the owning
// mount. Content reaches write-through backends when the last descriptor
// closes or at the next sync, whichever comes first.
func (fs *FS) markOpenWrite(n *node) {
	n.mtime = time.Now()
	if m, _ := fs.mountOf(n); m != nil {
		fs.markDirty(m, n)
	}
}

// writeAt splices buf into the node's content at offset, growing and
// zero-filling as needed.
func writeAt(n *node, offset int64, buf []byte) {
	end := offset + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[offset:end], buf)
}

func readDenied(path string) error {
	return &fserrors.FSError{
		Code:    fserrors.ErrPermissionDenied,
		Message: "file not open for reading",
		Path:    path,
	}
}

func writeDenied(path string) error {
	return &fserrors.FSError{
		Code:    fserrors.ErrPermissionDenied,
		Message: "file not open for writing",
		Path:    path,
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
