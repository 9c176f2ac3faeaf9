package vfs

// OnCloseFile registers a tracking hook invoked with the resolved absolute
// path whenever the last descriptor referencing a file's node closes. The
// hook fires at most once per open/close cycle of a node, outside the tree
// lock, so it may call back into the filesystem. A nil hook unregisters.
//
// This mirrors the tracking delegate the guest runtime exposes for file
// lifecycle observation.
func (fs *FS) OnCloseFile(hook func(path string)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.onCloseFile = hook
}
