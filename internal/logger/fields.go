package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so output can be
// aggregated and queried by field.
const (
	// ========================================================================
	// Filesystem Operations
	// ========================================================================
	KeyPath       = "path"        // Full file/directory path
	KeyFilename   = "filename"    // File or directory name (basename)
	KeyParentPath = "parent_path" // Parent directory path
	KeyOldPath    = "old_path"    // Source path for rename operations
	KeyNewPath    = "new_path"    // Destination path for rename operations
	KeyType       = "type"        // Entry type: file, directory
	KeySize       = "size"        // Size in bytes
	KeyOperation  = "operation"   // Operation name: mkdir, write, rename, etc.

	// ========================================================================
	// Descriptors & I/O
	// ========================================================================
	KeyFD           = "fd"            // File descriptor number
	KeyOffset       = "offset"        // File offset for read/write operations
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written
	KeyFlags        = "flags"         // Open flags

	// ========================================================================
	// Mounts & Backends
	// ========================================================================
	KeyMount     = "mount"      // Mount point path
	KeyBackend   = "backend"    // Backend type: memory, kvstore, hostdir, handlefs, s3
	KeyDirection = "direction"  // Sync direction: flush, populate
	KeyEntries   = "entries"    // Number of entries touched
	KeyDirty     = "dirty"      // Number of dirty nodes
	KeyJournal   = "journal"    // Number of journaled namespace ops
	KeyStoreType = "store_type" // Store type for adapter construction
	KeyBucket    = "bucket"     // Object store bucket name
	KeyRegion    = "region"     // Object store region

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyErrorCode  = "error_code"  // Taxonomy error code name
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// Path returns a slog.Attr for a file/directory path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for a filename (basename)
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// ParentPath returns a slog.Attr for a parent directory path
func ParentPath(p string) slog.Attr {
	return slog.String(KeyParentPath, p)
}

// OldPath returns a slog.Attr for a rename source path
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for a rename destination path
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// TypeStr returns a slog.Attr for an entry type as a string
func TypeStr(t string) slog.Attr {
	return slog.String(KeyType, t)
}

// Size returns a slog.Attr for a size in bytes
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// Operation returns a slog.Attr for an operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// FD returns a slog.Attr for a file descriptor number
func FD(fd int) slog.Attr {
	return slog.Int(KeyFD, fd)
}

// Offset returns a slog.Attr for a file offset
func Offset(off int64) slog.Attr {
	return slog.Int64(KeyOffset, off)
}

// BytesRead returns a slog.Attr for actual bytes read
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// MountPoint returns a slog.Attr for a mount point path
func MountPoint(p string) slog.Attr {
	return slog.String(KeyMount, p)
}

// Backend returns a slog.Attr for a backend type
func Backend(b string) slog.Attr {
	return slog.String(KeyBackend, b)
}

// Direction returns a slog.Attr for a sync direction
func Direction(d string) slog.Attr {
	return slog.String(KeyDirection, d)
}

// Entries returns a slog.Attr for a number of entries
func Entries(n int) slog.Attr {
	return slog.Int(KeyEntries, n)
}

// Bucket returns a slog.Attr for an object store bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Region returns a slog.Attr for an object store region
func Region(r string) slog.Attr {
	return slog.String(KeyRegion, r)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error (nil-safe)
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a taxonomy error code name
func ErrorCode(code string) slog.Attr {
	return slog.String(KeyErrorCode, code)
}
