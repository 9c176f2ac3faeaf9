// Package fserrors provides error types and error codes for the virtual
// filesystem. This is a leaf package with no internal dependencies, designed
// to be imported by the core and by backend adapters without causing circular
// imports.
//
// Import graph: fserrors <- backend <- adapter implementations <- vfs
package fserrors

import (
	"errors"
	"fmt"
)

// Code represents the type of filesystem error that occurred.
type Code int

const (
	// ErrNotFound indicates the requested path does not exist.
	ErrNotFound Code = iota + 1

	// ErrNotDirectory indicates the operation requires a directory.
	ErrNotDirectory

	// ErrIsDirectory indicates the operation is not valid on a directory.
	ErrIsDirectory

	// ErrAlreadyExists indicates the path already exists.
	ErrAlreadyExists

	// ErrNotEmpty indicates the directory is not empty.
	ErrNotEmpty

	// ErrAlreadyMounted indicates the path is already a mount point.
	ErrAlreadyMounted

	// ErrNotMounted indicates no mount exists at the path.
	ErrNotMounted

	// ErrPermissionDenied indicates the operation is not permitted.
	ErrPermissionDenied

	// ErrInvalidArgument indicates an invalid argument was provided.
	ErrInvalidArgument

	// ErrInvalidDescriptor indicates the file descriptor is not open.
	ErrInvalidDescriptor

	// ErrIO indicates an I/O error at the backend boundary.
	ErrIO
)

// String returns a human-readable name for the error code.
func (c Code) String() string {
	switch c {
	case ErrNotFound:
		return "NotFound"
	case ErrNotDirectory:
		return "NotADirectory"
	case ErrIsDirectory:
		return "IsADirectory"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrNotEmpty:
		return "DirectoryNotEmpty"
	case ErrAlreadyMounted:
		return "AlreadyMounted"
	case ErrNotMounted:
		return "NotMounted"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrInvalidArgument:
		return "InvalidArgument"
	case ErrInvalidDescriptor:
		return "InvalidDescriptor"
	case ErrIO:
		return "IOError"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// FSError represents a filesystem error with an error code.
type FSError struct {
	Code    Code
	Message string
	Path    string
}

// Error implements the error interface.
func (e *FSError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Path)
	}
	return e.Code.String()
}

// CodeOf extracts the error code from err, unwrapping as needed.
// Returns 0 if err is nil or carries no FSError.
func CodeOf(err error) Code {
	var fse *FSError
	if errors.As(err, &fse) {
		return fse.Code
	}
	return 0
}

// IsCode reports whether err carries the given error code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// ============================================================================
// Factory Functions
// ============================================================================

// NewNotFound creates a NotFound error.
func NewNotFound(path string) *FSError {
	return &FSError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("path '%s' does not exist", path),
		Path:    path,
	}
}

// NewNotDirectory creates a NotADirectory error with the message the
// external interface reproduces for mount precondition failures.
func NewNotDirectory(path string) *FSError {
	return &FSError{
		Code:    ErrNotDirectory,
		Message: fmt.Sprintf("path '%s' points to a file not a directory", path),
		Path:    path,
	}
}

// NewIsDirectory creates an IsADirectory error.
func NewIsDirectory(path string) *FSError {
	return &FSError{
		Code:    ErrIsDirectory,
		Message: fmt.Sprintf("path '%s' is a directory", path),
		Path:    path,
	}
}

// NewAlreadyExists creates an AlreadyExists error.
func NewAlreadyExists(path string) *FSError {
	return &FSError{
		Code:    ErrAlreadyExists,
		Message: fmt.Sprintf("path '%s' already exists", path),
		Path:    path,
	}
}

// NewNotEmpty creates a DirectoryNotEmpty error.
func NewNotEmpty(path string) *FSError {
	return &FSError{
		Code:    ErrNotEmpty,
		Message: fmt.Sprintf("directory '%s' is not empty", path),
		Path:    path,
	}
}

// NewAlreadyMounted creates an AlreadyMounted error.
func NewAlreadyMounted(path string) *FSError {
	return &FSError{
		Code:    ErrAlreadyMounted,
		Message: fmt.Sprintf("path '%s' is already a file system mount point", path),
		Path:    path,
	}
}

// NewNotMounted creates a NotMounted error.
func NewNotMounted(path string) *FSError {
	return &FSError{
		Code:    ErrNotMounted,
		Message: fmt.Sprintf("path '%s' is not a file system mount point", path),
		Path:    path,
	}
}

// NewHostPathMissing creates a NotFound error for a host directory that
// does not exist on the local filesystem.
func NewHostPathMissing(hostPath string) *FSError {
	return &FSError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("hostPath '%s' does not exist", hostPath),
		Path:    hostPath,
	}
}

// NewHostPathNotDirectory creates a NotADirectory error for a host path
// that exists but is not a directory.
func NewHostPathNotDirectory(hostPath string) *FSError {
	return &FSError{
		Code:    ErrNotDirectory,
		Message: fmt.Sprintf("hostPath '%s' is not a directory", hostPath),
		Path:    hostPath,
	}
}

// NewPermissionDenied creates a PermissionDenied error.
func NewPermissionDenied(path string) *FSError {
	return &FSError{
		Code:    ErrPermissionDenied,
		Message: "permission denied",
		Path:    path,
	}
}

// NewInvalidDescriptor creates an InvalidDescriptor error.
func NewInvalidDescriptor(fd int) *FSError {
	return &FSError{
		Code:    ErrInvalidDescriptor,
		Message: fmt.Sprintf("file descriptor %d is not open", fd),
	}
}

// NewIO creates an IOError wrapping a backend failure reason.
func NewIO(path string, reason error) *FSError {
	return &FSError{
		Code:    ErrIO,
		Message: fmt.Sprintf("i/o error: %v", reason),
		Path:    path,
	}
}
