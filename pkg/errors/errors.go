// Package errors provides the structured error system used across the facet
// library.
//
// The system is built around a hierarchical structure that starts with a
// foundational baseError and extends into domain-specific error types. This
// keeps error construction consistent across the library while allowing
// specialized context for different concerns: a validation error knows which
// field failed and what rule was violated, a storage error knows which file
// and byte offset were involved, an index error knows which value and
// operation were being processed.
//
// Central to the system is an error code taxonomy that categorizes failures
// without parsing messages. Base codes cover fundamental failure types
// (IO_ERROR, INVALID_INPUT, INTERNAL_ERROR); index-specific codes address the
// failure modes of persistent field indexes (INDEX_CORRUPTED,
// WRONG_MUTABILITY, NOT_INITIALIZED) and of the filesystem underneath them
// (PERMISSION_DENIED, DISK_FULL, FILESYSTEM_READONLY).
//
// The error policy of the library follows two rules. Reads never fail: a
// corrupted entry on a lookup path is logged and reported as absent so the
// query planner stays live. Writes fail fast: build, flush and mutation
// errors propagate to the caller with full context.
package errors

import (
	stdErrors "errors"
	"os"
	"syscall"
)

// IsValidationError checks if the given error is a ValidationError or contains
// one in its error chain.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return stdErrors.As(err, &ve)
}

// IsStorageError determines if an error is related to file-level operations,
// such as mapping failures, disk space issues, or index file corruption.
func IsStorageError(err error) bool {
	var se *StorageError
	return stdErrors.As(err, &se)
}

// IsIndexError identifies errors that occurred during index operations such as
// value lookups, builds, or tombstone updates.
func IsIndexError(err error) bool {
	var ie *IndexError
	return stdErrors.As(err, &ie)
}

// AsValidationError safely extracts a ValidationError from an error chain,
// providing access to validation-specific context such as which field failed
// and what rule was violated.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stdErrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// AsStorageError extracts StorageError context from an error chain, providing
// access to storage-specific information such as file names, paths and offsets.
func AsStorageError(err error) (*StorageError, bool) {
	var se *StorageError
	if stdErrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsIndexError extracts IndexError context, providing access to index-specific
// information such as the value being processed, the operation being performed
// and the storage variant involved.
func AsIndexError(err error) (*IndexError, bool) {
	var ie *IndexError
	if stdErrors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}

// GetErrorCode extracts the error code from any error that supports it, or
// returns ErrorCodeInternal for errors that don't have specific codes.
func GetErrorCode(err error) ErrorCode {
	// Try ValidationError first.
	if ve, ok := AsValidationError(err); ok {
		return ve.Code()
	}

	// Try StorageError next.
	if se, ok := AsStorageError(err); ok {
		return se.Code()
	}

	// Try IndexError.
	if ie, ok := AsIndexError(err); ok {
		return ie.Code()
	}

	// For any other error, return a generic internal error code.
	return ErrorCodeInternal
}

// GetErrorDetails extracts structured details from any error that supports
// them, returning an empty map for errors without details.
func GetErrorDetails(err error) map[string]any {
	if ve, ok := AsValidationError(err); ok {
		if details := ve.Details(); details != nil {
			return details
		}
	}

	if se, ok := AsStorageError(err); ok {
		if details := se.Details(); details != nil {
			return details
		}
	}

	if ie, ok := AsIndexError(err); ok {
		if details := ie.Details(); details != nil {
			return details
		}
	}

	return make(map[string]any)
}

// ClassifyDirectoryCreationError analyzes directory creation failures and
// returns appropriate error codes based on the underlying system error.
func ClassifyDirectoryCreationError(err error, path string) error {
	// Check if this is a permission denied error.
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to create index directory",
		).WithPath(path).
			WithDetail("operation", "directory_creation").
			WithDetail("required_permission", "write")
	}

	// Check for disk space issues using syscall analysis.
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"Insufficient disk space to create index directory",
				).WithPath(path).WithDetail("operation", "directory_creation")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot create directory on read-only filesystem",
				).WithPath(path).WithDetail("operation", "directory_creation")
			}
		}
	}

	// For any other I/O errors, provide the generic I/O error with context.
	return NewStorageError(
		err, ErrorCodeIO, "Failed to create index directory",
	).WithPath(path).WithDetail("operation", "directory_creation")
}

// ClassifyFileOpenError analyzes file opening failures and returns appropriate
// error codes based on the underlying system error. This provides much more
// specific information than a generic I/O error.
func ClassifyFileOpenError(err error, filePath, fileName string) error {
	// Check if this is a permission denied error.
	if os.IsPermission(err) {
		return NewStorageError(
			err, ErrorCodePermissionDenied,
			"Insufficient permissions to open index file",
		).WithPath(filePath).
			WithFileName(fileName).
			WithDetail("operation", "file_open").
			WithDetail("required_permission", "read_write")
	}

	// Check for disk space issues and other system-level conditions.
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"Insufficient disk space to create index file",
				).WithPath(filePath).
					WithFileName(fileName).
					WithDetail("operation", "file_open")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot create file on read-only filesystem",
				).WithPath(filePath).
					WithFileName(fileName).
					WithDetail("operation", "file_open")
			}
		}
	}

	// For any other I/O errors during file opening.
	return NewStorageError(err, ErrorCodeIO, "Failed to open index file").
		WithPath(filePath).
		WithFileName(fileName).
		WithDetail("operation", "file_open")
}

// ClassifySyncError analyzes flush failures. Sync failures can indicate
// anything from disk space problems to filesystem corruption, so the code
// distinguishes the recoverable conditions from the ones that need attention.
func ClassifySyncError(err error, fileName, filePath string) error {
	if pathErr, ok := err.(*os.PathError); ok {
		if errno, ok := pathErr.Err.(syscall.Errno); ok {
			switch errno {
			case syscall.ENOSPC:
				return NewStorageError(
					err, ErrorCodeDiskFull,
					"Cannot flush file: insufficient disk space",
				).WithFileName(fileName).
					WithPath(filePath).
					WithDetail("operation", "file_sync")
			case syscall.EROFS:
				return NewStorageError(
					err, ErrorCodeFilesystemReadonly,
					"Cannot flush file: filesystem is read-only",
				).WithFileName(fileName).
					WithPath(filePath).
					WithDetail("operation", "file_sync")
			case syscall.EIO:
				// I/O error during sync often indicates hardware or corruption issues.
				return NewStorageError(
					err, ErrorCodeIO,
					"I/O error during flush - possible hardware or corruption issue",
				).WithFileName(fileName).
					WithPath(filePath).
					WithDetail("operation", "file_sync").
					WithDetail("severity", "high")
			}
		}
	}

	return NewStorageError(
		err, ErrorCodeIO, "Failed to flush index file to disk",
	).WithFileName(fileName).WithPath(filePath).WithDetail("operation", "file_sync")
}
