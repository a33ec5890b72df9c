package errors

// ErrorCode represents a standardized way to categorize different types of errors.
type ErrorCode string

// Base error codes represent the fundamental categories of failures that can
// occur across any software system. These codes provide the foundation layer
// of error classification.
const (
	// ErrorCodeIO represents failures in input/output operations across any
	// system boundary. For this library that is almost always file system
	// operations: creating index directories, materializing index files,
	// mapping them into memory, or flushing dirty pages.
	ErrorCodeIO ErrorCode = "IO_ERROR"

	// ErrorCodeInvalidInput represents caller-side errors where the provided
	// data doesn't meet the system's requirements or constraints. Builders
	// return this code when configuration or bulk input is malformed.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrorCodeInternal represents unexpected system failures that don't fit
	// into other categories. These indicate bugs, assertion failures, or other
	// programming errors that shouldn't occur during normal operation.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// Index-specific error codes extend the base taxonomy with the failure modes
// of persistent field indexes: damaged on-disk structures, operations applied
// to the wrong storage variant, and reads against an index that was never
// opened.
const (
	// ErrorCodeIndexCorrupted indicates that an on-disk index structure is
	// damaged or inconsistent: a hashmap bucket pointing outside the payload
	// region, an entry header describing more bytes than the file holds, or an
	// offsets array that disagrees with the packed values region.
	//
	// Point-lookup read paths do not propagate this code to the caller. They
	// log it, report the value as absent, and keep the query alive. Open and
	// build paths propagate it.
	ErrorCodeIndexCorrupted ErrorCode = "INDEX_CORRUPTED"

	// ErrorCodeWrongMutability indicates a mutation was attempted on a storage
	// variant that doesn't support it, such as adding values to an immutable
	// or memory-mapped index. Only tombstone deletion is allowed there.
	ErrorCodeWrongMutability ErrorCode = "WRONG_MUTABILITY"

	// ErrorCodeNotInitialized indicates an operation that requires opened
	// storage ran against an index stub whose files were never built. Reads
	// never surface this code (they return empty results instead); it exists
	// for write paths and diagnostics.
	ErrorCodeNotInitialized ErrorCode = "NOT_INITIALIZED"

	// ErrorCodePermissionDenied indicates insufficient permissions to access a
	// file backing the index. This is distinct from generic IO errors because
	// it has a specific resolution path: adjust file/directory permissions or
	// run with elevated privileges.
	ErrorCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrorCodeDiskFull indicates that the storage device ran out of space
	// while materializing index files. Builds fail fast on this code.
	ErrorCodeDiskFull ErrorCode = "DISK_FULL"

	// ErrorCodeFilesystemReadonly indicates that the filesystem is mounted
	// read-only. Building or flushing an index fails under it, and so does
	// opening a built map or numeric mmap index, which maps its tombstone
	// bitmap read-write.
	ErrorCodeFilesystemReadonly ErrorCode = "FILESYSTEM_READONLY"
)
