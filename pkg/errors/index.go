package errors

// IndexError provides specialized error handling for field-index operations.
// It extends the base error system with index-specific context while properly
// supporting method chaining through all base error methods.
type IndexError struct {
	// Embed the base error to inherit all standard error functionality
	// including error chaining, structured details, and error codes.
	*baseError

	// Identifies which payload value was being processed when the error
	// occurred, rendered to a string. Tells you exactly which key of the
	// inverted index was involved in the failed operation.
	value string

	// Describes what index operation was being performed when the error
	// occurred (e.g., "Open", "Build", "GetIterator", "RemovePoint").
	operation string

	// Captures the number of indexed points at the time of the error.
	// Provides context about the scale of the index when problems occur.
	pointsCount int

	// Identifies the storage variant involved ("mutable", "immutable", "mmap").
	// Mutability violations and corruption reports both hinge on this.
	variant string
}

// NewIndexError creates a new index-specific error with the provided context.
func NewIndexError(err error, code ErrorCode, msg string) *IndexError {
	return &IndexError{baseError: NewBaseError(err, code, msg)}
}

// Override base error methods to return *IndexError instead of *baseError.

// WithMessage updates the error message while maintaining the IndexError type.
func (ie *IndexError) WithMessage(msg string) *IndexError {
	ie.baseError.WithMessage(msg)
	return ie
}

// WithCode sets the error code while preserving the IndexError type.
func (ie *IndexError) WithCode(code ErrorCode) *IndexError {
	ie.baseError.WithCode(code)
	return ie
}

// WithDetail adds contextual information while maintaining the IndexError type.
func (ie *IndexError) WithDetail(key string, value any) *IndexError {
	ie.baseError.WithDetail(key, value)
	return ie
}

// Index-specific methods that add domain-specific context to the error.

// WithValue records which payload value was being processed.
func (ie *IndexError) WithValue(value string) *IndexError {
	ie.value = value
	return ie
}

// WithOperation records what index operation was being performed.
func (ie *IndexError) WithOperation(operation string) *IndexError {
	ie.operation = operation
	return ie
}

// WithPointsCount captures the number of indexed points when the error occurred.
func (ie *IndexError) WithPointsCount(count int) *IndexError {
	ie.pointsCount = count
	return ie
}

// WithVariant records which storage variant was involved.
func (ie *IndexError) WithVariant(variant string) *IndexError {
	ie.variant = variant
	return ie
}

// Getter methods provide access to the IndexError-specific context.

// Value returns the payload value that was being processed.
func (ie *IndexError) Value() string {
	return ie.value
}

// Operation returns the name of the operation that was being performed.
func (ie *IndexError) Operation() string {
	return ie.operation
}

// PointsCount returns the number of indexed points when the error occurred.
func (ie *IndexError) PointsCount() int {
	return ie.pointsCount
}

// Variant returns the storage variant involved in the error.
func (ie *IndexError) Variant() string {
	return ie.variant
}

// Helper constructors for the errors this library raises most often.

// NewWrongMutabilityError creates the error returned when values are added to
// a storage variant that only supports tombstone deletion.
func NewWrongMutabilityError(variant string) *IndexError {
	return NewIndexError(nil, ErrorCodeWrongMutability, "can't add values to "+variant+" index").
		WithOperation("AddMany").
		WithVariant(variant)
}

// NewNotInitializedError creates the error raised when a write operation runs
// against an index whose storage was never built or opened.
func NewNotInitializedError(operation string) *IndexError {
	return NewIndexError(nil, ErrorCodeNotInitialized, "index storage is not initialized").
		WithOperation(operation)
}

// NewCorruptionError creates an error for damaged on-disk index structures.
// Open and build paths propagate it; point-lookup paths log and swallow it.
func NewCorruptionError(operation string, cause error) *IndexError {
	return NewIndexError(cause, ErrorCodeIndexCorrupted, "index data structure corrupted").
		WithOperation(operation)
}
