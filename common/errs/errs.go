package errs

// ErrorKind identifies a kind of internal error.
// fully support for errors.Is and errors.As.
type ErrorKind string

const (
	// NotFound is returned when a requested item is not found.
	NotFound = ErrorKind("Not Found")

	// Duplicate is returned when an item already exists and can't be created again.
	Duplicate = ErrorKind("Duplicate")

	// InvalidArgument is returned when a caller-supplied value is rejected.
	InvalidArgument = ErrorKind("Invalid Argument")

	// Unsupported is returned when a requested feature or value is not supported.
	Unsupported = ErrorKind("Unsupported")

	// NotSupported is an alias kept for call sites that read better with it.
	NotSupported = Unsupported

	// ConflictSetting is returned when persisted state conflicts with the current configuration.
	ConflictSetting = ErrorKind("Conflict Setting")

	// InternalError is returned on broken internal invariants.
	InternalError = ErrorKind("Internal Error")

	// Timeout is returned when an operation exceeds its deadline.
	Timeout = ErrorKind("Timeout")

	// Retryable marks transient failures (unreachable node, oracle or store). The
	// caller is expected to retry the whole unit of work.
	Retryable = ErrorKind("Retryable")

	// SomethingWentWrong is returned for unrecoverable conditions that require
	// operator attention.
	SomethingWentWrong = ErrorKind("Something Went Wrong")

	OverflowUint64  = ErrorKind("overflow uint64")
	OverflowUint128 = ErrorKind("overflow uint128")
)

// Error satisfies the error interface and prints human-readable errors.
func (e ErrorKind) Error() string {
	return string(e)
}
