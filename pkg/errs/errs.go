// Package errs holds the error taxonomy shared by every shapekit package.
// Operations wrap one of these sentinels with context; test with errors.Is.
package errs

import "errors"

var (
	ErrParameters         = errors.New("invalid parameters")
	ErrOutOfRange         = errors.New("out of range")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrUnsupportedFeature = errors.New("unsupported feature")
	ErrIllegalOperation   = errors.New("illegal operation")
	ErrInternalSetup      = errors.New("internal setup error")
	ErrInternalState      = errors.New("internal state error")
	ErrFatal              = errors.New("fatal error")
	ErrException          = errors.New("invalid pointer")
	ErrNotCompleted       = errors.New("not completed")
	ErrComparisonFailure  = errors.New("comparison failure")
	// ErrCompleted marks the end of a read walk, not a failure.
	ErrCompleted = errors.New("completed")
)
