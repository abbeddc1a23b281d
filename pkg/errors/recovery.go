package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
)

// PanicError is produced when Recover intercepts a panic. It keeps the
// panic value and the stack at the point of recovery.
type PanicError struct {
	PanicValue interface{}
	StackTrace string
	Operation  string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// String includes the captured stack.
func (e *PanicError) String() string {
	return fmt.Sprintf("panic in %s: %v\nStack trace:\n%s", e.Operation, e.PanicValue, e.StackTrace)
}

// NewPanicError captures the current stack.
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
		Operation:  operation,
	}
}

// Recover converts a panic into an error assigned through err. Use it as
// the first deferred call of an exported method with a named error result:
//
//	func (g *GaussianProcessRegressor) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "GaussianProcessRegressor.Fit")
//	    ...
//	}
//
// An error already stored in err is kept as the cause.
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	panicErr := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.WithSecondaryError(panicErr, *err)
		return
	}
	*err = panicErr
}

// SafeExecute runs fn and turns a panic into a PanicError.
func SafeExecute(operation string, fn func() error) (err error) {
	defer Recover(&err, operation)
	return fn()
}
