package domain

import "errors"

// Business-rule failures reported to the caller and never retried.
var (
	ErrInvalidAmount     = errors.New("payment amount must be positive")
	ErrSelfTransfer      = errors.New("cannot send a payment to yourself")
	ErrSenderNotFound    = errors.New("sender not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateHandle   = errors.New("handle already taken")
	ErrInvalidMaxSteps   = errors.New("maxSteps must be at least 1")
)

// ErrStoreUnavailable classifies infrastructure failures: connection loss,
// transaction aborts, timeouts, and malformed records returned by the store.
var ErrStoreUnavailable = errors.New("graph store unavailable")

// StoreError wraps an infrastructure failure with the operation that hit it.
// It matches ErrStoreUnavailable under errors.Is while preserving the cause.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }

// NewStoreError builds a StoreError unless the cause already carries a
// business-rule classification, in which case it is passed through unchanged.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{
		ErrInvalidAmount, ErrSelfTransfer, ErrSenderNotFound,
		ErrInsufficientFunds, ErrUserNotFound, ErrDuplicateHandle,
		ErrInvalidMaxSteps,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return &StoreError{Op: op, Err: err}
}
