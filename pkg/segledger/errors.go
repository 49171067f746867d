package segledger

import "errors"

// Sentinel errors returned by the ledger. Conflicting bounds are never an
// error: they are resolved by moving constraints onto clone variables.
var (
	// ErrSamePoint is returned when both ends of a pair name the same point.
	ErrSamePoint = errors.New("pair endpoints must differ")

	// ErrInvalidValue is returned for NaN bounds or priorities and for
	// unknown mode names.
	ErrInvalidValue = errors.New("invalid value")

	// ErrNilEquationLayer is returned by NewLedger when no equation layer
	// is supplied.
	ErrNilEquationLayer = errors.New("equation layer is required")
)
