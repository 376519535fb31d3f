// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package errs collects the sentinel and typed errors that carry the error
// taxonomy of spec.md §7 across package boundaries: transient data errors,
// integrity warnings, runtime-upgrade effects, and fatal errors.
package errs

import "errors"

// Transient data errors: logged at warn, the affected entity is dropped
// from the block, processing continues.
var (
	ErrDecoderMismatch    = errors.New("errs: no decoder matched event shape")
	ErrPoolStorageRead    = errors.New("errs: pool storage read failed")
	ErrEventDecodeFailed  = errors.New("errs: event decode failed")
	ErrMissingDecimals    = errors.New("errs: asset decimals unknown")
	ErrPoolNotPriceable   = errors.New("errs: pool not priceable")
)

// Integrity warnings: logged at warn, processing continues.
var (
	ErrParentHashMismatch  = errors.New("errs: parent hash mismatch within batch")
	ErrUnexpectedUpgrade   = errors.New("errs: unexpected runtime upgrade path")
)

// Fatal errors: propagate and terminate the process with a non-zero exit
// code.
var (
	ErrStoreUnreachable     = errors.New("errs: store unreachable after retries")
	ErrArithmeticOverflow   = errors.New("errs: arithmetic overflow in big-integer path")
	ErrInvariantViolation   = errors.New("errs: invariant violation")
	ErrCheckpointCorrupt    = errors.New("errs: checkpoint record corrupt")
)

// Severity classifies an error for logging and control-flow purposes.
type Severity int

const (
	SeverityTransient Severity = iota
	SeverityIntegrityWarning
	SeverityRuntimeUpgrade
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityTransient:
		return "transient"
	case SeverityIntegrityWarning:
		return "integrity_warning"
	case SeverityRuntimeUpgrade:
		return "runtime_upgrade"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// BlockError wraps an error with the block height and component it
// occurred in, giving structured log lines a consistent shape across every
// pipeline stage.
type BlockError struct {
	BlockHeight uint32
	Component   string
	Severity    Severity
	Err         error
}

func (e *BlockError) Error() string {
	return e.Component + ": " + e.Err.Error()
}

func (e *BlockError) Unwrap() error { return e.Err }

// Wrap builds a BlockError at the given severity.
func Wrap(blockHeight uint32, component string, severity Severity, err error) *BlockError {
	if err == nil {
		return nil
	}
	return &BlockError{BlockHeight: blockHeight, Component: component, Severity: severity, Err: err}
}

// IsFatal reports whether err (or anything it wraps) should terminate the
// process.
func IsFatal(err error) bool {
	var be *BlockError
	if errors.As(err, &be) {
		return be.Severity == SeverityFatal
	}
	return errors.Is(err, ErrStoreUnreachable) ||
		errors.Is(err, ErrArithmeticOverflow) ||
		errors.Is(err, ErrInvariantViolation) ||
		errors.Is(err, ErrCheckpointCorrupt)
}
