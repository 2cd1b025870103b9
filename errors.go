package hll

import "github.com/pkg/errors"

// The storage spec recognizes four kinds of error. Each is exposed as a
// sentinel so callers can classify a failure with errors.Is, regardless of
// which operation produced it.
var (
	// ErrInvalidParameter indicates a constructor argument fell outside its
	// documented range, or that StrictUnion was asked to combine two Hlls
	// with incompatible regwidth or log2m settings.
	ErrInvalidParameter = errors.New("hll: invalid parameter")

	// ErrCorruptEncoding indicates a malformed or truncated byte encoding:
	// an unsupported schema version, an out-of-range representation
	// ordinal, or a word read that ran past the end of the buffer.
	ErrCorruptEncoding = errors.New("hll: corrupt encoding")

	// ErrCapacityViolation indicates an attempt to write more words than a
	// serializer was sized for, or to finalize one before every word it was
	// sized for had been written.
	ErrCapacityViolation = errors.New("hll: capacity violation")

	// ErrUnsupportedRepresentation indicates an operation was attempted
	// against a representation tag outside {Empty, Explicit, Sparse, Full}.
	// No operation in this package currently returns it: FromBytes rejects
	// an out-of-range type ordinal with ErrCorruptEncoding instead.
	ErrUnsupportedRepresentation = errors.New("hll: unsupported representation")
)

// ErrInsufficientBytes is returned by FromBytes when the provided byte slice
// is truncated. It wraps ErrCorruptEncoding.
var ErrInsufficientBytes = errors.Wrap(ErrCorruptEncoding, "insufficient bytes to deserialize Hll")

// ErrIncompatible is returned by StrictUnion when the two Hlls have
// incompatible log2m or regwidth settings. It wraps ErrInvalidParameter.
var ErrIncompatible = errors.Wrap(ErrInvalidParameter, "cannot StrictUnion Hlls with different regwidth or log2m settings")
