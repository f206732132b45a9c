package mpc

import "errors"

var (
	// ErrInvalidScript is returned when a script does not match the expected template.
	ErrInvalidScript = errors.New("invalid script")

	// ErrInvalidSequenceValue is returned for timeouts outside of [0, MaxSequence]
	// or sequence values that are not minimally encoded.
	ErrInvalidSequenceValue = errors.New("invalid sequence value")

	// ErrInvalidPayerSignature is returned when a half signed commit does not
	// carry a valid signature of the deposit payer.
	ErrInvalidPayerSignature = errors.New("invalid or missing payer signature")

	ErrInvalidSecret   = errors.New("secret does not match expected hash")
	ErrKeyMismatch     = errors.New("private key does not match required pubkey")
	ErrUnknownSpend    = errors.New("unknown spend type")
	ErrMissingPrevious = errors.New("previous output not found")
)
