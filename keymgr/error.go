// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keymgr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific ManagerError.
const (
	// ErrConfig indicates the manager configuration is invalid, such as an
	// unknown derivation scheme or a missing network profile.
	ErrConfig ErrorCode = iota

	// ErrMissingKey indicates the manager was created without a seed and
	// without a cached master key, so there is nothing to derive from.
	ErrMissingKey

	// ErrMissingPrivateKey indicates an operation requiring private key
	// material was attempted on a watch-only manager.
	ErrMissingPrivateKey

	// ErrUnknownAddress indicates an output or script could not be mapped
	// to an address owned by the manager.
	ErrUnknownAddress

	// ErrEmptyOutputs indicates a transaction was requested without any
	// outputs and without a parent to bump.
	ErrEmptyOutputs

	// ErrInsufficientFunds indicates the candidate coins cannot cover the
	// requested outputs plus the fee.
	ErrInsufficientFunds

	// ErrFeeExceeded indicates the required fee is above the caller's
	// maximum.
	ErrFeeExceeded

	// ErrSanityCheck indicates the built transaction failed the context
	// free consensus checks.
	ErrSanityCheck

	// ErrContextCheck indicates the built transaction failed the
	// consensus checks against the outputs it spends.
	ErrContextCheck

	// ErrKeyChain indicates an error with the key chain, such as a failure
	// to derive a child key or a seed that does not match the cached
	// master key.
	ErrKeyChain

	// ErrInvalidAddress indicates a destination address could not be
	// decoded for the manager's network.
	ErrInvalidAddress

	// ErrDustOutput indicates a requested output is below the dust limit.
	ErrDustOutput

	// ErrInvalidUtxo indicates a candidate coin is inconsistent with the
	// raw transaction that is supposed to create it.
	ErrInvalidUtxo

	// ErrReplacement indicates a replacement transaction does not satisfy
	// the replace-by-fee rules against the transaction it replaces.
	ErrReplacement

	// ErrNoUnusedAddress indicates no unused address was available for a
	// change output even after rescanning.
	ErrNoUnusedAddress
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrConfig:            "ErrConfig",
	ErrMissingKey:        "ErrMissingKey",
	ErrMissingPrivateKey: "ErrMissingPrivateKey",
	ErrUnknownAddress:    "ErrUnknownAddress",
	ErrEmptyOutputs:      "ErrEmptyOutputs",
	ErrInsufficientFunds: "ErrInsufficientFunds",
	ErrFeeExceeded:       "ErrFeeExceeded",
	ErrSanityCheck:       "ErrSanityCheck",
	ErrContextCheck:      "ErrContextCheck",
	ErrKeyChain:          "ErrKeyChain",
	ErrInvalidAddress:    "ErrInvalidAddress",
	ErrDustOutput:        "ErrDustOutput",
	ErrInvalidUtxo:       "ErrInvalidUtxo",
	ErrReplacement:       "ErrReplacement",
	ErrNoUnusedAddress:   "ErrNoUnusedAddress",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// ManagerError provides a single type for errors that can happen during key
// manager operation. It is used to indicate several types of failures
// including errors with caller requests such as insufficient funds or unknown
// destinations, and errors in the underlying key derivation.
//
// The caller can use type assertions to determine if an error is a
// ManagerError and access the ErrorCode field to ascertain the specific
// reason for the failure.
//
// The ErrKeyChain, ErrSanityCheck and ErrContextCheck error codes will also
// have the Err field set with the underlying error.
type ManagerError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e ManagerError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e ManagerError) Unwrap() error {
	return e.Err
}

// managerError creates a ManagerError given a set of arguments.
func managerError(c ErrorCode, desc string, err error) ManagerError {
	return ManagerError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a ManagerError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	var e ManagerError
	return errors.As(err, &e) && e.ErrorCode == code
}
