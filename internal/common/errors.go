// Package common defines sentinel errors shared by the ingestion pipeline,
// the catalog and the command binaries. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Key codec errors.
	ErrorUnparseableKey = errors.New("unparseable key")

	// Pipeline errors.
	ErrorHashing      = errors.New("hashing failed")
	ErrorListing      = errors.New("listing failed")
	ErrorHashMismatch = errors.New("content hash does not match key")
	ErrorCanceled     = errors.New("canceled")
)
