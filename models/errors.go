// models/errors.go
package models

import "errors"

var (
	// ErrFatalConfig aborts a vendor run before any fetch is attempted.
	ErrFatalConfig = errors.New("fatal configuration error")
	// ErrCredentialNotFound means the credential function returned no usable row.
	ErrCredentialNotFound = errors.New("vendor credential not found")
	// ErrTransientFetch marks network and vendor API failures for one device.
	ErrTransientFetch = errors.New("transient fetch error")
	// ErrMalformedPayload is returned when a vendor response is not a JSON array.
	ErrMalformedPayload = errors.New("malformed vendor payload")
)
