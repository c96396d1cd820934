package models

import "errors"

var (
	// ErrInvalidArgument marks errors caused by the caller's input. Never retried.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStoreUnavailable marks a specialist store that cannot be reached. Retriable.
	ErrStoreUnavailable = errors.New("specialist store unavailable")
	// ErrGeocoderUnavailable marks a geocoding provider that failed to answer. Retriable.
	ErrGeocoderUnavailable = errors.New("geocoding provider unavailable")
)
