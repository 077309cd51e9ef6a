package credential

import "errors"

var (
	// ErrUnknownProvider is returned for a provider id the server has no adapter for.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrEmptyKey is returned when setting a blank API key.
	ErrEmptyKey = errors.New("api key is empty")

	// ErrNoMasterKey is returned when storing a key without a configured master key.
	ErrNoMasterKey = errors.New("master key not configured")

	// ErrDecrypt is returned when a stored key cannot be opened with the master key.
	ErrDecrypt = errors.New("decrypt credential")
)
