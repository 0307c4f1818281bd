package auth

import "errors"

// Authentication errors. All map to UNAUTHENTICATED so a caller cannot tell
// an unknown secret from a bad signature.
var (
	ErrMissingSignature = errors.New("request signature required in x-secret-id, x-timestamp and x-signature metadata")
	ErrUnknownSecret    = errors.New("unknown secret ID")
	ErrInvalidSignature = errors.New("invalid request signature")
	ErrStaleSignature   = errors.New("request timestamp outside allowed skew")
)
