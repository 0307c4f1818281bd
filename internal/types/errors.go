package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for linewarden operations.
var (
	// ErrInvalidConfig marks configuration errors. They abort the operation
	// that triggered them and are never defaulted.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoActiveLine indicates no active line asset exists for the identifier.
	ErrNoActiveLine = errors.New("no active line found")

	// ErrNoDevice indicates the line has no linked device asset.
	ErrNoDevice = errors.New("no device found (mandatory)")

	// ErrFieldNotFound indicates a field path could not be resolved.
	ErrFieldNotFound = errors.New("field not found")

	// ErrPathTooDeep indicates a field path exceeds MaxPathDepth.
	ErrPathTooDeep = errors.New("field path exceeds maximum depth")

	// ErrSourceUnavailable indicates the catalog record source failed.
	ErrSourceUnavailable = errors.New("record source unavailable")

	// ErrTransport indicates a per-identifier validation call failed.
	ErrTransport = errors.New("validation transport failed")
)

// MaxPathDepth bounds dotted path resolution.
const MaxPathDepth = 16

// ConfigError is a configuration error raised by a named component.
type ConfigError struct {
	Component string
	Message   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// NewConfigError builds a ConfigError with a formatted message.
func NewConfigError(component, format string, args ...any) *ConfigError {
	return &ConfigError{Component: component, Message: fmt.Sprintf(format, args...)}
}

// LookupError is a per-identifier lookup failure. It ends that identifier's
// pipeline and is rendered as an error result; it never aborts a batch.
type LookupError struct {
	MSISDN string
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s: %v", e.MSISDN, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
