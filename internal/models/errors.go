package models

import (
	"errors"
	"fmt"
)

// Error categories. Use errors.Is against these; the typed errors below carry
// the details and match their category.
var (
	// ErrConfiguration indicates invalid or missing settings. Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrConnection indicates the vector index or a provider is unreachable.
	ErrConnection = errors.New("connection error")

	// ErrProvider indicates the embedding or chat provider rejected a request
	// or returned something malformed.
	ErrProvider = errors.New("provider error")

	// ErrDimensionMismatch indicates a vector length disagrees with the
	// configured or stored dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrNotFound indicates an operation against an absent collection.
	ErrNotFound = errors.New("not found")
)

// ConfigError wraps a configuration problem so it matches ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ProviderError is a failed call to an embedding or chat provider. The
// provider's original message is preserved in Err.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() []error { return []error{ErrProvider, e.Err} }

// ConnectionError is a failure to reach Target.
type ConnectionError struct {
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach %s: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// DimensionError reports a vector of the wrong length.
type DimensionError struct {
	Context  string
	Expected int
	Got      int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: expected dimension %d, got %d", e.Context, e.Expected, e.Got)
}

func (e *DimensionError) Is(target error) bool { return target == ErrDimensionMismatch }

// NotFoundError reports an absent collection (or other named entity).
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
