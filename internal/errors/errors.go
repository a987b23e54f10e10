package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for different categories
var (
	// ErrToolNotFound - the engine requested a tool name absent from the registry.
	// Fatal to the dispatch: it signals a schema/registration mismatch, not a bad argument.
	ErrToolNotFound = errors.New("tool not found")

	// ErrConfiguration - registry or wiring misconfiguration (empty tool name, duplicate registration)
	ErrConfiguration = errors.New("configuration error")

	// ErrEngineTransport - the reasoning-engine call itself failed (timeout, malformed response).
	// Fatal to the whole query; never retried by the orchestration loop.
	ErrEngineTransport = errors.New("engine transport error")

	// ErrInvalidInput - invalid input (reject the request at the edge)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found
	ErrNotFound = errors.New("not found")

	// ErrTransient - transient error (retry hint for callers)
	ErrTransient = errors.New("transient error")

	// ErrInternal - internal error
	ErrInternal = errors.New("internal error")
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFound wraps a message as not found.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps a message as invalid input.
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// Transient wraps a message as transient.
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps a message as internal.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// EngineTransport wraps a message as an engine transport failure.
func EngineTransport(message string) error {
	return fmt.Errorf("%s: %w", message, ErrEngineTransport)
}

// Configuration wraps a message as a configuration error.
func Configuration(message string) error {
	return fmt.Errorf("%s: %w", message, ErrConfiguration)
}

// IsCategory checks if an error belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}
