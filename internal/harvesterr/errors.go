// Package harvesterr defines the closed set of failure categories a harvest run distinguishes.
//
// Callers decide retry, skip or abort based on the category:
//
//   - TransientFetchError: a single page or item failed. Log a warning, skip it, continue.
//   - EntityUnavailableError: a tracked user, query, channel or page failed as a whole.
//     Log an error, skip the entity, continue with the others.
//   - ConfigurationError: the run cannot start. Abort the platform before any network call.
//
// Reaching the end of a paged result set is not an error and has no type here.
package harvesterr

import (
	"errors"
	"fmt"
)

// TransientFetchError reports a failed page or item fetch.
type TransientFetchError struct {
	Err  error
	Op   string
	Page int
}

func (e *TransientFetchError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("transient failure in %s (page %d): %v", e.Op, e.Page, e.Err)
	}

	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// EntityUnavailableError reports a tracked entity that could not be harvested at all.
type EntityUnavailableError struct {
	Err      error
	Platform string
	Entity   string
}

func (e *EntityUnavailableError) Error() string {
	return fmt.Sprintf("%s entity %q unavailable: %v", e.Platform, e.Entity, e.Err)
}

func (e *EntityUnavailableError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a platform run that cannot start.
type ConfigurationError struct {
	Platform string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: invalid configuration: %s", e.Platform, e.Reason)
}

// Transient wraps err as a TransientFetchError.
func Transient(op string, page int, err error) error {
	return &TransientFetchError{Op: op, Page: page, Err: err}
}

// Unavailable wraps err as an EntityUnavailableError.
func Unavailable(platform, entity string, err error) error {
	return &EntityUnavailableError{Platform: platform, Entity: entity, Err: err}
}

// Configuration returns a ConfigurationError.
func Configuration(platform, format string, args ...any) error {
	return &ConfigurationError{Platform: platform, Reason: fmt.Sprintf(format, args...)}
}

// IsTransient reports whether err is or wraps a TransientFetchError.
func IsTransient(err error) bool {
	var target *TransientFetchError
	return errors.As(err, &target)
}

// IsEntityUnavailable reports whether err is or wraps an EntityUnavailableError.
func IsEntityUnavailable(err error) bool {
	var target *EntityUnavailableError
	return errors.As(err, &target)
}

// IsConfiguration reports whether err is or wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}
