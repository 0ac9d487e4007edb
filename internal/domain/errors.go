package domain

import "errors"

var (
	// ErrBadTimestamp marks a rule outcome that could not be evaluated because
	// the transaction timestamp is unparsable. It resolves to zero score
	// impact (fail-open).
	ErrBadTimestamp = errors.New("unparsable transaction timestamp")

	// ErrNotConfigured is returned by wiring when an optional backend is
	// referenced but its configuration section is empty.
	ErrNotConfigured = errors.New("backend not configured")
)
