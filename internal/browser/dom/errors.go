// browser/dom/errors.go
package dom

import "errors"

var (
	// ErrNoLocatorSpecified is returned when an intent carries none of the locator keys.
	ErrNoLocatorSpecified = errors.New("no locator specified")
	// ErrAmbiguousOrMissingTarget is returned when a locator matches zero elements,
	// or more than one where a unique element is required.
	ErrAmbiguousOrMissingTarget = errors.New("ambiguous or missing target")
)
