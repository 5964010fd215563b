// Package assistant – errors.go declares the sentinel errors shared across
// the request pipeline. Every handler folds these into the result envelope
// instead of letting them cross the HTTP boundary.
package assistant

import "errors"

var (
	// ErrConfigMissing marks a request that cannot proceed because a required
	// credential or id is absent from configuration.
	ErrConfigMissing = errors.New("assistant: required configuration missing")

	// ErrRemoteCreateFailed marks a remote contact creation that returned no
	// usable identifier.
	ErrRemoteCreateFailed = errors.New("assistant: remote contact creation returned no id")

	// ErrContactNotFound marks an inbound message whose contact cannot be
	// resolved locally or remotely.
	ErrContactNotFound = errors.New("assistant: contact not found")
)
