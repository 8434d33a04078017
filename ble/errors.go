package ble

import "errors"

var (
	// ErrNoDialer is returned when a Device is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the module.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrAlreadyClosed is returned when Close is called on a Device or
	// Transport that has already been closed.
	ErrAlreadyClosed = errors.New("already closed")
)
