// Package services defines the application logic that turns an inbound email
// into store mutations and a reply. This file centralizes service-level error
// values so they can be returned consistently and checked by callers.
//
// Translation into queue states or HTTP status codes is performed by the
// worker and handler layers.
package services

import "errors"

var (
	// ErrInvalidSender is returned when an email has no usable From address.
	ErrInvalidSender = errors.New("email has no sender address")

	// ErrEmptyReply is returned by the responder when the model produced no
	// text.
	ErrEmptyReply = errors.New("response generator returned no text")
)
