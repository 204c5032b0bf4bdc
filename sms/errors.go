// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package sms

import "errors"

var (
	// ErrPermissionDenied means the send capability is not authorized.
	// Checked before any state is registered.
	ErrPermissionDenied = errors.New("send capability not authorized")

	// ErrSignalTooWeak means the measured signal level on the chosen
	// subscription is below the configured minimum.
	ErrSignalTooWeak = errors.New("signal level below configured minimum")

	// ErrRateLimited means the per-destination send rate was exceeded.
	ErrRateLimited = errors.New("send rate limit exceeded")

	// ErrEmptyDestination rejects a request without a recipient.
	ErrEmptyDestination = errors.New("destination must not be empty")

	// ErrEmptyBody rejects a request without message text.
	ErrEmptyBody = errors.New("body must not be empty")

	// ErrNoRecipients rejects a bulk send whose recipient list is empty
	// after validation.
	ErrNoRecipients = errors.New("no valid recipients")
)
