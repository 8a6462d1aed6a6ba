// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import "errors"

var (
	// ErrTransport wraps any failure of the underlying connection: a failed dial,
	// a read or write error, or the peer closing the link.
	ErrTransport = errors.New("transport error")

	// ErrClosed is returned once a session has been shut down with Close
	ErrClosed = errors.New("session closed")

	// ErrNoDialer is returned by NewSession when no Dialer is configured
	ErrNoDialer = errors.New("no dialer configured")
)
