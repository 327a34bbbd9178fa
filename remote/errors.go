package remote

import (
	"errors"
)

var (
	// ErrRemoteTimeout means no response arrived within the caller's bound.
	ErrRemoteTimeout = errors.New("remote: timed out waiting for response")
	// ErrRemoteError means the gateway reported a failure or the response
	// payload could not be decoded.
	ErrRemoteError     = errors.New("remote: request failed")
	ErrInvalidArgument = errors.New("remote: invalid argument")
	ErrClientClosed    = errors.New("remote: client closed")
)
