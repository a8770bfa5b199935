// Package transport provides the Byte Transport collaborator: an
// opened, full-duplex byte channel that the emulator reads AT commands
// and binary uploads from, and writes responses to.
//
// This is deliberately the thinnest layer in the module — the
// concrete byte channel is an injected collaborator, not part of the
// core. Two implementations ship here: a real Linux pseudoterminal
// pair (pty_linux.go) and an in-memory Pipe used by every test and by
// non-Linux builds.
package transport

import "io"

// Transport is a named, full-duplex byte channel. Read and Write may be
// called concurrently by different goroutines (one reader loop, one
// writer), but never concurrently with themselves.
type Transport interface {
	io.Reader
	io.Writer
	io.Closer
	// Name identifies the transport for logging, e.g. "pty:/dev/pts/4".
	Name() string
}

// Error wraps a transport failure with an optional descriptive
// message: a message, an optionally-wrapped underlying error, and an
// Unwrap so errors.Is/As still see through it.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return e.msg + ": " + e.err.Error()
		}
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e Error) Unwrap() error { return e.err }

func wrapErr(msg string, err error) error {
	if err == nil {
		return nil
	}
	return Error{msg: msg, err: err}
}

// ErrClosed is returned by Read/Write/Close on a Transport that has
// already been closed.
var ErrClosed = Error{msg: "transport already closed"}
