//go:build !linux

package transport

import "errors"

// OpenPTYPair is only implemented on Linux, where the ioctl numbers in
// pty_linux.go apply. Other platforms should inject a Transport of
// their own (NewPipe is always available) rather than call this.
func OpenPTYPair() (master Transport, slavePath string, err error) {
	return nil, "", errors.New("transport: OpenPTYPair is only supported on linux")
}
