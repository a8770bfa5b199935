package transport

import (
	"io"
	"sync/atomic"
)

// pipeTransport is a Transport backed by a pair of io.Pipe conduits,
// with the same closed-flag-guarded Read/Write/Close shape as the
// real pty transport, just over io.Pipe instead of a raw file
// descriptor.
type pipeTransport struct {
	name   string
	r      *io.PipeReader
	w      *io.PipeWriter
	closed atomic.Bool
}

func (p *pipeTransport) Read(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.r.Read(data)
}

func (p *pipeTransport) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	return p.w.Write(data)
}

func (p *pipeTransport) Close() error {
	if p.closed.Swap(true) {
		return ErrClosed
	}
	rErr := p.r.Close()
	wErr := p.w.Close()
	if rErr != nil {
		return wrapErr("close pipe reader", rErr)
	}
	if wErr != nil {
		return wrapErr("close pipe writer", wErr)
	}
	return nil
}

func (p *pipeTransport) Name() string { return p.name }

// NewPipe returns two ends of an in-memory full-duplex byte channel:
// emulatorSide is what the command engine reads/writes, dteSide is
// what a test harness (standing in for the DTE application) reads and
// writes. Bytes written to one side's Write become readable from the
// other side's Read.
func NewPipe() (emulatorSide, dteSide Transport) {
	toEmulatorR, toEmulatorW := io.Pipe() // dte writes toEmulatorW; emulator reads toEmulatorR
	toDteR, toDteW := io.Pipe()           // emulator writes toDteW; dte reads toDteR

	emulatorSide = &pipeTransport{name: "pipe:emulator", r: toEmulatorR, w: toDteW}
	dteSide = &pipeTransport{name: "pipe:dte", r: toDteR, w: toEmulatorW}
	return emulatorSide, dteSide
}
