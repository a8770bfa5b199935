package transport

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"

	ioctl "github.com/daedaluz/goioctl"
)

// Linux tty/pty ioctl requests: tiocgptn/tiocsptlck unlock and number
// a pty slave, tcgets/tcsets are the fixed request numbers used to
// read and write a struct termios.
var (
	tiocsptlck = ioctl.IOW('T', 0x31, unsafe.Sizeof(int32(0)))
	tiocgptn   = ioctl.IOR('T', 0x30, unsafe.Sizeof(uint32(0)))
	tcgets     = uintptr(0x5401)
	tcsets     = uintptr(0x5402)
)

// ptyTransport is a Transport backed by the master side of a Linux
// pseudoterminal: a closed-flag guard on Read/Write/Close over a raw
// file descriptor, narrowed to exactly what a byte-stream transport
// needs.
type ptyTransport struct {
	fd     int
	name   string
	closed atomic.Bool
}

func (p *ptyTransport) Read(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := syscall.Read(p.fd, data)
	return n, wrapErr("read pty", err)
}

func (p *ptyTransport) Write(data []byte) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := syscall.Write(p.fd, data)
	return n, wrapErr("write pty", err)
}

func (p *ptyTransport) Close() error {
	if p.closed.Swap(true) {
		return ErrClosed
	}
	return wrapErr("close pty", syscall.Close(p.fd))
}

func (p *ptyTransport) Name() string { return p.name }

// OpenPTYPair opens a fresh Linux pseudoterminal pair and returns the
// master end as a Transport (what this module's command engine reads
// and writes) along with the slave device path (e.g. "/dev/pts/4") a
// DTE application can open with any ordinary serial library.
//
// It opens /dev/ptmx, unlocks the slave, discovers its number, and
// puts the slave into raw mode so no line-discipline processing
// mangles the AT-command bytes.
func OpenPTYPair() (master Transport, slavePath string, err error) {
	fd, err := syscall.Open("/dev/ptmx", syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, "", wrapErr("open /dev/ptmx", err)
	}

	var zero int32
	if ierr := ioctl.Ioctl(fd, tiocsptlck, uintptr(unsafe.Pointer(&zero))); ierr != nil {
		syscall.Close(fd)
		return nil, "", wrapErr("unlock pty slave", ierr)
	}

	var n uint32
	if ierr := ioctl.Ioctl(fd, tiocgptn, uintptr(unsafe.Pointer(&n))); ierr != nil {
		syscall.Close(fd)
		return nil, "", wrapErr("get pty number", ierr)
	}
	slavePath = fmt.Sprintf("/dev/pts/%d", n)

	if err := setSlaveRaw(slavePath); err != nil {
		syscall.Close(fd)
		return nil, "", err
	}

	return &ptyTransport{fd: fd, name: "pty:" + slavePath}, slavePath, nil
}

func setSlaveRaw(path string) error {
	fd, err := syscall.Open(path, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return wrapErr("open pty slave", err)
	}
	defer syscall.Close(fd)

	attrs := &Termios{}
	if err := ioctl.Ioctl(fd, tcgets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return wrapErr("get slave termios", err)
	}
	attrs.MakeRaw()
	if err := ioctl.Ioctl(fd, tcsets, uintptr(unsafe.Pointer(attrs))); err != nil {
		return wrapErr("set slave termios", err)
	}
	return nil
}
