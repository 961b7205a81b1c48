//go:build linux

package keystroke

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// uinput ioctl requests from linux/uinput.h.
const (
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503
	uiSetEvBit   = 0x40045564
	uiSetKeyBit  = 0x40045565

	busVirtual = 0x06
)

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	bustype      uint16
	vendor       uint16
	product      uint16
	version      uint16
	name         [80]byte
	ffEffectsMax uint32
}

// OpenKeyboard opens the evdev node at path, or autodetects a physical
// keyboard when path is empty. Devices named exclude are skipped.
func OpenKeyboard(path, exclude string) (*os.File, Device, error) {
	dev := Device{Handler: path}
	if path == "" {
		var err error
		dev, err = DetectKeyboard(exclude)
		if err != nil {
			return nil, Device{}, err
		}
	}
	f, err := os.Open(dev.Handler)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, dev, fmt.Errorf("keystroke: open %s: %w (is the user in the input group?)", dev.Handler, err)
		}
		return nil, dev, fmt.Errorf("keystroke: open %s: %w", dev.Handler, err)
	}
	return f, dev, nil
}

// OpenUinput creates a virtual keyboard named name that can emit every
// key in the evdev map.
func OpenUinput(name string) (*Uinput, error) {
	f, err := os.OpenFile("/dev/uinput", os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("keystroke: open uinput: %w", err)
	}
	fd := int(f.Fd())

	fail := func(step string, err error) (*Uinput, error) {
		f.Close()
		return nil, fmt.Errorf("keystroke: uinput %s: %w", step, err)
	}

	if err := unix.IoctlSetInt(fd, uiSetEvBit, int(EvKey)); err != nil {
		return fail("set EV_KEY", err)
	}
	for _, code := range supportedLinuxKeys() {
		if err := unix.IoctlSetInt(fd, uiSetKeyBit, int(code)); err != nil {
			return fail(fmt.Sprintf("set key %d", code), err)
		}
	}

	setup := uinputSetup{bustype: busVirtual, vendor: 0x1209, product: 0x7e47, version: 1}
	copy(setup.name[:len(setup.name)-1], name)
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uiDevSetup, uintptr(unsafe.Pointer(&setup))); errno != 0 {
		return fail("setup", errno)
	}
	if err := unix.IoctlSetInt(fd, uiDevCreate, 0); err != nil {
		return fail("create", err)
	}

	// Userspace needs a moment to pick up the new device before the
	// first report, or the report is lost.
	time.Sleep(200 * time.Millisecond)

	return &Uinput{Writer: NewWriter(f), closer: &uinputFile{f: f}}, nil
}

type uinputFile struct {
	f *os.File
}

func (u *uinputFile) Close() error {
	_ = unix.IoctlSetInt(int(u.f.Fd()), uiDevDestroy, 0)
	return u.f.Close()
}
