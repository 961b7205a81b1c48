//go:build !linux

package keystroke

import "os"

// OpenKeyboard is only supported on Linux.
func OpenKeyboard(path, exclude string) (*os.File, Device, error) {
	return nil, Device{}, ErrNotAvailable
}

// OpenUinput is only supported on Linux.
func OpenUinput(name string) (*Uinput, error) {
	return nil, ErrNotAvailable
}
