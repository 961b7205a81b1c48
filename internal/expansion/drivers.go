package expansion

import (
	"fmt"
	"strconv"
	"strings"

	"textexpander/internal/hid"
	"textexpander/internal/trie"
)

// OS selects the Unicode entry protocol used for characters the layout
// cannot type directly.
type OS int

const (
	OSWindows OS = iota
	OSMacOS
	OSLinux
)

func (o OS) String() string {
	switch o {
	case OSWindows:
		return "windows"
	case OSMacOS:
		return "macos"
	case OSLinux:
		return "linux"
	}
	return fmt.Sprintf("os(%d)", int(o))
}

// ParseOS accepts "windows"/"win", "macos"/"mac", "linux".
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return OSWindows, nil
	case "macos", "mac", "darwin":
		return OSMacOS, nil
	case "linux":
		return OSLinux, nil
	}
	return 0, fmt.Errorf("expansion: unknown OS %q", s)
}

// osForOpcode maps an in-band OS-select marker to its driver.
func osForOpcode(b byte) OS {
	switch b {
	case trie.OpSelectMacOS:
		return OSMacOS
	case trie.OpSelectLinux:
		return OSLinux
	}
	return OSWindows
}

// osForCommand maps the text form "cmd:win" etc.
func osForCommand(cmd string) (OS, bool) {
	switch cmd {
	case "cmd:win":
		return OSWindows, true
	case "cmd:mac":
		return OSMacOS, true
	case "cmd:linux":
		return OSLinux, true
	}
	return 0, false
}

// Driver is one OS-specific Unicode entry protocol. Render writes the code
// point's digits into dst; First is the driver's initial sub-state. Every
// driver's final sub-state counts one typed character and resumes text
// typing.
type Driver interface {
	OS() OS
	Render(dst []byte, cp rune) []byte
	First() State
}

type windowsDriver struct{}
type macDriver struct{}
type linuxDriver struct{}

func (windowsDriver) OS() OS       { return OSWindows }
func (windowsDriver) First() State { return StateWinPressAlt }

// Render writes the decimal form used with Alt + numeric keypad.
func (windowsDriver) Render(dst []byte, cp rune) []byte {
	if cp <= 0 {
		return dst
	}
	return strconv.AppendUint(dst, uint64(cp), 10)
}

func (macDriver) OS() OS       { return OSMacOS }
func (macDriver) First() State { return StateMacPressOption }

// Render writes four or more lowercase hex digits for Unicode Hex Input.
func (macDriver) Render(dst []byte, cp rune) []byte {
	if cp <= 0 {
		return dst
	}
	return fmt.Appendf(dst, "%04x", cp)
}

func (linuxDriver) OS() OS       { return OSLinux }
func (linuxDriver) First() State { return StateLinuxPressCtrlShift }

// Render writes unpadded lowercase hex for Ctrl+Shift+U entry.
func (linuxDriver) Render(dst []byte, cp rune) []byte {
	if cp <= 0 {
		return dst
	}
	return strconv.AppendUint(dst, uint64(cp), 16)
}

// DriverFor returns the driver for os.
func DriverFor(os OS) Driver {
	switch os {
	case OSWindows:
		return windowsDriver{}
	case OSMacOS:
		return macDriver{}
	case OSLinux:
		return linuxDriver{}
	}
	return windowsDriver{}
}

var numpadKeys = [10]hid.Keycode{
	hid.KeyKp0, hid.KeyKp1, hid.KeyKp2, hid.KeyKp3, hid.KeyKp4,
	hid.KeyKp5, hid.KeyKp6, hid.KeyKp7, hid.KeyKp8, hid.KeyKp9,
}

// numpadKey maps a decimal digit to its keypad key.
func numpadKey(d byte) hid.Keycode {
	if d < '0' || d > '9' {
		return hid.None
	}
	return numpadKeys[d-'0']
}

// hexKey maps a hex digit to its key position on a US keyboard, which is
// what the macOS Unicode Hex Input source expects regardless of layout.
func hexKey(d byte) hid.Keycode {
	switch {
	case d == '0':
		return hid.Key0
	case d >= '1' && d <= '9':
		return hid.Key1 + hid.Keycode(d-'1')
	case d >= 'a' && d <= 'f':
		return hid.KeyA + hid.Keycode(d-'a')
	case d >= 'A' && d <= 'F':
		return hid.KeyA + hid.Keycode(d-'A')
	}
	return hid.None
}
