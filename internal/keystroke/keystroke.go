// Package keystroke connects the expander to a Linux host: an evdev
// listener feeds physical key events in, and a uinput virtual keyboard
// carries synthetic key actions out.
package keystroke

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"textexpander/internal/hid"
)

var (
	// ErrNotAvailable is returned on hosts without evdev and uinput.
	ErrNotAvailable = errors.New("keystroke: not available on this platform")

	// ErrNoKeyboard is returned when autodetection finds no usable device.
	ErrNoKeyboard = errors.New("keystroke: no keyboard device found")
)

// Sink receives key events. *expander.Expander satisfies it.
type Sink interface {
	PressKey(k hid.Keycode) error
	ReleaseKey(k hid.Keycode) error
	ManualTrigger() error
}

// Device is one entry of /proc/bus/input/devices.
type Device struct {
	Name    string
	Phys    string
	Handler string // /dev/input/eventN
	Bus     uint16
	Vendor  uint16
	Product uint16

	keyBits string
}

// Keyboard reports whether the device advertises a keyboard-sized key
// capability bitmap. Mice and power buttons advertise a handful of bits.
func (d Device) Keyboard() bool {
	return len(d.keyBits) > 20
}

// Virtual reports whether the device has no physical path, as uinput
// devices do.
func (d Device) Virtual() bool {
	return d.Phys == "" || strings.HasPrefix(strings.ToLower(d.Phys), "virtual")
}

// ParseDevices parses the /proc/bus/input/devices format.
func ParseDevices(r io.Reader) ([]Device, error) {
	var devices []Device
	var cur Device
	started := false

	flush := func() {
		if started {
			devices = append(devices, cur)
		}
		cur = Device{}
		started = false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			flush()
			continue
		}
		started = true

		switch {
		// I: Bus=0003 Vendor=046d Product=c52b Version=0111
		case strings.HasPrefix(line, "I:"):
			for _, part := range strings.Fields(line[2:]) {
				k, v, ok := strings.Cut(part, "=")
				if !ok {
					continue
				}
				n, err := strconv.ParseUint(v, 16, 16)
				if err != nil {
					continue
				}
				switch k {
				case "Bus":
					cur.Bus = uint16(n)
				case "Vendor":
					cur.Vendor = uint16(n)
				case "Product":
					cur.Product = uint16(n)
				}
			}
		// N: Name="AT Translated Set 2 keyboard"
		case strings.HasPrefix(line, "N: Name="):
			cur.Name = strings.Trim(strings.TrimPrefix(line, "N: Name="), `"`)
		case strings.HasPrefix(line, "P: Phys="):
			cur.Phys = strings.TrimPrefix(line, "P: Phys=")
		case strings.HasPrefix(line, "H: Handlers="):
			for _, part := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(part, "event") {
					cur.Handler = "/dev/input/" + part
				}
			}
		case strings.HasPrefix(line, "B: KEY="):
			cur.keyBits = strings.TrimPrefix(line, "B: KEY=")
		}
	}
	flush()
	return devices, scanner.Err()
}

// SelectKeyboard picks the first physical keyboard, skipping any device
// named exclude (the daemon's own virtual keyboard).
func SelectKeyboard(devices []Device, exclude string) (Device, error) {
	for _, d := range devices {
		if !d.Keyboard() || d.Handler == "" || d.Virtual() {
			continue
		}
		if exclude != "" && d.Name == exclude {
			continue
		}
		return d, nil
	}
	return Device{}, ErrNoKeyboard
}

// DetectKeyboard reads /proc/bus/input/devices and selects a keyboard.
func DetectKeyboard(exclude string) (Device, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Device{}, ErrNotAvailable
		}
		return Device{}, err
	}
	defer f.Close()

	devices, err := ParseDevices(f)
	if err != nil {
		return Device{}, err
	}
	return SelectKeyboard(devices, exclude)
}
