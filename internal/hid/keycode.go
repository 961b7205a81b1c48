// Package hid defines USB HID keyboard usage codes, the modifier bitmask,
// and the Sender primitive used to emit synthetic key actions.
package hid

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keycode is a HID usage ID from the Keyboard/Keypad usage page.
type Keycode uint16

// None marks the absence of a keycode (no replay key, nothing held).
const None Keycode = 0

// Keyboard/Keypad page usages.
const (
	KeyA Keycode = 0x04
	KeyB Keycode = 0x05
	KeyC Keycode = 0x06
	KeyD Keycode = 0x07
	KeyE Keycode = 0x08
	KeyF Keycode = 0x09
	KeyG Keycode = 0x0A
	KeyH Keycode = 0x0B
	KeyI Keycode = 0x0C
	KeyJ Keycode = 0x0D
	KeyK Keycode = 0x0E
	KeyL Keycode = 0x0F
	KeyM Keycode = 0x10
	KeyN Keycode = 0x11
	KeyO Keycode = 0x12
	KeyP Keycode = 0x13
	KeyQ Keycode = 0x14
	KeyR Keycode = 0x15
	KeyS Keycode = 0x16
	KeyT Keycode = 0x17
	KeyU Keycode = 0x18
	KeyV Keycode = 0x19
	KeyW Keycode = 0x1A
	KeyX Keycode = 0x1B
	KeyY Keycode = 0x1C
	KeyZ Keycode = 0x1D

	Key1 Keycode = 0x1E
	Key2 Keycode = 0x1F
	Key3 Keycode = 0x20
	Key4 Keycode = 0x21
	Key5 Keycode = 0x22
	Key6 Keycode = 0x23
	Key7 Keycode = 0x24
	Key8 Keycode = 0x25
	Key9 Keycode = 0x26
	Key0 Keycode = 0x27

	KeyEnter      Keycode = 0x28
	KeyEscape     Keycode = 0x29
	KeyBackspace  Keycode = 0x2A
	KeyTab        Keycode = 0x2B
	KeySpace      Keycode = 0x2C
	KeyMinus      Keycode = 0x2D // - and _
	KeyEqual      Keycode = 0x2E // = and +
	KeyLeftBrace  Keycode = 0x2F // [ and {
	KeyRightBrace Keycode = 0x30 // ] and }
	KeyBackslash  Keycode = 0x31 // \ and |
	KeyNonUSHash  Keycode = 0x32 // Non-US # and ~
	KeySemicolon  Keycode = 0x33 // ; and :
	KeyApostrophe Keycode = 0x34 // ' and "
	KeyGrave      Keycode = 0x35 // ` and ~
	KeyComma      Keycode = 0x36 // , and <
	KeyPeriod     Keycode = 0x37 // . and >
	KeySlash      Keycode = 0x38 // / and ?
	KeyCapsLock   Keycode = 0x39

	KeyF1  Keycode = 0x3A
	KeyF2  Keycode = 0x3B
	KeyF3  Keycode = 0x3C
	KeyF4  Keycode = 0x3D
	KeyF5  Keycode = 0x3E
	KeyF6  Keycode = 0x3F
	KeyF7  Keycode = 0x40
	KeyF8  Keycode = 0x41
	KeyF9  Keycode = 0x42
	KeyF10 Keycode = 0x43
	KeyF11 Keycode = 0x44
	KeyF12 Keycode = 0x45

	KeyPrintScreen Keycode = 0x46
	KeyScrollLock  Keycode = 0x47
	KeyPause       Keycode = 0x48
	KeyInsert      Keycode = 0x49
	KeyHome        Keycode = 0x4A
	KeyPageUp      Keycode = 0x4B
	KeyDelete      Keycode = 0x4C
	KeyEnd         Keycode = 0x4D
	KeyPageDown    Keycode = 0x4E
	KeyRight       Keycode = 0x4F
	KeyLeft        Keycode = 0x50
	KeyDown        Keycode = 0x51
	KeyUp          Keycode = 0x52

	KeyNumLock    Keycode = 0x53
	KeyKpSlash    Keycode = 0x54
	KeyKpAsterisk Keycode = 0x55
	KeyKpMinus    Keycode = 0x56
	KeyKpPlus     Keycode = 0x57
	KeyKpEnter    Keycode = 0x58
	KeyKp1        Keycode = 0x59
	KeyKp2        Keycode = 0x5A
	KeyKp3        Keycode = 0x5B
	KeyKp4        Keycode = 0x5C
	KeyKp5        Keycode = 0x5D
	KeyKp6        Keycode = 0x5E
	KeyKp7        Keycode = 0x5F
	KeyKp8        Keycode = 0x60
	KeyKp9        Keycode = 0x61
	KeyKp0        Keycode = 0x62
	KeyKpDot      Keycode = 0x63

	KeyNonUSBackslash Keycode = 0x64 // Non-US \ and |, the ISO key left of Z

	KeyLeftCtrl   Keycode = 0xE0
	KeyLeftShift  Keycode = 0xE1
	KeyLeftAlt    Keycode = 0xE2
	KeyLeftGUI    Keycode = 0xE3
	KeyRightCtrl  Keycode = 0xE4
	KeyRightShift Keycode = 0xE5
	KeyRightAlt   Keycode = 0xE6
	KeyRightGUI   Keycode = 0xE7
)

// Modifiers is the HID report modifier byte.
type Modifiers uint8

const (
	ModLeftCtrl   Modifiers = 0x01
	ModLeftShift  Modifiers = 0x02
	ModLeftAlt    Modifiers = 0x04
	ModLeftGUI    Modifiers = 0x08 // Windows/Command key
	ModRightCtrl  Modifiers = 0x10
	ModRightShift Modifiers = 0x20
	ModRightAlt   Modifiers = 0x40
	ModRightGUI   Modifiers = 0x80
)

var modifierKeys = [8]Keycode{
	KeyLeftCtrl, KeyLeftShift, KeyLeftAlt, KeyLeftGUI,
	KeyRightCtrl, KeyRightShift, KeyRightAlt, KeyRightGUI,
}

// Keys returns the modifier keycodes set in m, lowest bit first.
func (m Modifiers) Keys() []Keycode {
	var keys []Keycode
	for i, k := range modifierKeys {
		if m&(1<<i) != 0 {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m Modifiers) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	for _, k := range m.Keys() {
		parts = append(parts, k.String())
	}
	return strings.Join(parts, "+")
}

// Modifier reports the modifier bit for a modifier keycode, or 0.
func (k Keycode) Modifier() Modifiers {
	for i, mk := range modifierKeys {
		if mk == k {
			return 1 << i
		}
	}
	return 0
}

var keyNames = map[string]Keycode{
	"enter": KeyEnter, "return": KeyEnter, "esc": KeyEscape, "escape": KeyEscape,
	"backspace": KeyBackspace, "tab": KeyTab, "space": KeySpace,
	"minus": KeyMinus, "equal": KeyEqual, "left_bracket": KeyLeftBrace,
	"right_bracket": KeyRightBrace, "backslash": KeyBackslash,
	"non_us_hash": KeyNonUSHash, "semicolon": KeySemicolon,
	"apostrophe": KeyApostrophe, "grave": KeyGrave, "comma": KeyComma,
	"period": KeyPeriod, "dot": KeyPeriod, "slash": KeySlash, "caps_lock": KeyCapsLock,
	"f1": KeyF1, "f2": KeyF2, "f3": KeyF3, "f4": KeyF4, "f5": KeyF5, "f6": KeyF6,
	"f7": KeyF7, "f8": KeyF8, "f9": KeyF9, "f10": KeyF10, "f11": KeyF11, "f12": KeyF12,
	"print_screen": KeyPrintScreen, "scroll_lock": KeyScrollLock, "pause": KeyPause,
	"insert": KeyInsert, "home": KeyHome, "page_up": KeyPageUp, "delete": KeyDelete,
	"end": KeyEnd, "page_down": KeyPageDown,
	"right": KeyRight, "left": KeyLeft, "down": KeyDown, "up": KeyUp,
	"num_lock": KeyNumLock, "kp_enter": KeyKpEnter,
	"kp_0": KeyKp0, "kp_1": KeyKp1, "kp_2": KeyKp2, "kp_3": KeyKp3, "kp_4": KeyKp4,
	"kp_5": KeyKp5, "kp_6": KeyKp6, "kp_7": KeyKp7, "kp_8": KeyKp8, "kp_9": KeyKp9,
	"non_us_backslash": KeyNonUSBackslash,
	"left_ctrl": KeyLeftCtrl, "left_shift": KeyLeftShift, "left_alt": KeyLeftAlt,
	"left_gui": KeyLeftGUI, "right_ctrl": KeyRightCtrl, "right_shift": KeyRightShift,
	"right_alt": KeyRightAlt, "right_gui": KeyRightGUI,
}

var codeNames map[Keycode]string

func init() {
	codeNames = make(map[Keycode]string, len(keyNames)+36)
	// Sorted so aliases resolve deterministically to the first name.
	names := make([]string, 0, len(keyNames))
	for n := range keyNames {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if _, ok := codeNames[keyNames[n]]; !ok {
			codeNames[keyNames[n]] = n
		}
	}
	for c := 'a'; c <= 'z'; c++ {
		k := KeyA + Keycode(c-'a')
		keyNames[string(c)] = k
		codeNames[k] = string(c)
	}
	for d := '1'; d <= '9'; d++ {
		k := Key1 + Keycode(d-'1')
		keyNames[string(d)] = k
		codeNames[k] = string(d)
	}
	keyNames["0"] = Key0
	codeNames[Key0] = "0"
}

func (k Keycode) String() string {
	if n, ok := codeNames[k]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", uint16(k))
}

// ParseKeycode resolves a key name ("space", "enter", "a", "kp_1") or a
// numeric usage ("0x2c", "44") to a Keycode.
func ParseKeycode(s string) (Keycode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return None, fmt.Errorf("hid: empty key name")
	}
	if k, ok := keyNames[name]; ok {
		return k, nil
	}
	if len(name) > 1 {
		if v, err := strconv.ParseUint(name, 0, 16); err == nil {
			if v == 0 {
				return None, fmt.Errorf("hid: keycode 0 is reserved")
			}
			return Keycode(v), nil
		}
	}
	return None, fmt.Errorf("hid: unknown key %q", s)
}

// ParseKeycodes parses a list of key names, failing on the first bad entry.
func ParseKeycodes(names []string) ([]Keycode, error) {
	out := make([]Keycode, 0, len(names))
	for _, n := range names {
		k, err := ParseKeycode(n)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}
