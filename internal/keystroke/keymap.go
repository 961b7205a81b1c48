package keystroke

import "textexpander/internal/hid"

// Linux input-event-codes.h key numbers.
const (
	linuxKeyEsc        = 1
	linuxKey1          = 2
	linuxKeyMinus      = 12
	linuxKeyEqual      = 13
	linuxKeyBackspace  = 14
	linuxKeyTab        = 15
	linuxKeyLeftBrace  = 26
	linuxKeyRightBrace = 27
	linuxKeyEnter      = 28
	linuxKeyLeftCtrl   = 29
	linuxKeySemicolon  = 39
	linuxKeyApostrophe = 40
	linuxKeyGrave      = 41
	linuxKeyLeftShift  = 42
	linuxKeyBackslash  = 43
	linuxKeyComma      = 51
	linuxKeyDot        = 52
	linuxKeySlash      = 53
	linuxKeyRightShift = 54
	linuxKeyKpAsterisk = 55
	linuxKeyLeftAlt    = 56
	linuxKeySpace      = 57
	linuxKeyCapsLock   = 58
	linuxKeyF1         = 59
	linuxKeyNumLock    = 69
	linuxKeyScrollLock = 70
	linuxKeyKpMinus    = 74
	linuxKeyKpPlus     = 78
	linuxKeyKpDot      = 83
	linuxKey102nd      = 86
	linuxKeyF11        = 87
	linuxKeyF12        = 88
	linuxKeyKpEnter    = 96
	linuxKeyRightCtrl  = 97
	linuxKeyKpSlash    = 98
	linuxKeySysRq      = 99
	linuxKeyRightAlt   = 100
	linuxKeyHome       = 102
	linuxKeyUp         = 103
	linuxKeyPageUp     = 104
	linuxKeyLeft       = 105
	linuxKeyRight      = 106
	linuxKeyEnd        = 107
	linuxKeyDown       = 108
	linuxKeyPageDown   = 109
	linuxKeyInsert     = 110
	linuxKeyDelete     = 111
	linuxKeyPause      = 119
	linuxKeyLeftMeta   = 125
	linuxKeyRightMeta  = 126

	linuxKeyMax = 0x2ff
)

var (
	linuxToHID = map[uint16]hid.Keycode{}
	hidToLinux = map[hid.Keycode]uint16{}
)

func bind(linux uint16, k hid.Keycode) {
	if _, dup := linuxToHID[linux]; !dup {
		linuxToHID[linux] = k
	}
	hidToLinux[k] = linux
}

func init() {
	// Letter rows follow the physical QWERTY positions.
	rows := []struct {
		start uint16
		keys  string
	}{
		{16, "qwertyuiop"},
		{30, "asdfghjkl"},
		{44, "zxcvbnm"},
	}
	for _, row := range rows {
		for i, c := range row.keys {
			bind(row.start+uint16(i), hid.KeyA+hid.Keycode(c-'a'))
		}
	}
	for i := uint16(0); i < 9; i++ {
		bind(linuxKey1+i, hid.Key1+hid.Keycode(i))
	}
	bind(linuxKey1+9, hid.Key0)
	for i := uint16(0); i < 10; i++ {
		bind(linuxKeyF1+i, hid.KeyF1+hid.Keycode(i))
	}

	// Keypad digits are laid out 7-8-9 / 4-5-6 / 1-2-3 / 0.
	kp := map[uint16]hid.Keycode{
		71: hid.KeyKp7, 72: hid.KeyKp8, 73: hid.KeyKp9,
		75: hid.KeyKp4, 76: hid.KeyKp5, 77: hid.KeyKp6,
		79: hid.KeyKp1, 80: hid.KeyKp2, 81: hid.KeyKp3,
		82: hid.KeyKp0,
	}
	for l, k := range kp {
		bind(l, k)
	}

	for l, k := range map[uint16]hid.Keycode{
		linuxKeyEsc:        hid.KeyEscape,
		linuxKeyMinus:      hid.KeyMinus,
		linuxKeyEqual:      hid.KeyEqual,
		linuxKeyBackspace:  hid.KeyBackspace,
		linuxKeyTab:        hid.KeyTab,
		linuxKeyLeftBrace:  hid.KeyLeftBrace,
		linuxKeyRightBrace: hid.KeyRightBrace,
		linuxKeyEnter:      hid.KeyEnter,
		linuxKeyLeftCtrl:   hid.KeyLeftCtrl,
		linuxKeySemicolon:  hid.KeySemicolon,
		linuxKeyApostrophe: hid.KeyApostrophe,
		linuxKeyGrave:      hid.KeyGrave,
		linuxKeyLeftShift:  hid.KeyLeftShift,
		linuxKeyComma:      hid.KeyComma,
		linuxKeyDot:        hid.KeyPeriod,
		linuxKeySlash:      hid.KeySlash,
		linuxKeyRightShift: hid.KeyRightShift,
		linuxKeyKpAsterisk: hid.KeyKpAsterisk,
		linuxKeyLeftAlt:    hid.KeyLeftAlt,
		linuxKeySpace:      hid.KeySpace,
		linuxKeyCapsLock:   hid.KeyCapsLock,
		linuxKeyNumLock:    hid.KeyNumLock,
		linuxKeyScrollLock: hid.KeyScrollLock,
		linuxKeyKpMinus:    hid.KeyKpMinus,
		linuxKeyKpPlus:     hid.KeyKpPlus,
		linuxKeyKpDot:      hid.KeyKpDot,
		linuxKey102nd:      hid.KeyNonUSBackslash,
		linuxKeyF11:        hid.KeyF11,
		linuxKeyF12:        hid.KeyF12,
		linuxKeyKpEnter:    hid.KeyKpEnter,
		linuxKeyRightCtrl:  hid.KeyRightCtrl,
		linuxKeyKpSlash:    hid.KeyKpSlash,
		linuxKeySysRq:      hid.KeyPrintScreen,
		linuxKeyRightAlt:   hid.KeyRightAlt,
		linuxKeyHome:       hid.KeyHome,
		linuxKeyUp:         hid.KeyUp,
		linuxKeyPageUp:     hid.KeyPageUp,
		linuxKeyLeft:       hid.KeyLeft,
		linuxKeyRight:      hid.KeyRight,
		linuxKeyEnd:        hid.KeyEnd,
		linuxKeyDown:       hid.KeyDown,
		linuxKeyPageDown:   hid.KeyPageDown,
		linuxKeyInsert:     hid.KeyInsert,
		linuxKeyDelete:     hid.KeyDelete,
		linuxKeyPause:      hid.KeyPause,
		linuxKeyLeftMeta:   hid.KeyLeftGUI,
		linuxKeyRightMeta:  hid.KeyRightGUI,
	} {
		bind(l, k)
	}

	// The kernel reports the ISO hash key and the ANSI backslash key as
	// the same code; both HID usages type through it.
	bind(linuxKeyBackslash, hid.KeyBackslash)
	hidToLinux[hid.KeyNonUSHash] = linuxKeyBackslash
}

// LinuxToHID maps an evdev key code to its HID usage.
func LinuxToHID(code uint16) (hid.Keycode, bool) {
	k, ok := linuxToHID[code]
	return k, ok
}

// HIDToLinux maps a HID usage to the evdev key code that produces it.
func HIDToLinux(k hid.Keycode) (uint16, bool) {
	c, ok := hidToLinux[k]
	return c, ok
}

// supportedLinuxKeys lists every code the virtual keyboard must enable.
func supportedLinuxKeys() []uint16 {
	out := make([]uint16, 0, len(linuxToHID))
	for c := range linuxToHID {
		out = append(out, c)
	}
	return out
}
