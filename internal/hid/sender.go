package hid

import "log/slog"

// Sender emits synthetic key actions to the host. Key and modifier changes
// are staged and become visible on the next Flush, mirroring a HID report.
type Sender interface {
	SendKey(code Keycode, pressed bool) error
	RegisterMods(m Modifiers) error
	UnregisterMods(m Modifiers) error
	Flush() error
}

// SendAndFlush sends one key action and flushes the report. Failures are
// logged and otherwise ignored so a transient transport error can never
// leave the caller's state machine waiting on a key that will not arrive.
func SendAndFlush(s Sender, code Keycode, pressed bool, logger *slog.Logger) {
	if err := s.SendKey(code, pressed); err != nil {
		logger.Warn("key send failed", "key", code.String(), "pressed", pressed, "error", err)
	}
	if err := s.Flush(); err != nil {
		logger.Warn("report flush failed", "error", err)
	}
}

// SetMods registers or unregisters modifiers and flushes the report.
func SetMods(s Sender, m Modifiers, down bool, logger *slog.Logger) {
	var err error
	if down {
		err = s.RegisterMods(m)
	} else {
		err = s.UnregisterMods(m)
	}
	if err != nil {
		logger.Warn("modifier update failed", "mods", m.String(), "down", down, "error", err)
	}
	if err := s.Flush(); err != nil {
		logger.Warn("report flush failed", "error", err)
	}
}

// KeySet is an immutable membership set of keycodes.
type KeySet map[Keycode]struct{}

// NewKeySet builds a KeySet from codes.
func NewKeySet(codes ...Keycode) KeySet {
	s := make(KeySet, len(codes))
	for _, c := range codes {
		s[c] = struct{}{}
	}
	return s
}

// Has reports whether k is in the set. A nil set contains nothing.
func (s KeySet) Has(k Keycode) bool {
	_, ok := s[k]
	return ok
}
