package layout

import "textexpander/internal/hid"

// US is the ANSI US QWERTY layout.
var US = newTable("us", append(letters(nil),
	u('1', hid.Key1), u('2', hid.Key2), u('3', hid.Key3), u('4', hid.Key4), u('5', hid.Key5),
	u('6', hid.Key6), u('7', hid.Key7), u('8', hid.Key8), u('9', hid.Key9), u('0', hid.Key0),
	s('!', hid.Key1), s('@', hid.Key2), s('#', hid.Key3), s('$', hid.Key4), s('%', hid.Key5),
	s('^', hid.Key6), s('&', hid.Key7), s('*', hid.Key8), s('(', hid.Key9), s(')', hid.Key0),
	u('-', hid.KeyMinus), s('_', hid.KeyMinus),
	u('=', hid.KeyEqual), s('+', hid.KeyEqual),
	u('[', hid.KeyLeftBrace), s('{', hid.KeyLeftBrace),
	u(']', hid.KeyRightBrace), s('}', hid.KeyRightBrace),
	u('\\', hid.KeyBackslash), s('|', hid.KeyBackslash),
	u(';', hid.KeySemicolon), s(':', hid.KeySemicolon),
	u('\'', hid.KeyApostrophe), s('"', hid.KeyApostrophe),
	u('`', hid.KeyGrave), s('~', hid.KeyGrave),
	u(',', hid.KeyComma), s('<', hid.KeyComma),
	u('.', hid.KeyPeriod), s('>', hid.KeyPeriod),
	u('/', hid.KeySlash), s('?', hid.KeySlash),
), nil)

// German is the ISO German QWERTZ layout. Dead keys (^ ` ´) are left
// unmapped so they are typed through the OS Unicode path.
var German = newTable("de", append(letters(map[byte]hid.Keycode{'y': hid.KeyZ, 'z': hid.KeyY}),
	u('1', hid.Key1), u('2', hid.Key2), u('3', hid.Key3), u('4', hid.Key4), u('5', hid.Key5),
	u('6', hid.Key6), u('7', hid.Key7), u('8', hid.Key8), u('9', hid.Key9), u('0', hid.Key0),
	s('!', hid.Key1), s('"', hid.Key2), s('$', hid.Key4), s('%', hid.Key5),
	s('&', hid.Key6), s('/', hid.Key7), s('(', hid.Key8), s(')', hid.Key9), s('=', hid.Key0),
	s('?', hid.KeyMinus),
	u('+', hid.KeyRightBrace), s('*', hid.KeyRightBrace),
	u('#', hid.KeyNonUSHash), s('\'', hid.KeyNonUSHash),
	u(',', hid.KeyComma), s(';', hid.KeyComma),
	u('.', hid.KeyPeriod), s(':', hid.KeyPeriod),
	u('-', hid.KeySlash), s('_', hid.KeySlash),
	u('<', hid.KeyNonUSBackslash), s('>', hid.KeyNonUSBackslash),
	g('@', hid.KeyQ), g('{', hid.Key7), g('[', hid.Key8), g(']', hid.Key9), g('}', hid.Key0),
	g('\\', hid.KeyMinus), g('~', hid.KeyRightBrace), g('|', hid.KeyNonUSBackslash),
), map[hid.Keycode]rune{
	hid.KeyMinus:      'ß',
	hid.KeyLeftBrace:  'ü',
	hid.KeySemicolon:  'ö',
	hid.KeyApostrophe: 'ä',
	// Hosts that report the ISO hash key as the ANSI backslash usage.
	hid.KeyBackslash: '#',
})

// French is the AZERTY layout. Digits need shift; the unshifted number row
// carries punctuation and accented letters.
var French = newTable("fr", append(letters(map[byte]hid.Keycode{
	'a': hid.KeyQ, 'q': hid.KeyA, 'z': hid.KeyW, 'w': hid.KeyZ, 'm': hid.KeySemicolon,
}),
	s('1', hid.Key1), s('2', hid.Key2), s('3', hid.Key3), s('4', hid.Key4), s('5', hid.Key5),
	s('6', hid.Key6), s('7', hid.Key7), s('8', hid.Key8), s('9', hid.Key9), s('0', hid.Key0),
	u('&', hid.Key1), u('"', hid.Key3), u('\'', hid.Key4), u('(', hid.Key5),
	u('-', hid.Key6), u('_', hid.Key8),
	u(')', hid.KeyMinus),
	u('=', hid.KeyEqual), s('+', hid.KeyEqual),
	u('$', hid.KeyRightBrace),
	u('*', hid.KeyNonUSHash),
	s('%', hid.KeyApostrophe),
	u(',', hid.KeyM), s('?', hid.KeyM),
	u(';', hid.KeyComma), s('.', hid.KeyComma),
	u(':', hid.KeyPeriod), s('/', hid.KeyPeriod),
	u('!', hid.KeySlash),
	u('<', hid.KeyNonUSBackslash), s('>', hid.KeyNonUSBackslash),
	g('#', hid.Key3), g('{', hid.Key4), g('[', hid.Key5), g('|', hid.Key6),
	g('\\', hid.Key8), g('^', hid.Key9), g('@', hid.Key0),
	g(']', hid.KeyMinus), g('}', hid.KeyEqual),
), map[hid.Keycode]rune{
	hid.Key2:          'é',
	hid.Key7:          'è',
	hid.Key9:          'ç',
	hid.Key0:          'à',
	hid.KeyApostrophe: 'ù',
	hid.KeyBackslash:  '*',
})

func init() {
	register(US, "en-us", "qwerty")
	register(German, "german", "qwertz")
	register(French, "french", "azerty")
}
