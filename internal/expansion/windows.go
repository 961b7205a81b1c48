package expansion

import "textexpander/internal/hid"

// Windows: hold left Alt, type the decimal code point on the numeric
// keypad, release Alt.

func (e *Engine) stepWinPressAlt() {
	e.holdMods(hid.ModLeftAlt)
	e.next(StateWinNumpadPress, e.delay())
}

func (e *Engine) stepWinNumpadPress() {
	d, ok := e.nextDigit()
	if !ok {
		e.next(StateWinReleaseAlt, e.delay())
		return
	}
	e.press(numpadKey(d))
	e.next(StateWinNumpadRelease, e.delay())
}

func (e *Engine) stepWinNumpadRelease() {
	e.release()
	e.job.scratchPos++
	e.next(StateWinNumpadPress, e.delay())
}

func (e *Engine) stepWinReleaseAlt() {
	e.dropMods(hid.ModLeftAlt)
	e.unicodeDone()
}
