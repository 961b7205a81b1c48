package expansion

import "textexpander/internal/hid"

// macOS (Unicode Hex Input source): hold Option, type four hex digits,
// release Option.

func (e *Engine) stepMacPressOption() {
	e.holdMods(hid.ModLeftAlt)
	e.next(StateMacHexPress, e.delay())
}

func (e *Engine) stepMacHexPress() {
	d, ok := e.nextDigit()
	if !ok {
		e.next(StateMacReleaseOption, e.delay())
		return
	}
	e.press(hexKey(d))
	e.next(StateMacHexRelease, e.delay())
}

func (e *Engine) stepMacHexRelease() {
	e.release()
	e.job.scratchPos++
	e.next(StateMacHexPress, e.delay())
}

func (e *Engine) stepMacReleaseOption() {
	e.dropMods(hid.ModLeftAlt)
	e.unicodeDone()
}
