package expansion

import (
	"textexpander/internal/hid"
	"textexpander/internal/layout"
)

// Linux (IBus/GTK): Ctrl+Shift+U opens hex entry, the digits follow with
// no modifiers held, Enter commits.

const ctrlShift = hid.ModLeftCtrl | hid.ModLeftShift

func (e *Engine) stepLinuxPressCtrlShift() {
	e.holdMods(ctrlShift)
	e.next(StateLinuxPressU, e.delay())
}

func (e *Engine) stepLinuxPressU() {
	e.press(hid.KeyU)
	e.next(StateLinuxReleaseU, e.delay())
}

func (e *Engine) stepLinuxReleaseU() {
	e.release()
	e.next(StateLinuxReleaseCtrlShift, e.delay())
}

func (e *Engine) stepLinuxReleaseCtrlShift() {
	e.dropMods(ctrlShift)
	e.next(StateLinuxHexPress, e.delay())
}

// The host interprets keysyms here, so digits are typed through the
// layout; fixed US positions are the fallback.
func (e *Engine) stepLinuxHexPress() {
	d, ok := e.nextDigit()
	if !ok {
		e.next(StateLinuxPressTerminator, e.delay())
		return
	}
	st, mapped := e.layout.CharToKeycode(d)
	if !mapped {
		st = layout.Stroke{Key: hexKey(d)}
	}
	if st.Mods != 0 {
		e.holdMods(st.Mods)
	}
	e.press(st.Key)
	e.next(StateLinuxHexRelease, e.delay())
}

func (e *Engine) stepLinuxHexRelease() {
	e.release()
	e.clearMods()
	e.job.scratchPos++
	e.next(StateLinuxHexPress, e.delay())
}

func (e *Engine) stepLinuxPressTerminator() {
	e.press(hid.KeyEnter)
	e.next(StateLinuxReleaseTerminator, e.delay())
}

func (e *Engine) stepLinuxReleaseTerminator() {
	e.release()
	e.unicodeDone()
}
