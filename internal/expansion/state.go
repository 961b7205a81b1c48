package expansion

import "fmt"

// State is a step of the expansion state machine.
type State int

const (
	StateIdle State = iota
	StateStartBackspace
	StateBackspacePress
	StateBackspaceRelease
	StateStartTyping
	StateTypeCharStart
	StateTypeLiteralChar
	StateTypeCharKeyPress
	StateTypeCharKeyRelease
	StateFinish
	StateReplayKeyPress
	StateReplayKeyRelease
	StateUnicodeStart

	StateWinPressAlt
	StateWinNumpadPress
	StateWinNumpadRelease
	StateWinReleaseAlt

	StateMacPressOption
	StateMacHexPress
	StateMacHexRelease
	StateMacReleaseOption

	StateLinuxPressCtrlShift
	StateLinuxPressU
	StateLinuxReleaseU
	StateLinuxReleaseCtrlShift
	StateLinuxHexPress
	StateLinuxHexRelease
	StateLinuxPressTerminator
	StateLinuxReleaseTerminator

	numStates
)

var stateNames = [...]string{
	StateIdle:                   "idle",
	StateStartBackspace:         "start-backspace",
	StateBackspacePress:         "backspace-press",
	StateBackspaceRelease:       "backspace-release",
	StateStartTyping:            "start-typing",
	StateTypeCharStart:          "type-char-start",
	StateTypeLiteralChar:        "type-literal-char",
	StateTypeCharKeyPress:       "type-char-key-press",
	StateTypeCharKeyRelease:     "type-char-key-release",
	StateFinish:                 "finish",
	StateReplayKeyPress:         "replay-key-press",
	StateReplayKeyRelease:       "replay-key-release",
	StateUnicodeStart:           "unicode-start",
	StateWinPressAlt:            "win-press-alt",
	StateWinNumpadPress:         "win-numpad-press",
	StateWinNumpadRelease:       "win-numpad-release",
	StateWinReleaseAlt:          "win-release-alt",
	StateMacPressOption:         "mac-press-option",
	StateMacHexPress:            "mac-hex-press",
	StateMacHexRelease:          "mac-hex-release",
	StateMacReleaseOption:       "mac-release-option",
	StateLinuxPressCtrlShift:    "linux-press-ctrl-shift",
	StateLinuxPressU:            "linux-press-u",
	StateLinuxReleaseU:          "linux-release-u",
	StateLinuxReleaseCtrlShift:  "linux-release-ctrl-shift",
	StateLinuxHexPress:          "linux-hex-press",
	StateLinuxHexRelease:        "linux-hex-release",
	StateLinuxPressTerminator:   "linux-press-terminator",
	StateLinuxReleaseTerminator: "linux-release-terminator",
}

// Fails to compile if a state is added without a name.
var _ = [1]struct{}{}[len(stateNames)-int(numStates)]

func (s State) String() string {
	if s < 0 || s >= numStates {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// newHandlerTable maps every state to its step function. A missing entry
// is a nil func, which dispatch treats as an unknown state.
func newHandlerTable() [numStates]func(*Engine) {
	return [numStates]func(*Engine){
		StateIdle:                   (*Engine).stepIdle,
		StateStartBackspace:         (*Engine).stepStartBackspace,
		StateBackspacePress:         (*Engine).stepBackspacePress,
		StateBackspaceRelease:       (*Engine).stepBackspaceRelease,
		StateStartTyping:            (*Engine).stepStartTyping,
		StateTypeCharStart:          (*Engine).stepTypeCharStart,
		StateTypeLiteralChar:        (*Engine).stepTypeLiteralChar,
		StateTypeCharKeyPress:       (*Engine).stepTypeCharKeyPress,
		StateTypeCharKeyRelease:     (*Engine).stepTypeCharKeyRelease,
		StateFinish:                 (*Engine).stepFinish,
		StateReplayKeyPress:         (*Engine).stepReplayKeyPress,
		StateReplayKeyRelease:       (*Engine).stepReplayKeyRelease,
		StateUnicodeStart:           (*Engine).stepUnicodeStart,
		StateWinPressAlt:            (*Engine).stepWinPressAlt,
		StateWinNumpadPress:         (*Engine).stepWinNumpadPress,
		StateWinNumpadRelease:       (*Engine).stepWinNumpadRelease,
		StateWinReleaseAlt:          (*Engine).stepWinReleaseAlt,
		StateMacPressOption:         (*Engine).stepMacPressOption,
		StateMacHexPress:            (*Engine).stepMacHexPress,
		StateMacHexRelease:          (*Engine).stepMacHexRelease,
		StateMacReleaseOption:       (*Engine).stepMacReleaseOption,
		StateLinuxPressCtrlShift:    (*Engine).stepLinuxPressCtrlShift,
		StateLinuxPressU:            (*Engine).stepLinuxPressU,
		StateLinuxReleaseU:          (*Engine).stepLinuxReleaseU,
		StateLinuxReleaseCtrlShift:  (*Engine).stepLinuxReleaseCtrlShift,
		StateLinuxHexPress:          (*Engine).stepLinuxHexPress,
		StateLinuxHexRelease:        (*Engine).stepLinuxHexRelease,
		StateLinuxPressTerminator:   (*Engine).stepLinuxPressTerminator,
		StateLinuxReleaseTerminator: (*Engine).stepLinuxReleaseTerminator,
	}
}
