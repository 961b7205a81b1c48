package trie

// In-band markers inside expansion text. The OS-select opcodes switch the
// Unicode entry driver and type nothing; literal blocks are typed verbatim.
const (
	OpSelectWindows byte = 0x01
	OpSelectMacOS   byte = 0x02
	OpSelectLinux   byte = 0x03

	LiteralOpen  = "{{{"
	LiteralClose = "}}}"
)

// IsOpcode reports whether b is an OS-select marker.
func IsOpcode(b byte) bool {
	return b >= OpSelectWindows && b <= OpSelectLinux
}
