package dictionary

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"textexpander/internal/trie"
)

var osCommands = map[string]byte{
	"{{cmd:win}}":   trie.OpSelectWindows,
	"{{cmd:mac}}":   trie.OpSelectMacOS,
	"{{cmd:linux}}": trie.OpSelectLinux,
}

// CompileText rewrites user escapes into the runtime encoding and returns
// the encoded bytes plus the number of characters the text will type.
//
//	{{cmd:win}} {{cmd:mac}} {{cmd:linux}}  OS-select opcode, types nothing
//	{{u:XXXX}}                             the code point U+XXXX
//	\{                                     a literal '{'
//	{{{ ... }}}                            kept verbatim for the runtime
//
// Problems are reported as warnings; the offending text is kept as-is.
func CompileText(text string) (out []byte, chars int, warnings []string) {
	out = make([]byte, 0, len(text))
	for i := 0; i < len(text); {
		rest := text[i:]

		if strings.HasPrefix(rest, trie.LiteralOpen) {
			end := strings.Index(rest[len(trie.LiteralOpen):], trie.LiteralClose)
			if end < 0 {
				warnings = append(warnings, fmt.Sprintf("unclosed literal block at byte %d; typing remainder as text", i))
				out = append(out, rest...)
				chars += utf8.RuneCountInString(rest)
				break
			}
			block := rest[:len(trie.LiteralOpen)+end+len(trie.LiteralClose)]
			out = append(out, block...)
			chars += utf8.RuneCountInString(rest[len(trie.LiteralOpen) : len(trie.LiteralOpen)+end])
			i += len(block)
			continue
		}

		if strings.HasPrefix(rest, `\{`) {
			out = append(out, '{')
			chars++
			i += 2
			continue
		}

		if op, n, ok := matchCommand(rest); ok {
			out = append(out, op)
			i += n
			continue
		}

		if strings.HasPrefix(rest, "{{u:") {
			if end := strings.Index(rest[4:], "}}"); end >= 0 {
				hex := rest[4 : 4+end]
				cp, err := strconv.ParseUint(hex, 16, 32)
				if err == nil && cp != 0 && utf8.ValidRune(rune(cp)) {
					out = utf8.AppendRune(out, rune(cp))
					chars++
					i += 4 + end + 2
					continue
				}
				warnings = append(warnings, fmt.Sprintf("invalid code point %q at byte %d; typing as text", hex, i))
			} else {
				warnings = append(warnings, fmt.Sprintf("unclosed {{u: escape at byte %d", i))
			}
		}

		r, size := utf8.DecodeRuneInString(rest)
		if r == utf8.RuneError && size <= 1 {
			warnings = append(warnings, fmt.Sprintf("invalid UTF-8 at byte %d dropped", i))
			i++
			continue
		}
		out = append(out, rest[:size]...)
		chars++
		i += size
	}
	return out, chars, warnings
}

func matchCommand(s string) (byte, int, bool) {
	if !strings.HasPrefix(s, "{{cmd:") {
		return 0, 0, false
	}
	for cmd, op := range osCommands {
		if strings.HasPrefix(s, cmd) {
			return op, len(cmd), true
		}
	}
	return 0, 0, false
}
