package main

import (
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"textexpander/internal/dictionary"
	"textexpander/internal/trie"
)

func cmdCompile(args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "output artifact (default: <src>.json next to the source)")
	strict := fs.Bool("strict", false, "fail on warnings")
	fs.Parse(reorder(args))

	if fs.NArg() < 1 {
		return errors.New("usage: textexpanderctl compile <src> [-o out.json]")
	}
	src := fs.Arg(0)

	t, warnings, err := dictionary.Compile(src)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if *strict && len(warnings) > 0 {
		return fmt.Errorf("%d warning(s)", len(warnings))
	}

	dest := *out
	if dest == "" {
		dest = strings.TrimSuffix(src, filepath.Ext(src)) + ".compiled.json"
	}
	if err := t.Save(dest); err != nil {
		return err
	}
	fmt.Printf("Compiled %d short codes (%d nodes, %d pool bytes) to %s\n",
		countCodes(t), t.Len(), len(t.Pool), dest)
	return nil
}

func cmdLookup(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: textexpanderctl lookup <dict> <code>")
	}
	t, _, err := dictionary.Open(args[0])
	if err != nil {
		return err
	}
	id, ok := t.Search(args[1])
	if !ok {
		return fmt.Errorf("short code %q not found", args[1])
	}
	n := t.Node(id)
	fmt.Printf("Short code: %s\n", args[1])
	fmt.Printf("Expansion:  %s\n", displayText(t.Text(id)))
	fmt.Printf("Characters: %d\n", n.LenChars)
	if n.PreserveTrigger {
		fmt.Println("Trigger:    preserved")
	}
	return nil
}

func cmdList(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: textexpanderctl list <dict>")
	}
	t, _, err := dictionary.Open(args[0])
	if err != nil {
		return err
	}
	t.Walk(func(code string, id trie.NodeID) bool {
		fmt.Printf("%-20s %s\n", code, displayText(t.Text(id)))
		return true
	})
	return nil
}

func validateDictionary(path string) error {
	fmt.Printf("Dictionary: %s\n", path)
	t, warnings, err := dictionary.Open(path)
	if err != nil {
		fmt.Printf("  error:   %v\n", err)
		return err
	}
	for _, w := range warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if err := t.Validate(); err != nil {
		fmt.Printf("  error:   %v\n", err)
		return err
	}
	fmt.Printf("  %d short codes\n", countCodes(t))
	return nil
}

func countCodes(t *trie.Trie) int {
	n := 0
	t.Walk(func(string, trie.NodeID) bool {
		n++
		return true
	})
	return n
}

// displayText renders expansion text with opcodes in their source form.
func displayText(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		switch b[0] {
		case trie.OpSelectWindows:
			sb.WriteString("{{cmd:win}}")
		case trie.OpSelectMacOS:
			sb.WriteString("{{cmd:mac}}")
		case trie.OpSelectLinux:
			sb.WriteString("{{cmd:linux}}")
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			r, size := utf8.DecodeRune(b)
			if r == utf8.RuneError && size == 1 {
				fmt.Fprintf(&sb, `\x%02x`, b[0])
			} else {
				sb.WriteRune(r)
			}
			b = b[size:]
			continue
		}
		b = b[1:]
	}
	return sb.String()
}

// reorder moves flags ahead of positional arguments so "compile src -o x"
// parses like "compile -o x src".
func reorder(args []string) []string {
	var flags, pos []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if strings.HasPrefix(a, "-") && len(a) > 1 {
			flags = append(flags, a)
			if !strings.Contains(a, "=") && i+1 < len(args) && !isBoolFlag(a) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		pos = append(pos, a)
	}
	return append(flags, pos...)
}

func isBoolFlag(a string) bool {
	switch strings.TrimLeft(a, "-") {
	case "strict", "trace", "completion":
		return true
	}
	return false
}
