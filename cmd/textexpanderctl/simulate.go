package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"textexpander/internal/config"
	"textexpander/internal/dictionary"
	"textexpander/internal/expander"
	"textexpander/internal/expansion"
	"textexpander/internal/hid"
	"textexpander/internal/layout"
	"textexpander/internal/sched"
	"textexpander/internal/simulate"
	"textexpander/internal/trie"
)

// maxSteps bounds one settle pass of the virtual clock.
const maxSteps = 1 << 16

type simulation struct {
	host   *simulate.Host
	clock  *sched.Virtual
	x      *expander.Expander
	layout layout.Layout
	undo   hid.Keycode
}

func newSimulation(cfg *config.Config, dict *trie.Trie, target expansion.OS, logger *slog.Logger) (*simulation, error) {
	keys, err := cfg.Expander.Coordinator()
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Expander.Engine()
	if err != nil {
		return nil, err
	}
	lay, err := cfg.Expander.KeyboardLayout()
	if err != nil {
		return nil, err
	}
	opts.OS = target

	undo := hid.KeyF12
	for k := range keys.UndoKeys {
		undo = k
		break
	}
	if len(keys.UndoKeys) == 0 {
		keys.UndoKeys = hid.NewKeySet(undo)
	}

	s := &simulation{
		host:   simulate.NewHost(lay, platformFor(target)),
		clock:  sched.NewVirtual(time.Unix(0, 0)),
		layout: lay,
		undo:   undo,
	}
	eng := expansion.NewEngine(opts, s.host, lay, s.clock, logger)
	s.x = expander.New(keys, dict, eng, lay, s.clock, logger)
	return s, nil
}

func platformFor(o expansion.OS) simulate.Platform {
	switch o {
	case expansion.OSMacOS:
		return simulate.MacOS
	case expansion.OSLinux:
		return simulate.Linux
	}
	return simulate.Windows
}

var namedKeys = map[string]hid.Keycode{
	"bs":    hid.KeyBackspace,
	"enter": hid.KeyEnter,
	"esc":   hid.KeyEscape,
	"tab":   hid.KeyTab,
	"space": hid.KeySpace,
}

// Type feeds input as physical typing. <trigger>, <undo>, <bs>, <enter>,
// <esc>, <tab> and <space> name keys; everything else is typed through the
// layout.
func (s *simulation) Type(input string) error {
	for len(input) > 0 {
		if input[0] == '<' {
			if end := strings.IndexByte(input, '>'); end > 0 {
				name := input[1:end]
				input = input[end+1:]
				if err := s.named(name); err != nil {
					return err
				}
				continue
			}
		}
		c := input[0]
		input = input[1:]
		st, ok := s.layout.CharToKeycode(c)
		if !ok {
			return fmt.Errorf("layout %s cannot type %q", s.layout.Name(), c)
		}
		if st.Mods == 0 {
			s.host.Tap(st.Key)
		} else {
			s.host.Type(string(c))
		}
		if err := s.press(st.Key); err != nil {
			return err
		}
	}
	return nil
}

func (s *simulation) named(name string) error {
	switch name {
	case "trigger":
		if err := s.x.ManualTrigger(); err != nil {
			return err
		}
		s.settle()
		return nil
	case "undo":
		return s.press(s.undo)
	}
	k, ok := namedKeys[name]
	if !ok {
		return fmt.Errorf("unknown key <%s>", name)
	}
	s.host.Tap(k)
	return s.press(k)
}

func (s *simulation) press(k hid.Keycode) error {
	if err := s.x.PressKey(k); err != nil {
		return err
	}
	if err := s.x.ReleaseKey(k); err != nil {
		return err
	}
	s.settle()
	return nil
}

// settle drains the coordinator and runs the engine to idle.
func (s *simulation) settle() {
	s.x.Drain()
	for s.clock.Pending() > 0 {
		s.clock.RunUntilIdle(maxSteps)
		s.x.Drain()
	}
}

func cmdSimulate(args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	osName := fs.String("os", "", "host OS for Unicode entry (windows, macos, linux)")
	trace := fs.Bool("trace", false, "print every synthetic key action")
	fs.Parse(reorder(args))

	if fs.NArg() < 2 {
		return errors.New(`usage: textexpanderctl simulate <dict> <keys> [-os linux] [-trace]

Keys are typed as written; <trigger>, <undo>, <bs>, <enter>, <esc>, <tab>
and <space> name special keys. Example: simulate dict.toml "brb <undo>"`)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if *osName == "" {
		*osName = cfg.Expander.DefaultOS
	}
	target, err := expansion.ParseOS(*osName)
	if err != nil {
		return err
	}
	dict, _, err := dictionary.Open(fs.Arg(0))
	if err != nil {
		return err
	}

	s, err := newSimulation(cfg, dict, target, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		return err
	}
	if err := s.Type(strings.Join(fs.Args()[1:], " ")); err != nil {
		return err
	}

	if *trace {
		fmt.Println(s.host.Trace())
	}
	fmt.Printf("%q\n", s.host.Text())
	snap := s.x.Snapshot()
	if snap.Dropped > 0 {
		fmt.Printf("dropped events: %d\n", snap.Dropped)
	}
	return nil
}
