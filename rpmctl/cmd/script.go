package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/shlex"

	"github.com/sarchlab/rpmclk/clock"
)

// scriptRunner executes clock scripts. Each line holds one command; blank
// lines and lines starting with # are skipped.
//
//	enable NAME
//	disable NAME
//	set_rate NAME RATE      RATE is in Hz and may end in k, M or G
//	get_rate NAME
//	is_enabled NAME
//	round_rate NAME RATE
//	handoff
//	state
// clockCommands take a clock name as their first argument.
var clockCommands = map[string]bool{
	"enable":     true,
	"disable":    true,
	"set_rate":   true,
	"round_rate": true,
	"get_rate":   true,
	"is_enabled": true,
}

type scriptRunner struct {
	registry *clock.Registry
	out      io.Writer

	// keepGoing makes the runner report failing commands and continue.
	keepGoing bool
}

func (s *scriptRunner) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++

		err := s.Exec(scanner.Text())
		if err == nil {
			continue
		}

		if !s.keepGoing {
			return fmt.Errorf("line %d: %w", lineNo, err)
		}

		fmt.Fprintf(s.out, "line %d: %v\n", lineNo, err)
	}

	return scanner.Err()
}

func (s *scriptRunner) Exec(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	args, err := shlex.Split(line)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		return nil
	}

	switch args[0] {
	case "handoff":
		return s.handoff()
	case "state":
		return s.state()
	}

	if !clockCommands[args[0]] {
		return fmt.Errorf("unknown command %s", args[0])
	}

	if len(args) < 2 {
		return fmt.Errorf("%s: missing clock name", args[0])
	}

	c, ok := s.registry.Lookup(args[1])
	if !ok {
		return fmt.Errorf("unknown clock %s", args[1])
	}

	switch args[0] {
	case "enable":
		return c.Enable()
	case "disable":
		c.Disable()
		return nil
	case "set_rate":
		rate, err := rateArg(args)
		if err != nil {
			return err
		}
		return c.SetRate(rate)
	case "round_rate":
		rate, err := rateArg(args)
		if err != nil {
			return err
		}
		rounded, err := c.RoundRate(rate)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %d\n", c.Name(), rounded)
		return nil
	case "get_rate":
		rate, err := c.GetRate()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %d\n", c.Name(), rate)
		return nil
	case "is_enabled":
		enabled, err := c.IsEnabled()
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%s %t\n", c.Name(), enabled)
		return nil
	default:
		return fmt.Errorf("unknown command %s", args[0])
	}
}

func (s *scriptRunner) handoff() error {
	for _, c := range s.registry.Clocks() {
		fmt.Fprintf(s.out, "%s %s %d\n", c.Name(), c.Handoff(), c.Rate())
	}

	return nil
}

func (s *scriptRunner) state() error {
	for _, c := range s.registry.Clocks() {
		fmt.Fprintf(s.out, "%s %d\n", c.Name(), c.Rate())
	}

	return nil
}

func rateArg(args []string) (uint64, error) {
	if len(args) < 3 {
		return 0, fmt.Errorf("%s: missing rate", args[0])
	}

	return parseRate(args[2])
}

// parseRate parses a rate in Hz with an optional k, M or G suffix.
func parseRate(s string) (uint64, error) {
	scale := 1.0

	switch {
	case strings.HasSuffix(s, "k"):
		scale = 1e3
	case strings.HasSuffix(s, "M"):
		scale = 1e6
	case strings.HasSuffix(s, "G"):
		scale = 1e9
	}

	if scale == 1 {
		return strconv.ParseUint(s, 10, 64)
	}

	v, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid rate %q", s)
	}

	return uint64(v*scale + 0.5), nil
}
