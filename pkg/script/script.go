package script

import (
	"bufio"
	"errors"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/repcrec/repcrec/pkg/command"
)

// ErrMalformedCommand is returned by parseSegment for a segment that is not
// one of the known command shapes.
var ErrMalformedCommand = errors.New("script: malformed command")

// ErrBlankOrComment is returned by ParseOne for a line that carries no
// command at all; the clock is not advanced for it.
var ErrBlankOrComment = errors.New("script: blank or comment line")

// Dispatcher turns a stream of text into command.Command values, owning
// the tick clock: every non-comment, non-blank segment consumes one tick,
// whether or not it parses successfully.
type Dispatcher struct {
	tick int
}

// NewDispatcher creates a dispatcher with its clock at zero.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Tick returns the current value of the clock.
func (d *Dispatcher) Tick() int {
	return d.tick
}

// Parse reads every line of r, logs and skips malformed or blank segments,
// and returns the ordered list of commands successfully parsed. A single
// line may hold several ';'-separated commands, each consuming its own
// tick, matching how a sequence of operations written on one line is
// meant to be read.
func (d *Dispatcher) Parse(r io.Reader) []command.Command {
	var out []command.Command
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, seg := range strings.Split(line, ";") {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			d.tick++
			cmd, err := parseSegment(seg, d.tick)
			if err != nil {
				log.Printf("script: skipping line %q: %v", seg, err)
				continue
			}
			out = append(out, cmd)
		}
	}
	return out
}

// ParseOne parses a single line (no ';' splitting) as one command,
// advancing the clock only if the line carries a command at all — used by
// the TCP front-end, which gets one line per request instead of a whole
// file at once.
func (d *Dispatcher) ParseOne(line string) (command.Command, error) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "#") {
		return nil, ErrBlankOrComment
	}
	d.tick++
	return parseSegment(trimmed, d.tick)
}

func parseSegment(seg string, tick int) (command.Command, error) {
	l := newLexer(seg)
	l.skipSpace()
	name := l.name()
	args, closed := l.args()
	if !closed {
		return nil, ErrMalformedCommand
	}

	switch name {
	case "begin":
		tid, err := parseTID(args, 1)
		if err != nil {
			return nil, err
		}
		return command.Begin{TID: tid, Tick: tick}, nil
	case "beginRO":
		tid, err := parseTID(args, 1)
		if err != nil {
			return nil, err
		}
		return command.BeginRO{TID: tid, Tick: tick}, nil
	case "R":
		if len(args) != 2 {
			return nil, ErrMalformedCommand
		}
		tid, err := parseTID(args, 1)
		if err != nil {
			return nil, err
		}
		vid, err := parseVID(args[1])
		if err != nil {
			return nil, err
		}
		return command.Read{TID: tid, VID: vid, Tick: tick}, nil
	case "W":
		if len(args) != 3 {
			return nil, ErrMalformedCommand
		}
		tid, err := parseTID(args, 1)
		if err != nil {
			return nil, err
		}
		vid, err := parseVID(args[1])
		if err != nil {
			return nil, err
		}
		value, err := strconv.Atoi(strings.TrimSpace(args[2]))
		if err != nil {
			return nil, ErrMalformedCommand
		}
		return command.Write{TID: tid, VID: vid, Value: value, Tick: tick}, nil
	case "end":
		tid, err := parseTID(args, 1)
		if err != nil {
			return nil, err
		}
		return command.End{TID: tid, Tick: tick}, nil
	case "fail":
		sid, err := parseSID(args)
		if err != nil {
			return nil, err
		}
		return command.Fail{SID: sid, Tick: tick}, nil
	case "recover":
		sid, err := parseSID(args)
		if err != nil {
			return nil, err
		}
		return command.Recover{SID: sid, Tick: tick}, nil
	case "dump":
		return command.Dump{}, nil
	default:
		return nil, ErrMalformedCommand
	}
}

func parseTID(args []string, count int) (int, error) {
	if len(args) != count {
		return 0, ErrMalformedCommand
	}
	a := strings.TrimSpace(args[0])
	if len(a) < 2 || (a[0] != 'T' && a[0] != 't') {
		return 0, ErrMalformedCommand
	}
	n, err := strconv.Atoi(a[1:])
	if err != nil {
		return 0, ErrMalformedCommand
	}
	return n, nil
}

func parseVID(arg string) (int, error) {
	a := strings.TrimSpace(arg)
	if len(a) < 2 || (a[0] != 'x' && a[0] != 'X') {
		return 0, ErrMalformedCommand
	}
	n, err := strconv.Atoi(a[1:])
	if err != nil {
		return 0, ErrMalformedCommand
	}
	return n, nil
}

func parseSID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, ErrMalformedCommand
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return 0, ErrMalformedCommand
	}
	return n, nil
}
