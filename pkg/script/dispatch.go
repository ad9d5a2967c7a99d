package script

import (
	"log"

	"github.com/repcrec/repcrec/pkg/command"
	"github.com/repcrec/repcrec/pkg/txn"
)

// DispatchOne feeds a single command to mgr and returns its event lines.
// The error it returns is either one mgr itself raised (an unknown
// transaction or site id) or ErrMalformedCommand for a command type it
// does not recognize; it never logs.
func DispatchOne(mgr *txn.Manager, c command.Command) ([]string, error) {
	switch v := c.(type) {
	case command.Begin:
		return mgr.Begin(v.TID, v.Tick), nil
	case command.BeginRO:
		return mgr.BeginRO(v.TID, v.Tick), nil
	case command.Read:
		return mgr.Read(v.TID, v.VID, v.Tick)
	case command.Write:
		return mgr.Write(v.TID, v.VID, v.Value, v.Tick)
	case command.End:
		return mgr.End(v.TID, v.Tick)
	case command.Fail:
		return mgr.Fail(v.SID, v.Tick)
	case command.Recover:
		return mgr.Recover(v.SID, v.Tick)
	case command.Dump:
		return mgr.Dump(), nil
	default:
		return nil, ErrMalformedCommand
	}
}

// Run feeds each command to mgr in order, returning the event lines they
// produce. An unknown transaction or site id is logged as a diagnostic and
// the command is skipped; the core itself never logs — that is the
// shell's job, and this is the shell.
func Run(mgr *txn.Manager, cmds []command.Command) []string {
	var events []string
	for _, c := range cmds {
		ev, err := DispatchOne(mgr, c)
		if err != nil {
			log.Printf("script: %v: %v", c, err)
			continue
		}
		events = append(events, ev...)
	}
	return events
}
