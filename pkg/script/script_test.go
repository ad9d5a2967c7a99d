package script

import (
	"strings"
	"testing"

	"github.com/repcrec/repcrec/pkg/command"
)

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	d := NewDispatcher()
	cmds := d.Parse(strings.NewReader("// a comment\n\nbegin(T1)\n# another comment\nend(T1)\n"))

	if len(cmds) != 2 {
		t.Fatalf("expected 2 commands, got %d: %+v", len(cmds), cmds)
	}
	if b, ok := cmds[0].(command.Begin); !ok || b.TID != 1 || b.Tick != 1 {
		t.Errorf("expected Begin{1,1}, got %+v", cmds[0])
	}
	if e, ok := cmds[1].(command.End); !ok || e.TID != 1 || e.Tick != 2 {
		t.Errorf("expected End{1,2}, got %+v", cmds[1])
	}
}

func TestParseSplitsSemicolonsIntoSeparateTicks(t *testing.T) {
	d := NewDispatcher()
	cmds := d.Parse(strings.NewReader("begin(T1); W(T1,x1,101); R(T1,x2); end(T1); dump()"))

	if len(cmds) != 5 {
		t.Fatalf("expected 5 commands, got %d", len(cmds))
	}
	w, ok := cmds[1].(command.Write)
	if !ok || w.VID != 1 || w.Value != 101 || w.Tick != 2 {
		t.Errorf("expected Write{T1,x1,101,tick2}, got %+v", cmds[1])
	}
}

func TestParseSkipsMalformedLineButStillAdvancesTick(t *testing.T) {
	d := NewDispatcher()
	cmds := d.Parse(strings.NewReader("garbage(\nbegin(T1)\n"))

	if len(cmds) != 1 {
		t.Fatalf("expected 1 surviving command, got %d", len(cmds))
	}
	b, ok := cmds[0].(command.Begin)
	if !ok {
		t.Fatalf("expected Begin, got %+v", cmds[0])
	}
	if b.Tick != 2 {
		t.Errorf("expected the skipped line to still consume tick 1, got tick %d", b.Tick)
	}
}

func TestParseFailAndRecover(t *testing.T) {
	d := NewDispatcher()
	cmds := d.Parse(strings.NewReader("fail(2)\nrecover(2)\n"))

	f, ok := cmds[0].(command.Fail)
	if !ok || f.SID != 2 {
		t.Errorf("expected Fail{2}, got %+v", cmds[0])
	}
	r, ok := cmds[1].(command.Recover)
	if !ok || r.SID != 2 {
		t.Errorf("expected Recover{2}, got %+v", cmds[1])
	}
}
