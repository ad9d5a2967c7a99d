package variable

import "testing"

func TestNewSeedsInitialValue(t *testing.T) {
	v := New(4)
	if got := v.ReadLatest(); got != 40 {
		t.Errorf("expected seeded value 40, got %d", got)
	}
	if !v.Readable() {
		t.Error("expected a fresh variable to be readable")
	}
}

func TestReplicatedAndSite(t *testing.T) {
	if !Replicated(4) {
		t.Error("expected even variable ids to be replicated")
	}
	if Replicated(5) {
		t.Error("expected odd variable ids to be non-replicated")
	}
	if got := Site(11); got != 2 {
		t.Errorf("expected x11 to live at site 2, got %d", got)
	}
}

func TestStageAndPendingFor(t *testing.T) {
	v := New(2)
	v.Stage(99, 1)

	value, ok := v.PendingFor(1)
	if !ok || value != 99 {
		t.Errorf("expected pending write 99 for tid 1, got %d %v", value, ok)
	}
	if _, ok := v.PendingFor(2); ok {
		t.Error("expected no pending write for an unrelated tid")
	}
}

func TestCommitAppendsAndClearsPending(t *testing.T) {
	v := New(2)
	v.Stage(99, 1)

	if err := v.Commit(5, 99); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := v.ReadLatest(); got != 99 {
		t.Errorf("expected latest value 99, got %d", got)
	}
	if _, ok := v.PendingFor(1); ok {
		t.Error("expected pending write to be cleared after commit")
	}
}

func TestReadAsOfReturnsVersionAtOrBeforeTick(t *testing.T) {
	v := New(2)
	v.Commit(5, 99)
	v.Commit(10, 150)

	value, ok := v.ReadAsOf(7)
	if !ok || value != 99 {
		t.Errorf("expected version as of tick 7 to be 99, got %d %v", value, ok)
	}
	value, ok = v.ReadAsOf(10)
	if !ok || value != 150 {
		t.Errorf("expected version as of tick 10 to be 150, got %d %v", value, ok)
	}
}

func TestFailMakesUnreadableAndTruncatesHistory(t *testing.T) {
	v := New(2)
	v.Commit(5, 99)
	v.Fail()

	if v.Readable() {
		t.Error("expected variable to be unreadable after Fail")
	}
	if _, ok := v.ReadAsOf(0); ok {
		t.Error("expected history before the last commit to be discarded")
	}
}

func TestRecoverReplicatedStaysUnreadable(t *testing.T) {
	v := New(2)
	v.Fail()
	v.Recover()
	if v.Readable() {
		t.Error("expected a replicated variable to stay unreadable until a fresh commit")
	}
}

func TestRecoverNonReplicatedBecomesReadable(t *testing.T) {
	v := New(3)
	v.Fail()
	v.Recover()
	if !v.Readable() {
		t.Error("expected a non-replicated variable to become readable immediately on recover")
	}
}
