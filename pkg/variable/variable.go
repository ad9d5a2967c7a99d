// Package variable implements a single multi-version data item x_i, with
// its committed history, a tentative write staged under a write lock, and
// the readable flag that governs post-crash visibility.
package variable

import (
	"strconv"
	"sync"

	"github.com/repcrec/repcrec/pkg/storage"
)

// Variable is one data item, identified 1..20.
type Variable struct {
	mu sync.Mutex

	id      int
	history *storage.CommitLog

	hasPending    bool
	pendingValue  int
	pendingWriter int

	readable bool
}

// New creates variable x_i seeded with its initial committed value 10*i at
// tick 0.
func New(id int) *Variable {
	return &Variable{
		id:       id,
		history:  storage.NewSeededCommitLog(0, 10*id),
		readable: true,
	}
}

// ID returns the variable's index.
func (v *Variable) ID() int {
	return v.id
}

// Replicated reports whether x_i lives on every site (even i).
func Replicated(id int) bool {
	return id%2 == 0
}

// Site returns the single designated site for a non-replicated variable.
func Site(id int) int {
	return 1 + id%10
}

// Readable reports whether the variable currently answers reads.
func (v *Variable) Readable() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readable
}

// ReadLatest returns the most recently committed value.
func (v *Variable) ReadLatest() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.readLatestLocked()
}

func (v *Variable) readLatestLocked() int {
	e, ok := v.history.Latest()
	if !ok {
		return 0
	}
	return e.Value
}

// ReadAsOf returns the value committed at the greatest tick <= the given
// tick, for read-only snapshot reads.
func (v *Variable) ReadAsOf(tick int) (int, bool) {
	e, ok := v.history.AsOf(tick)
	if !ok {
		return 0, false
	}
	return e.Value, true
}

// ReadAsOfEntry is ReadAsOf but also returns the commit tick of the version
// found, for callers that need to check site-failure windows against it.
func (v *Variable) ReadAsOfEntry(tick int) (storage.Entry, bool) {
	return v.history.AsOf(tick)
}

// History exposes the underlying commit log for certification and
// site-selection queries (first-committer-wins, snapshot eligibility).
func (v *Variable) History() *storage.CommitLog {
	return v.history
}

// Stage records a tentative write under a write lock already held by tid.
func (v *Variable) Stage(value, tid int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hasPending = true
	v.pendingValue = value
	v.pendingWriter = tid
}

// PendingFor returns the pending value staged by tid, if tid is the current
// pending writer.
func (v *Variable) PendingFor(tid int) (int, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hasPending && v.pendingWriter == tid {
		return v.pendingValue, true
	}
	return 0, false
}

// Commit appends the given (tick, value) entry, marks the variable
// readable, and clears any pending write. The caller (the owning Site)
// is responsible for verifying tid still holds the write lock and for
// choosing the commit tick.
func (v *Variable) Commit(tick, value int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.history.Append(tick, value); err != nil {
		return err
	}
	v.readable = true
	v.hasPending = false
	v.pendingWriter = 0
	return nil
}

// DiscardPendingFor clears a pending write if it was staged by tid, without
// committing it — used by Site.Abort.
func (v *Variable) DiscardPendingFor(tid int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.hasPending && v.pendingWriter == tid {
		v.hasPending = false
		v.pendingWriter = 0
	}
}

// Fail marks the variable unreadable and discards every committed version
// but the most recent, reflecting the loss of the site's log.
func (v *Variable) Fail() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.readable = false
	v.history.TruncateToLatest()
}

// Recover restores readability for a non-replicated variable immediately;
// a replicated variable stays unreadable until a subsequent commit.
func (v *Variable) Recover() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !Replicated(v.id) {
		v.readable = true
	}
}

// String renders "x<i>: <v>" for dump output.
func (v *Variable) String() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return formatValue(v.id, v.readLatestLocked())
}

func formatValue(id, value int) string {
	return "x" + strconv.Itoa(id) + ": " + strconv.Itoa(value)
}
