// Package site implements the DataManager: a single site owning the subset
// of variables the replication rule assigns it, their lock tables, and its
// own active/failed lifecycle.
package site

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/repcrec/repcrec/pkg/lock"
	"github.com/repcrec/repcrec/pkg/storage"
	"github.com/repcrec/repcrec/pkg/variable"
)

// VariableCount is the number of distinct data items in the system.
const VariableCount = 20

// Site is one of the ten simulated sites.
type Site struct {
	mu sync.Mutex

	id       int
	active   bool
	vars     [VariableCount + 1]*variable.Variable // index by variable id, 1-based
	locks    [VariableCount + 1]*lock.Manager
	failures *storage.EventLog
}

// New creates site sid, populating it with the variables the replication
// rule assigns it: every even-indexed variable, plus the single
// odd-indexed variable for which 1+(i mod 10) == sid.
func New(sid int) *Site {
	s := &Site{id: sid, active: true, failures: storage.NewEventLog()}
	for i := 1; i <= VariableCount; i++ {
		if variable.Replicated(i) || variable.Site(i) == sid {
			s.vars[i] = variable.New(i)
			s.locks[i] = lock.NewManager(i)
		}
	}
	return s
}

// ID returns the site's index, 1..10.
func (s *Site) ID() int {
	return s.id
}

// Active reports whether the site is currently up.
func (s *Site) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// HasVariable reports whether vid is resident on this site.
func (s *Site) HasVariable(vid int) bool {
	if vid < 1 || vid > VariableCount {
		return false
	}
	return s.vars[vid] != nil
}

// Variable returns the resident variable, or nil if vid is not resident
// here. Used by read-only snapshot selection, which needs direct access to
// the commit history.
func (s *Site) Variable(vid int) *variable.Variable {
	if !s.HasVariable(vid) {
		return nil
	}
	return s.vars[vid]
}

// CanRead reports whether a read-write transaction tid could read vid right
// now: the site must be active, the variable resident and readable, and the
// read lock acquirable.
func (s *Site) CanRead(vid, tid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.HasVariable(vid) {
		return false
	}
	if !s.vars[vid].Readable() {
		return false
	}
	return s.locks[vid].CanAcquire(lock.Read, tid)
}

// ReadLocking acquires a read lock for tid on vid and returns the value a
// read-write transaction observes: its own pending write if it has one on
// this variable, else the last committed value.
func (s *Site) ReadLocking(vid, tid int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[vid].Lock(lock.Read, tid)
	if v, ok := s.vars[vid].PendingFor(tid); ok {
		return v
	}
	return s.vars[vid].ReadLatest()
}

// CanReadSnapshot reports whether this site currently qualifies as a source
// for a read-only snapshot read of vid as of startTick: it must be active,
// hold a version with commit tick <= startTick, and have had no down event
// strictly between that version's commit tick and startTick.
func (s *Site) CanReadSnapshot(vid, startTick int) (value int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.HasVariable(vid) {
		return 0, false
	}
	entry, found := s.vars[vid].ReadAsOfEntry(startTick)
	if !found {
		return 0, false
	}
	if s.failures.DownBetweenExclusive(entry.Tick, startTick) {
		return 0, false
	}
	return entry.Value, true
}

// LockHolders returns the ids of every transaction currently holding any
// lock on vid at this site, or nil if vid is not resident here. Used to
// build waits-for edges when a read or write blocks.
func (s *Site) LockHolders(vid int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.HasVariable(vid) {
		return nil
	}
	return s.locks[vid].Holders()
}

// CanWrite reports whether tid could acquire the write lock on vid now.
func (s *Site) CanWrite(vid, tid int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active || !s.HasVariable(vid) {
		return false
	}
	return s.locks[vid].CanAcquire(lock.Write, tid)
}

// StageLocking acquires (or promotes to) the write lock on vid for tid and
// stages the tentative value.
func (s *Site) StageLocking(vid, tid, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locks[vid].Lock(lock.Write, tid)
	s.vars[vid].Stage(value, tid)
}

// CommitWrites commits, for every (vid, tick) pair in writes such that this
// site is resident for vid, tid holds the write lock on vid, and the site
// was not recovered after tick, the value tid staged there — then releases
// every lock tid holds on this site, written or not. It returns the ids of
// the variables actually committed.
func (s *Site) CommitWrites(tid int, writes map[int]int) []int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var committed []int
	for vid, tick := range writes {
		if !s.HasVariable(vid) {
			continue
		}
		if !s.locks[vid].IsWriteLockedBy(tid) {
			continue
		}
		if lastUp, ok := s.failures.LastUpTick(); ok && lastUp > tick {
			continue
		}
		value, _ := s.vars[vid].PendingFor(tid)
		if err := s.vars[vid].Commit(tick, value); err == nil {
			committed = append(committed, vid)
		}
	}

	for i := 1; i <= VariableCount; i++ {
		if s.locks[i] != nil {
			s.locks[i].Unlock(tid)
		}
	}
	return committed
}

// Abort releases every lock tid holds here and discards any pending write
// it staged, without committing it.
func (s *Site) Abort(tid int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 1; i <= VariableCount; i++ {
		if s.locks[i] == nil {
			continue
		}
		s.locks[i].Unlock(tid)
		s.vars[i].DiscardPendingFor(tid)
	}
}

// Fail crashes the site at the given tick: it goes inactive, every lock is
// released, and every variable truncates its history and stops answering
// reads until a fresh commit or (for non-replicated variables) a recover.
func (s *Site) Fail(tick int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = false
	s.failures.Record(tick, false)
	for i := 1; i <= VariableCount; i++ {
		if s.vars[i] == nil {
			continue
		}
		s.vars[i].Fail()
		s.locks[i].UnlockAll()
	}
}

// Recover brings the site back up at the given tick.
func (s *Site) Recover(tick int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.failures.Record(tick, true)
	for i := 1; i <= VariableCount; i++ {
		if s.vars[i] != nil {
			s.vars[i].Recover()
		}
	}
}

// WasDownBetweenExclusive reports whether this site went down at a tick
// strictly between after and before.
func (s *Site) WasDownBetweenExclusive(after, before int) bool {
	return s.failures.DownBetweenExclusive(after, before)
}

// Dump renders this site's line of the dump output.
func (s *Site) Dump() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var parts []string
	for i := 1; i <= VariableCount; i++ {
		if s.vars[i] != nil {
			parts = append(parts, s.vars[i].String())
		}
	}
	header := "site " + strconv.Itoa(s.id)
	if !s.active {
		header += " (down)"
	}
	return fmt.Sprintf("%s - %s", header, strings.Join(parts, ", "))
}
