// Package txn implements the TransactionManager: it owns every site, routes
// each typed call to the right site(s), blocks and retries operations that
// cannot proceed yet, detects deadlock on the waits-for graph, and
// certifies read-write transactions against the serialization graph at
// commit time.
package txn

import (
	"fmt"

	"github.com/repcrec/repcrec/pkg/graph"
	"github.com/repcrec/repcrec/pkg/site"
)

const siteCount = 10

type opKind uint8

const (
	opRead opKind = iota + 1
	opWrite
)

// pendingOp is one blocked operation sitting in the FIFO retry queue. Its
// tick is the tick of the original command, preserved verbatim on retry.
type pendingOp struct {
	kind  opKind
	tid   int
	vid   int
	value int
	tick  int
}

// commitRecord is what a committed read-write transaction leaves behind for
// future certification checks: its read and write sets, pinned at the tick
// it committed.
type commitRecord struct {
	tid        int
	commitTick int
	readSet    map[int]bool
	writeSet   map[int]pendingWrite
}

// Manager is the TransactionManager: the single coordinator a script or
// server front-end drives. It is not safe for concurrent use by multiple
// goroutines without an external lock; pkg/server serializes access to one
// Manager with a mutex of its own.
type Manager struct {
	sites [siteCount]*site.Site

	txns    map[int]*Transaction
	waiting []pendingOp

	waitsFor *graph.Graph
	serial   *graph.Graph

	committed []commitRecord
}

// NewManager creates a manager with all ten sites up and no active
// transactions.
func NewManager() *Manager {
	m := &Manager{
		txns:     make(map[int]*Transaction),
		waitsFor: graph.New(),
		serial:   graph.New(),
	}
	for i := 0; i < siteCount; i++ {
		m.sites[i] = site.New(i + 1)
	}
	return m
}

func (m *Manager) siteByID(sid int) *site.Site {
	if sid < 1 || sid > siteCount {
		return nil
	}
	return m.sites[sid-1]
}

// Begin starts a read-write transaction. A duplicate id is ignored.
func (m *Manager) Begin(tid, tick int) []string {
	if _, exists := m.txns[tid]; exists {
		return nil
	}
	m.txns[tid] = newTransaction(tid, tick, ReadWrite)
	return []string{fmt.Sprintf("T%d begins", tid)}
}

// BeginRO starts a read-only transaction. A duplicate id is ignored.
func (m *Manager) BeginRO(tid, tick int) []string {
	if _, exists := m.txns[tid]; exists {
		return nil
	}
	m.txns[tid] = newTransaction(tid, tick, ReadOnly)
	return []string{fmt.Sprintf("T%d begins and is read-only", tid)}
}

// Read dispatches a read of vid by tid at the given tick.
func (m *Manager) Read(tid, vid, tick int) ([]string, error) {
	t, ok := m.txns[tid]
	if !ok {
		return nil, ErrUnknownTransaction
	}

	if t.Mode == ReadOnly {
		if value, sid, found := m.tryReadOnly(t, vid); found {
			t.addAccessedSite(sid)
			t.recordRead(vid)
			return []string{fmt.Sprintf("T%d reads x%d: %d", tid, vid, value)}, nil
		}
		events := []string{fmt.Sprintf("T%d aborts due to an unavailable snapshot", tid)}
		events = append(events, m.abort(tid)...)
		return events, nil
	}

	if events, ok := m.attemptRead(t, vid, tick); ok {
		return events, nil
	}

	m.waiting = append(m.waiting, pendingOp{kind: opRead, tid: tid, vid: vid, tick: tick})
	t.Status = Blocked
	for _, h := range m.blockingHoldersForRead(vid, tid) {
		m.waitsFor.AddEdge(tid, h, "")
	}
	events := []string{fmt.Sprintf("T%d blocked", tid)}
	events = append(events, m.detectDeadlock(tid)...)
	return events, nil
}

// Write dispatches a tentative write of value to vid by tid at the given
// tick.
func (m *Manager) Write(tid, vid, value, tick int) ([]string, error) {
	t, ok := m.txns[tid]
	if !ok {
		return nil, ErrUnknownTransaction
	}

	if events, ok := m.attemptWrite(t, vid, value, tick); ok {
		return events, nil
	}

	m.waiting = append(m.waiting, pendingOp{kind: opWrite, tid: tid, vid: vid, value: value, tick: tick})
	t.Status = Blocked
	for _, h := range m.blockingHoldersForWrite(vid, tid) {
		m.waitsFor.AddEdge(tid, h, "")
	}
	events := []string{fmt.Sprintf("T%d blocked", tid)}
	events = append(events, m.detectDeadlock(tid)...)
	return events, nil
}

// tryReadOnly finds the first site whose snapshot of vid as of t.StartTick
// qualifies: a live site holding a version committed at or before
// StartTick that saw no down event between that commit and StartTick.
func (m *Manager) tryReadOnly(t *Transaction, vid int) (value, sid int, ok bool) {
	for _, s := range m.sites {
		if v, found := s.CanReadSnapshot(vid, t.StartTick); found {
			return v, s.ID(), true
		}
	}
	return 0, 0, false
}

// attemptRead tries a read-write read once, without enqueueing on failure.
func (m *Manager) attemptRead(t *Transaction, vid, tick int) ([]string, bool) {
	for _, s := range m.sites {
		if !s.CanRead(vid, t.ID) {
			continue
		}
		value := s.ReadLocking(vid, t.ID)
		t.addAccessedSite(s.ID())
		t.recordRead(vid)
		t.Status = Active
		m.waitsFor.RemoveOutgoing(t.ID)
		return []string{fmt.Sprintf("T%d reads x%d: %d", t.ID, vid, value)}, true
	}
	return nil, false
}

// attemptWrite tries to acquire the write lock on vid at every active site
// that holds it (all-or-nothing); a variable with no live holder at all
// succeeds vacuously, deferring to commit-time certification.
func (m *Manager) attemptWrite(t *Transaction, vid, value, tick int) ([]string, bool) {
	var holders []*site.Site
	for _, s := range m.sites {
		if s.HasVariable(vid) && s.Active() {
			holders = append(holders, s)
		}
	}
	for _, s := range holders {
		if !s.CanWrite(vid, t.ID) {
			return nil, false
		}
	}

	for _, s := range holders {
		s.StageLocking(vid, t.ID, value)
		t.addAccessedSite(s.ID())
	}
	t.recordWrite(vid, value, tick)
	t.Status = Active
	m.waitsFor.RemoveOutgoing(t.ID)
	return []string{fmt.Sprintf("T%d writes x%d: %d", t.ID, vid, value)}, true
}

func (m *Manager) blockingHoldersForRead(vid, tid int) []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range m.sites {
		if !s.Active() || !s.HasVariable(vid) || s.CanRead(vid, tid) {
			continue
		}
		for _, h := range s.LockHolders(vid) {
			if h != tid && !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

func (m *Manager) blockingHoldersForWrite(vid, tid int) []int {
	seen := map[int]bool{}
	var out []int
	for _, s := range m.sites {
		if !s.Active() || !s.HasVariable(vid) || s.CanWrite(vid, tid) {
			continue
		}
		for _, h := range s.LockHolders(vid) {
			if h != tid && !seen[h] {
				seen[h] = true
				out = append(out, h)
			}
		}
	}
	return out
}

// detectDeadlock runs cycle detection rooted at a transaction that just
// blocked. If the cycle is a deadlock, the youngest transaction (largest
// start_tick) is aborted.
func (m *Manager) detectDeadlock(tid int) []string {
	cycle := m.waitsFor.FindCycleFrom(tid)
	if cycle == nil {
		return nil
	}

	victim := cycle[0]
	for _, c := range cycle[1:] {
		vt, vok := m.txns[victim]
		ct, cok := m.txns[c]
		if vok && cok && ct.StartTick > vt.StartTick {
			victim = c
		}
	}

	events := []string{fmt.Sprintf("T%d aborts due to deadlock", victim)}
	events = append(events, m.abort(victim)...)
	return events
}

// abort tears down a transaction's locks and staged writes, removes it
// from the waits-for graph, drops its own queued operations, and attempts
// to unblock whatever is left waiting.
func (m *Manager) abort(tid int) []string {
	for _, s := range m.sites {
		s.Abort(tid)
	}
	delete(m.txns, tid)
	m.waitsFor.RemoveNode(tid)

	filtered := m.waiting[:0]
	for _, op := range m.waiting {
		if op.tid != tid {
			filtered = append(filtered, op)
		}
	}
	m.waiting = filtered

	return m.retry()
}

// retry re-attempts every queued operation in FIFO order, preserving each
// one's original tick. Operations belonging to a transaction that no
// longer exists are dropped silently.
func (m *Manager) retry() []string {
	var events []string
	remaining := m.waiting[:0]
	for _, op := range m.waiting {
		t, ok := m.txns[op.tid]
		if !ok {
			continue
		}
		switch op.kind {
		case opRead:
			if ev, ok := m.attemptRead(t, op.vid, op.tick); ok {
				events = append(events, ev...)
				continue
			}
		case opWrite:
			if ev, ok := m.attemptWrite(t, op.vid, op.value, op.tick); ok {
				events = append(events, ev...)
				continue
			}
		}
		remaining = append(remaining, op)
	}
	m.waiting = remaining
	return events
}

// End attempts to commit tid. A read-only transaction always commits. A
// read-write transaction either commits after passing certification or
// aborts with the reason certification failed, including a standing
// abort-on-end flag set by an intervening site failure.
func (m *Manager) End(tid, tick int) ([]string, error) {
	t, ok := m.txns[tid]
	if !ok {
		return nil, ErrUnknownTransaction
	}

	if t.abortOnEnd {
		events := []string{fmt.Sprintf("T%d aborts due to previous access of a down site", tid)}
		events = append(events, m.abort(tid)...)
		return events, nil
	}

	if t.Mode == ReadOnly {
		delete(m.txns, tid)
		m.waitsFor.RemoveNode(tid)
		events := []string{fmt.Sprintf("T%d commits", tid)}
		events = append(events, m.retry()...)
		return events, nil
	}

	if reason, ok := m.certify(t); !ok {
		events := []string{fmt.Sprintf("T%d aborts due to %s", tid, reason)}
		events = append(events, m.abort(tid)...)
		return events, nil
	}

	m.apply(t, tick)
	delete(m.txns, tid)
	m.waitsFor.RemoveNode(tid)
	events := []string{fmt.Sprintf("T%d commits", tid)}
	events = append(events, m.retry()...)
	return events, nil
}

// certify runs the full commit-time check: the zero-live-site rule,
// failed-site invalidation, first-committer-wins, and finally the
// serialization-graph dangerous-structure check. A passing check leaves
// this transaction's edges in the serialization graph; a failing
// dangerous-structure check rolls its edges back before reporting.
func (m *Manager) certify(t *Transaction) (reason string, ok bool) {
	writeSet := t.WriteSet()

	for vid := range writeSet {
		liveHolder := false
		for _, s := range m.sites {
			if s.HasVariable(vid) && s.Active() {
				liveHolder = true
				break
			}
		}
		if !liveHolder {
			return "no live site available to apply a pending write", false
		}
	}

	for vid, w := range writeSet {
		for _, s := range m.sites {
			if s.HasVariable(vid) && s.WasDownBetweenExclusive(w.WriteTick, t.StartTick) {
				return "previous access of a down site", false
			}
		}
	}

	for vid := range writeSet {
		for _, s := range m.sites {
			if s.HasVariable(vid) && s.Variable(vid).History().AnyAfter(t.StartTick) {
				return "a first-committer-wins conflict", false
			}
		}
	}

	readSet := make(map[int]bool)
	for _, vid := range t.ReadSet() {
		readSet[vid] = true
	}

	for _, rec := range m.committed {
		if rec.tid == t.ID {
			continue
		}
		if hasCommonKeyWW(rec.writeSet, readSet) {
			m.serial.AddEdge(rec.tid, t.ID, "wr")
		}
		if hasCommonKeyWR(writeSet, rec.readSet) {
			m.serial.AddEdge(t.ID, rec.tid, "rw")
		}
		if hasCommonKey(writeSet, rec.writeSet) {
			if _, exists := m.serial.EdgeLabel(rec.tid, t.ID); !exists {
				m.serial.AddEdge(rec.tid, t.ID, "ww")
			}
		}
	}

	if cycle := m.serial.FindCycleFrom(t.ID); cycle != nil && m.serial.HasConsecutiveRW(cycle) {
		m.serial.RemoveNode(t.ID)
		return "an unsafe serialization cycle", false
	}

	return "", true
}

// hasCommonKeyWW reports whether any variable recWrites wrote is in readSet
// (a wr dependency: this transaction read something an earlier committer
// wrote).
func hasCommonKeyWW(recWrites map[int]pendingWrite, readSet map[int]bool) bool {
	for vid := range recWrites {
		if readSet[vid] {
			return true
		}
	}
	return false
}

// hasCommonKeyWR reports whether any variable this transaction wrote is in
// recReadSet (a rw antidependency: an earlier committer read a version
// this transaction has now overwritten).
func hasCommonKeyWR(writeSet map[int]pendingWrite, recReadSet map[int]bool) bool {
	for vid := range writeSet {
		if recReadSet[vid] {
			return true
		}
	}
	return false
}

func hasCommonKey(a, b map[int]pendingWrite) bool {
	for vid := range a {
		if _, ok := b[vid]; ok {
			return true
		}
	}
	return false
}

// apply commits every pending write to every currently live site that
// holds it, using each write's own tick, and records the transaction's
// read/write sets for future certification. Writes are grouped by site
// and handed to CommitWrites in one call per site, since CommitWrites
// releases every lock tid holds there once it returns — calling it
// separately per variable would drop the locks (and the pending values
// they guard) for whichever variables hadn't been committed yet.
func (m *Manager) apply(t *Transaction, tick int) {
	writeSet := t.WriteSet()

	for _, s := range m.sites {
		if !s.Active() {
			continue
		}
		siteWrites := make(map[int]int)
		for vid, w := range writeSet {
			if s.HasVariable(vid) {
				siteWrites[vid] = w.WriteTick
			}
		}
		if len(siteWrites) > 0 {
			s.CommitWrites(t.ID, siteWrites)
		}
	}

	t.CommitTick = tick
	t.Status = Committed

	readSet := make(map[int]bool)
	for _, vid := range t.ReadSet() {
		readSet[vid] = true
	}
	m.committed = append(m.committed, commitRecord{
		tid:        t.ID,
		commitTick: tick,
		readSet:    readSet,
		writeSet:   writeSet,
	})
}

// Fail crashes site sid and flags every live read-write transaction that
// has accessed it for abort at End.
func (m *Manager) Fail(sid, tick int) ([]string, error) {
	s := m.siteByID(sid)
	if s == nil {
		return nil, ErrUnknownSite
	}
	s.Fail(tick)
	for _, t := range m.txns {
		if t.Mode == ReadWrite && t.hasAccessedSite(sid) {
			t.abortOnEnd = true
		}
	}
	return []string{fmt.Sprintf("site %d fails", sid)}, nil
}

// Recover brings site sid back up and retries whatever operations can now
// proceed.
func (m *Manager) Recover(sid, tick int) ([]string, error) {
	s := m.siteByID(sid)
	if s == nil {
		return nil, ErrUnknownSite
	}
	s.Recover(tick)
	events := []string{fmt.Sprintf("site %d recovers", sid)}
	events = append(events, m.retry()...)
	return events, nil
}

// Dump renders one line per site, site 1 first.
func (m *Manager) Dump() []string {
	out := make([]string, siteCount)
	for i, s := range m.sites {
		out[i] = s.Dump()
	}
	return out
}
