// SPDX-License-Identifier: BSD-2-Clause

package main

import "container/heap"

// schedulerItem is a min-heap entry keyed (timestamp, kind-priority,
// stable-id); tags and branches sort before commits at equal timestamp.
type schedulerItem struct {
	cs        changesetIdx
	timestamp int64
	priority  int
	stableID  int
}

func kindPriority(k csKind) int {
	if k == csCommit {
		return 1
	}
	return 0
}

// readyHeap implements container/heap.Interface, the same idiom the
// goreposurgeon's own repository uses for its resort() priority queue.
type readyHeap []schedulerItem

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp < h[j].timestamp
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].stableID < h[j].stableID
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x interface{}) {
	*h = append(*h, x.(schedulerItem))
}
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// emitSink is what the scheduler drives; the Emitter and Fixup Planner
// are wired in behind it (kept decoupled from heap bookkeeping).
type emitSink interface {
	emitCommit(cs *changeset) error
	emitTag(cs *changeset) error
}

// scheduler drives changesets out of the Database in dependency order.
type scheduler struct {
	db   *database
	sink emitSink
	c    *control
}

func newScheduler(db *database, sink emitSink, c *control) *scheduler {
	return &scheduler{db: db, sink: sink, c: c}
}

// run pops the ready heap in order, emits each changeset, and unblocks
// children. It terminates when the heap empties.
func (s *scheduler) run() error {
	h := &readyHeap{}
	heap.Init(h)
	for _, cs := range s.db.changesets {
		if cs.unreadyCount == 0 {
			heap.Push(h, s.item(cs))
		}
	}

	emitted := make([]bool, len(s.db.changesets))
	for h.Len() > 0 {
		it := heap.Pop(h).(schedulerItem)
		cs := s.db.changesetAt(it.cs)
		if emitted[cs.idx] {
			return throw(classProtocol, "changeset %d re-scheduled after emission", cs.idx)
		}
		emitted[cs.idx] = true

		if err := s.dispatch(cs); err != nil {
			return err
		}
		if s.c != nil {
			s.c.logit("scheduler", "dispatched changeset %d (kind %s, ts %d), %d child(ren) unblocked",
				cs.idx, cs.kind, cs.timestamp, len(cs.children))
		}

		for _, childIdx := range cs.children {
			child := s.db.changesetAt(childIdx)
			child.unreadyCount--
			if child.unreadyCount < 0 {
				return throw(classProtocol, "changeset %d unready-count underflow", child.idx)
			}
			if child.unreadyCount == 0 {
				heap.Push(h, s.item(child))
			}
		}
	}
	return nil
}

func (s *scheduler) item(cs *changeset) schedulerItem {
	return schedulerItem{cs: cs.idx, timestamp: cs.timestamp, priority: kindPriority(cs.kind), stableID: cs.stableID}
}

func (s *scheduler) dispatch(cs *changeset) error {
	switch cs.kind {
	case csCommit:
		// Branch-versions/last advancement happens inside emitCommit,
		// which must compare against the pre-commit state to detect a
		// no-op collapse before mutating anything.
		return s.sink.emitCommit(cs)
	case csTag:
		return s.sink.emitTag(cs)
	case csBranch:
		s.resetBranchFromParent(cs)
		return s.sink.emitTag(cs)
	default:
		return throw(classProtocol, "changeset %d: unknown kind %v", cs.idx, cs.kind)
	}
}

// resetBranchFromParent seeds a newly-cut branch's branch-versions array
// from its parent's, or to all-dead if it has none. It resolves the
// parent branch the same way emitter.parentBranchState does, since cs's
// parent can be either a commit or another tag/branch changeset.
func (s *scheduler) resetBranchFromParent(cs *changeset) {
	t := s.db.tag(cs.tag)
	t.growFileSlots(len(s.db.files))

	parentBranch := s.db.parentBranchOf(cs)
	if parentBranch == nil {
		for i := range t.branchVersions {
			t.branchVersions[i] = noVersion
		}
		if s.c != nil {
			s.c.logit("scheduler", "branch %s: no parent state, resetting all-dead", t.displayName("<trunk>"))
		}
		return
	}
	parentBranch.growFileSlots(len(s.db.files))
	for i := range t.branchVersions {
		if i < len(parentBranch.branchVersions) {
			t.branchVersions[i] = parentBranch.branchVersions[i]
		} else {
			t.branchVersions[i] = noVersion
		}
	}
	if s.c != nil {
		s.c.logit("scheduler", "branch %s: seeded from %s", t.displayName("<trunk>"), parentBranch.displayName("<trunk>"))
	}
}
