// SPDX-License-Identifier: BSD-2-Clause

package main

import "testing"

type recordingSink struct {
	order []changesetIdx
}

func (s *recordingSink) emitCommit(cs *changeset) error {
	s.order = append(s.order, cs.idx)
	return nil
}

func (s *recordingSink) emitTag(cs *changeset) error {
	s.order = append(s.order, cs.idx)
	return nil
}

// two independent commits with no DAG edges: both start ready, and at
// equal timestamp a tag/branch changeset must sort before a commit.
func TestSchedulerOrdersTagBeforeCommitAtEqualTimestamp(t *testing.T) {
	db := newDatabase()
	commit := db.newChangeset(csCommit, 100)
	tagCS := db.newChangeset(csTag, 100)

	sink := &recordingSink{}
	sch := newScheduler(db, sink, nil)
	assertTrue(t, sch.run() == nil)

	assertIntEqual(t, len(sink.order), 2)
	assertIntEqual(t, int(sink.order[0]), int(tagCS.idx))
	assertIntEqual(t, int(sink.order[1]), int(commit.idx))
}

// a child changeset is only pushed onto the ready heap once its single
// parent has been emitted.
func TestSchedulerRespectsParentChildOrder(t *testing.T) {
	db := newDatabase()
	parent := db.newChangeset(csCommit, 100)
	child := db.newChangeset(csCommit, 50) // earlier timestamp, but still blocked
	child.parent = parent.idx
	child.unreadyCount = 1
	parent.children = []changesetIdx{child.idx}

	sink := &recordingSink{}
	sch := newScheduler(db, sink, nil)
	assertTrue(t, sch.run() == nil)

	assertIntEqual(t, len(sink.order), 2)
	assertIntEqual(t, int(sink.order[0]), int(parent.idx))
	assertIntEqual(t, int(sink.order[1]), int(child.idx))
}

func TestSchedulerRejectsUnknownKind(t *testing.T) {
	db := newDatabase()
	cs := db.newChangeset(csKind(99), 0)
	sink := &recordingSink{}
	sch := newScheduler(db, sink, nil)
	err := sch.run()
	if err == nil {
		t.Fatalf("expected an error for an unknown changeset kind")
	}
	assertTrue(t, isClass(err, classProtocol))
	_ = cs
}

// resetBranchFromParent seeds a new branch's tip from its parent branch's
// tip, not from an empty slate, when the parent commit chain has a branch.
func TestSchedulerResetsBranchFromParent(t *testing.T) {
	db := newDatabase()
	f := db.findOrCreateFile("a")
	trunk := db.trunk()
	v := db.addVersion(f, "1.1", 100, "x", "init")
	v.branch = trunk.idx
	trunk.growFileSlots(1)
	trunk.branchVersions[f.idx] = v.idx

	parentCommit := db.newChangeset(csCommit, 100)
	parentCommit.branch = trunk.idx

	branchTag := db.findOrCreateTag("BR", csBranch)
	branchCS := db.newChangeset(csBranch, 150)
	branchCS.tag = branchTag.idx
	branchCS.parent = parentCommit.idx
	branchTag.changeset = branchCS.idx

	sink := &recordingSink{}
	sch := newScheduler(db, sink, nil)
	sch.resetBranchFromParent(branchCS)

	assertIntEqual(t, int(branchTag.branchVersions[f.idx]), int(v.idx))
}

// resetBranchFromParent must also resolve a parent that is itself a
// tag/branch changeset, not just a commit — print_tag expects exactly
// this case (branch = parent->type == ct_commit ? ... : as_tag(parent)),
// and emitter.parentBranchState already handles it the same way.
func TestSchedulerResetsBranchFromNonCommitParent(t *testing.T) {
	db := newDatabase()
	f := db.findOrCreateFile("a")
	trunk := db.trunk()
	v := db.addVersion(f, "1.1", 100, "x", "init")
	v.branch = trunk.idx

	parentBranchTag := db.findOrCreateTag("BR1", csBranch)
	parentBranchTag.growFileSlots(1)
	parentBranchTag.branchVersions[f.idx] = v.idx
	parentBranchCS := db.newChangeset(csBranch, 100)
	parentBranchCS.tag = parentBranchTag.idx
	parentBranchTag.changeset = parentBranchCS.idx

	childBranchTag := db.findOrCreateTag("BR2", csBranch)
	childBranchCS := db.newChangeset(csBranch, 150)
	childBranchCS.tag = childBranchTag.idx
	childBranchCS.parent = parentBranchCS.idx
	childBranchTag.changeset = childBranchCS.idx

	sch := newScheduler(db, &recordingSink{}, nil)
	sch.resetBranchFromParent(childBranchCS)

	assertIntEqual(t, int(childBranchTag.branchVersions[f.idx]), int(v.idx))
}
