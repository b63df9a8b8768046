// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"time"
)

// emitter writes the fast-import record stream and owns the monotonic
// mark counter, pulling missing blob content through the fetch
// optimizer and deferring to the fixup planner for tag/branch
// reconciliation commits.
type emitter struct {
	db    *database
	c     *control
	fetch *fetchOptimizer
	fixup *fixupPlanner
	out   io.Writer

	trunkLabel string
	markSeq    uint64

	emittedCommits int
}

func newEmitter(db *database, c *control, fo *fetchOptimizer, fp *fixupPlanner, out io.Writer, trunkLabel string) *emitter {
	return &emitter{db: db, c: c, fetch: fo, fixup: fp, out: out, trunkLabel: trunkLabel}
}

func (e *emitter) nextMark() uint64 {
	e.markSeq++
	return e.markSeq
}

func formatProgressLine(ts int64, kind string) string {
	return fmt.Sprintf("%s %s\n", time.Unix(ts, 0).Local().Format("2006-01-02 15:04:05 MST"), kind)
}

// emitCommit implements print_commit: detect and collapse a no-op
// commit, otherwise fetch what's missing and write the commit record.
func (e *emitter) emitCommit(cs *changeset) error {
	branch := e.db.tag(cs.branch)
	branch.growFileSlots(len(e.db.files))

	if len(branch.fixups) > branch.fixupCursor {
		due := e.fixup.due(branch, cs.timestamp)
		if len(due) > 0 {
			if err := e.emitFixupCommit(branch, due); err != nil {
				return err
			}
		}
	}

	before := append([]versionIdx(nil), branch.branchVersions...)

	nilCommit := true
	var fetchNeed []versionIdx
	for _, vid := range cs.members {
		v := e.db.version(vid)
		cv := e.db.live(vid)
		old := noVersion
		if int(v.file) < len(before) {
			old = before[v.file]
		}
		if cv == e.db.live(old) {
			continue
		}
		nilCommit = false
		if cv != noVersion && !e.db.version(cv).mark.isSet() {
			fetchNeed = append(fetchNeed, cv)
		}
	}

	for _, vid := range cs.members {
		v := e.db.version(vid)
		branch.branchVersions[v.file] = vid
	}
	prevLast := branch.last
	branch.last = cs.idx

	if nilCommit {
		if prevLast != noChangeset {
			cs.mark = e.db.changesetAt(prevLast).mark
		}
		return nil
	}

	e.c.respond(formatProgressLine(cs.timestamp, "COMMIT"))

	if err := e.fetch.fetch(fetchNeed); err != nil {
		return err
	}

	cs.mark = setMark(e.nextMark())
	first := e.db.version(cs.members[0])

	fmt.Fprintf(e.out, "commit refs/heads/%s\n", branch.displayName(e.trunkLabel))
	fmt.Fprintf(e.out, "mark %s\n", cs.mark)
	fmt.Fprintf(e.out, "committer %s <%s> %d +0000\n", first.author, first.author, cs.timestamp)
	fmt.Fprintf(e.out, "data %d\n%s\n", len(first.log), first.log)

	for _, vid := range cs.members {
		v := e.db.version(vid)
		nv := e.db.version(e.db.normalise(vid))
		path := e.db.file(v.file).path
		if nv.dead {
			fmt.Fprintf(e.out, "D %s\n", path)
		} else {
			fmt.Fprintf(e.out, "M %s %s %s\n", mode(nv.exec), nv.mark, path)
		}
	}

	e.emittedCommits++
	return nil
}

// emitTag implements print_tag for both tag and branch kinds: write the
// reset, plan the fixups against the parent's branch state, and either
// force them out now (a plain tag) or leave them for incremental
// application (a branch, picked up by emitCommit and finalizeFixups).
func (e *emitter) emitTag(cs *changeset) error {
	t := e.db.tag(cs.tag)

	kindLabel := "TAG"
	refKind := "tags"
	if t.kind == csBranch {
		kindLabel = "BRANCH"
		refKind = "heads"
	}
	e.c.respond(formatProgressLine(cs.timestamp, kindLabel))

	name := t.displayName(e.trunkLabel)

	var parentMark mark
	if cs.parent != noChangeset {
		parentMark = e.db.changesetAt(cs.parent).mark
	}
	cs.mark = parentMark
	t.last = cs.idx

	fmt.Fprintf(e.out, "reset refs/%s/%s\n", refKind, name)
	if parentMark.isSet() {
		fmt.Fprintf(e.out, "from %s\n\n", parentMark)
	}

	e.fixup.computeAll(t, e.parentBranchState(cs))

	if t.kind != csBranch {
		if batch := e.fixup.finalize(t); len(batch) > 0 {
			if err := e.emitFixupCommit(t, batch); err != nil {
				return err
			}
		}
	}
	if t.fixupCursor >= len(t.fixups) {
		t.isReleased = true
	}
	return nil
}

// emitFixupCommit implements the commit-writing half of print_fixups.
func (e *emitter) emitFixupCommit(t *cvsTag, batch []fixupVersion) error {
	var need []versionIdx
	for _, fv := range batch {
		if fv.target != noVersion && !e.db.version(fv.target).mark.isSet() {
			need = append(need, fv.target)
		}
	}
	if err := e.fetch.fetch(need); err != nil {
		return err
	}

	comment := e.fixup.comment(t, batch)

	refKind := "tags"
	if t.kind == csBranch {
		refKind = "heads"
	}
	name := t.displayName(e.trunkLabel)

	m := setMark(e.nextMark())
	cs := e.db.changesetAt(t.changeset)
	cs.mark = m

	committerTime := cs.timestamp
	if t.kind == csBranch && t.last != noChangeset {
		committerTime = e.db.changesetAt(t.last).timestamp
	}

	fmt.Fprintf(e.out, "commit refs/%s/%s\n", refKind, name)
	fmt.Fprintf(e.out, "mark %s\n", m)
	fmt.Fprintf(e.out, "committer crap <crap> %d +0000\n", committerTime)
	fmt.Fprintf(e.out, "data %d\n%s\n", len(comment), comment)

	for _, fv := range batch {
		path := e.db.file(fv.file).path
		if fv.target == noVersion {
			fmt.Fprintf(e.out, "D %s\n", path)
		} else {
			vv := e.db.version(fv.target)
			fmt.Fprintf(e.out, "M %s %s %s\n", mode(vv.exec), vv.mark, path)
		}
	}
	return nil
}

// parentBranchState mirrors the parent-branch resolution in print_tag:
// the branch-versions array of whichever Tag owns the parent Changeset,
// or nil if there is no parent (the synthetic-root case).
func (e *emitter) parentBranchState(cs *changeset) []versionIdx {
	branch := e.db.parentBranchOf(cs)
	if branch == nil {
		return nil
	}
	return branch.branchVersions
}

// finalizeFixups is the end-of-run sweep (crap-clone.c's final loop over
// every branch) that forces out whatever fixups a branch never got
// around to applying incrementally.
func (e *emitter) finalizeFixups() error {
	for _, t := range e.db.tags {
		if t.kind != csBranch {
			continue
		}
		if batch := e.fixup.finalize(t); len(batch) > 0 {
			if err := e.emitFixupCommit(t, batch); err != nil {
				return err
			}
		}
		if t.fixupCursor >= len(t.fixups) {
			t.isReleased = true
		}
	}
	return nil
}

func mode(exec bool) string {
	if exec {
		return "755"
	}
	return "644"
}
