// SPDX-License-Identifier: BSD-2-Clause

package main

import "sort"

// analyzer assigns every Tag a parent Changeset: the commit or
// already-resolved tag/branch changeset whose file state best matches the
// tag's named snapshot. It also wires the parent-child DAG edges the
// scheduler walks.
type analyzer struct {
	db *database
	c  *control
}

func newAnalyzer(db *database, c *control) *analyzer {
	return &analyzer{db: db, c: c}
}

// analyze assigns tag.parent for every Tag, then links the full
// Changeset DAG: commits chain sequentially per branch, and tag/branch
// changesets hang off their assigned parent.
//
// A candidate parent is any Changeset in chronological order, not just a
// commit: print_tag itself expects tag->parent to sometimes be another
// tag or branch changeset (branch = tag->parent->type == ct_commit ?
// tag->parent->versions[0]->branch : as_tag(tag->parent)), so two tags
// cut at the same underlying revision set can chain off one another
// instead of each separately re-deriving fixups from scratch.
func (a *analyzer) analyze() {
	commits := a.commitChangesetsByTime()
	checkpoints := a.changesetsByTime()

	type candidate struct {
		cs         *changeset
		mismatches int
	}
	best := make([]*candidate, len(a.db.tags))

	state := make(map[fileIdx]versionIdx)
	for _, cs := range checkpoints {
		var snapshot map[fileIdx]versionIdx
		if cs.kind == csCommit {
			for _, vid := range cs.members {
				v := a.db.version(vid)
				state[v.file] = v.idx
			}
			snapshot = state
		} else {
			snapshot = a.tagState(a.db.tag(cs.tag))
		}

		for _, t := range a.db.tags {
			if t.name == "" || cs.tag == t.idx {
				continue // trunk is the root of history; a tag can't parent itself
			}
			if cs.kind != csCommit && cs.idx >= t.changeset {
				// Only an already-swept (lower-idx) tag/branch changeset
				// can become a parent: two tags naming the exact same
				// state must not be able to adopt each other, which
				// would deadlock the scheduler on a parent cycle.
				continue
			}
			mismatches := a.countMismatches(t, snapshot)
			cur := best[t.idx]
			if cur == nil || mismatches < cur.mismatches ||
				(mismatches == cur.mismatches && cs.timestamp >= cur.cs.timestamp) {
				best[t.idx] = &candidate{cs: cs, mismatches: mismatches}
			}
		}
	}

	for _, t := range a.db.tags {
		if t.name == "" {
			t.parent = noChangeset
			continue
		}
		if c := best[t.idx]; c != nil {
			t.parent = c.cs.idx
			if a.c != nil {
				a.c.logit("analyzer", "tag %s: parent changeset %d (kind %s), %d mismatch(es)",
					t.name, c.cs.idx, c.cs.kind, c.mismatches)
			}
		} else {
			// Tag with no viable parent: synthetic root, all
			// fixups planned against the empty state.
			t.parent = noChangeset
			if a.c != nil {
				a.c.logit("analyzer", "tag %s: no viable parent, synthetic root", t.name)
			}
		}
	}

	a.chainCommitsPerBranch(commits)
	a.linkTagChangesets()
	a.computeUnreadyCounts()
}

// tagState turns t's own named snapshot into a candidate state map, for
// weighing another tag against a changeset that isn't a commit.
func (a *analyzer) tagState(t *cvsTag) map[fileIdx]versionIdx {
	state := make(map[fileIdx]versionIdx, len(a.db.files))
	for i := range a.db.files {
		v := noVersion
		if i < len(t.tagFiles) {
			v = t.tagFiles[i]
		}
		state[fileIdx(i)] = v
	}
	return state
}

// countMismatches walks every File in the Database (not just the ones T
// names explicitly) — a File absent from T's tag-files list means T
// claims it deleted, exactly as crap-clone.c's create_fixups treats a
// missing tag_files entry as a NULL target version.
func (a *analyzer) countMismatches(t *cvsTag, state map[fileIdx]versionIdx) int {
	mismatches := 0
	for i := range a.db.files {
		f := fileIdx(i)
		var target versionIdx = noVersion
		if i < len(t.tagFiles) {
			target = t.tagFiles[i]
		}
		have, ok := state[f]
		if !ok {
			have = noVersion
		}
		wantLive := a.db.live(target)
		haveLive := a.db.live(have)
		if wantLive != haveLive {
			mismatches++
		}
	}
	return mismatches
}

func (a *analyzer) commitChangesetsByTime() []*changeset {
	var commits []*changeset
	for _, cs := range a.db.changesets {
		if cs.kind == csCommit {
			commits = append(commits, cs)
		}
	}
	sort.SliceStable(commits, func(i, j int) bool {
		if commits[i].timestamp != commits[j].timestamp {
			return commits[i].timestamp < commits[j].timestamp
		}
		return commits[i].stableID < commits[j].stableID
	})
	return commits
}

// changesetsByTime orders every Changeset in the Database, commit and
// tag/branch alike, into the same chronological candidate sequence
// analyze() walks to pick each tag's parent.
func (a *analyzer) changesetsByTime() []*changeset {
	all := append([]*changeset(nil), a.db.changesets...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].timestamp != all[j].timestamp {
			return all[i].timestamp < all[j].timestamp
		}
		pi, pj := kindPriority(all[i].kind), kindPriority(all[j].kind)
		if pi != pj {
			return pi < pj
		}
		return all[i].stableID < all[j].stableID
	})
	return all
}

// chainCommitsPerBranch sets each commit's DAG parent to the previous
// commit on the same branch, and the first commit on a branch to that
// branch's own cut point.
func (a *analyzer) chainCommitsPerBranch(commits []*changeset) {
	last := make(map[tagIdx]changesetIdx)
	for _, cs := range commits {
		if prev, ok := last[cs.branch]; ok {
			cs.parent = prev
		} else if cs.branch != noTag {
			cs.parent = a.db.tag(cs.branch).parent
		}
		last[cs.branch] = cs.idx
	}
}

func (a *analyzer) linkTagChangesets() {
	for _, t := range a.db.tags {
		cs := a.db.changesetAt(t.changeset)
		cs.parent = t.parent
	}
}

func (a *analyzer) computeUnreadyCounts() {
	for _, cs := range a.db.changesets {
		if cs.parent == noChangeset {
			continue
		}
		parent := a.db.changesetAt(cs.parent)
		parent.children = append(parent.children, cs.idx)
		cs.unreadyCount = 1
	}
}
