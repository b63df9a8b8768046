// SPDX-License-Identifier: BSD-2-Clause

package main

// csKind distinguishes an atomic commit from the borrowed identity of a
// tag or branch changeset, which carries no members of its own.
type csKind uint8

const (
	csCommit csKind = iota
	csTag
	csBranch
)

func (k csKind) String() string {
	switch k {
	case csCommit:
		return "commit"
	case csTag:
		return "tag"
	case csBranch:
		return "branch"
	default:
		return "unknown"
	}
}

// changeset is a cluster of versions sharing author, log message and
// branch within the coalescing window, or the borrowed tag/branch
// identity of a Tag. Children/unreadyCount drive the emission scheduler.
type changeset struct {
	idx       changesetIdx
	kind      csKind
	timestamp int64
	members   []versionIdx // non-empty only for kind == csCommit
	branch    tagIdx       // the branch members were committed on; valid only for kind == csCommit
	tag       tagIdx       // valid only for kind != csCommit

	// parent is the single DAG predecessor used to compute unreadyCount:
	// for a commit, the previous commit on the same branch (or the
	// branch's own cut point if this is the branch's first); for a tag
	// or branch changeset, its Tag's assigned parent.
	parent changesetIdx

	mark         mark
	children     []changesetIdx
	unreadyCount int
	stableID     int // tie-breaker: cluster emission order, stable under re-sort
}

// fixupVersion pairs a file with the version (or tombstone, via
// noVersion) it must be reconciled to before a tag/branch can be
// considered released, and the time that reconciliation logically
// happens at.
type fixupVersion struct {
	file   fileIdx
	target versionIdx
	time   fixupTime
}

// fixupTime orders fixups ascending by time, with "no target version"
// (a deletion) sorting first — the nullable-optional replacement for
// the original's TIME_MIN sentinel.
type fixupTime struct {
	t    int64
	none bool
}

func fixupTimeOf(v *cvsVersion) fixupTime {
	if v == nil {
		return fixupTime{none: true}
	}
	return fixupTime{t: v.timestamp}
}

func (a fixupTime) less(b fixupTime) bool {
	if a.none != b.none {
		return a.none
	}
	if a.none {
		return false
	}
	return a.t < b.t
}

// cvsTag is a symbolic name: the trunk (name == ""), a tag, or a branch.
type cvsTag struct {
	idx  tagIdx
	name string
	kind csKind // csTag or csBranch

	tagFiles []versionIdx // explicit per-file snapshot this tag/branch names, ordered by fileIdx

	parent     changesetIdx
	isReleased bool
	fixup      bool
	last       changesetIdx

	// fixups is the full set planned at branch-cut or tag time, sorted
	// ascending by time; fixupCursor marks how many have been applied so
	// far, and fixupBase is the immutable baseline they were diffed
	// against (the parent branch's state at that moment).
	fixups      []fixupVersion
	fixupCursor int
	fixupBase   []versionIdx

	// branchVersions is the live tip version per file, valid only for
	// kind == csBranch: one slot per file in the Database, in file
	// creation order.
	branchVersions []versionIdx

	// changeset is this Tag's own borrowed-identity changeset in the
	// Database's changeset arena.
	changeset changesetIdx
}

// growFileSlots extends tagFiles and branchVersions (for a branch) to
// cover n files, filling new slots with noVersion. The Database calls
// this whenever a new File is registered, so existing Tags never go
// out of sync with the file arena.
func (t *cvsTag) growFileSlots(n int) {
	for len(t.tagFiles) < n {
		t.tagFiles = append(t.tagFiles, noVersion)
	}
	if t.kind == csBranch {
		for len(t.branchVersions) < n {
			t.branchVersions = append(t.branchVersions, noVersion)
		}
	}
}

func (t *cvsTag) displayName(defaultTrunkName string) string {
	if t.name == "" {
		return defaultTrunkName
	}
	return t.name
}
