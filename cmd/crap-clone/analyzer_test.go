// SPDX-License-Identifier: BSD-2-Clause

package main

import "testing"

// a tag aliasing a real commit exactly must resolve that commit as its
// parent.
func TestAnalyzerTagAliasesCommit(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v1 := db.addVersion(f, "1.1", 100, "x", "init")
	v1.branch = trunk.idx
	v2 := db.addVersion(f, "1.2", 200, "x", "edit")
	v2.branch = trunk.idx
	v2.parent = v1.idx

	tag := db.findOrCreateTag("T1", csTag)
	tag.tagFiles[f.idx] = v2.idx

	assertTrue(t, newBuilder(db, 300, nil).build() == nil)

	newAnalyzer(db, nil).analyze()

	// the commit containing v2 must be tag's parent.
	parent := db.changesetAt(tag.parent)
	assertEqual(t, parent.kind.String(), csCommit.String())
	found := false
	for _, m := range parent.members {
		if m == v2.idx {
			found = true
		}
	}
	assertTrue(t, found)
	assertIntEqual(t, len(db.changesetAt(tag.changeset).children), 0)
}

// a tag requiring fix-up: file a is superseded again (by a third commit)
// before file b ever reaches the state the tag wants, so no single
// commit's cumulative state matches the tag exactly; the best parent
// still leaves one file's fixup pending.
func TestAnalyzerTagRequiringFixup(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	a := db.findOrCreateFile("a")
	b := db.findOrCreateFile("b")
	va1 := db.addVersion(a, "1.1", 100, "alice", "a first")
	va1.branch = trunk.idx
	va2 := db.addVersion(a, "1.2", 150, "carol", "a second")
	va2.branch = trunk.idx
	va2.parent = va1.idx
	vb1 := db.addVersion(b, "1.1", 200, "bob", "b change")
	vb1.branch = trunk.idx

	tag := db.findOrCreateTag("T2", csTag)
	tag.tagFiles[a.idx] = va1.idx
	tag.tagFiles[b.idx] = vb1.idx

	assertTrue(t, newBuilder(db, 300, nil).build() == nil)

	an := newAnalyzer(db, nil)
	an.analyze()

	parent := db.changesetAt(tag.parent)
	found := false
	for _, m := range parent.members {
		if m == vb1.idx {
			found = true
		}
	}
	assertTrue(t, found) // the b-commit is the only candidate with just one mismatch

	state := make(map[fileIdx]versionIdx)
	for _, cs := range db.changesets {
		if cs.kind != csCommit {
			continue
		}
		for _, m := range cs.members {
			state[db.version(m).file] = m
		}
		if cs == parent {
			break
		}
	}
	mismatches := an.countMismatches(tag, state)
	assertIntEqual(t, mismatches, 1)
}

// a tag's best parent can be another tag/branch changeset, not a
// commit. File b is committed before file a ever exists, so no commit's
// cumulative state ever has "a present, b absent" — only an explicit
// branch cut naming just a can. A second tag naming that same cut must
// resolve to the branch's own changeset rather than to any commit.
func TestAnalyzerTagParentsOffAnotherTag(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	a := db.findOrCreateFile("a")
	b := db.findOrCreateFile("b")
	vb1 := db.addVersion(b, "1.1", 50, "bob", "b first")
	vb1.branch = trunk.idx
	va1 := db.addVersion(a, "1.1", 100, "carol", "a first")
	va1.branch = trunk.idx

	branch := db.findOrCreateTag("BR1", csBranch)
	branch.tagFiles[a.idx] = va1.idx // b left noVersion: doesn't exist on this branch

	alias := db.findOrCreateTag("T2", csTag)
	alias.tagFiles[a.idx] = va1.idx // names the exact same cut as BR1

	assertTrue(t, newBuilder(db, 300, nil).build() == nil)
	newAnalyzer(db, nil).analyze()

	parent := db.changesetAt(alias.parent)
	assertEqual(t, parent.kind.String(), csBranch.String())
	assertIntEqual(t, int(parent.idx), int(branch.changeset))
}

func TestAnalyzerAbsentTagFileMeansDelete(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v := db.addVersion(f, "1.1", 100, "x", "init")
	v.branch = trunk.idx
	assertTrue(t, newBuilder(db, 300, nil).build() == nil)

	tag := db.findOrCreateTag("T3", csTag) // tagFiles left all noVersion

	an := newAnalyzer(db, nil)
	state := map[fileIdx]versionIdx{f.idx: v.idx}
	mismatches := an.countMismatches(tag, state)
	assertIntEqual(t, mismatches, 1) // file present but tag wants it deleted
}
