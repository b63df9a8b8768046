// SPDX-License-Identifier: BSD-2-Clause

package main

import "testing"

func TestBuilderDefaultWindow(t *testing.T) {
	db := newDatabase()
	b := newBuilder(db, 0, nil)
	assertIntEqual(t, int(b.window), int(defaultCoalesceWindow))
}

// a single file with two commits and no tags clusters into two commit
// changesets.
func TestBuilderSingleFileTwoCommits(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v1 := db.addVersion(f, "1.1", 100, "x", "init")
	v1.branch = trunk.idx
	v2 := db.addVersion(f, "1.2", 200, "x", "edit")
	v2.branch = trunk.idx
	v2.parent = v1.idx

	b := newBuilder(db, 300, nil)
	assertTrue(t, b.build() == nil)

	var commits []*changeset
	for _, cs := range db.changesets {
		if cs.kind == csCommit {
			commits = append(commits, cs)
		}
	}
	assertIntEqual(t, len(commits), 2)
}

// two files sharing an author and log message, committed close together,
// coalesce into one changeset.
func TestBuilderCoalescesSameKey(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	a := db.findOrCreateFile("a")
	bf := db.findOrCreateFile("b")
	va := db.addVersion(a, "1.1", 1000, "x", "both")
	va.branch = trunk.idx
	vb := db.addVersion(bf, "1.1", 1001, "x", "both")
	vb.branch = trunk.idx

	b := newBuilder(db, 300, nil)
	assertTrue(t, b.build() == nil)

	var commits []*changeset
	for _, cs := range db.changesets {
		if cs.kind == csCommit {
			commits = append(commits, cs)
		}
	}
	assertIntEqual(t, len(commits), 1)
	assertIntEqual(t, len(commits[0].members), 2)
	assertIntEqual(t, int(commits[0].timestamp), 1001)
}

// same file twice with the same key must split, never coexist in a
// changeset.
func TestBuilderSplitsOnFileConflict(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v1 := db.addVersion(f, "1.1", 100, "x", "same")
	v1.branch = trunk.idx
	v2 := db.addVersion(f, "1.2", 101, "x", "same")
	v2.branch = trunk.idx

	b := newBuilder(db, 300, nil)
	assertTrue(t, b.build() == nil)

	var commits []*changeset
	for _, cs := range db.changesets {
		if cs.kind == csCommit {
			commits = append(commits, cs)
		}
	}
	assertIntEqual(t, len(commits), 2)
}

func TestBuilderRejectsOutOfRangeTimestamp(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v := db.addVersion(f, "1.1", timeMax+1, "x", "bad")
	v.branch = trunk.idx

	b := newBuilder(db, 300, nil)
	err := b.build()
	if err == nil {
		t.Fatalf("expected an error for out-of-range timestamp")
	}
	assertTrue(t, isClass(err, classMalformed))
}
