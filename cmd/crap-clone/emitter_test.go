// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bytes"
	"strings"
	"testing"
)

// buildPipeline wires builder -> analyzer -> scheduler -> emitter with
// every version pre-marked, so the fetch optimizer never needs a real
// transport: fetch() sees an already-empty pending list and returns
// immediately without touching f.t.
func runPipeline(t *testing.T, db *database) (*bytes.Buffer, *emitter) {
	t.Helper()
	for _, v := range db.versions {
		v.mark = setMark(uint64(v.idx) + 1)
	}

	ctl := newControl(false, false)
	assertTrue(t, newBuilder(db, 300, ctl).build() == nil)
	newAnalyzer(db, ctl).analyze()

	var out bytes.Buffer
	em := newEmitter(db, ctl, nil, nil, &out, "cvs_master")
	fo := newFetchOptimizer(db, ctl, nil, &out, "mod", em.nextMark)
	fp := newFixupPlanner(db, ctl)
	em.fetch = fo
	em.fixup = fp

	sch := newScheduler(db, em, ctl)
	assertTrue(t, sch.run() == nil)
	assertTrue(t, em.finalizeFixups() == nil)
	return &out, em
}

// a no-op commit collapse: two versions committed as separate
// changesets touch the same content twice (implicit-merge points both to
// the same normalised version), so the second changeset's live state
// exactly matches the first's; it must be collapsed rather than emitted.
func TestEmitterCollapsesNoopCommit(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v1 := db.addVersion(f, "1.1", 100, "x", "init")
	v1.branch = trunk.idx
	v2 := db.addVersion(f, "1.2", 200, "y", "reimport")
	v2.branch = trunk.idx
	v2.parent = v1.idx
	v2.implicitMerge = v1.idx // normalises back to v1: no real content change

	out, em := runPipeline(t, db)

	assertIntEqual(t, em.emittedCommits, 1)
	assertIntEqual(t, strings.Count(out.String(), "commit refs/heads/cvs_master"), 1)
}

func TestEmitterEmitsTwoRealCommits(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	f := db.findOrCreateFile("a")
	v1 := db.addVersion(f, "1.1", 100, "x", "init")
	v1.branch = trunk.idx
	v2 := db.addVersion(f, "1.2", 200, "y", "edit")
	v2.branch = trunk.idx
	v2.parent = v1.idx

	out, em := runPipeline(t, db)

	assertIntEqual(t, em.emittedCommits, 2)
	assertIntEqual(t, strings.Count(out.String(), "commit refs/heads/cvs_master"), 2)
}

// every Tag ends the run released, and the exact/fix-up counters
// partition the full Tag set with no overlap and no gap.
func TestEmitterReleasesEveryTag(t *testing.T) {
	db := newDatabase()
	trunk := db.trunk()
	a := db.findOrCreateFile("a")
	va := db.addVersion(a, "1.1", 100, "x", "init")
	va.branch = trunk.idx

	tag := db.findOrCreateTag("REL1", csTag)
	tag.tagFiles[a.idx] = va.idx

	_, _ = runPipeline(t, db)

	for _, tg := range db.tags {
		if tg.name == "" {
			continue
		}
		assertBool(t, tg.isReleased, true)
	}

	var exactTags, fixupTags, exactBranches, fixupBranches int
	for _, tg := range db.tags {
		if tg.name == "" {
			continue
		}
		switch {
		case tg.kind == csBranch && tg.fixup:
			fixupBranches++
		case tg.kind == csBranch:
			exactBranches++
		case tg.fixup:
			fixupTags++
		default:
			exactTags++
		}
	}
	total := exactTags + fixupTags + exactBranches + fixupBranches
	nonTrunkTags := 0
	for _, tg := range db.tags {
		if tg.name != "" {
			nonTrunkTags++
		}
	}
	assertIntEqual(t, total, nonTrunkTags)
}
