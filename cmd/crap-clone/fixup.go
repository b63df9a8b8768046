// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"sort"
	"strings"
)

// fixupPlanner is grounded on fixup.c's
// create_fixups and fixup_commit_comment.
type fixupPlanner struct {
	db *database
	c  *control
}

func newFixupPlanner(db *database, c *control) *fixupPlanner {
	return &fixupPlanner{db: db, c: c}
}

// computeAll diffs t's named snapshot against base (a branch-versions
// array, possibly nil for the synthetic-root case) and stores the
// result on t, sorted ascending by time, ready for due()/finalize().
func (p *fixupPlanner) computeAll(t *cvsTag, base []versionIdx) {
	t.fixupBase = append([]versionIdx(nil), base...)
	t.fixups = p.diff(t, t.fixupBase)
	t.fixupCursor = 0
	if p.c != nil {
		p.c.logit("fixup", "%s: %d fixup(s) planned against a %d-file base",
			t.displayName("<trunk>"), len(t.fixups), len(base))
	}
}

func (p *fixupPlanner) diff(t *cvsTag, base []versionIdx) []fixupVersion {
	n := len(p.db.files)
	var out []fixupVersion
	for i := 0; i < n; i++ {
		rawBase := noVersion
		if i < len(base) {
			rawBase = base[i]
		}
		rawTag := noVersion
		if i < len(t.tagFiles) {
			rawTag = t.tagFiles[i]
		}

		bvl := p.db.live(rawBase)
		tvl := p.db.live(rawTag)
		if bvl == tvl {
			continue
		}

		nt := p.db.normalise(rawTag)
		ft := fixupTime{none: true}
		if nt != noVersion {
			ft = fixupTime{t: p.db.version(nt).timestamp}
		}
		out = append(out, fixupVersion{file: fileIdx(i), target: tvl, time: ft})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].time.less(out[b].time) })
	return out
}

// due returns and marks applied every unapplied fixup with time <= asOf,
// the incremental per-branch application done before the next real
// commit.
func (p *fixupPlanner) due(t *cvsTag, asOf int64) []fixupVersion {
	return p.take(t, fixupTime{t: asOf})
}

// finalize returns and marks applied every fixup still pending,
// regardless of time — the end-of-run sweep, and the immediate
// all-at-once behavior for plain tags.
func (p *fixupPlanner) finalize(t *cvsTag) []fixupVersion {
	if t.fixupCursor >= len(t.fixups) {
		return nil
	}
	batch := t.fixups[t.fixupCursor:]
	t.fixupCursor = len(t.fixups)
	p.apply(t, batch)
	return batch
}

func (p *fixupPlanner) take(t *cvsTag, threshold fixupTime) []fixupVersion {
	start := t.fixupCursor
	end := start
	for end < len(t.fixups) && !threshold.less(t.fixups[end].time) {
		end++
	}
	batch := t.fixups[start:end]
	t.fixupCursor = end
	p.apply(t, batch)
	return batch
}

func (p *fixupPlanner) apply(t *cvsTag, batch []fixupVersion) {
	if len(batch) == 0 {
		return
	}
	if t.kind == csBranch {
		t.growFileSlots(len(p.db.files))
		for _, fv := range batch {
			t.branchVersions[fv.file] = fv.target
		}
	}
	t.fixup = true
	if p.c != nil {
		p.c.logit("fixup", "%s: applying %d fixup(s), %d remaining", t.displayName("<trunk>"), len(batch), len(t.fixups)-t.fixupCursor)
	}
}

// comment builds the deterministic fix-up commit message: a header
// counting modified/added/deleted/kept files, followed by one line per
// changed file, disclosing the rarer side of {kept, deleted} in full
// and summarizing the other with a bare count in the header only.
func (p *fixupPlanner) comment(t *cvsTag, batch []fixupVersion) string {
	byFile := make(map[fileIdx]versionIdx, len(batch))
	for _, fv := range batch {
		byFile[fv.file] = fv.target
	}

	n := len(p.db.files)
	baseLive := func(i int) versionIdx {
		raw := noVersion
		if i < len(t.fixupBase) {
			raw = t.fixupBase[i]
		}
		return p.db.live(raw)
	}
	target := func(i int, bv versionIdx) (versionIdx, bool) {
		if tv, ok := byFile[fileIdx(i)]; ok {
			return tv, true
		}
		return bv, false
	}

	var keep, added, deleted, modified int
	for i := 0; i < n; i++ {
		bv := baseLive(i)
		tv, _ := target(i, bv)
		switch {
		case bv == tv:
			if bv != noVersion {
				keep++
			}
		case tv == noVersion:
			deleted++
		case bv == noVersion:
			added++
		default:
			modified++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fix-up commit generated by crap-clone.  (~%d +%d -%d =%d)\n",
		modified, added, deleted, keep)

	for i := 0; i < n; i++ {
		bv := baseLive(i)
		tv, explicit := target(i, bv)
		path := p.db.file(fileIdx(i)).path

		if bv == tv {
			if bv != noVersion && keep <= deleted {
				fmt.Fprintf(&b, "%s KEEP %s\n", path, p.db.version(bv).revision)
			}
			continue
		}
		if !explicit {
			continue
		}
		if tv != noVersion || deleted <= keep {
			from := "ADD"
			if bv != noVersion {
				from = p.db.version(bv).revision
			}
			to := "DELETE"
			if tv != noVersion {
				to = p.db.version(tv).revision
			}
			fmt.Fprintf(&b, "%s %s->%s\n", path, from, to)
		}
	}
	return b.String()
}
