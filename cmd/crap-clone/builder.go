// SPDX-License-Identifier: BSD-2-Clause

package main

import "sort"

// defaultCoalesceWindow is the changeset clustering window in seconds;
// crap-clone.c hardcodes the same 300s window when deciding whether a
// batch of fetches shares a narrow-enough date range.
const defaultCoalesceWindow int64 = 300

// builder clusters co-temporal same-author same-log revisions into
// commit-kind changesets, and wraps every Tag already registered in the
// Database in its own tag/branch changeset with an empty member set.
type builder struct {
	db     *database
	c      *control
	window int64
}

func newBuilder(db *database, window int64, c *control) *builder {
	if window <= 0 {
		window = defaultCoalesceWindow
	}
	return &builder{db: db, c: c, window: window}
}

// build runs the full clustering pass. It must run after every File,
// Version and Tag has been registered by the parser.
func (b *builder) build() error {
	for _, v := range b.db.versions {
		if v.timestamp < timeMin || v.timestamp > timeMax {
			return throw(classMalformed,
				"version %s %s: timestamp %d out of range [%d, %d]",
				b.db.file(v.file).path, v.revision, v.timestamp, timeMin, timeMax)
		}
	}

	ids := make([]versionIdx, len(b.db.versions))
	for i := range ids {
		ids[i] = versionIdx(i)
	}
	sort.SliceStable(ids, func(i, j int) bool {
		return b.less(b.db.version(ids[i]), b.db.version(ids[j]))
	})

	var current *changeset
	var clusterFiles map[fileIdx]bool
	var keyBranch tagIdx
	var keyAuthor, keyLog string
	var lastTimestamp int64

	for _, vid := range ids {
		v := b.db.version(vid)
		sameKey := current != nil && v.branch == keyBranch && v.author == keyAuthor && v.log == keyLog
		withinWindow := sameKey && v.timestamp-lastTimestamp <= b.window
		conflict := withinWindow && clusterFiles[v.file]

		if !withinWindow || conflict {
			if b.c != nil && current != nil {
				reason := "window elapsed"
				if conflict {
					reason = "file already touched in this cluster"
				}
				b.c.logit("builder", "cluster split at %s %s (%s): %d member(s) closed",
					b.db.file(v.file).path, v.revision, reason, len(current.members))
			}
			current = b.db.newChangeset(csCommit, v.timestamp)
			current.branch = v.branch
			clusterFiles = make(map[fileIdx]bool)
			keyBranch, keyAuthor, keyLog = v.branch, v.author, v.log
		}

		current.members = append(current.members, vid)
		clusterFiles[v.file] = true
		v.changeset = current.idx
		if v.timestamp > current.timestamp {
			current.timestamp = v.timestamp
		}
		lastTimestamp = v.timestamp
	}

	for _, t := range b.db.tags {
		cs := b.db.newChangeset(t.kind, b.tagTimestamp(t))
		cs.tag = t.idx
		t.changeset = cs.idx
	}

	if b.c != nil {
		var commits int
		for _, cs := range b.db.changesets {
			if cs.kind == csCommit {
				commits++
			}
		}
		b.c.logit("builder", "clustered %d version(s) into %d commit(s), %d tag/branch identities",
			len(b.db.versions), commits, len(b.db.tags))
	}

	return nil
}

// less orders versions by (branch, author, log, timestamp) — the
// clustering key, with timestamp last so that within one key the walk
// is chronological.
func (b *builder) less(x, y *cvsVersion) bool {
	if x.branch != y.branch {
		return x.branch < y.branch
	}
	if x.author != y.author {
		return x.author < y.author
	}
	if x.log != y.log {
		return x.log < y.log
	}
	return x.timestamp < y.timestamp
}

// tagTimestamp is the changeset time a Tag's borrowed-identity changeset
// sorts by: the latest timestamp among the versions it names, so a tag
// never schedules ahead of the content it snapshots. A tag with no
// tag-files (pointing only at a synthetic root) sorts at time zero.
func (b *builder) tagTimestamp(t *cvsTag) int64 {
	var max int64
	for _, vi := range t.tagFiles {
		if vi == noVersion {
			continue
		}
		if ts := b.db.version(vi).timestamp; ts > max {
			max = ts
		}
	}
	return max
}
