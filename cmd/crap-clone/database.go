// SPDX-License-Identifier: BSD-2-Clause

package main

// database owns every File, Version, Tag and Changeset for the process
// lifetime. It is mutated exclusively by the phase currently running
// (parser -> builder -> analyzer -> scheduler); no phase overlaps, so no
// locking is needed around the arenas themselves.
type database struct {
	strings *pool
	c       *control

	files   []*cvsFile
	fileIdx map[string]fileIdx

	versions []*cvsVersion

	tags   []*cvsTag
	tagIdx map[string]tagIdx // "" maps to the trunk

	changesets []*changeset
}

func newDatabase() *database {
	return &database{
		strings: newPool(),
		fileIdx: make(map[string]fileIdx),
		tagIdx:  make(map[string]tagIdx),
	}
}

// withControl attaches a logger to an already-constructed database. The
// parser builds the database before a control exists in some call paths
// (tests construct it bare), so this is set once main has one ready.
func (db *database) withControl(c *control) *database {
	db.c = c
	return db
}

func (db *database) file(i fileIdx) *cvsFile           { return db.files[i] }
func (db *database) version(i versionIdx) *cvsVersion  { return db.versions[i] }
func (db *database) tag(i tagIdx) *cvsTag               { return db.tags[i] }
func (db *database) changesetAt(i changesetIdx) *changeset { return db.changesets[i] }

// findOrCreateFile returns the File for path, creating it (with no
// versions yet) if this is the first revision seen for it.
func (db *database) findOrCreateFile(path string) *cvsFile {
	path = db.strings.intern(path)
	if i, ok := db.fileIdx[path]; ok {
		return db.files[i]
	}
	f := &cvsFile{idx: fileIdx(len(db.files)), path: path}
	db.fileIdx[path] = f.idx
	db.files = append(db.files, f)
	for _, t := range db.tags {
		t.growFileSlots(len(db.files))
	}
	if db.c != nil {
		db.c.logit("database", "registered file %s as file %d", path, f.idx)
	}
	return f
}

func (db *database) findFile(path string) (*cvsFile, bool) {
	i, ok := db.fileIdx[path]
	if !ok {
		return nil, false
	}
	return db.files[i], true
}

// addVersion appends a new Version to its file's revision list and
// returns it. The caller is responsible for wiring parent/branch.
func (db *database) addVersion(f *cvsFile, revision string, timestamp int64, author, log string) *cvsVersion {
	v := &cvsVersion{
		idx:           versionIdx(len(db.versions)),
		file:          f.idx,
		revision:      db.strings.intern(revision),
		timestamp:     timestamp,
		author:        db.strings.intern(author),
		log:           db.strings.intern(log),
		parent:        noVersion,
		branch:        noTag,
		implicitMerge: noVersion,
		mark:          unsetMark(),
		changeset:     noChangeset,
	}
	db.versions = append(db.versions, v)
	f.versions = append(f.versions, v.idx)
	return v
}

func (db *database) findVersion(f *cvsFile, revision string) (*cvsVersion, bool) {
	for _, vi := range f.versions {
		if db.versions[vi].revision == revision {
			return db.versions[vi], true
		}
	}
	return nil, false
}

// findOrCreateTag returns the Tag named name (trunk if name == ""),
// creating it as kind if this is the first reference.
func (db *database) findOrCreateTag(name string, kind csKind) *cvsTag {
	name = db.strings.intern(name)
	if i, ok := db.tagIdx[name]; ok {
		return db.tags[i]
	}
	t := &cvsTag{
		idx:       tagIdx(len(db.tags)),
		name:      name,
		kind:      kind,
		parent:    noChangeset,
		last:      noChangeset,
		changeset: noChangeset,
	}
	t.growFileSlots(len(db.files))
	db.tagIdx[name] = t.idx
	db.tags = append(db.tags, t)
	if db.c != nil {
		display := name
		if display == "" {
			display = "<trunk>"
		}
		db.c.logit("database", "registered %s %s as tag %d", kind, display, t.idx)
	}
	return t
}

func (db *database) findTag(name string) (*cvsTag, bool) {
	i, ok := db.tagIdx[name]
	if !ok {
		return nil, false
	}
	return db.tags[i], true
}

func (db *database) trunk() *cvsTag {
	return db.findOrCreateTag("", csBranch)
}

// newChangeset allocates a Changeset in the arena and returns it.
func (db *database) newChangeset(kind csKind, timestamp int64) *changeset {
	cs := &changeset{
		idx:       changesetIdx(len(db.changesets)),
		kind:      kind,
		timestamp: timestamp,
		branch:    noTag,
		tag:       noTag,
		parent:    noChangeset,
		stableID:  len(db.changesets),
	}
	db.changesets = append(db.changesets, cs)
	return cs
}

// normalise resolves v through its implicitMerge chain to the canonical
// representative it shares content with (glossary: version_normalise).
func (db *database) normalise(v versionIdx) versionIdx {
	for v != noVersion {
		ver := db.versions[v]
		if ver.implicitMerge == noVersion {
			return v
		}
		v = ver.implicitMerge
	}
	return noVersion
}

// live is version_normalise composed with the dead-tombstone check
// (glossary: version_live); it returns noVersion for an absent or dead
// file state.
func (db *database) live(v versionIdx) versionIdx {
	nv := db.normalise(v)
	if nv == noVersion {
		return noVersion
	}
	if db.versions[nv].dead {
		return noVersion
	}
	return nv
}

// liveVersion is the convenience form returning the *cvsVersion, or nil.
func (db *database) liveVersion(v versionIdx) *cvsVersion {
	nv := db.live(v)
	if nv == noVersion {
		return nil
	}
	return db.versions[nv]
}

// parentBranchOf resolves the Tag whose branch-versions array represents
// cs's parent state, mirroring print_tag's branch resolution: a commit's
// own branch, or a tag/branch changeset's own Tag directly. Returns nil
// for the synthetic-root case (no parent, or a parent with no branch).
func (db *database) parentBranchOf(cs *changeset) *cvsTag {
	if cs.parent == noChangeset {
		return nil
	}
	parent := db.changesetAt(cs.parent)
	if parent.kind == csCommit {
		if parent.branch == noTag {
			return nil
		}
		return db.tag(parent.branch)
	}
	if parent.tag == noTag {
		return nil
	}
	return db.tag(parent.tag)
}
