// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"math"
	"strconv"
)

// Indices into the Database's arenas: arenas-with-indices instead of
// raw intrusive pointers, so the model is trivially snapshottable for
// tests.
type fileIdx int32
type versionIdx int32
type tagIdx int32
type changesetIdx int32

const (
	noFile      fileIdx      = -1
	noVersion   versionIdx   = -1
	noTag       tagIdx       = -1
	noChangeset changesetIdx = -1
)

// timeMin and timeMax bound valid revision timestamps; a version outside
// this range is malformed input.
const (
	timeMin int64 = math.MinInt64 + 1
	timeMax int64 = math.MaxInt64 - 1
)

// mark is the nullable monotone blob/commit identifier, replacing the
// C original's SIZE_MAX sentinel with an explicit unset state.
type mark struct {
	value uint64
	set   bool
}

func unsetMark() mark           { return mark{} }
func setMark(v uint64) mark     { return mark{value: v, set: true} }
func (m mark) isSet() bool      { return m.set }
func (m mark) String() string {
	if !m.set {
		return ":UNSET"
	}
	return ":" + strconv.FormatUint(m.value, 10)
}

// cvsFile is a repository path and its ordered collection of versions.
// Created once at log-parse time and immutable thereafter.
type cvsFile struct {
	idx      fileIdx
	path     string
	versions []versionIdx
}

// cvsVersion is one revision of a file.
type cvsVersion struct {
	idx       versionIdx
	file      fileIdx
	revision  string
	timestamp int64
	author    string
	log       string
	dead      bool
	exec      bool
	parent    versionIdx
	branch    tagIdx // the Tag (possibly trunk, name "") this revision lives on
	// implicitMerge normalizes a vendor-branch revision back onto the
	// representative the trunk actually shares content with.
	implicitMerge versionIdx
	mark          mark
	changeset     changesetIdx // back-edge filled in by the Changeset Builder
}
