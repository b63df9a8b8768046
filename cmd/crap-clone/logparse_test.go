// SPDX-License-Identifier: BSD-2-Clause

package main

import "testing"

func TestDecodeBranchNumber(t *testing.T) {
	prefix, root, ok := decodeBranchNumber("1.2.0.4")
	assertTrue(t, ok)
	assertEqual(t, root, "1.2")
	assertEqual(t, prefix, "1.2.4")

	_, _, ok = decodeBranchNumber("1.4")
	assertBool(t, ok, false)

	_, _, ok = decodeBranchNumber("1.2.4.1")
	assertBool(t, ok, false) // a real branch revision, not a magic number
}

func TestParseRlogDateBothLayouts(t *testing.T) {
	ts1, err := parseRlogDate("2020/01/02 03:04:05")
	assertTrue(t, err == nil)
	ts2, err := parseRlogDate("2020-01-02 03:04:05 +0000")
	assertTrue(t, err == nil)
	assertIntEqual(t, int(ts1), int(ts2))

	_, err = parseRlogDate("not a date")
	if err == nil {
		t.Fatalf("expected an error for an unrecognized date")
	}
}

func TestParseRevisionMeta(t *testing.T) {
	date, author, state, err := parseRevisionMeta("date: 2020/01/02 03:04:05;  author: alice;  state: Exp;  lines: +1 -1")
	assertTrue(t, err == nil)
	assertEqual(t, date, "2020/01/02 03:04:05")
	assertEqual(t, author, "alice")
	assertEqual(t, state, "Exp")

	_, _, _, err = parseRevisionMeta("author: bob")
	if err == nil {
		t.Fatalf("expected an error for a missing date")
	}
}

// end-to-end: a minimal two-file rlog transcript with a plain tag, a
// branch, and a dead revision, exercising parse/wireSymbols/
// assignBranches/linkParents together.
func TestParseFullTranscript(t *testing.T) {
	lines := []string{
		"RCS file: /cvsroot/mod/a.txt,v",
		"Working file: a.txt",
		"head: 1.2",
		"branch:",
		"symbolic names:",
		"\tREL1:1.1",
		"\tBR:1.1.0.2",
		"----------------------------",
		"revision 1.1",
		"date: 2020/01/01 00:00:00;  author: alice;  state: Exp;",
		"initial revision",
		"----------------------------",
		"revision 1.2",
		"date: 2020/01/02 00:00:00;  author: bob;  state: dead;",
		"removed",
		"=============================================================================",
	}

	db := newDatabase()
	p := newLogParser(db, nil, nil)
	assertTrue(t, p.parse(lines) == nil)

	file, ok := db.findFile("a.txt")
	assertTrue(t, ok)
	assertIntEqual(t, len(file.versions), 2)

	v1, ok := db.findVersion(file, "1.1")
	assertTrue(t, ok)
	v2, ok := db.findVersion(file, "1.2")
	assertTrue(t, ok)

	assertBool(t, v1.dead, false)
	assertBool(t, v2.dead, true)
	assertEqual(t, v1.author, "alice")
	assertIntEqual(t, int(v2.parent), int(v1.idx))

	trunk := db.trunk()
	assertIntEqual(t, int(v1.branch), int(trunk.idx))
	assertIntEqual(t, int(v2.branch), int(trunk.idx))

	rel1, ok := db.findTag("REL1")
	assertTrue(t, ok)
	assertIntEqual(t, int(rel1.tagFiles[file.idx]), int(v1.idx))

	br, ok := db.findTag("BR")
	assertTrue(t, ok)
	assertEqual(t, br.kind.String(), csBranch.String())
	assertIntEqual(t, int(br.tagFiles[file.idx]), int(v1.idx)) // branch cut point, not a revision on the branch
}
