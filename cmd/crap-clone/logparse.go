// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// logParser turns an `rlog` response into Files, Versions and Tags. The
// wire protocol client and the grammar of revision-log responses are
// named as external collaborators; this is a from-scratch, minimal
// reimplementation of that grammar so the CLI has something real to
// drive the reconstruction engine end to end.
type logParser struct {
	db *database
	t  *transport
	c  *control
}

func newLogParser(db *database, t *transport, c *control) *logParser {
	return &logParser{db: db, t: t, c: c}
}

// run requests the full revision history of module and populates db.
func (p *logParser) run(module string) error {
	if err := p.t.send("Argument -N\nArgument %s\nrlog", module); err != nil {
		return err
	}
	if err := p.t.flush(); err != nil {
		return err
	}

	var text []string
	for {
		line, err := p.t.readLine()
		if err != nil {
			return err
		}
		if line == "ok" {
			break
		}
		if strings.HasPrefix(line, "error") {
			return throw(classProtocol, "rlog failed: %s", line)
		}
		if strings.HasPrefix(line, "M ") {
			text = append(text, line[2:])
		}
	}
	return p.parse(text)
}

func (p *logParser) parse(lines []string) error {
	i := 0
	for i < len(lines) {
		if !strings.HasPrefix(lines[i], "RCS file:") {
			i++
			continue
		}
		i++
		if i >= len(lines) || !strings.HasPrefix(lines[i], "Working file:") {
			return throw(classMalformed, "rlog: expected Working file after RCS file")
		}
		path := strings.TrimSpace(strings.TrimPrefix(lines[i], "Working file:"))
		i++

		symbols := map[string]string{}
		for i < len(lines) && strings.TrimSpace(lines[i]) != "symbolic names:" && !strings.HasPrefix(lines[i], "----") {
			i++
		}
		if i < len(lines) && strings.TrimSpace(lines[i]) == "symbolic names:" {
			i++
			for i < len(lines) && strings.HasPrefix(lines[i], "\t") {
				kv := strings.SplitN(strings.TrimSpace(lines[i]), ":", 2)
				if len(kv) == 2 {
					symbols[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
				}
				i++
			}
		}

		for i < len(lines) && !strings.HasPrefix(lines[i], "----") {
			i++
		}

		file := p.db.findOrCreateFile(path)
		versionsBefore := len(file.versions)
		for i < len(lines) && strings.HasPrefix(lines[i], "----") {
			i++
			if i >= len(lines) || !strings.HasPrefix(lines[i], "revision ") {
				break
			}
			rev := strings.TrimSpace(strings.TrimPrefix(lines[i], "revision "))
			i++
			if i >= len(lines) {
				return throw(classMalformed, "rlog: %s %s: missing metadata line", path, rev)
			}
			date, author, state, err := parseRevisionMeta(lines[i])
			if err != nil {
				return err
			}
			i++

			var logLines []string
			for i < len(lines) && !strings.HasPrefix(lines[i], "----") && !strings.HasPrefix(lines[i], "====") {
				logLines = append(logLines, lines[i])
				i++
			}

			ts, err := parseRlogDate(date)
			if err != nil {
				return throw(classMalformed, "rlog: %s %s: bad date %q", path, rev, date)
			}
			v := p.db.addVersion(file, rev, ts, author, strings.TrimRight(strings.Join(logLines, "\n"), "\n"))
			v.dead = state == "dead"
		}
		for i < len(lines) && !strings.HasPrefix(lines[i], "====") {
			i++
		}
		i++

		p.wireSymbols(file, symbols)
		p.assignBranches(file)
		p.linkParents(file)

		if p.c != nil {
			p.c.logit("logparse", "%s: %d revision(s), %d symbol(s)", path, len(file.versions)-versionsBefore, len(symbols))
		}
	}
	return nil
}

func parseRevisionMeta(line string) (date, author, state string, err error) {
	fields := strings.Split(line, ";")
	for _, f := range fields {
		f = strings.TrimSpace(f)
		switch {
		case strings.HasPrefix(f, "date:"):
			date = strings.TrimSpace(strings.TrimPrefix(f, "date:"))
		case strings.HasPrefix(f, "author:"):
			author = strings.TrimSpace(strings.TrimPrefix(f, "author:"))
		case strings.HasPrefix(f, "state:"):
			state = strings.TrimSpace(strings.TrimPrefix(f, "state:"))
		}
	}
	if date == "" || author == "" {
		return "", "", "", throw(classMalformed, "rlog: malformed revision metadata %q", line)
	}
	return date, author, state, nil
}

func parseRlogDate(s string) (int64, error) {
	for _, layout := range []string{"2006/01/02 15:04:05", "2006-01-02 15:04:05 -0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized date %q", s)
}

// decodeBranchNumber recognizes CVS's magic-branch-number convention:
// a symbol whose revision has an even number of dotted components with
// "0" second-from-last (e.g. "1.2.0.4") names a branch rooted at "1.2",
// whose own revisions look like "1.2.4.<n>".
func decodeBranchNumber(rev string) (branchPrefix, rootRevision string, ok bool) {
	parts := strings.Split(rev, ".")
	if len(parts) < 4 || len(parts)%2 != 0 || parts[len(parts)-2] != "0" {
		return "", "", false
	}
	root := strings.Join(parts[:len(parts)-2], ".")
	prefix := root + "." + parts[len(parts)-1]
	return prefix, root, true
}

// wireSymbols attaches this File's tag-files entries: for a plain tag,
// the literal named revision; for a branch, the ancestor revision it
// was cut from (absence, if that ancestor doesn't exist for this file,
// correctly reads as "file does not exist in this snapshot").
func (p *logParser) wireSymbols(file *cvsFile, symbols map[string]string) {
	for name, rev := range symbols {
		if _, root, ok := decodeBranchNumber(rev); ok {
			t := p.db.findOrCreateTag(name, csBranch)
			t.growFileSlots(len(p.db.files))
			if v, found := p.db.findVersion(file, root); found {
				t.tagFiles[file.idx] = v.idx
			}
			continue
		}
		t := p.db.findOrCreateTag(name, csTag)
		t.growFileSlots(len(p.db.files))
		if v, found := p.db.findVersion(file, rev); found {
			t.tagFiles[file.idx] = v.idx
		}
	}
}

// assignBranches sets each Version's branch membership from its own
// revision-number shape: two components is trunk, four or more names a
// branch whose magic number some symbol in this file declared.
func (p *logParser) assignBranches(file *cvsFile) {
	prefixToBranch := make(map[string]tagIdx)
	// Recover each branch's revision-number prefix by matching its
	// recorded root ancestor (stored in tagFiles) back against this
	// file's own revisions, since tagFiles only kept the ancestor
	// version, not the prefix string itself.
	for _, t := range p.db.tags {
		if t.kind != csBranch {
			continue
		}
		for _, vi := range file.versions {
			v := p.db.version(vi)
			parts := strings.Split(v.revision, ".")
			if len(parts) < 4 {
				continue
			}
			root := strings.Join(parts[:len(parts)-2], ".")
			if int(file.idx) < len(t.tagFiles) && t.tagFiles[file.idx] != noVersion {
				rv, ok := p.db.findVersion(file, root)
				if ok && t.tagFiles[file.idx] == rv.idx {
					prefixToBranch[strings.Join(parts[:len(parts)-1], ".")] = t.idx
				}
			}
		}
	}

	trunk := p.db.trunk()
	for _, vi := range file.versions {
		v := p.db.version(vi)
		parts := strings.Split(v.revision, ".")
		if len(parts) == 2 {
			v.branch = trunk.idx
			continue
		}
		prefix := strings.Join(parts[:len(parts)-1], ".")
		if b, ok := prefixToBranch[prefix]; ok {
			v.branch = b
			continue
		}
		v.branch = trunk.idx
	}
}

func (p *logParser) linkParents(file *cvsFile) {
	for _, vi := range file.versions {
		v := p.db.version(vi)
		parts := strings.Split(v.revision, ".")
		var parentRev string
		n, err := strconv.Atoi(parts[len(parts)-1])
		if err != nil {
			continue
		}
		if len(parts) == 2 {
			if n <= 1 {
				continue
			}
			parentRev = fmt.Sprintf("%s.%d", parts[0], n-1)
		} else if n <= 1 {
			parentRev = strings.Join(parts[:len(parts)-2], ".")
		} else {
			parentRev = fmt.Sprintf("%s.%d", strings.Join(parts[:len(parts)-1], "."), n-1)
		}
		if pv, ok := p.db.findVersion(file, parentRev); ok {
			v.parent = pv.idx
		}
	}
}
