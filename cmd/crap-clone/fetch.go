// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// fetchOptimizer is grounded on crap-clone.c's grab_version/
// grab_by_option/grab_versions. It batches remote retrieval of missing
// blob content and writes fast-import blob records for whatever it gets
// back, allocating marks through alloc (the Emitter's counter).
type fetchOptimizer struct {
	db     *database
	c      *control
	t      *transport
	out    io.Writer
	alloc  func() uint64
	module string
	prefix string

	transactions int
	versions     int
}

func newFetchOptimizer(db *database, c *control, t *transport, out io.Writer, module string, alloc func() uint64) *fetchOptimizer {
	return &fetchOptimizer{
		db:     db,
		c:      c,
		t:      t,
		out:    out,
		alloc:  alloc,
		module: module,
		prefix: module + "/",
	}
}

// fetch requests every Version in need that still lacks a mark, trying
// the batching strategies in order before falling back to one-at-a-time.
func (f *fetchOptimizer) fetch(need []versionIdx) error {
	pending := f.unmarked(need)
	if len(pending) == 0 {
		return nil
	}

	if len(pending) == 1 {
		return f.grabVersion(pending[0])
	}

	if rev, ok := f.identicalRevision(pending); ok {
		if err := f.grabByOption(rev, "", pending); err != nil {
			return err
		}
	} else if rArg, dArg, ok := f.narrowWindow(pending); ok {
		if err := f.grabByOption(rArg, dArg, pending); err != nil {
			return err
		}
	}

	for _, vi := range f.unmarked(pending) {
		if err := f.grabVersion(vi); err != nil {
			return err
		}
	}
	return nil
}

func (f *fetchOptimizer) unmarked(versions []versionIdx) []versionIdx {
	var out []versionIdx
	for _, vi := range versions {
		if !f.db.version(vi).mark.isSet() {
			out = append(out, vi)
		}
	}
	return out
}

func (f *fetchOptimizer) identicalRevision(versions []versionIdx) (string, bool) {
	rev := f.db.version(versions[0]).revision
	for _, vi := range versions[1:] {
		if f.db.version(vi).revision != rev {
			return "", false
		}
	}
	return rev, true
}

func (f *fetchOptimizer) narrowWindow(versions []versionIdx) (rArg, dArg string, ok bool) {
	dmin := f.db.version(versions[0]).timestamp
	dmax := dmin
	branch := f.db.version(versions[0]).branch
	sameBranch := true
	for _, vi := range versions[1:] {
		v := f.db.version(vi)
		if v.timestamp < dmin {
			dmin = v.timestamp
		}
		if v.timestamp > dmax {
			dmax = v.timestamp
		}
		if v.branch != branch {
			sameBranch = false
		}
	}
	if !sameBranch || dmax-dmin >= defaultCoalesceWindow {
		return "", "", false
	}
	if branch != noTag && f.db.tag(branch).name != "" {
		rArg = f.db.tag(branch).name
	}
	return rArg, formatCVSDate(dmax), true
}

func formatCVSDate(t int64) string {
	return time.Unix(t, 0).UTC().Format("02 Jan 2006 15:04:05 -0000")
}

// grabVersion is the single-version fetch path (grab_version).
func (f *fetchOptimizer) grabVersion(vi versionIdx) error {
	v := f.db.version(vi)
	if v.mark.isSet() {
		return nil
	}
	path := f.db.file(v.file).path

	if err := f.sendDirectoryFor(path); err != nil {
		return err
	}
	if err := f.t.send("Argument -kk\nArgument -r%s\nArgument --\nArgument %s\nupdate", v.revision, path); err != nil {
		return err
	}
	if err := f.t.flush(); err != nil {
		return err
	}
	if err := f.readVersions(); err != nil {
		return err
	}
	if !v.mark.isSet() {
		return throw(classUnknown, "cvs checkout: failed to get %s %s", path, v.revision)
	}
	return nil
}

// grabByOption is the shared body of the identical-revision and
// narrow-window batch strategies (grab_by_option).
func (f *fetchOptimizer) grabByOption(rArg, dArg string, versions []versionIdx) error {
	paths := make([]string, 0, len(versions))
	for _, vi := range versions {
		paths = append(paths, f.db.file(f.db.version(vi).file).path)
	}
	sort.Strings(paths)

	var lastDir string
	first := true
	for _, p := range paths {
		dir := dirOf(p)
		if dir == "" {
			continue
		}
		if !first && dir == lastDir {
			continue
		}
		first = false
		lastDir = dir
		if err := f.t.send("Directory %s/%s\n%s%s", f.module, dir, f.prefix, dir); err != nil {
			return err
		}
	}
	if err := f.t.send("Directory %s\n%s", f.module, strings.TrimSuffix(f.prefix, "/")); err != nil {
		return err
	}

	var b strings.Builder
	if rArg != "" {
		fmt.Fprintf(&b, "Argument -r%s\n", rArg)
	}
	if dArg != "" {
		fmt.Fprintf(&b, "Argument -D%s\n", dArg)
	}
	b.WriteString("Argument -kk\nArgument --\n")
	for _, p := range paths {
		fmt.Fprintf(&b, "Argument %s\n", p)
	}
	b.WriteString("update")
	if err := f.t.send(b.String()); err != nil {
		return err
	}
	if err := f.t.flush(); err != nil {
		return err
	}
	return f.readVersions()
}

func (f *fetchOptimizer) sendDirectoryFor(path string) error {
	dir := dirOf(path)
	if dir != "" {
		if err := f.t.send("Directory %s/%s\n%s%s", f.module, dir, f.prefix, dir); err != nil {
			return err
		}
	}
	return f.t.send("Directory %s\n%s", f.module, strings.TrimSuffix(f.prefix, "/"))
}

func dirOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return ""
	}
	return path[:i]
}

// readVersions drains one transaction's worth of server responses
// (read_versions): M/MT lines are progress chatter and are skipped; "ok"
// ends the transaction.
func (f *fetchOptimizer) readVersions() error {
	f.transactions++
	for {
		line, err := f.t.readLine()
		if err != nil {
			return err
		}
		if strings.HasPrefix(line, "M ") || strings.HasPrefix(line, "MT ") {
			continue
		}
		if line == "ok" {
			return nil
		}
		if err := f.readVersion(line); err != nil {
			return err
		}
	}
}

// readVersion is read_version: it consumes the fixed sequence of lines
// CVS sends per retrieved file and writes a fast-import blob record for
// whatever content it announces.
func (f *fetchOptimizer) readVersion(line string) error {
	switch {
	case strings.HasPrefix(line, "Removed "):
		_, err := f.t.readLine()
		return err
	case strings.HasPrefix(line, "Checked-in "):
		if _, err := f.t.readLine(); err != nil {
			return err
		}
		_, err := f.t.readLine()
		return err
	case strings.HasPrefix(line, "Created ") || strings.HasPrefix(line, "Update-existing ") || strings.HasPrefix(line, "Updated "):
		// fall through below
	default:
		return throw(classProtocol, "did not get update line: %q", line)
	}

	space := strings.IndexByte(line, ' ')
	d := line[space+1:]
	if d == "." || d == "./" {
		d = ""
	} else if !strings.HasSuffix(d, "/") {
		d += "/"
	}

	if _, err := f.t.readLine(); err != nil { // repo directory, discarded
		return err
	}

	entry, err := f.t.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(entry, "/") {
		return throw(classProtocol, "cvs checkout: malformed entry line %q", entry)
	}
	fields := strings.SplitN(entry[1:], "/", 3)
	if len(fields) < 2 {
		return throw(classProtocol, "cvs checkout: malformed entry line %q", entry)
	}
	name, revision := fields[0], fields[1]
	path := d + name

	file, ok := f.db.findFile(path)
	if !ok {
		return throw(classUnknown, "cvs checkout: got unknown file %s", path)
	}
	version, ok := f.db.findVersion(file, revision)
	if !ok {
		return throw(classUnknown, "cvs checkout: got unknown file version %s %s", path, revision)
	}

	modeLine, err := f.t.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(modeLine, "u=") {
		return throw(classProtocol, "cvs checkout %s %s: unexpected file mode %q", path, revision, modeLine)
	}
	version.exec = strings.ContainsRune(modeLine, 'x')

	lengthLine, err := f.t.readLine()
	if err != nil {
		return err
	}
	length, err := parseLength(lengthLine)
	if err != nil {
		return err
	}

	content, err := f.t.readBytes(length)
	if err != nil {
		return err
	}

	f.versions++
	if version.mark.isSet() {
		f.c.logger.Warnf("cvs checkout %s %s: version is duplicate", path, revision)
		return nil
	}

	m := setMark(f.alloc())
	version.mark = m
	fmt.Fprintf(f.out, "blob\nmark %s\ndata %d\n", m, length)
	f.out.Write(content)
	fmt.Fprintln(f.out)
	return nil
}
