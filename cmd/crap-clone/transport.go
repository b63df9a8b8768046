// SPDX-License-Identifier: BSD-2-Clause

package main

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/crypto/ssh/terminal"
)

// transport is the line-oriented connection to a CVS server. Every send
// is followed by a complete response read; there is no pipelining.
type transport struct {
	remoteRoot string
	rw         *bufio.ReadWriter
	closer     func() error
}

// dial parses a CVS root string in any of its recognized forms and
// connects, performing the protocol handshake (Root / Valid-requests /
// ok) that server.c's connect_to_server runs before any real request.
func dial(c *control, root string, compressionLevel int, cvsRsh string) (*transport, error) {
	var t *transport
	var err error

	switch {
	case strings.HasPrefix(root, ":pserver:"):
		t, err = dialPserver(c, root)
	case strings.HasPrefix(root, ":fake:"):
		t, err = dialFake(c, root)
	case strings.HasPrefix(root, ":ext:"):
		t, err = dialExt(c, root[len(":ext:"):], root, cvsRsh)
	case len(root) > 0 && root[0] != '/' && strings.Contains(root, ":"):
		t, err = dialExt(c, root, root, cvsRsh)
	default:
		t, err = dialFork(c, root)
	}
	if err != nil {
		return nil, err
	}

	if err := t.handshake(compressionLevel); err != nil {
		return nil, err
	}
	return t, nil
}

func dialPserver(c *control, root string) (*transport, error) {
	host := root[len(":pserver:"):]
	slash := strings.IndexByte(host, '/')
	if slash < 0 {
		return nil, throw(classProtocol, "no path in CVS root %q", root)
	}
	remoteRoot := host[slash:]
	host = host[:slash]

	port := "2401"
	if colon := strings.IndexByte(host, ':'); colon >= 0 {
		port = host[colon+1:]
		host = host[:colon]
	}

	user := os.Getenv("USER")
	if at := strings.IndexByte(host, '@'); at >= 0 {
		user = host[:at]
		host = host[at+1:]
	}
	if user == "" {
		return nil, throw(classProtocol, "cannot determine user-name for %q", root)
	}

	c.logit("transport", "pserver '%s'@'%s':'%s' '%s'", user, host, port, remoteRoot)

	conn, err := net.Dial("tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, throw(classIO, "connect to %s:%s: %v", host, port, err)
	}

	password := pserverPassword(remoteRoot)
	fmt.Fprintf(conn, "BEGIN AUTH REQUEST\n%s\n%s\n%s\nEND AUTH REQUEST\n", remoteRoot, user, password)

	t := &transport{
		remoteRoot: remoteRoot,
		rw:         bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		closer:     conn.Close,
	}
	line, err := t.readLine()
	if err != nil {
		return nil, err
	}
	if line != "I LOVE YOU" {
		return nil, throw(classProtocol, "failed to log in: %q", line)
	}
	c.logit("transport", "logged in successfully")
	return t, nil
}

// pserverPassword looks the scrambled password up in ~/.cvspass,
// falling back to the anonymous "A" crap-clone.c uses when there's no
// entry (the scrambling cipher itself is a display-layer concern of the
// real cvs client, not reimplemented here).
func pserverPassword(root string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "A"
	}
	f, err := os.Open(filepath.Join(home, ".cvspass"))
	if err != nil {
		return "A"
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		line = strings.TrimPrefix(line, "/1 ")
		if strings.HasPrefix(line, root+" ") {
			return line[len(root)+1:]
		}
	}
	return "A"
}

func dialFork(c *control, path string) (*transport, error) {
	return dialProgram(c, path, "cvs", []string{"cvs", "server"})
}

func dialExt(c *control, path, root, cvsRsh string) (*transport, error) {
	program := cvsRsh
	if program == "" {
		program = "ssh"
	}
	slash := strings.IndexByte(path, '/')
	if slash < 0 {
		return nil, throw(classProtocol, "root %q has no remote root", root)
	}
	host := path[:slash]
	remoteRoot := path[slash+1:]
	t, err := dialProgram(c, remoteRoot, program, []string{program, host, "cvs", "server"})
	return t, err
}

func dialFake(c *control, root string) (*transport, error) {
	rest := root[len(":fake:"):]
	colon1 := strings.IndexByte(rest, ':')
	if colon1 < 0 {
		return nil, throw(classProtocol, "root %q has no remote root", root)
	}
	colon2 := strings.IndexByte(rest[colon1+1:], ':')
	if colon2 < 0 {
		return nil, throw(classProtocol, "root %q has no remote root", root)
	}
	colon2 += colon1 + 1
	program := rest[:colon1]
	argument := rest[colon1+1 : colon2]
	remoteRoot := rest[colon2+1:]
	return dialProgram(c, remoteRoot, program, []string{program, argument})
}

func dialProgram(c *control, remoteRoot, program string, argv []string) (*transport, error) {
	c.logit("transport", "running %s", shellquote.Join(argv...))
	cmd := exec.Command(program, argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, throw(classIO, "%v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, throw(classIO, "%v", err)
	}
	cmd.Stderr = c.baton
	if err := cmd.Start(); err != nil {
		return nil, throw(classIO, "exec %s: %v", program, err)
	}
	return &transport{
		remoteRoot: remoteRoot,
		rw:         bufio.NewReadWriter(bufio.NewReader(stdout), bufio.NewWriter(stdin)),
		closer: func() error {
			stdin.Close()
			return cmd.Wait()
		},
	}, nil
}

// handshake is the Root / Valid-responses / valid-requests / ok exchange
// server.c performs before issuing any real request. Interactive
// sessions (a TTY on stdout) get a short confirmation; batch runs don't.
func (t *transport) handshake(compressionLevel int) error {
	if err := t.send("Root %s", t.remoteRoot); err != nil {
		return err
	}
	if err := t.send("Valid-responses ok error Valid-requests Checked-in New-entry " +
		"Checksum Copy-file Updated Created Update-existing Merged " +
		"Patched Rcs-diff Mode Mod-time Removed Remove-entry " +
		"Set-static-directory Clear-static-directory Set-sticky " +
		"Clear-sticky Template Notified Module-expansion " +
		"Wrapper-rcsOption M Mbinary E F MT"); err != nil {
		return err
	}
	if err := t.send("valid-requests"); err != nil {
		return err
	}
	if err := t.send("UseUnchanged"); err != nil {
		return err
	}
	if compressionLevel > 0 {
		// Negotiating Gzip-stream without actually wrapping t.rw in a zlib
		// codec afterward would desync the wire the moment a real server
		// honored it, so a nonzero level is rejected up front instead.
		return throw(classProtocol, "compression (-z %d) is not implemented; run without -z", compressionLevel)
	}
	if err := t.flush(); err != nil {
		return err
	}

	line, err := t.readLine()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "Valid-requests ") {
		return throw(classProtocol, "did not get valid-requests (%q)", line)
	}
	if terminal.IsTerminal(1) {
		fmt.Fprintln(os.Stdout)
	}

	line, err = t.readLine()
	if err != nil {
		return err
	}
	if line != "ok" {
		return throw(classProtocol, "did not get ok (%q)", line)
	}
	return nil
}

func (t *transport) send(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(t.rw, format+"\n", args...)
	if err != nil {
		return throw(classIO, "writing to server: %v", err)
	}
	return nil
}

func (t *transport) flush() error {
	if err := t.rw.Flush(); err != nil {
		return throw(classIO, "writing to server: %v", err)
	}
	return nil
}

// readLine is server.c's next_line: read one NUL-free line, trimming
// the trailing newline.
func (t *transport) readLine() (string, error) {
	line, err := t.rw.ReadString('\n')
	if err != nil {
		return "", throw(classIO, "unexpected EOF from server: %v", err)
	}
	line = strings.TrimRight(line, "\n")
	if strings.IndexByte(line, 0) >= 0 {
		return "", throw(classProtocol, "got line containing ASCII NUL from server")
	}
	return line, nil
}

// readBytes reads exactly n bytes of announced response payload.
func (t *transport) readBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := readFull(t.rw, buf); err != nil {
		return nil, throw(classIO, "reading %d bytes from server: %v", n, err)
	}
	return buf, nil
}

func readFull(r *bufio.ReadWriter, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (t *transport) close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer()
}

func parseLength(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, throw(classProtocol, "malformed length %q", s)
	}
	return n, nil
}
