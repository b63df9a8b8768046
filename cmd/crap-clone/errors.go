// SPDX-License-Identifier: BSD-2-Clause

package main

import "fmt"

// errClass names the fatal-error taxonomy from the error handling design:
// protocol mismatches, unknown files/revisions, malformed input and I/O
// failure are all fatal; duplicate blobs are handled separately as a
// logged warning and never become a crapError.
type errClass string

const (
	classProtocol  errClass = "protocol"  // server said something the grammar doesn't allow
	classUnknown   errClass = "unknown"   // server delivered content for an unparsed file/revision
	classMalformed errClass = "malformed" // timestamp out of range, unparseable revision string, etc.
	classIO        errClass = "io"        // transport or output failure
)

// crapError is the single structured error kind threaded out of the core.
// Tests assert on Class rather than matching diagnostic text.
type crapError struct {
	Class   errClass
	Message string
}

func (e *crapError) Error() string {
	return e.Message
}

func throw(class errClass, format string, args ...interface{}) *crapError {
	return &crapError{Class: class, Message: fmt.Sprintf(format, args...)}
}

// isClass reports whether err is a crapError of the given class.
func isClass(err error, class errClass) bool {
	ce, ok := err.(*crapError)
	return ok && ce.Class == class
}
