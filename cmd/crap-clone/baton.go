/*
 * Baton machinery, adapted from reposurgeon's progress baton for a
 * batch tool that has no status line to protect, only a log and a
 * transaction counter.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package main

import (
	"fmt"
	"os"
	"sync"
)

type msgType uint8

const (
	msgLog msgType = iota
	msgSync
)

type message struct {
	ty  msgType
	str []byte
}

// baton serializes writes from goroutines (the scheduler emits while the
// fetch optimizer may still be draining a transport response) onto a
// single output stream, the way reposurgeon's does for its status line.
type baton struct {
	interactive bool
	stream      *os.File
	channel     chan message

	mu      sync.Mutex
	counter uint64
	format  string
}

func newBaton(interactive bool) *baton {
	b := &baton{
		interactive: interactive,
		stream:      os.Stderr,
		channel:     make(chan message),
	}
	go func() {
		for msg := range b.channel {
			switch msg.ty {
			case msgSync:
				b.channel <- msg
			case msgLog:
				b.stream.Write(msg.str)
			}
		}
	}()
	return b
}

func (b *baton) printLogString(s string) {
	b.channel <- message{msgLog, []byte(s)}
}

func (b *baton) printLog(s []byte) {
	b.channel <- message{msgLog, s}
}

func (b *baton) Write(p []byte) (int, error) {
	b.printLog(append([]byte(nil), p...))
	return len(p), nil
}

// sync blocks until every message queued before this call has been
// written, so a fatal croak doesn't race the goroutine on exit.
func (b *baton) sync() {
	b.channel <- message{msgSync, nil}
	<-b.channel
}

// startCounter begins a "N of M"-style counter, used for the final
// "Download %d cvs versions in %d transactions" summary.
func (b *baton) startCounter(format string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.format = format
	b.counter = 0
}

func (b *baton) bumpCounter() {
	b.mu.Lock()
	b.counter++
	b.mu.Unlock()
}

func (b *baton) counterValue() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counter
}

func (b *baton) summarize() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fmt.Sprintf(b.format, b.counter)
}
