// keyboard.go - raw-stdin note input, adapted from the teacher's
// terminal_host.go (syscall.Read in non-blocking raw mode) but routed to
// engine control-surface calls instead of a TerminalMMIO device.

package main

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"
)

// keymap assigns one octave of a QWERTY row to semitone offsets from
// middle C, piano-style (the row below plays the white keys, shifted).
var keymap = map[byte]int{
	'a': 0, 'w': 1, 's': 2, 'e': 3, 'd': 4, 'f': 5, 't': 6,
	'g': 7, 'y': 8, 'h': 9, 'u': 10, 'j': 11, 'k': 12,
}

// keyboard reads raw stdin bytes and translates them into note events on
// events. 'q' requests shutdown by closing quit.
type keyboard struct {
	fd       int
	oldState *term.State
	events   chan<- noteEvent
	quit     chan<- struct{}
}

type noteEvent struct {
	semitone int
	on       bool
}

func newKeyboard(events chan<- noteEvent, quit chan<- struct{}) (*keyboard, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("fluxplay: raw mode: %w", err)
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		return nil, fmt.Errorf("fluxplay: nonblocking stdin: %w", err)
	}
	return &keyboard{fd: fd, oldState: oldState, events: events, quit: quit}, nil
}

// Run reads keystrokes until done is closed, emitting a note-on for each
// keydown and a matching note-off shortly after (terminals don't report
// key-up, so each press is a short gate pulse rather than held-note).
func (k *keyboard) Run(done <-chan struct{}) {
	buf := make([]byte, 1)
	for {
		select {
		case <-done:
			return
		default:
		}
		n, err := syscall.Read(k.fd, buf)
		if n > 0 {
			b := buf[0]
			if b == 'q' {
				close(k.quit)
				return
			}
			if semitone, ok := keymap[b]; ok {
				k.events <- noteEvent{semitone: semitone, on: true}
				go func() {
					time.Sleep(150 * time.Millisecond)
					k.events <- noteEvent{semitone: semitone, on: false}
				}()
			}
			continue
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK || n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// Close restores the terminal to its original mode.
func (k *keyboard) Close() {
	_ = syscall.SetNonblock(k.fd, false)
	_ = term.Restore(k.fd, k.oldState)
}
