// Package notify provides the new message notification primitives:
// a short haptic pulse and a transient toast.
package notify

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/golang/glog"
)

type Notifier interface {
	// Pulse triggers a short haptic pulse.
	Pulse()
	// Toast shows a transient message.
	Toast(text string)
	// ToastSupported reports whether Toast is available on this platform.
	ToastSupported() bool
}

// Fire pulses and, where supported, toasts. Panics of the notifier are recovered and logged.
func Fire(n Notifier, text string) {
	if n == nil {
		return
	}
	defer func() {
		if err := recover(); err != nil {
			glog.Errorf("notify: recovered: %v", err)
		}
	}()
	n.Pulse()
	if n.ToastSupported() {
		n.Toast(text)
	}
}

// Terminal rings the bell and prints toasts on a line of their own.
type Terminal struct {
	sync.Mutex
	W     io.Writer
	Quiet bool // no bell
}

func NewTerminal() *Terminal {
	return &Terminal{W: os.Stderr}
}

func (t *Terminal) Pulse() {
	if t.Quiet {
		return
	}
	t.Lock()
	fmt.Fprint(t.W, "\a")
	t.Unlock()
}

func (t *Terminal) Toast(text string) {
	t.Lock()
	fmt.Fprintf(t.W, "\r>> %s\n", text)
	t.Unlock()
}

func (t *Terminal) ToastSupported() bool {
	return t.W != nil
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Pulse()               {}
func (Nop) Toast(string)         {}
func (Nop) ToastSupported() bool { return false }
