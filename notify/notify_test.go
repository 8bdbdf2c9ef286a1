package notify

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

type panicky struct{ Nop }

func (panicky) Pulse() { panic("no vibrator") }

func TestTerminal(t *testing.T) {
	var buf bytes.Buffer
	n := &Terminal{W: &buf}
	Fire(n, "A: hi")
	assert.Equal(t, "\a\r>> A: hi\n", buf.String())

	buf.Reset()
	n.Quiet = true
	Fire(n, "B: yo")
	assert.Equal(t, "\r>> B: yo\n", buf.String())
}

func TestFireRecovers(t *testing.T) {
	assert.NotPanics(t, func() { Fire(panicky{}, "x") })
	assert.NotPanics(t, func() { Fire(nil, "x") })
}

func TestToastUnsupported(t *testing.T) {
	n := &Terminal{}
	assert.False(t, n.ToastSupported())
}
