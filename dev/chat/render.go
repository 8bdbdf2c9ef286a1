package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/mqy/minichat/chat"
	"github.com/mqy/minichat/present"
)

const pendingLabel = "sending..."

var (
	stampStyle  = lipgloss.NewStyle().Faint(true)
	bubbleStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle = lipgloss.NewStyle().Reverse(true).Padding(0, 1)
)

// renderLine draws one message bubble, the local user's on the right.
func renderLine(l *chat.Line, width int) string {
	d := l.Display
	color := lipgloss.Color(d.Color)

	name := lipgloss.NewStyle().Bold(true).Foreground(color).
		Render(fmt.Sprintf("(%s) %s", present.Initial(d.Name), d.Name))

	stamp := pendingLabel
	if !l.Pending() {
		stamp = l.CreatedAt.Local().Format("15:04")
	}

	var body []string
	if l.Text != "" {
		body = append(body, l.Text)
	}
	if l.ImageData != "" {
		body = append(body, fmt.Sprintf("[photo %d KB]", len(l.ImageData)*3/4/1024))
	}

	block := lipgloss.JoinVertical(lipgloss.Left,
		name+" "+stampStyle.Render(stamp),
		strings.Join(body, "\n"))
	box := bubbleStyle.BorderForeground(color).Render(block)
	if d.Mine {
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, box)
	}
	return box
}

// screen redraws the tail of the conversation on every change.
type screen struct {
	sync.Mutex
	out    io.Writer
	width  int
	rows   int // messages shown
	status func() string
	lines  func() []chat.Line
}

func (s *screen) redraw() {
	lines := s.lines()
	if len(lines) > s.rows {
		lines = lines[len(lines)-s.rows:]
	}

	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	for i := range lines {
		b.WriteString(renderLine(&lines[i], s.width))
		b.WriteByte('\n')
	}
	b.WriteString(statusStyle.Render(s.status()))
	b.WriteString("\n> ")

	s.Lock()
	io.WriteString(s.out, b.String())
	s.Unlock()
}

// parseCommand splits `/cmd arg`, plain text has an empty cmd.
func parseCommand(line string) (cmd, arg string) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", line
	}
	cmd, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}
