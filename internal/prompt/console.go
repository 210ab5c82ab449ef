package prompt

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

const clearSequence = "\033[H\033[2J"

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Heading renders a section title such as "===[ Setup 1/2 ]==="
func Heading(s string) string {
	return headingStyle.Render(s)
}

// Notice renders a non-fatal warning line
func Notice(s string) string {
	return noticeStyle.Render(s)
}

// Success renders a completion line
func Success(s string) string {
	return successStyle.Render(s)
}

// Console is a line prompt over a reader and a writer, usually stdin and
// stdout. Writes are serialized so status lines from the note loop do not
// interleave with prompts.
type Console struct {
	mu    sync.Mutex
	in    *bufio.Reader
	out   io.Writer
	clear bool
}

// NewConsole creates a console. Screen clearing is only enabled when out is
// a terminal.
func NewConsole(in io.Reader, out io.Writer) *Console {
	clear := false
	if f, ok := out.(*os.File); ok {
		clear = term.IsTerminal(int(f.Fd()))
	}
	return &Console{in: bufio.NewReader(in), out: out, clear: clear}
}

// Write prints text as-is
func (c *Console) Write(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, text)
}

// ReadLine blocks until a full line is read and returns it without the line
// ending. io.EOF is returned once input is exhausted.
func (c *Console) ReadLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// ClearScreen wipes the terminal. It is a no-op when output is not a
// terminal.
func (c *Console) ClearScreen() {
	if !c.clear {
		return
	}
	c.Write(clearSequence)
}
