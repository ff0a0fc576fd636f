// Package terminal drives the pledge interest workflow from a text console.
// It supplies the workflow's presenter and confirmation gate and a small
// command shell on top of them.
package terminal

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console is the line-oriented terminal shared by the presenter, the gate
// and the shell
type Console struct {
	mu  sync.Mutex
	in  *bufio.Scanner
	out io.Writer
}

// NewConsole reads commands from in and writes everything to out
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewScanner(in), out: out}
}

// Printf writes formatted text
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

// Prompt prints prompt and reads one trimmed line. ok is false at end of
// input.
func (c *Console) Prompt(prompt string) (line string, ok bool) {
	c.Printf("%s", prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

// write hands fn the raw writer under the console lock
func (c *Console) write(fn func(w io.Writer)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.out)
}
