package terminal

import (
	"bufio"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Input reads user input line by line
type Input struct {
	reader *bufio.Reader
}

// NewInput creates an input reader over r
func NewInput(r io.Reader) *Input {
	return &Input{reader: bufio.NewReader(r)}
}

// ReadLine reads one line of input with surrounding whitespace removed.
// A final line without a trailing newline is returned before io.EOF.
func (in *Input) ReadLine() (string, error) {
	line, err := in.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ReadAll reads the remaining input, used for prompts piped on stdin
func (in *Input) ReadAll() (string, error) {
	data, err := io.ReadAll(in.reader)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// IsTerminal checks if f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Size returns the terminal width and height of f, or 80x24 when f is not
// a terminal.
func Size(f *os.File) (width, height int) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return 80, 24
	}
	return w, h
}
