package terminal

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadLine(t *testing.T) {
	in := NewInput(strings.NewReader("  hello \n\nlast"))

	line, err := in.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = in.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "", line)

	line, err = in.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "last", line)

	_, err = in.ReadLine()
	assert.Equal(t, io.EOF, err)
}

func TestReadAll(t *testing.T) {
	in := NewInput(strings.NewReader("what is\nthe best seafood?\n"))
	text, err := in.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "what is\nthe best seafood?", text)
}

func TestSizeFallsBackOffTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	w, h := Size(f)
	assert.Equal(t, 80, w)
	assert.Equal(t, 24, h)
}
