package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status(">", "opening index")

	output := buf.String()
	assert.Contains(t, output, "> opening index")
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("", "detail line")

	assert.Equal(t, "  detail line\n", buf.String())
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("ingested %d documents", 42)

	output := buf.String()
	assert.Contains(t, output, "✓")
	assert.Contains(t, output, "ingested 42 documents")
}

func TestWriter_Warning_PrintsBang(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("3 lines skipped")

	output := buf.String()
	assert.Contains(t, output, "!")
	assert.Contains(t, output, "3 lines skipped")
}

func TestWriter_Error_PrintsCross(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Errorf("open %s: locked", ".chunkdex")

	output := buf.String()
	assert.Contains(t, output, "✗")
	assert.Contains(t, output, "open .chunkdex: locked")
}

func TestWriter_BufferOutputIsUncolored(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("plain")
	w.Header("section")

	// A non-TTY destination must never receive ANSI escapes.
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestWriter_Code_IndentsEveryLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Code("line one\nline two")

	lines := strings.Split(strings.Trim(buf.String(), "\n"), "\n")
	assert.Equal(t, []string{"  line one", "  line two"}, lines)
}

func TestWriter_Newline(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
