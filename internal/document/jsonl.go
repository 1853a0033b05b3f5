package document

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// JSONL buffer sizing. Embedded documents are wide: a single line with a
// few dozen 384-dim float vectors easily clears bufio's 64KB default.
const (
	jsonlInitialBuffer = 1 << 20  // 1MB
	jsonlMaxBuffer     = 64 << 20 // 64MB
)

// Decoder reads newline-delimited JSON documents, one per line. Blank
// lines are skipped. A malformed line yields an error carrying its line
// number; the caller may keep calling Next to process the rest of the
// stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder wraps r in a JSONL document decoder.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, jsonlInitialBuffer), jsonlMaxBuffer)
	return &Decoder{scanner: scanner}
}

// Next returns the next document in the stream. It returns io.EOF when
// the input is exhausted.
func (d *Decoder) Next() (*Document, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}

		var doc Document
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("line %d: %w", d.line, err)
		}
		return &doc, nil
	}

	if err := d.scanner.Err(); err != nil {
		// A too-long line kills the scanner; nothing after it is readable.
		return nil, fmt.Errorf("line %d: %w", d.line+1, err)
	}
	return nil, io.EOF
}

// Line returns the number of lines consumed so far.
func (d *Decoder) Line() int {
	return d.line
}
