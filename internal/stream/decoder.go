// Package stream turns the provider's raw response byte stream into
// interpreted events. Decoding is two-stage: LineDecoder reassembles
// complete lines from arbitrarily chunked reads, and Interpret classifies
// each framed payload into a relay event.
package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// dataPrefix frames event payload lines. Anything else on the wire
// (comments, blank separators) is protocol chrome and is discarded.
const dataPrefix = "data:"

// readChunk is the per-read buffer size. Event lines are typically far
// smaller; the decoder buffer grows as needed for oversized lines.
const readChunk = 4096

// LineDecoder reassembles complete text lines from a chunked byte stream.
// Chunk boundaries carry no meaning: a line may span many reads and one
// read may carry many lines. The decoder scans for byte '\n', so splits
// inside multi-byte UTF-8 sequences are handled by construction — partial
// bytes simply wait in the buffer for the rest of their line.
//
// A decoder is single-use: it is bound to one response stream and is not
// restartable.
type LineDecoder struct {
	r   io.Reader
	buf bytes.Buffer
	eof bool
	err error
}

// NewLineDecoder wraps r in a fresh decoder.
func NewLineDecoder(r io.Reader) *LineDecoder {
	return &LineDecoder{r: r}
}

// Next returns the next complete line, without its terminator. When the
// source is exhausted it returns io.EOF; a non-empty trailing fragment
// with no final newline is returned as the last line before EOF.
func (d *LineDecoder) Next() (string, error) {
	for {
		if line, ok := d.takeLine(); ok {
			return line, nil
		}
		if d.eof {
			if d.buf.Len() > 0 {
				rest := d.buf.String()
				d.buf.Reset()
				return strings.TrimSuffix(rest, "\r"), nil
			}
			return "", io.EOF
		}
		// A read error is held back until every complete line received
		// alongside it has been handed out.
		if d.err != nil {
			return "", d.err
		}

		chunk := make([]byte, readChunk)
		n, err := d.r.Read(chunk)
		if n > 0 {
			d.buf.Write(chunk[:n])
		}
		if err == io.EOF {
			d.eof = true
		} else if err != nil {
			d.err = err
		}
	}
}

// takeLine pops one complete line off the buffer if it holds one.
func (d *LineDecoder) takeLine() (string, bool) {
	raw := d.buf.Bytes()
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return "", false
	}
	line := string(raw[:i])
	d.buf.Next(i + 1)
	return strings.TrimSuffix(line, "\r"), true
}

// DataPayload extracts the framed payload from a decoded line. The second
// return is false for framing lines (blank separators, comments, anything
// without the data prefix), which callers drop without logging.
func DataPayload(line string) (json.RawMessage, bool) {
	if !strings.HasPrefix(line, dataPrefix) {
		return nil, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return nil, false
	}
	return json.RawMessage(payload), true
}
