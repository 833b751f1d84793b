package mcp

import "bytes"

// lineBuffer accumulates stdout bytes and yields complete lines. A trailing
// partial line is kept until the rest of it arrives.
type lineBuffer struct {
	buf []byte
}

// Write appends p and returns every complete line now available, without
// the line terminator. Returned slices are copies and stay valid after later
// writes.
func (b *lineBuffer) Write(p []byte) [][]byte {
	b.buf = append(b.buf, p...)
	var lines [][]byte
	for {
		i := bytes.IndexByte(b.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(b.buf[:i], []byte("\r"))
		lines = append(lines, bytes.Clone(line))
		b.buf = b.buf[i+1:]
	}
	if len(b.buf) == 0 {
		b.buf = nil
	}
	return lines
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (b *lineBuffer) Pending() int {
	return len(b.buf)
}
