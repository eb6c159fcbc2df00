// Package linecount maps byte offsets to 1-based line/column positions
// and back, using a binary search over precomputed line-start offsets.
package linecount

import "sort"

// Counter answers line/byte mapping queries for one file's content. It is
// built once per content version and is immutable afterward.
type Counter struct {
	content     string
	lineStarts  []int // byte offset of the first byte of each line, 0-indexed slice, 1-based line numbers
}

// New builds a Counter over content, scanning once for newline offsets.
func New(content string) *Counter {
	starts := make([]int, 1, 64)
	starts[0] = 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Counter{content: content, lineStarts: starts}
}

// LineCount returns the number of lines in the content. Every newline
// starts a new line, so content ending in a newline counts a final empty
// line ("abc\n" has 2 lines).
func (c *Counter) LineCount() int {
	return len(c.lineStarts)
}

// LineColumn converts a byte offset into a 1-based (line, column) pair.
// Offsets past the end of content clamp to the last position.
func (c *Counter) LineColumn(offset int) (line, column int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(c.content) {
		offset = len(c.content)
	}

	// Find the last line start <= offset.
	idx := sort.Search(len(c.lineStarts), func(i int) bool {
		return c.lineStarts[i] > offset
	})
	lineIdx := idx - 1
	if lineIdx < 0 {
		lineIdx = 0
	}
	return lineIdx + 1, offset - c.lineStarts[lineIdx] + 1
}

// LineStart returns the byte offset of the first byte of the given
// 1-based line number, or -1 if out of range.
func (c *Counter) LineStart(line int) int {
	if line < 1 || line > len(c.lineStarts) {
		return -1
	}
	return c.lineStarts[line-1]
}

// LineEnd returns the byte offset one past the last byte of the given
// 1-based line (exclusive of the trailing newline), or -1 if out of
// range.
func (c *Counter) LineEnd(line int) int {
	start := c.LineStart(line)
	if start < 0 {
		return -1
	}
	if line == len(c.lineStarts) {
		return len(c.content)
	}
	next := c.lineStarts[line]
	if next > 0 && c.content[next-1] == '\n' {
		return next - 1
	}
	return next
}

// LineText returns the text of the given 1-based line, excluding its
// trailing newline.
func (c *Counter) LineText(line int) string {
	start := c.LineStart(line)
	end := c.LineEnd(line)
	if start < 0 || end < 0 {
		return ""
	}
	return c.content[start:end]
}

// OffsetForLine converts a 1-based line number to the byte offset of its
// first byte — an alias over LineStart kept for call-site readability at
// resolver/editor boundaries that think in "offset for line N".
func (c *Counter) OffsetForLine(line int) int {
	return c.LineStart(line)
}
