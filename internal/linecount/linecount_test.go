package linecount

import "testing"

func TestLineColumn(t *testing.T) {
	c := New("abc\ndef\nghi")

	cases := []struct {
		offset     int
		line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{4, 2, 1},
		{7, 2, 4},
		{8, 3, 1},
		{10, 3, 3},
	}
	for _, tc := range cases {
		line, col := c.LineColumn(tc.offset)
		if line != tc.line || col != tc.col {
			t.Errorf("LineColumn(%d) = (%d,%d), want (%d,%d)", tc.offset, line, col, tc.line, tc.col)
		}
	}

	if c.LineCount() != 3 {
		t.Errorf("LineCount() = %d, want 3", c.LineCount())
	}
}

func TestLineTextAndBounds(t *testing.T) {
	c := New("first\nsecond\nthird\n")

	if got := c.LineText(2); got != "second" {
		t.Errorf("LineText(2) = %q, want %q", got, "second")
	}
	if c.LineStart(1) != 0 {
		t.Errorf("LineStart(1) = %d, want 0", c.LineStart(1))
	}
	if c.LineStart(99) != -1 {
		t.Errorf("LineStart(99) should be -1")
	}
}

func TestLineColumnClampsOutOfRange(t *testing.T) {
	c := New("abc")
	line, col := c.LineColumn(1000)
	if line != 1 || col != 4 {
		t.Errorf("expected clamp to end of content, got (%d,%d)", line, col)
	}
}
