package editor

import (
	"bytes"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// DiffMode selects the line-diff algorithm for dry runs.
type DiffMode string

const (
	DiffMyers    DiffMode = "myers"
	DiffSemantic DiffMode = "semantic" // Patience
)

type diffOpKind int

const (
	opEqual diffOpKind = iota
	opDelete
	opInsert
)

type diffOp struct {
	kind diffOpKind
	text string
}

// computeDiff produces the line ops for original→updated under mode.
func computeDiff(original, updated string, mode DiffMode) []diffOp {
	a := splitLines(original)
	b := splitLines(updated)
	if mode == DiffSemantic {
		return patienceDiff(a, b)
	}
	return myersDiff(a, b)
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	// A trailing newline yields a final empty element that isn't a line.
	if len(lines) > 0 && lines[len(lines)-1] == "" && strings.HasSuffix(s, "\n") {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// myersDiff is the classic O((N+M)D) greedy forward algorithm over lines.
func myersDiff(a, b []string) []diffOp {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return nil
	}
	max := n + m
	// v[k] = furthest x on diagonal k; offset by max for negative ks.
	v := make([]int, 2*max+2)
	var trace [][]int

outer:
	for d := 0; d <= max; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[max+k-1] < v[max+k+1]) {
				x = v[max+k+1]
			} else {
				x = v[max+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[max+k] = x
			if x >= n && y >= m {
				break outer
			}
		}
	}

	// Backtrack.
	var ops []diffOp
	x, y := n, m
	for d := len(trace) - 1; d > 0; d-- {
		vPrev := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && vPrev[max+k-1] < vPrev[max+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := vPrev[max+prevK]
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, diffOp{kind: opEqual, text: a[x]})
		}
		if d > 0 {
			if x == prevX {
				y--
				ops = append(ops, diffOp{kind: opInsert, text: b[y]})
			} else {
				x--
				ops = append(ops, diffOp{kind: opDelete, text: a[x]})
			}
		}
	}
	for x > 0 && y > 0 {
		x--
		y--
		ops = append(ops, diffOp{kind: opEqual, text: a[x]})
	}
	for y > 0 {
		y--
		ops = append(ops, diffOp{kind: opInsert, text: b[y]})
	}
	for x > 0 {
		x--
		ops = append(ops, diffOp{kind: opDelete, text: a[x]})
	}

	// ops were collected back-to-front.
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}

// patienceDiff anchors on lines unique to both sides, recursing between
// anchors and falling back to Myers where no anchor exists.
func patienceDiff(a, b []string) []diffOp {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	anchors := patienceAnchors(a, b)
	if len(anchors) == 0 {
		return myersDiff(a, b)
	}

	var ops []diffOp
	ai, bi := 0, 0
	for _, anchor := range anchors {
		ops = append(ops, patienceDiff(a[ai:anchor.a], b[bi:anchor.b])...)
		ops = append(ops, diffOp{kind: opEqual, text: a[anchor.a]})
		ai, bi = anchor.a+1, anchor.b+1
	}
	ops = append(ops, patienceDiff(a[ai:], b[bi:])...)
	return ops
}

type anchorPair struct{ a, b int }

// patienceAnchors finds the longest increasing run of lines that appear
// exactly once in each side.
func patienceAnchors(a, b []string) []anchorPair {
	countA := make(map[string]int, len(a))
	posA := make(map[string]int, len(a))
	for i, line := range a {
		countA[line]++
		posA[line] = i
	}
	countB := make(map[string]int, len(b))
	posB := make(map[string]int, len(b))
	for i, line := range b {
		countB[line]++
		posB[line] = i
	}

	var pairs []anchorPair
	for line, ca := range countA {
		if ca == 1 && countB[line] == 1 {
			pairs = append(pairs, anchorPair{a: posA[line], b: posB[line]})
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	// Longest increasing subsequence on b positions of pairs sorted by a.
	sortAnchors(pairs)
	tails := make([]int, 0, len(pairs))      // indices into pairs
	prev := make([]int, len(pairs))
	for i := range prev {
		prev[i] = -1
	}
	for i, p := range pairs {
		lo, hi := 0, len(tails)
		for lo < hi {
			mid := (lo + hi) / 2
			if pairs[tails[mid]].b < p.b {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo > 0 {
			prev[i] = tails[lo-1]
		}
		if lo == len(tails) {
			tails = append(tails, i)
		} else {
			tails[lo] = i
		}
	}

	var lis []anchorPair
	for i := tails[len(tails)-1]; i >= 0; i = prev[i] {
		lis = append(lis, pairs[i])
	}
	for i, j := 0, len(lis)-1; i < j; i, j = i+1, j-1 {
		lis[i], lis[j] = lis[j], lis[i]
	}
	return lis
}

func sortAnchors(pairs []anchorPair) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].a < pairs[j-1].a; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
}

// renderUnified folds the ops into context hunks and prints them in
// unified format through go-diff's printer.
func renderUnified(relPath string, ops []diffOp) (diffText string, added, removed int) {
	const context = 3

	// Annotate each op with its 1-based original/new line numbers.
	origAt := make([]int32, len(ops))
	newAt := make([]int32, len(ops))
	origLine, newLine := int32(1), int32(1)
	for i, op := range ops {
		origAt[i] = origLine
		newAt[i] = newLine
		switch op.kind {
		case opEqual:
			origLine++
			newLine++
		case opDelete:
			removed++
			origLine++
		case opInsert:
			added++
			newLine++
		}
	}

	// Find change runs and merge runs separated by at most 2*context
	// equal lines into one hunk.
	type span struct{ from, to int } // op index range, inclusive
	var spans []span
	for i := 0; i < len(ops); i++ {
		if ops[i].kind == opEqual {
			continue
		}
		j := i
		for j+1 < len(ops) {
			k := j + 1
			gap := 0
			for k < len(ops) && ops[k].kind == opEqual {
				k++
				gap++
			}
			if k < len(ops) && gap <= 2*context {
				j = k
			} else {
				break
			}
		}
		spans = append(spans, span{from: i, to: j})
		i = j
	}
	if len(spans) == 0 {
		return "", added, removed
	}

	var hunks []*godiff.Hunk
	for _, sp := range spans {
		from := sp.from
		for lead := 0; lead < context && from > 0 && ops[from-1].kind == opEqual; lead++ {
			from--
		}
		to := sp.to
		for trail := 0; trail < context && to+1 < len(ops) && ops[to+1].kind == opEqual; trail++ {
			to++
		}

		h := &godiff.Hunk{OrigStartLine: origAt[from], NewStartLine: newAt[from]}
		var body bytes.Buffer
		for i := from; i <= to; i++ {
			switch ops[i].kind {
			case opEqual:
				body.WriteString(" " + ops[i].text + "\n")
				h.OrigLines++
				h.NewLines++
			case opDelete:
				body.WriteString("-" + ops[i].text + "\n")
				h.OrigLines++
			case opInsert:
				body.WriteString("+" + ops[i].text + "\n")
				h.NewLines++
			}
		}
		h.Body = body.Bytes()
		hunks = append(hunks, h)
	}

	fd := &godiff.FileDiff{
		OrigName: "a/" + relPath,
		NewName:  "b/" + relPath,
		Hunks:    hunks,
	}
	out, err := godiff.PrintFileDiff(fd)
	if err != nil {
		return "", added, removed
	}
	return string(out), added, removed
}
