package editor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/types"
)

func newTestEditor(t *testing.T) (*Engine, *fsx.FS) {
	t.Helper()
	fs := fsx.NewMem("/repo")
	return New("/repo", fs, nil, nil), fs
}

func writeFile(t *testing.T, fs *fsx.FS, path, content string) {
	t.Helper()
	require.NoError(t, fs.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, fs *fsx.FS, path string) string {
	t.Helper()
	data, err := fs.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSimpleReplace(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "const x = 1\nconst y = 2\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "const x = 1", ReplacementString: "const x = 42"},
	}, ApplyOptions{})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "const x = 42\nconst y = 2\n", readFile(t, fs, "/repo/a.ts"))
	assert.Equal(t, 1, result.AddedLines)
	assert.Equal(t, 1, result.RemovedLines)
	require.NotNil(t, result.Operation)
	assert.NotEmpty(t, result.Operation.ID)
	assert.Len(t, result.Operation.InverseEdits, 1)
}

func TestAmbiguousMatchReportsConflictingLines(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "x=1;\nx=1;\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "x=1;", ReplacementString: "x=2;"},
	}, ApplyOptions{})

	require.False(t, result.Success)
	assert.Equal(t, types.ErrAmbiguousMatch, result.ErrorCode)
	assert.Equal(t, []int{1, 2}, result.ConflictingLines)
	require.NotNil(t, result.Suggestion)
	require.NotNil(t, result.Suggestion.LineRange)
	assert.Equal(t, types.LineRange{Start: 1, End: 1}, *result.Suggestion.LineRange)

	// The file is untouched.
	assert.Equal(t, "x=1;\nx=1;\n", readFile(t, fs, "/repo/a.ts"))
}

func TestLineRangeDisambiguates(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "x=1;\nx=1;\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "x=1;",
			ReplacementString: "x=2;",
			LineRange:         &types.LineRange{Start: 2, End: 2},
		},
	}, ApplyOptions{})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "x=1;\nx=2;\n", readFile(t, fs, "/repo/a.ts"))
}

func TestNormalizationLadder(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "function  f( x , y )\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "function f(x, y)",
			ReplacementString: "function f(a, b)",
			Normalization:     types.NormWhitespace,
		},
	}, ApplyOptions{DryRun: true})

	require.True(t, result.Success, result.Message)
	assert.Equal(t, "function f(a, b)\n", result.NewContent)
	assert.Equal(t, 1, result.AddedLines)
	assert.Equal(t, 1, result.RemovedLines)
	assert.Contains(t, result.Diff, "-function  f( x , y )")
	assert.Contains(t, result.Diff, "+function f(a, b)")
}

func TestNormalizationCeilingIsRespected(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "function  f( x , y )\n")

	// Exact-only must not match whitespace drift.
	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "function f(x, y)",
			ReplacementString: "function f(a, b)",
			Normalization:     types.NormExact,
		},
	}, ApplyOptions{})

	require.False(t, result.Success)
	assert.Equal(t, types.ErrNoMatch, result.ErrorCode)
	require.NotNil(t, result.Suggestion)
}

func TestInverseEditsRestoreOriginal(t *testing.T) {
	e, fs := newTestEditor(t)
	original := "alpha\nbeta\ngamma\ndelta\n"
	writeFile(t, fs, "/repo/a.ts", original)

	result := e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "alpha", ReplacementString: "ALPHA-REPLACED"},
		{TargetString: "gamma", ReplacementString: "g"},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)

	undo := e.Undo(result.Operation.ID)
	require.True(t, undo.Success, undo.Message)
	assert.Equal(t, original, readFile(t, fs, "/repo/a.ts"))
}

func TestDryRunMatchesApply(t *testing.T) {
	e, fs := newTestEditor(t)
	content := "one\ntwo\nthree\n"
	writeFile(t, fs, "/repo/a.ts", content)

	edits := []types.Edit{{TargetString: "two", ReplacementString: "TWO"}}

	dry := e.ApplyEdits("a.ts", edits, ApplyOptions{DryRun: true})
	require.True(t, dry.Success)
	assert.Equal(t, content, readFile(t, fs, "/repo/a.ts"), "dry run must not write")

	applied := e.ApplyEdits("a.ts", edits, ApplyOptions{})
	require.True(t, applied.Success)
	assert.Equal(t, dry.NewContent, applied.NewContent)
	assert.Equal(t, applied.NewContent, readFile(t, fs, "/repo/a.ts"))
}

func TestIndexRangePath(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "hello world\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "world",
			ReplacementString: "editor",
			IndexRange:        &types.IndexRange{Start: 6, End: 11},
		},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "hello editor\n", readFile(t, fs, "/repo/a.ts"))
}

func TestIndexRangeMismatchFails(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "hello world\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "globe",
			ReplacementString: "editor",
			IndexRange:        &types.IndexRange{Start: 6, End: 11},
		},
	}, ApplyOptions{})
	require.False(t, result.Success)
	assert.Equal(t, types.ErrNoMatch, result.ErrorCode)

	result = e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "world",
			ReplacementString: "editor",
			IndexRange:        &types.IndexRange{Start: 6, End: 99},
		},
	}, ApplyOptions{})
	require.False(t, result.Success)
}

func TestHashGuard(t *testing.T) {
	e, fs := newTestEditor(t)
	content := "guarded content\n"
	writeFile(t, fs, "/repo/a.ts", content)

	good := hashContent([]byte(content), types.HashSHA256)
	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "guarded",
			ReplacementString: "verified",
			ExpectedHash:      &types.ExpectedHash{Algorithm: types.HashSHA256, Value: good},
		},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)

	// The file changed, so the old hash no longer agrees.
	result = e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "verified",
			ReplacementString: "again",
			ExpectedHash:      &types.ExpectedHash{Algorithm: types.HashSHA256, Value: good},
		},
	}, ApplyOptions{})
	require.False(t, result.Success)
	assert.Equal(t, types.ErrHashMismatch, result.ErrorCode)
}

func TestXXHashGuard(t *testing.T) {
	e, fs := newTestEditor(t)
	content := "fast hash\n"
	writeFile(t, fs, "/repo/a.ts", content)

	good := hashContent([]byte(content), types.HashXXHash)
	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "fast",
			ReplacementString: "quick",
			ExpectedHash:      &types.ExpectedHash{Algorithm: types.HashXXHash, Value: good},
		},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
}

func TestOverlapRejected(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "abcdef\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "abcd", ReplacementString: "x"},
		{TargetString: "cdef", ReplacementString: "y"},
	}, ApplyOptions{})
	require.False(t, result.Success)
	assert.Contains(t, result.Message, "overlap")
}

func TestWhitespaceFuzzy(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "if (a   &&    b) {\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "if (a && b) {",
			ReplacementString: "if (a || b) {",
			FuzzyMode:         types.FuzzyWhitespace,
		},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "if (a || b) {\n", readFile(t, fs, "/repo/a.ts"))
}

func TestLevenshteinFuzzyFindsTypo(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "const authentictor = makeAuth()\nconst other = 1\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "const authenticator",
			ReplacementString: "const authenticator",
			FuzzyMode:         types.FuzzyLevenshtein,
		},
	}, ApplyOptions{DryRun: true})
	require.True(t, result.Success, result.Message)
	assert.Contains(t, result.NewContent, "const authenticator")
}

func TestLevenshteinRefusesOversizeTarget(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "short\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      strings.Repeat("x", 300),
			ReplacementString: "y",
			FuzzyMode:         types.FuzzyLevenshtein,
		},
	}, ApplyOptions{})
	require.False(t, result.Success)
	assert.Contains(t, result.Message, "exceeds levenshtein budget")
}

func TestInsertModes(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "middle\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "middle", ReplacementString: "before-", InsertMode: types.InsertBefore},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "before-middle\n", readFile(t, fs, "/repo/a.ts"))

	result = e.ApplyEdits("a.ts", []types.Edit{
		{TargetString: "middle", ReplacementString: "-after", InsertMode: types.InsertAfter},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "before-middle-after\n", readFile(t, fs, "/repo/a.ts"))
}

func TestBeforeContextFilter(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "setup()\nrun()\nteardown()\nrun()\n")

	result := e.ApplyEdits("a.ts", []types.Edit{
		{
			TargetString:      "run()",
			ReplacementString: "runFast()",
			BeforeContext:     "teardown()",
		},
	}, ApplyOptions{})
	require.True(t, result.Success, result.Message)
	assert.Equal(t, "setup()\nrun()\nteardown()\nrunFast()\n", readFile(t, fs, "/repo/a.ts"))
}

func TestBackupWrittenAndPruned(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/a.ts", "v0\n")

	for i := 0; i < 13; i++ {
		result := e.ApplyEdits("a.ts", []types.Edit{
			{IndexRange: &types.IndexRange{Start: 0, End: 2}, TargetString: readFile(t, fs, "/repo/a.ts")[:2], ReplacementString: "v" + string(rune('a'+i))},
		}, ApplyOptions{})
		require.True(t, result.Success, result.Message)
	}

	entries, err := fs.ReadDir("/repo/.mcp/backups")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(entries), backupRetention)
	assert.NotEmpty(t, entries)
}

func TestDestructiveDeleteNeedsHash(t *testing.T) {
	e, fs := newTestEditor(t)
	big := strings.Repeat("padding line\n", 1000) // > 10 KB
	writeFile(t, fs, "/repo/big.ts", big)

	result := e.Delete("big.ts", nil, false)
	require.False(t, result.Success)
	assert.Equal(t, types.ErrHashMismatch, result.ErrorCode)
	assert.True(t, fs.Exists("/repo/big.ts"), "the file is left untouched")

	good := hashContent([]byte(big), types.HashSHA256)
	result = e.Delete("big.ts", &types.ExpectedHash{Algorithm: types.HashSHA256, Value: good}, false)
	require.True(t, result.Success, result.Message)
	assert.False(t, fs.Exists("/repo/big.ts"))
}

func TestSmallDeleteNeedsNoHash(t *testing.T) {
	e, fs := newTestEditor(t)
	writeFile(t, fs, "/repo/small.ts", "tiny\n")

	result := e.Delete("small.ts", nil, false)
	require.True(t, result.Success, result.Message)
	assert.False(t, fs.Exists("/repo/small.ts"))
}

func TestMatchConfidenceTable(t *testing.T) {
	assert.Equal(t, types.MatchConfidence(1.0), types.NormalizationConfidence(types.NormExact))
	assert.Equal(t, types.MatchConfidence(0.95), types.NormalizationConfidence(types.NormLineEndings))
	assert.Equal(t, types.MatchConfidence(0.75), types.NormalizationConfidence(types.NormStructural))

	assert.InDelta(t, 1.0, float64(types.LevenshteinConfidence(0, 4)), 1e-9)
	assert.InDelta(t, 0.5, float64(types.LevenshteinConfidence(4, 4)), 1e-9)

	boosted := boostConfidence(0.9, types.Edit{
		LineRange:     &types.LineRange{Start: 1, End: 1},
		BeforeContext: "ctx",
	})
	assert.Equal(t, types.MatchConfidence(1.0), boosted, "boosts cap at 1.0")
}
