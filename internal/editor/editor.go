// Package editor is the Editor Engine: it turns a list of anchor-based
// edits into a single atomic file rewrite (or a dry-run diff), with
// multi-tier fuzzy matching, hash guards, ambiguity diagnostics, backups,
// and invertible operations.
package editor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codelens-dev/codelens/internal/cerrors"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// destructiveSizeThreshold: deleting a file at or above this size
// requires a confirmation hash.
const destructiveSizeThreshold = 10 << 10

// ApplyOptions tunes one ApplyEdits call.
type ApplyOptions struct {
	DryRun      bool
	DiffMode    DiffMode // DiffMyers default; DiffSemantic selects Patience
	Description string
}

// Invalidator is notified after a successful write so the indices drop
// their stale entries; the engine coordinator satisfies it.
type Invalidator interface {
	FileModified(relPath string)
}

// Engine applies edits against one repository root.
type Engine struct {
	root        string
	fs          *fsx.FS
	log         logging.Logger
	invalidator Invalidator

	// locks serializes edits per file so an apply never interleaves with
	// an invalidation of the same path.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	// history retains applied operations for undo, keyed by operation id.
	historyMu sync.Mutex
	history   map[string]*types.EditOperation
}

// New builds an editor Engine rooted at root.
func New(root string, fs *fsx.FS, invalidator Invalidator, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop
	}
	return &Engine{
		root:        root,
		fs:          fs,
		log:         log,
		invalidator: invalidator,
		locks:       make(map[string]*sync.Mutex),
		history:     make(map[string]*types.EditOperation),
	}
}

func (e *Engine) fileLock(rel string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	if l, ok := e.locks[rel]; ok {
		return l
	}
	l := &sync.Mutex{}
	e.locks[rel] = l
	return l
}

// resolvedEdit pairs an edit with its accepted match.
type resolvedEdit struct {
	edit  types.Edit
	match types.MatchCandidate
	// replaceRange/replacement are the effective byte change after the
	// insert mode is applied.
	replaceRange types.IndexRange
	replacement  string
	originalText string
}

// ApplyEdits resolves every edit against path's current content and
// applies them as one atomic rewrite. Failures return a structured
// EditResult; nothing is written unless every edit resolves.
func (e *Engine) ApplyEdits(path string, edits []types.Edit, opts ApplyOptions) types.EditResult {
	rel := pathutil.ToRelative(path, e.root)
	abs := pathutil.ToAbsolute(rel, e.root)

	lock := e.fileLock(rel)
	lock.Lock()
	defer lock.Unlock()

	raw, err := e.fs.ReadFile(abs)
	if err != nil {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   fmt.Sprintf("cannot read %s: %v", rel, err),
			Suggestion: &types.ToolSuggestion{
				Action: "check_path",
				Reason: "the target file does not exist or is unreadable",
			},
		}
	}
	content := string(raw)

	// Hash guards apply against pre-edit content, before any matching.
	for _, edit := range edits {
		if actual, ok := verifyHash(raw, edit.ExpectedHash); !ok {
			return hashMismatchResult(rel, edit.ExpectedHash, actual)
		}
	}

	resolved := make([]resolvedEdit, 0, len(edits))
	for _, edit := range edits {
		match, err := resolveMatch(rel, content, edit)
		if err != nil {
			return errorResult(rel, err)
		}
		re := resolvedEdit{edit: edit, match: match}
		re.replaceRange, re.replacement = effectiveChange(content, edit, match)
		re.originalText = content[re.replaceRange.Start:re.replaceRange.End]
		resolved = append(resolved, re)
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].replaceRange.Start < resolved[j].replaceRange.Start
	})
	for i := 1; i < len(resolved); i++ {
		prev, cur := resolved[i-1], resolved[i]
		if cur.replaceRange.Start < prev.replaceRange.End {
			return errorResult(rel, &cerrors.OverlapConflictError{
				FilePath:  rel,
				First:     cerrors.IndexRangeLike{Start: prev.replaceRange.Start, End: prev.replaceRange.End},
				Second:    cerrors.IndexRangeLike{Start: cur.replaceRange.Start, End: cur.replaceRange.End},
				Timestamp: time.Now(),
			})
		}
	}

	newContent, inverse := buildNewContent(content, resolved)

	op := &types.EditOperation{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UnixMilli(),
		Description:  opts.Description,
		Edits:        edits,
		InverseEdits: inverse,
		FilePath:     rel,
	}

	mode := opts.DiffMode
	if mode == "" {
		mode = DiffMyers
	}
	ops := computeDiff(content, newContent, mode)
	diffText, added, removed := renderUnified(rel, ops)

	result := types.EditResult{
		Success:         true,
		Diff:            diffText,
		AddedLines:      added,
		RemovedLines:    removed,
		OriginalContent: content,
		NewContent:      newContent,
		Operation:       op,
	}

	if opts.DryRun {
		result.Message = fmt.Sprintf("dry run: %d edits would rewrite %s", len(edits), rel)
		return result
	}

	if err := e.writeBackup(rel, raw); err != nil {
		e.log.Warnf("editor: backup for %s failed: %v", rel, err)
	}
	if err := e.fs.WriteFile(abs, []byte(newContent), 0o644); err != nil {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   fmt.Sprintf("write failed for %s: %v", rel, err),
		}
	}

	e.historyMu.Lock()
	e.history[op.ID] = op
	e.historyMu.Unlock()

	if e.invalidator != nil {
		e.invalidator.FileModified(rel)
	}
	result.Message = fmt.Sprintf("applied %d edits to %s", len(edits), rel)
	return result
}

// effectiveChange folds the edit's insert mode into a concrete byte
// replacement.
func effectiveChange(content string, edit types.Edit, match types.MatchCandidate) (types.IndexRange, string) {
	switch edit.InsertMode {
	case types.InsertBefore:
		return types.IndexRange{Start: match.Range.Start, End: match.Range.Start}, edit.ReplacementString
	case types.InsertAfter:
		return types.IndexRange{Start: match.Range.End, End: match.Range.End}, edit.ReplacementString
	default: // InsertAt and plain replacement
		return match.Range, edit.ReplacementString
	}
}

// buildNewContent interleaves unchanged slices with replacements and
// records each edit's inverse as an index range over the new content.
func buildNewContent(content string, resolved []resolvedEdit) (string, []types.Edit) {
	var sb []byte
	inverse := make([]types.Edit, 0, len(resolved))
	cursor := 0
	delta := 0

	for _, re := range resolved {
		sb = append(sb, content[cursor:re.replaceRange.Start]...)
		newStart := re.replaceRange.Start + delta
		sb = append(sb, re.replacement...)
		cursor = re.replaceRange.End

		inverse = append(inverse, types.Edit{
			TargetString:      re.replacement,
			ReplacementString: re.originalText,
			IndexRange:        &types.IndexRange{Start: newStart, End: newStart + len(re.replacement)},
		})
		delta += len(re.replacement) - (re.replaceRange.End - re.replaceRange.Start)
	}
	sb = append(sb, content[cursor:]...)
	return string(sb), inverse
}

// Undo re-applies an operation's inverse edits, restoring the pre-edit
// content when the file has not drifted since.
func (e *Engine) Undo(operationID string) types.EditResult {
	e.historyMu.Lock()
	op, ok := e.history[operationID]
	e.historyMu.Unlock()
	if !ok {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   fmt.Sprintf("no recorded operation %s", operationID),
			Suggestion: &types.ToolSuggestion{
				Action: "list_operations",
				Reason: "the operation id is unknown or already undone",
			},
		}
	}

	result := e.ApplyEdits(op.FilePath, op.InverseEdits, ApplyOptions{
		Description: "undo of " + op.ID,
	})
	if result.Success {
		e.historyMu.Lock()
		delete(e.history, operationID)
		e.historyMu.Unlock()
	}
	return result
}

// Delete removes a file, requiring hash agreement for destructive cases:
// files at or above 10 KB, or any delete in strict mode carrying a
// confirmation hash.
func (e *Engine) Delete(path string, confirmation *types.ExpectedHash, strict bool) types.EditResult {
	rel := pathutil.ToRelative(path, e.root)
	abs := pathutil.ToAbsolute(rel, e.root)

	lock := e.fileLock(rel)
	lock.Lock()
	defer lock.Unlock()

	raw, err := e.fs.ReadFile(abs)
	if err != nil {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   fmt.Sprintf("cannot read %s: %v", rel, err),
		}
	}

	needsConfirmation := len(raw) >= destructiveSizeThreshold || (strict && confirmation != nil)
	if needsConfirmation {
		if confirmation == nil {
			return types.EditResult{
				Success:   false,
				ErrorCode: types.ErrHashMismatch,
				Message:   fmt.Sprintf("deleting %s (%d bytes) requires a confirmation hash", rel, len(raw)),
				Suggestion: &types.ToolSuggestion{
					Action: "read_file",
					Reason: "re-read the file and supply its current hash to confirm the delete",
				},
			}
		}
		if actual, ok := verifyHash(raw, confirmation); !ok {
			return hashMismatchResult(rel, confirmation, actual)
		}
	}

	if err := e.writeBackup(rel, raw); err != nil {
		e.log.Warnf("editor: backup for %s failed: %v", rel, err)
	}
	if err := e.fs.DeleteFile(abs); err != nil {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   fmt.Sprintf("delete failed for %s: %v", rel, err),
		}
	}
	if e.invalidator != nil {
		e.invalidator.FileModified(rel)
	}
	return types.EditResult{Success: true, Message: fmt.Sprintf("deleted %s", rel), OriginalContent: string(raw)}
}

// errorResult converts a pipeline error into the structured EditResult
// the taxonomy requires, with a concrete next-best-action suggestion.
func errorResult(rel string, err error) types.EditResult {
	var notFound *cerrors.MatchNotFoundError
	if errors.As(err, &notFound) {
		result := types.EditResult{
			Success:   false,
			ErrorCode: types.ErrNoMatch,
			Message:   err.Error(),
		}
		suggestion := &types.ToolSuggestion{
			Action: "read_fragment",
			Reason: "no candidates survived; loosen normalization or switch fuzzy mode",
		}
		if len(notFound.TopGuesses) > 0 {
			g := notFound.TopGuesses[0]
			suggestion.LineRange = &types.LineRange{Start: g.Line, End: g.Line}
			suggestion.Confidence = types.MatchConfidence(g.Confidence)
			suggestion.Reason = fmt.Sprintf("closest match near line %d; read that fragment before retrying", g.Line)
		}
		result.Suggestion = suggestion
		return result
	}

	var ambiguous *cerrors.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		return types.EditResult{
			Success:          false,
			ErrorCode:        types.ErrAmbiguousMatch,
			Message:          err.Error(),
			ConflictingLines: ambiguous.ConflictingLines,
			Suggestion: &types.ToolSuggestion{
				Action:    "add_line_range",
				Reason:    fmt.Sprintf("multiple candidates; the strongest is line %d", ambiguous.SuggestedLine),
				LineRange: &types.LineRange{Start: ambiguous.SuggestedLine, End: ambiguous.SuggestedLine},
			},
		}
	}

	var hashErr *cerrors.HashMismatchError
	if errors.As(err, &hashErr) {
		return types.EditResult{
			Success:   false,
			ErrorCode: types.ErrHashMismatch,
			Message:   err.Error(),
			Suggestion: &types.ToolSuggestion{
				Action: "read_file",
				Reason: "the file changed since it was last read; re-read before editing",
			},
		}
	}

	// Bounds/overlap/budget errors keep their message under NO_MATCH with
	// an action telling the caller what to fix.
	return types.EditResult{
		Success:   false,
		ErrorCode: types.ErrNoMatch,
		Message:   err.Error(),
		Suggestion: &types.ToolSuggestion{
			Action: "revise_edit",
			Reason: "the edit could not be applied as specified",
		},
	}
}

func hashMismatchResult(rel string, expected *types.ExpectedHash, actual string) types.EditResult {
	expectedValue, algorithm := "", ""
	if expected != nil {
		expectedValue = expected.Value
		algorithm = string(expected.Algorithm)
	}
	err := &cerrors.HashMismatchError{
		FilePath:  rel,
		Expected:  expectedValue,
		Actual:    actual,
		Algorithm: algorithm,
		Timestamp: time.Now(),
	}
	return types.EditResult{
		Success:   false,
		ErrorCode: types.ErrHashMismatch,
		Message:   err.Error(),
		Suggestion: &types.ToolSuggestion{
			Action: "read_file",
			Reason: "content drifted since the hash was computed; re-read the file",
		},
	}
}
