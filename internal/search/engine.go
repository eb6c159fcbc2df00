package search

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/codelens-dev/codelens/internal/config"
	"github.com/codelens-dev/codelens/internal/fsx"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/store"
	"github.com/codelens-dev/codelens/internal/trigram"
	"github.com/codelens-dev/codelens/internal/types"
	"github.com/codelens-dev/codelens/pkg/pathutil"
)

// SymbolSource is the Symbol Index surface the engine reads.
type SymbolSource interface {
	SymbolsForFile(path string) ([]types.Symbol, error)
}

// DegreeSource supplies the reverse import index for the
// outboundImportance signal; the Dependency Graph satisfies it.
type DegreeSource interface {
	InDegrees() (map[string]int, error)
}

// Engine fuses the Trigram Index, Symbol Index, and Dependency Graph into
// ranked search results.
type Engine struct {
	root     string
	fs       *fsx.FS
	store    *store.Store
	trigrams *trigram.Index
	symbols  SymbolSource
	degrees  DegreeSource
	perf     config.Performance
	defaults config.Search
	log      logging.Logger
}

// New builds a search Engine.
func New(root string, fs *fsx.FS, st *store.Store, trigrams *trigram.Index, symbols SymbolSource, degrees DegreeSource, perf config.Performance, defaults config.Search, log logging.Logger) *Engine {
	if log == nil {
		log = logging.Nop
	}
	return &Engine{
		root:     root,
		fs:       fs,
		store:    st,
		trigrams: trigrams,
		symbols:  symbols,
		degrees:  degrees,
		perf:     perf,
		defaults: defaults,
		log:      log,
	}
}

// Search ranks candidate files for query. Budget breaches return partial
// results with Degraded set rather than an error; ctx cancellation aborts
// between candidates, returning what was scored so far.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	keywords := Keywords(query)
	if len(keywords) == 0 {
		return &Response{}, nil
	}

	intent := opts.Intent
	if intent == "" {
		intent = DetectIntent(query)
	}
	w, ok := weightsByIntent[intent]
	if !ok {
		intent = IntentMixed
		w = weightsByIntent[IntentMixed]
	}

	if opts.MaxResults <= 0 {
		opts.MaxResults = e.defaults.MaxCandidatesPerQuery
	}
	if opts.MatchesPerFile <= 0 {
		opts.MatchesPerFile = e.defaults.MatchesPerFile
	}
	if opts.SnippetLength <= 0 {
		opts.SnippetLength = e.defaults.SnippetLength
	}

	candidates, capped := e.collectCandidates(query, keywords, e.perf.MaxCandidates)
	resp := &Response{}
	if capped {
		resp.Degraded = true
		resp.DegradedReason = "candidate cap reached"
	}

	inDegrees := map[string]int{}
	if e.degrees != nil {
		if d, err := e.degrees.InDegrees(); err == nil {
			inDegrees = d
		}
	}

	queryTerms := tokenize(query)
	stats := &bm25Stats{
		totalDocs: e.trigrams.FileCount(),
		avgDocLen: e.trigrams.AvgDocLen(),
		docFreq:   make(map[string]int),
	}

	// First pass: read candidate contents under the read budgets and
	// accumulate document frequencies for the collection-wide IDF.
	type candidateDoc struct {
		path    string
		content string
		tf      map[string]int
		mtimeMs int64
	}
	var docs []candidateDoc
	var bytesRead int64
	for _, rel := range candidates {
		if err := ctx.Err(); err != nil {
			resp.Degraded = true
			resp.DegradedReason = "cancelled"
			break
		}
		if e.perf.MaxFilesRead > 0 && len(docs) >= e.perf.MaxFilesRead {
			resp.Degraded = true
			resp.DegradedReason = "maxFilesRead reached"
			break
		}

		abs := pathutil.ToAbsolute(rel, e.root)
		st, err := e.fs.StatPath(abs)
		if err != nil {
			continue
		}
		if e.perf.MaxBytesRead > 0 && bytesRead+st.Size() > e.perf.MaxBytesRead {
			resp.Degraded = true
			resp.DegradedReason = "maxBytesRead reached"
			break
		}
		content, err := e.fs.ReadFile(abs)
		if err != nil {
			continue
		}
		bytesRead += int64(len(content))

		doc := candidateDoc{path: rel, content: string(content), mtimeMs: st.MTimeMs()}
		doc.tf = termFreqs(tokenize(doc.content))
		for _, term := range queryTerms {
			if doc.tf[term] > 0 {
				stats.docFreq[term]++
			}
		}
		docs = append(docs, doc)
	}

	now := time.Now()
	for _, doc := range docs {
		res := e.scoreCandidate(doc.path, doc.content, doc.tf, doc.mtimeMs, keywords, queryTerms, stats, intent, w, inDegrees, opts, now)
		if res != nil {
			resp.Results = append(resp.Results, *res)
		}
	}

	sort.SliceStable(resp.Results, func(i, j int) bool { return resp.Results[i].Score > resp.Results[j].Score })
	e.postProcess(resp, opts)
	return resp, nil
}

// scoreCandidate computes every signal for one file and folds them into
// the weighted score. Returns nil when the file contributes nothing.
func (e *Engine) scoreCandidate(rel, content string, tf map[string]int, mtimeMs int64, keywords, queryTerms []string, stats *bm25Stats, intent Intent, w weights, inDegrees map[string]int, opts Options, now time.Time) *Result {
	breakdown := make(map[string]float64, 8)

	lineMatches := e.literalMatches(content, keywords, opts)

	rawBM25 := bm25Score(queryTerms, tf, e.trigrams.DocLen(rel), stats)
	// The literal-match floor: when BM25 rounds to zero but the keywords
	// literally appear, keep content ordering meaningful.
	if rawBM25 < 1e-9 && len(lineMatches) > 0 {
		rawBM25 = 10 + rawBM25/100
	}
	breakdown[sigContent] = rawBM25 / (rawBM25 + 10)

	filenameRaw, filenameMatchType := filenameSignal(rel, keywords)
	breakdown[sigFilename] = filenameRaw / 100

	symbolRaw := symbolSignal(e.symbolNamesFor(rel), keywords)
	breakdown[sigSymbol] = clamp01(symbolRaw / 64)

	breakdown[sigComment] = clamp01(commentSignal(extractComments(content), keywords) / 50)
	breakdown[sigPattern] = clamp01(patternSignal(content, opts.Patterns) / 200)
	breakdown[sigTestCoverage] = e.testCoverageSignal(rel)
	breakdown[sigRecency] = recencySignal(mtimeMs, now)
	breakdown[sigOutbound] = outboundImportanceSignal(inDegrees[rel])

	depth := depthMultiplier(rel)
	sum := 0.0
	for sig, v := range breakdown {
		sum += v * w[sig]
	}
	score := 100 * sum * depth
	if score <= 0 {
		return nil
	}

	// Drop files with no evidence beyond the ambient recency/importance
	// floor every file has.
	if breakdown[sigContent] == 0 && breakdown[sigFilename] == 0 && breakdown[sigSymbol] == 0 &&
		breakdown[sigComment] == 0 && breakdown[sigPattern] == 0 {
		return nil
	}

	var signals []string
	for _, sig := range []string{sigContent, sigFilename, sigSymbol, sigComment, sigPattern, sigTestCoverage, sigRecency, sigOutbound} {
		if breakdown[sig] > 0 {
			signals = append(signals, sig)
		}
	}

	dominantWeight := 0.0
	for sig, v := range breakdown {
		if contrib := v * w[sig]; contrib > dominantWeight {
			dominantWeight = contrib
		}
	}

	res := &Result{
		FilePath: rel,
		Score:    score,
		Details: ScoreDetails{
			Type:               string(intent),
			ContentScore:       rawBM25,
			FilenameMultiplier: filenameRaw / 100,
			DepthMultiplier:    depth,
			FieldWeight:        dominantWeight,
			FilenameMatchType:  filenameMatchType,
		},
		Signals:   signals,
		Breakdown: breakdown,
	}
	if len(lineMatches) > 0 {
		res.LineNumber = lineMatches[0].line
		res.Preview = lineMatches[0].text
		for _, m := range lineMatches[1:] {
			res.Secondary = append(res.Secondary, Result{
				FilePath:   rel,
				LineNumber: m.line,
				Preview:    m.text,
				Score:      score,
			})
		}
	}
	return res
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

type lineMatch struct {
	line int
	text string
}

// literalMatches finds up to matchesPerFile lines matching any keyword's
// literal regex, honoring word-boundary and smart-case rules.
func (e *Engine) literalMatches(content string, keywords []string, opts Options) []lineMatch {
	var matches []lineMatch
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		for _, kw := range keywords {
			re, err := compileKeyword(kw, opts.WordBoundary)
			if err != nil {
				continue
			}
			if re.MatchString(line) {
				matches = append(matches, lineMatch{line: i + 1, text: line})
				break
			}
		}
		if len(matches) >= opts.MatchesPerFile {
			break
		}
	}
	return matches
}

// postProcess filters by file type, dedupes by preview and path:line,
// truncates previews, and optionally regroups secondaries.
func (e *Engine) postProcess(resp *Response, opts Options) {
	seenPreview := make(map[string]bool)
	seenLoc := make(map[string]bool)
	var kept []Result

	for _, r := range resp.Results {
		if !fileTypeAllowed(r.FilePath, opts.FileTypes) {
			continue
		}
		loc := r.FilePath + ":" + strconv.Itoa(r.LineNumber)
		if seenLoc[loc] {
			continue
		}
		if r.Preview != "" && seenPreview[r.Preview] {
			continue
		}
		seenLoc[loc] = true
		if r.Preview != "" {
			seenPreview[r.Preview] = true
		}

		r.Preview = truncatePreview(r.Preview, opts.SnippetLength)
		for i := range r.Secondary {
			r.Secondary[i].Preview = truncatePreview(r.Secondary[i].Preview, opts.SnippetLength)
		}
		if !opts.GroupByFile {
			secondaries := r.Secondary
			r.Secondary = nil
			kept = append(kept, r)
			for _, s := range secondaries {
				sloc := s.FilePath + ":" + strconv.Itoa(s.LineNumber)
				if seenLoc[sloc] || (s.Preview != "" && seenPreview[s.Preview]) {
					continue
				}
				seenLoc[sloc] = true
				if s.Preview != "" {
					seenPreview[s.Preview] = true
				}
				kept = append(kept, s)
			}
		} else {
			kept = append(kept, r)
		}

		if len(kept) >= opts.MaxResults {
			break
		}
	}
	resp.Results = kept
}

func fileTypeAllowed(path string, fileTypes []string) bool {
	if len(fileTypes) == 0 {
		return true
	}
	for _, ext := range fileTypes {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

func truncatePreview(preview string, maxLen int) string {
	preview = strings.TrimSpace(preview)
	if maxLen <= 0 || len(preview) <= maxLen {
		return preview
	}
	return preview[:maxLen] + "…"
}

func (e *Engine) fileExists(rel string) bool {
	return e.fs.Exists(pathutil.ToAbsolute(rel, e.root))
}
