// Package skeleton turns a parsed tree from internal/parsing into the
// flat []types.Symbol list the symbol index persists (definitions,
// imports, exports), including the call sites attached to each
// definition that the call graph builder consumes. Call sites are
// recovered through a single field-name-convention walk
// ("function"/"callee" and "object"/"property" fields) shared by every
// registered grammar rather than one bespoke walker per language.
package skeleton

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codelens-dev/codelens/internal/linecount"
	"github.com/codelens-dev/codelens/internal/logging"
	"github.com/codelens-dev/codelens/internal/parsing"
	"github.com/codelens-dev/codelens/internal/types"
)

// Extractor walks a parsed tree into a flat symbol list for one file.
type Extractor struct {
	parser *parsing.Parser
	log    logging.Logger
}

// New builds an Extractor over parser.
func New(parser *parsing.Parser, log logging.Logger) *Extractor {
	if log == nil {
		log = logging.Nop
	}
	return &Extractor{parser: parser, log: log}
}

// defKindByCapture maps a query capture group name (the identifier before
// ".name" in e.g. "@function.name") to the DefinitionKind it produces.
var defKindByCapture = map[string]types.DefinitionKind{
	"function":    types.DefKindFunction,
	"method":      types.DefKindMethod,
	"constructor": types.DefKindMethod,
	"class":       types.DefKindClass,
	"struct":      types.DefKindClass,
	"record":      types.DefKindClass,
	"interface":   types.DefKindInterface,
	"trait":       types.DefKindInterface,
	"type":        types.DefKindVariable,
	"enum":        types.DefKindClass,
	"field":       types.DefKindVariable,
	"property":    types.DefKindVariable,
	"variable":    types.DefKindVariable,
}

// importLikeCaptures are capture groups that describe a specifier import
// or module reference rather than a definition.
var importLikeCaptures = map[string]bool{
	"import": true, "using": true,
}

// callNodeKindsByLanguage lists the grammar node kinds that represent a
// function/method invocation per language, used by the generic call-site
// walk.
var callNodeKindsByLanguage = map[string][]string{
	"go":         {"call_expression"},
	"javascript": {"call_expression"},
	"typescript": {"call_expression"},
	"tsx":        {"call_expression"},
	"python":     {"call"},
	"rust":       {"call_expression"},
	"cpp":        {"call_expression"},
	"java":       {"method_invocation"},
	"csharp":     {"invocation_expression"},
	"php":        {"function_call_expression", "member_call_expression", "scoped_call_expression"},
}

// memberLikeNodeKinds are node kinds whose text spans an object.member
// access, used to split a callee into (object, name).
var memberLikeNodeKinds = map[string]bool{
	"selector_expression": true, // Go
	"member_expression":   true, // JS/TS
	"field_expression":    true, // Rust/C++
	"scoped_identifier":   true, // Rust
	"attribute":           true, // Python
	"qualified_name":      true, // C#
}

// Extract parses content for relPath's extension and returns its
// definitions, imports, exports, and attached call sites. Files whose
// extension has no registered grammar return (nil, nil) — the caller
// treats them as unparsed rather than an error.
func (e *Extractor) Extract(relPath string, content []byte) ([]types.Symbol, error) {
	ext := extOf(relPath)
	if !e.parser.SupportsExtension(ext) {
		return nil, nil
	}

	tree, err := e.parser.Parse(ext, content)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	lc := linecount.New(string(content))
	lang := e.parser.LanguageName(ext)

	symbols := e.extractFromQuery(ext, relPath, tree, content, lc)
	if lang == "javascript" || lang == "typescript" || lang == "tsx" {
		refineJSImports(symbols, content)
	}
	calls := e.extractCallSites(lang, tree.RootNode(), content, lc)
	if lang == "javascript" {
		calls = append(calls, goFastCallSites(content, lc)...)
	}
	attachCalls(symbols, calls, lc)

	return symbols, nil
}

// refineJSImports upgrades the generic side-effect import records into
// their precise shape (default, namespace, named, plus aliases) by
// re-reading the statement text. The capture query already isolated the
// statement and its source string; the binding list is plain syntax.
func refineJSImports(symbols []types.Symbol, content []byte) {
	for i := range symbols {
		sym := &symbols[i]
		if sym.Kind != types.SymbolKindImport {
			continue
		}
		end := sym.Range.End
		if end > len(content) {
			end = len(content)
		}
		stmt := string(content[sym.Range.Start:end])
		kind, alias, names := parseJSImportClause(stmt)
		sym.ImportKind = kind
		sym.Alias = alias
		sym.ImportedNames = names
		sym.TypeOnly = strings.HasPrefix(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stmt), "import")), "type ")
	}
}

// parseJSImportClause classifies the binding clause between "import" and
// "from".
func parseJSImportClause(stmt string) (types.ImportKind, string, []string) {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(stmt), "import"))
	if idx := strings.Index(body, " from "); idx >= 0 {
		body = strings.TrimSpace(body[:idx])
	} else {
		// "import './side-effect'" has no binding clause.
		return types.ImportSideEffect, "", nil
	}
	body = strings.TrimPrefix(body, "type ")

	switch {
	case strings.HasPrefix(body, "* as "):
		return types.ImportNamespace, strings.TrimSpace(strings.TrimPrefix(body, "* as ")), nil

	case strings.HasPrefix(body, "{"):
		return types.ImportNamed, "", parseNamedBindings(body)

	case strings.Contains(body, ","):
		// "default, {named}" — record both; the default binding is the
		// alias, the braces contribute the name list.
		parts := strings.SplitN(body, ",", 2)
		alias := strings.TrimSpace(parts[0])
		names := parseNamedBindings(strings.TrimSpace(parts[1]))
		return types.ImportNamed, alias, names

	default:
		return types.ImportDefault, body, nil
	}
}

// parseNamedBindings reads "{a, b as c}" into the local binding names.
func parseNamedBindings(clause string) []string {
	clause = strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(clause), "{"), "}")
	var names []string
	for _, part := range strings.Split(clause, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, " as "); idx >= 0 {
			part = strings.TrimSpace(part[idx+4:])
		}
		part = strings.TrimPrefix(part, "type ")
		names = append(names, strings.TrimSpace(part))
	}
	return names
}

// Language returns the registry language name for path's extension, or
// "" when no grammar is registered.
func (e *Extractor) Language(path string) string {
	return e.parser.LanguageName(extOf(path))
}

func extOf(path string) string {
	idx := strings.LastIndexByte(path, '.')
	if idx < 0 {
		return ""
	}
	return path[idx:]
}

// extractFromQuery runs the registered capture query and correlates
// captures within each match into Symbol values.
func (e *Extractor) extractFromQuery(ext, relPath string, tree *sitter.Tree, content []byte, lc *linecount.Counter) []types.Symbol {
	query := e.parser.Query(ext)
	if query == nil {
		return nil
	}

	cursor := sitter.NewQueryCursor()
	defer cursor.Close()

	captureNames := query.CaptureNames()
	matches := cursor.Matches(query, tree.RootNode(), content)

	var symbols []types.Symbol
	for {
		match := matches.Next()
		if match == nil {
			break
		}

		byCapture := make(map[string]*sitter.Node, len(match.Captures))
		for _, cap := range match.Captures {
			name := captureNames[cap.Index]
			if _, exists := byCapture[name]; !exists {
				node := cap.Node
				byCapture[name] = &node
			}
		}

		if sym, ok := e.buildDefinitionSymbol(relPath, byCapture, content, lc); ok {
			symbols = append(symbols, sym)
			continue
		}
		if sym, ok := e.buildImportSymbol(byCapture, content, lc); ok {
			symbols = append(symbols, sym)
			continue
		}
		if sym, ok := e.buildExportSymbol(relPath, byCapture, content, lc); ok {
			symbols = append(symbols, sym)
		}
	}
	return symbols
}

func (e *Extractor) buildDefinitionSymbol(relPath string, byCapture map[string]*sitter.Node, content []byte, lc *linecount.Counter) (types.Symbol, bool) {
	for capture, defKind := range defKindByCapture {
		node, ok := byCapture[capture]
		if !ok {
			continue
		}
		name := ""
		if nameNode, ok := byCapture[capture+".name"]; ok {
			name = nodeText(nameNode, content)
		}
		if name == "" {
			continue
		}
		line, col := lc.LineColumn(int(node.StartByte()))
		text := nodeText(node, content)
		return types.Symbol{
			Kind:      types.SymbolKindDefinition,
			FilePath:  relPath,
			Name:      name,
			Range:     types.ByteRange{Start: int(node.StartByte()), End: int(node.EndByte())},
			Line:      line,
			Column:    col,
			DefKind:   defKind,
			Signature: signatureOf(text),
			Content:   text,
		}, true
	}
	return types.Symbol{}, false
}

// signatureOf reduces a definition's text to its header: everything up to
// the body-opening brace or colon on the first line.
func signatureOf(text string) string {
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx]
	}
	if idx := strings.IndexByte(text, '{'); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func (e *Extractor) buildImportSymbol(byCapture map[string]*sitter.Node, content []byte, lc *linecount.Counter) (types.Symbol, bool) {
	var node *sitter.Node
	for capture := range importLikeCaptures {
		if n, ok := byCapture[capture]; ok {
			node = n
			break
		}
	}
	if node == nil {
		return types.Symbol{}, false
	}

	source := ""
	for _, key := range []string{"import.source", "import.path", "using.name"} {
		if n, ok := byCapture[key]; ok {
			source = unquote(nodeText(n, content))
			break
		}
	}
	if source == "" {
		// Fall back to the raw statement text, whitespace-trimmed; keywords
		// such as "import" or "use" stay in the text, so the resolver gets
		// the whole statement when no captured sub-node carries the bare path.
		source = strings.TrimSpace(nodeText(node, content))
	}

	line, col := lc.LineColumn(int(node.StartByte()))
	return types.Symbol{
		Kind:         types.SymbolKindImport,
		Range:        types.ByteRange{Start: int(node.StartByte()), End: int(node.EndByte())},
		Line:         line,
		Column:       col,
		ImportSource: source,
		ImportKind:   types.ImportSideEffect,
		Name:         source,
	}, true
}

func (e *Extractor) buildExportSymbol(relPath string, byCapture map[string]*sitter.Node, content []byte, lc *linecount.Counter) (types.Symbol, bool) {
	node, ok := byCapture["export"]
	if !ok {
		return types.Symbol{}, false
	}
	line, col := lc.LineColumn(int(node.StartByte()))
	name := ""
	if nameNode := firstNamedIdentifierDescendant(node); nameNode != nil {
		name = nodeText(nameNode, content)
	}
	return types.Symbol{
		Kind:       types.SymbolKindExport,
		FilePath:   relPath,
		Name:       name,
		Range:      types.ByteRange{Start: int(node.StartByte()), End: int(node.EndByte())},
		Line:       line,
		Column:     col,
		ExportKind: types.ExportNamed,
	}, true
}

// extractCallSites walks the entire tree for nodes matching lang's
// invocation node kinds, splitting the callee into (object, name) via the
// member-like-node heuristic.
func (e *Extractor) extractCallSites(lang string, root *sitter.Node, content []byte, lc *linecount.Counter) []types.CallSite {
	kinds := callNodeKindsByLanguage[lang]
	if len(kinds) == 0 {
		return nil
	}
	kindSet := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		kindSet[k] = true
	}

	var calls []types.CallSite
	walk(root, func(n *sitter.Node) {
		if !kindSet[n.Kind()] {
			return
		}
		callee := n.ChildByFieldName("function")
		if callee == nil {
			callee = n.ChildByFieldName("callee")
		}
		if callee == nil && n.ChildCount() > 0 {
			callee = n.Child(0)
		}
		if callee == nil {
			return
		}

		name, object := splitCallee(callee, content)
		if name == "" {
			return
		}
		line, col := lc.LineColumn(int(n.StartByte()))
		callType := types.CallDirect
		if object != "" {
			callType = types.CallMethod
		}
		calls = append(calls, types.CallSite{
			CalleeName:   name,
			CalleeObject: object,
			Line:         line,
			Column:       col,
			CallType:     callType,
		})
	})
	return calls
}

func splitCallee(node *sitter.Node, content []byte) (name, object string) {
	if !memberLikeNodeKinds[node.Kind()] {
		return nodeText(node, content), ""
	}
	object = nodeText(node, content)
	member := node.ChildByFieldName("property")
	if member == nil {
		member = node.ChildByFieldName("field")
	}
	if member == nil {
		member = node.ChildByFieldName("name")
	}
	if member == nil && node.ChildCount() > 0 {
		member = node.Child(node.ChildCount() - 1)
	}
	if member == nil {
		return object, ""
	}
	name = nodeText(member, content)
	objectNode := node.ChildByFieldName("object")
	if objectNode != nil {
		object = nodeText(objectNode, content)
	}
	return name, object
}

// attachCalls assigns each call site to the narrowest definition whose
// line span contains it.
func attachCalls(symbols []types.Symbol, calls []types.CallSite, lc *linecount.Counter) {
	if len(calls) == 0 {
		return
	}
	calls = dedupeCalls(calls)

	type defSpan struct {
		idx       int
		startLine int
		endLine   int
		span      int
	}
	var defs []defSpan
	for i := range symbols {
		sym := symbols[i]
		if sym.Kind != types.SymbolKindDefinition {
			continue
		}
		endLine, _ := lc.LineColumn(sym.Range.End)
		defs = append(defs, defSpan{
			idx:       i,
			startLine: sym.Line,
			endLine:   endLine,
			span:      sym.Range.End - sym.Range.Start,
		})
	}

	for _, call := range calls {
		bestIdx := -1
		bestSpan := -1
		for _, d := range defs {
			if call.Line < d.startLine || call.Line > d.endLine {
				continue
			}
			if bestIdx == -1 || d.span < bestSpan {
				bestIdx = d.idx
				bestSpan = d.span
			}
		}
		if bestIdx >= 0 {
			symbols[bestIdx].Calls = append(symbols[bestIdx].Calls, call)
		}
	}
}

// dedupeCalls collapses call sites the tree-sitter pass and the go-fast
// secondary pass both recovered, keyed on (name, line, column).
func dedupeCalls(calls []types.CallSite) []types.CallSite {
	type key struct {
		name   string
		line   int
		column int
	}
	seen := make(map[key]bool, len(calls))
	out := make([]types.CallSite, 0, len(calls))
	for _, c := range calls {
		k := key{c.CalleeName, c.Line, c.Column}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(content) || start > end {
		return ""
	}
	return string(content[start:end])
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '`' && s[len(s)-1] == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func firstNamedIdentifierDescendant(node *sitter.Node) *sitter.Node {
	var found *sitter.Node
	walk(node, func(n *sitter.Node) {
		if found != nil {
			return
		}
		switch n.Kind() {
		case "identifier", "type_identifier", "property_identifier", "field_identifier":
			found = n
		}
	})
	return found
}

// walk performs a pre-order traversal over node and its descendants.
func walk(node *sitter.Node, visit func(*sitter.Node)) {
	if node == nil {
		return
	}
	visit(node)
	for i := uint(0); i < node.ChildCount(); i++ {
		walk(node.Child(i), visit)
	}
}
