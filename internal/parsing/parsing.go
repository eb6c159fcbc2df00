// Package parsing is the parser capability layer: a tree-sitter parser
// and capture query lazily loaded per file extension. The skeleton
// extractor parses through this one collaborator instead of owning its
// own *sitter.Parser; each language's grammar and capture query live in
// one data-driven registry entry.
package parsing

import (
	"fmt"
	"sync"
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tsCSharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tsCpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	tsGo "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tsJava "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tsJavaScript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tsPHP "github.com/tree-sitter/tree-sitter-php/bindings/go"
	tsPython "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tsRust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tsTypeScript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codelens-dev/codelens/internal/logging"
)

// languageSpec is one registry entry: the grammar constructor and capture
// query shared by every extension it's registered under.
type languageSpec struct {
	name       string
	language   func() unsafe.Pointer
	query      string
	extensions []string
}

var registry = []languageSpec{
	{
		name:       "go",
		language:   func() unsafe.Pointer { return tsGo.Language() },
		extensions: []string{".go"},
		query: `
			(function_declaration name: (identifier) @function.name) @function
			(method_declaration
				receiver: (parameter_list) @method.receiver
				name: (field_identifier) @method.name) @method
			(type_declaration (type_spec name: (type_identifier) @type.name)) @type
			(import_spec path: (interpreted_string_literal) @import.path) @import
		`,
	},
	{
		name:       "javascript",
		language:   func() unsafe.Pointer { return tsJavaScript.Language() },
		extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		query: `
			(function_declaration name: (identifier) @function.name) @function
			(generator_function_declaration name: (identifier) @function.name) @function
			(variable_declarator
				name: (identifier) @function.name
				value: [(arrow_function) (function_expression) (generator_function)]) @function
			(method_definition name: (property_identifier) @method.name) @method
			(class_declaration name: (identifier) @class.name) @class
			(export_statement declaration: (_) @export) @export
			(import_statement source: (string) @import.source) @import
		`,
	},
	{
		name:       "typescript",
		language:   func() unsafe.Pointer { return tsTypeScript.LanguageTypescript() },
		extensions: []string{".ts"},
		query: `
			(function_declaration name: (identifier) @function.name) @function
			(method_definition name: (property_identifier) @method.name) @method
			(function_expression name: (identifier) @function.name) @function
			(class_declaration name: (type_identifier) @class.name) @class
			(interface_declaration name: (type_identifier) @interface.name) @interface
			(type_alias_declaration name: (type_identifier) @type.name) @type
			(enum_declaration name: (identifier) @enum.name) @enum
			(export_statement declaration: (_) @export) @export
			(import_statement source: (string) @import.source) @import
		`,
	},
	{
		name:       "tsx",
		language:   func() unsafe.Pointer { return tsTypeScript.LanguageTSX() },
		extensions: []string{".tsx"},
		query: `
			(function_declaration name: (identifier) @function.name) @function
			(method_definition name: (property_identifier) @method.name) @method
			(class_declaration name: (type_identifier) @class.name) @class
			(interface_declaration name: (type_identifier) @interface.name) @interface
			(export_statement declaration: (_) @export) @export
			(import_statement source: (string) @import.source) @import
		`,
	},
	{
		name:       "python",
		language:   func() unsafe.Pointer { return tsPython.Language() },
		extensions: []string{".py"},
		query: `
			(class_definition
				body: (block
					(function_definition name: (identifier) @method.name))) @method
			(function_definition name: (identifier) @function.name) @function
			(class_definition name: (identifier) @class.name) @class
			(import_statement) @import
			(import_from_statement) @import
		`,
	},
	{
		name:       "rust",
		language:   func() unsafe.Pointer { return tsRust.Language() },
		extensions: []string{".rs"},
		query: `
			(impl_item body: (declaration_list (function_item name: (identifier) @method.name))) @method
			(trait_item body: (declaration_list (function_item name: (identifier) @method.name))) @method
			(function_item name: (identifier) @function.name) @function
			(struct_item name: (type_identifier) @struct.name) @struct
			(enum_item name: (type_identifier) @enum.name) @enum
			(trait_item name: (type_identifier) @interface.name) @interface
			(use_declaration) @import
		`,
	},
	{
		name:       "cpp",
		language:   func() unsafe.Pointer { return tsCpp.Language() },
		extensions: []string{".cpp", ".cc", ".cxx", ".c", ".h", ".hpp"},
		query: `
			(function_definition declarator: (function_declarator declarator: (identifier) @function.name)) @function
			(class_specifier name: (type_identifier) @class.name) @class
			(struct_specifier name: (type_identifier) @struct.name) @struct
			(enum_specifier name: (type_identifier) @enum.name) @enum
			(preproc_include) @import
			(using_declaration) @import
		`,
	},
	{
		name:       "java",
		language:   func() unsafe.Pointer { return tsJava.Language() },
		extensions: []string{".java"},
		query: `
			(method_declaration name: (identifier) @method.name) @method
			(constructor_declaration name: (identifier) @constructor.name) @constructor
			(class_declaration name: (identifier) @class.name) @class
			(interface_declaration name: (identifier) @interface.name) @interface
			(enum_declaration name: (identifier) @enum.name) @enum
			(import_declaration) @import
		`,
	},
	{
		name:       "csharp",
		language:   func() unsafe.Pointer { return tsCSharp.Language() },
		extensions: []string{".cs"},
		query: `
			(method_declaration name: (identifier) @method.name) @method
			(constructor_declaration name: (identifier) @constructor.name) @constructor
			(class_declaration name: (identifier) @class.name) @class
			(interface_declaration name: (identifier) @interface.name) @interface
			(struct_declaration name: (identifier) @struct.name) @struct
			(enum_declaration name: (identifier) @enum.name) @enum
			(using_directive (qualified_name) @using.name) @using
			(using_directive (identifier) @using.name) @using
		`,
	},
	{
		name:       "php",
		language:   func() unsafe.Pointer { return tsPHP.LanguagePHP() },
		extensions: []string{".php", ".phtml"},
		query: `
			(class_declaration name: (name) @class.name) @class
			(interface_declaration name: (name) @interface.name) @interface
			(trait_declaration name: (name) @trait.name) @trait
			(enum_declaration name: (name) @enum.name) @enum
			(function_definition name: (name) @function.name) @function
			(method_declaration name: (name) @method.name) @method
			(namespace_use_declaration) @import
		`,
	},
}

// Parser lazily loads one *sitter.Parser/*sitter.Query pair per registered
// extension and reuses them across calls.
type Parser struct {
	mu      sync.Mutex
	byExt   map[string]languageSpec
	parsers map[string]*sitter.Parser
	queries map[string]*sitter.Query
	log     logging.Logger
}

// New builds a Parser with the full built-in language registry.
func New(log logging.Logger) *Parser {
	if log == nil {
		log = logging.Nop
	}
	byExt := make(map[string]languageSpec)
	for _, spec := range registry {
		for _, ext := range spec.extensions {
			byExt[ext] = spec
		}
	}
	return &Parser{
		byExt:   byExt,
		parsers: make(map[string]*sitter.Parser),
		queries: make(map[string]*sitter.Query),
		log:     log,
	}
}

// SupportsExtension reports whether ext has a registered grammar.
func (p *Parser) SupportsExtension(ext string) bool {
	_, ok := p.byExt[ext]
	return ok
}

// LanguageName returns the registry name for ext (e.g. "typescript"), or
// "" if unregistered.
func (p *Parser) LanguageName(ext string) string {
	return p.byExt[ext].name
}

// ensureLoaded lazily constructs the parser/query pair for ext.
func (p *Parser) ensureLoaded(ext string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.parsers[ext]; ok {
		return nil
	}

	spec, ok := p.byExt[ext]
	if !ok {
		return fmt.Errorf("parsing: no grammar registered for extension %q", ext)
	}

	languagePtr := spec.language()
	language := sitter.NewLanguage(languagePtr)
	parser := sitter.NewParser()
	if err := parser.SetLanguage(language); err != nil {
		return fmt.Errorf("parsing: SetLanguage(%s): %w", spec.name, err)
	}
	p.parsers[ext] = parser

	query, _ := sitter.NewQuery(language, spec.query)
	// The tree-sitter Go binding can return a typed-nil error on success;
	// nil-check the query itself rather than the error.
	if query != nil {
		p.queries[ext] = query
	} else {
		p.log.Warnf("parsing: query compilation failed for %s, captures will be empty", spec.name)
	}

	return nil
}

// Parse parses content as the language registered for ext, returning the
// resulting tree. The caller owns the returned tree and must call
// tree.Close() when done. A tree-sitter parser instance is not safe for
// concurrent use, so the lock is held across the parse; callers that
// fan out across files serialize here.
func (p *Parser) Parse(ext string, content []byte) (*sitter.Tree, error) {
	if err := p.ensureLoaded(ext); err != nil {
		return nil, err
	}

	// Tree-sitter's C library can mutate the input buffer; copy once here
	// so callers can safely reuse or cache their original content slice.
	buf := make([]byte, len(content))
	copy(buf, content)

	p.mu.Lock()
	parser := p.parsers[ext]
	tree := parser.Parse(buf, nil)
	p.mu.Unlock()

	if tree == nil {
		return nil, fmt.Errorf("parsing: parse of %d bytes as %s produced a nil tree", len(content), ext)
	}
	return tree, nil
}

// Query returns the capture query compiled for ext, or nil if none
// compiled (either unregistered or compilation failed).
func (p *Parser) Query(ext string) *sitter.Query {
	if err := p.ensureLoaded(ext); err != nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries[ext]
}

// Close releases every loaded parser and query.
func (p *Parser) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, parser := range p.parsers {
		parser.Close()
	}
	for _, query := range p.queries {
		query.Close()
	}
}
