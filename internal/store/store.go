// Package store is the index database: the persisted tier backing the
// symbol index and dependency graph, keyed by relative file path. One
// *sql.DB opened against modernc.org/sqlite (pure Go, no cgo),
// sequential numbered migrations with the applied version recorded in
// metadata, and database/sql's prepared-statement/transaction idiom for
// writes.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/codelens-dev/codelens/internal/cerrors"
	"github.com/codelens-dev/codelens/internal/types"
)

// migrations apply in order; the highest applied index is recorded in
// metadata under schemaVersionKey so later releases can append new
// entries without re-running old ones.
var migrations = []string{
	schemaV1,
}

const schemaVersionKey = "schema_version"

const schemaV1 = `
CREATE TABLE IF NOT EXISTS files (
	path          TEXT PRIMARY KEY,
	last_modified INTEGER NOT NULL,
	language      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS symbols (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	file_path      TEXT NOT NULL,
	kind           TEXT NOT NULL,
	name           TEXT NOT NULL,
	def_kind       TEXT,
	range_start    INTEGER NOT NULL,
	range_end      INTEGER NOT NULL,
	line           INTEGER NOT NULL,
	column         INTEGER NOT NULL,
	signature      TEXT,
	doc            TEXT,
	content        TEXT,
	import_source  TEXT,
	import_kind    TEXT,
	alias          TEXT,
	type_only      INTEGER NOT NULL DEFAULT 0,
	export_kind    TEXT,
	export_source  TEXT,
	modifiers      TEXT, -- JSON array
	imported_names TEXT, -- JSON array
	exported_names TEXT, -- JSON array
	calls          TEXT, -- JSON array of types.CallSite
	FOREIGN KEY (file_path) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);

CREATE TABLE IF NOT EXISTS dependencies (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source    TEXT NOT NULL,
	target    TEXT NOT NULL,
	kind      TEXT NOT NULL,
	what      TEXT,
	line      INTEGER,
	specifier TEXT,
	strategy  TEXT,
	FOREIGN KEY (source) REFERENCES files(path) ON DELETE CASCADE,
	UNIQUE(source, target, line, specifier)
);
CREATE INDEX IF NOT EXISTS idx_dependencies_source ON dependencies(source);
CREATE INDEX IF NOT EXISTS idx_dependencies_target ON dependencies(target);

CREATE TABLE IF NOT EXISTS unresolved_imports (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	source    TEXT NOT NULL,
	specifier TEXT NOT NULL,
	error     TEXT,
	line      INTEGER,
	FOREIGN KEY (source) REFERENCES files(path) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_unresolved_source ON unresolved_imports(source);

CREATE TABLE IF NOT EXISTS trigrams (
	path    TEXT PRIMARY KEY,
	terms   TEXT NOT NULL, -- JSON array of 3-grams
	doc_len INTEGER NOT NULL,
	FOREIGN KEY (path) REFERENCES files(path) ON DELETE CASCADE
);
`

// Store wraps a *sql.DB opened against one SQLite file.
type Store struct {
	db *sql.DB
}

// Open creates (if absent) and opens the index database at dbPath,
// applying the schema idempotently.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "open", Underlying: err}
	}
	// Single connection: writes serialize here (the single-writer rule)
	// and readers observe committed state without SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, &cerrors.DatabaseFailureError{Operation: "enable foreign keys", Underlying: err}
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, &cerrors.DatabaseFailureError{Operation: "set journal mode", Underlying: err}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS metadata (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "create metadata table", Underlying: err}
	}

	applied := 0
	var raw string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, schemaVersionKey).Scan(&raw)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return &cerrors.DatabaseFailureError{Operation: "read schema version", Underlying: err}
	default:
		applied, _ = strconv.Atoi(raw)
	}

	for version := applied; version < len(migrations); version++ {
		tx, err := s.db.Begin()
		if err != nil {
			return &cerrors.DatabaseFailureError{Operation: "begin migration", Underlying: err}
		}
		if _, err := tx.Exec(migrations[version]); err != nil {
			tx.Rollback()
			return &cerrors.DatabaseFailureError{Operation: fmt.Sprintf("apply migration %d", version+1), Underlying: err}
		}
		if _, err := tx.Exec(
			`INSERT INTO metadata(key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			schemaVersionKey, strconv.Itoa(version+1),
		); err != nil {
			tx.Rollback()
			return &cerrors.DatabaseFailureError{Operation: "record schema version", Underlying: err}
		}
		if err := tx.Commit(); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "commit migration", Underlying: err}
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertFile inserts or replaces a FileRecord's metadata row (not its
// symbols — ReplaceFileSymbols owns that single-writer transaction).
func (s *Store) UpsertFile(path, language string, lastModified int64) error {
	_, err := s.db.Exec(
		`INSERT INTO files(path, last_modified, language) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET last_modified = excluded.last_modified, language = excluded.language`,
		path, lastModified, language,
	)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "upsert file", Underlying: err}
	}
	return nil
}

// ReplaceFileSymbols atomically deletes all symbols/dependencies/unresolved
// rows for path and re-inserts the given sets, so a reparse never leaves
// stale rows for an edited file.
func (s *Store) ReplaceFileSymbols(path string, symbols []types.Symbol, edges []types.DependencyEdge, unresolved []types.UnresolvedImport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "begin transaction", Underlying: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete symbols", Underlying: err}
	}
	if _, err := tx.Exec(`DELETE FROM dependencies WHERE source = ?`, path); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete dependencies", Underlying: err}
	}
	if _, err := tx.Exec(`DELETE FROM unresolved_imports WHERE source = ?`, path); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete unresolved", Underlying: err}
	}

	insertSymbol, err := tx.Prepare(`
		INSERT INTO symbols(
			file_path, kind, name, def_kind, range_start, range_end, line, column,
			signature, doc, content, import_source, import_kind, alias, type_only,
			export_kind, export_source, modifiers, imported_names, exported_names, calls
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "prepare symbol insert", Underlying: err}
	}
	defer insertSymbol.Close()

	for _, sym := range symbols {
		typeOnly := 0
		if sym.TypeOnly {
			typeOnly = 1
		}
		modifiers, err := marshalJSON(sym.Modifiers)
		if err != nil {
			return &cerrors.DatabaseFailureError{Operation: "marshal modifiers", Underlying: err}
		}
		importedNames, err := marshalJSON(sym.ImportedNames)
		if err != nil {
			return &cerrors.DatabaseFailureError{Operation: "marshal imported names", Underlying: err}
		}
		exportedNames, err := marshalJSON(sym.ExportedNames)
		if err != nil {
			return &cerrors.DatabaseFailureError{Operation: "marshal exported names", Underlying: err}
		}
		calls, err := marshalJSON(sym.Calls)
		if err != nil {
			return &cerrors.DatabaseFailureError{Operation: "marshal calls", Underlying: err}
		}
		if _, err := insertSymbol.Exec(
			path, sym.Kind, sym.Name, sym.DefKind, sym.Range.Start, sym.Range.End, sym.Line, sym.Column,
			sym.Signature, sym.Doc, sym.Content, sym.ImportSource, sym.ImportKind, sym.Alias, typeOnly,
			sym.ExportKind, sym.ExportSource, modifiers, importedNames, exportedNames, calls,
		); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "insert symbol", Underlying: err}
		}
	}

	insertEdge, err := tx.Prepare(`
		INSERT OR IGNORE INTO dependencies(source, target, kind, what, line, specifier, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "prepare edge insert", Underlying: err}
	}
	defer insertEdge.Close()

	for _, edge := range edges {
		if _, err := insertEdge.Exec(
			edge.Source, edge.Target, edge.Kind, edge.Meta.What, edge.Meta.Line, edge.Meta.Specifier, edge.Meta.Strategy,
		); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "insert dependency", Underlying: err}
		}
	}

	insertUnresolved, err := tx.Prepare(`
		INSERT INTO unresolved_imports(source, specifier, error, line) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "prepare unresolved insert", Underlying: err}
	}
	defer insertUnresolved.Close()

	for _, u := range unresolved {
		if _, err := insertUnresolved.Exec(path, u.Specifier, u.Error, u.Meta.Line); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "insert unresolved", Underlying: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "commit transaction", Underlying: err}
	}
	return nil
}

// DeleteFile removes a file and every row that references it (symbols,
// dependencies, unresolved imports cascade via foreign keys).
func (s *Store) DeleteFile(path string) error {
	if _, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete file", Underlying: err}
	}
	return nil
}

// SymbolsForFile returns every symbol persisted for path.
func (s *Store) SymbolsForFile(path string) ([]types.Symbol, error) {
	rows, err := s.db.Query(`
		SELECT kind, name, def_kind, range_start, range_end, line, column, signature, doc, content,
		       import_source, import_kind, alias, type_only, export_kind, export_source,
		       modifiers, imported_names, exported_names, calls
		FROM symbols WHERE file_path = ?
	`, path)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query symbols for file", Underlying: err}
	}
	defer rows.Close()
	return scanSymbols(rows, path)
}

// AllSymbols returns every symbol in the store, optionally filtered by a
// substring match on name (SQL LIKE, so case-insensitive for ASCII; the
// caller layers smart-case and fuzzy matching on top).
func (s *Store) AllSymbols(nameFilter string) ([]types.Symbol, error) {
	var rows *sql.Rows
	var err error
	if nameFilter == "" {
		rows, err = s.db.Query(`
			SELECT file_path, kind, name, def_kind, range_start, range_end, line, column, signature, doc, content,
			       import_source, import_kind, alias, type_only, export_kind, export_source,
			       modifiers, imported_names, exported_names, calls
			FROM symbols
		`)
	} else {
		rows, err = s.db.Query(`
			SELECT file_path, kind, name, def_kind, range_start, range_end, line, column, signature, doc, content,
			       import_source, import_kind, alias, type_only, export_kind, export_source,
			       modifiers, imported_names, exported_names, calls
			FROM symbols WHERE name LIKE ?
		`, "%"+nameFilter+"%")
	}
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query all symbols", Underlying: err}
	}
	defer rows.Close()
	return scanSymbolsWithPath(rows)
}

func scanSymbols(rows *sql.Rows, path string) ([]types.Symbol, error) {
	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		var typeOnly int
		var modifiers, importedNames, exportedNames, calls sql.NullString
		sym.FilePath = path
		if err := rows.Scan(
			&sym.Kind, &sym.Name, &sym.DefKind, &sym.Range.Start, &sym.Range.End, &sym.Line, &sym.Column,
			&sym.Signature, &sym.Doc, &sym.Content, &sym.ImportSource, &sym.ImportKind, &sym.Alias, &typeOnly,
			&sym.ExportKind, &sym.ExportSource, &modifiers, &importedNames, &exportedNames, &calls,
		); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan symbol", Underlying: err}
		}
		sym.TypeOnly = typeOnly != 0
		if err := populateJSONFields(&sym, modifiers, importedNames, exportedNames, calls); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

func scanSymbolsWithPath(rows *sql.Rows) ([]types.Symbol, error) {
	var out []types.Symbol
	for rows.Next() {
		var sym types.Symbol
		var typeOnly int
		var modifiers, importedNames, exportedNames, calls sql.NullString
		if err := rows.Scan(
			&sym.FilePath, &sym.Kind, &sym.Name, &sym.DefKind, &sym.Range.Start, &sym.Range.End, &sym.Line, &sym.Column,
			&sym.Signature, &sym.Doc, &sym.Content, &sym.ImportSource, &sym.ImportKind, &sym.Alias, &typeOnly,
			&sym.ExportKind, &sym.ExportSource, &modifiers, &importedNames, &exportedNames, &calls,
		); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan symbol", Underlying: err}
		}
		sym.TypeOnly = typeOnly != 0
		if err := populateJSONFields(&sym, modifiers, importedNames, exportedNames, calls); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// marshalJSON encodes v as JSON, returning nil (SQL NULL) for an empty slice
// so rows without any modifiers/calls stay compact.
func marshalJSON(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case []types.CallSite:
		if len(val) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func populateJSONFields(sym *types.Symbol, modifiers, importedNames, exportedNames, calls sql.NullString) error {
	if modifiers.Valid {
		if err := json.Unmarshal([]byte(modifiers.String), &sym.Modifiers); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "unmarshal modifiers", Underlying: err}
		}
	}
	if importedNames.Valid {
		if err := json.Unmarshal([]byte(importedNames.String), &sym.ImportedNames); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "unmarshal imported names", Underlying: err}
		}
	}
	if exportedNames.Valid {
		if err := json.Unmarshal([]byte(exportedNames.String), &sym.ExportedNames); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "unmarshal exported names", Underlying: err}
		}
	}
	if calls.Valid {
		if err := json.Unmarshal([]byte(calls.String), &sym.Calls); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "unmarshal calls", Underlying: err}
		}
	}
	return nil
}

// Dependencies returns every outgoing edge recorded for source.
func (s *Store) Dependencies(source string) ([]types.DependencyEdge, error) {
	rows, err := s.db.Query(`
		SELECT source, target, kind, what, line, specifier, strategy FROM dependencies WHERE source = ?
	`, source)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query dependencies", Underlying: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// Importers returns every edge targeting target (the reverse index).
func (s *Store) Importers(target string) ([]types.DependencyEdge, error) {
	rows, err := s.db.Query(`
		SELECT source, target, kind, what, line, specifier, strategy FROM dependencies WHERE target = ?
	`, target)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query importers", Underlying: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]types.DependencyEdge, error) {
	var out []types.DependencyEdge
	for rows.Next() {
		var e types.DependencyEdge
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind, &e.Meta.What, &e.Meta.Line, &e.Meta.Specifier, &e.Meta.Strategy); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan dependency", Underlying: err}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UnresolvedImports returns every unresolved import recorded across the
// whole index (used by get_index_status and rebuild_unresolved).
func (s *Store) UnresolvedImports() ([]types.UnresolvedImport, error) {
	rows, err := s.db.Query(`SELECT source, specifier, error, line FROM unresolved_imports`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query unresolved", Underlying: err}
	}
	defer rows.Close()

	var out []types.UnresolvedImport
	for rows.Next() {
		var source string
		var u types.UnresolvedImport
		if err := rows.Scan(&source, &u.Specifier, &u.Error, &u.Meta.Line); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan unresolved", Underlying: err}
		}
		u.Meta.What = source
		out = append(out, u)
	}
	return out, rows.Err()
}

// FileCount returns the number of indexed files.
func (s *Store) FileCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&n); err != nil {
		return 0, &cerrors.DatabaseFailureError{Operation: "count files", Underlying: err}
	}
	return n, nil
}

// EdgeCount returns the number of resolved dependency edges.
func (s *Store) EdgeCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM dependencies`).Scan(&n); err != nil {
		return 0, &cerrors.DatabaseFailureError{Operation: "count dependencies", Underlying: err}
	}
	return n, nil
}

// UnresolvedCount returns the number of unresolved imports across the index.
func (s *Store) UnresolvedCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM unresolved_imports`).Scan(&n); err != nil {
		return 0, &cerrors.DatabaseFailureError{Operation: "count unresolved", Underlying: err}
	}
	return n, nil
}

// FileMTime returns the last_modified recorded for path, and whether a
// row exists at all.
func (s *Store) FileMTime(path string) (int64, bool, error) {
	var mtime int64
	err := s.db.QueryRow(`SELECT last_modified FROM files WHERE path = ?`, path).Scan(&mtime)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, &cerrors.DatabaseFailureError{Operation: "query file mtime", Underlying: err}
	}
	return mtime, true, nil
}
