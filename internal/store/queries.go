package store

import (
	"database/sql"
	"encoding/json"

	"github.com/codelens-dev/codelens/internal/cerrors"
	"github.com/codelens-dev/codelens/internal/types"
)

// ReplaceSymbols atomically upserts a file's metadata row and replaces its
// symbol rows, leaving dependency rows untouched. The Symbol Index owns
// this write path; ReplaceDependencies owns the edge tables.
func (s *Store) ReplaceSymbols(path, language string, lastModified int64, symbols []types.Symbol) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "begin transaction", Underlying: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO files(path, last_modified, language) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET last_modified = excluded.last_modified, language = excluded.language`,
		path, lastModified, language,
	); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "upsert file", Underlying: err}
	}
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, path); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete symbols", Underlying: err}
	}

	insert, err := tx.Prepare(`
		INSERT INTO symbols(
			file_path, kind, name, def_kind, range_start, range_end, line, column,
			signature, doc, content, import_source, import_kind, alias, type_only,
			export_kind, export_source, modifiers, imported_names, exported_names, calls
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "prepare symbol insert", Underlying: err}
	}
	defer insert.Close()

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
		if _, err := insert.Exec(
			path, sym.Kind, sym.Name, sym.DefKind, sym.Range.Start, sym.Range.End, sym.Line, sym.Column,
			sym.Signature, sym.Doc, sym.Content, sym.ImportSource, sym.ImportKind, sym.Alias, typeOnly,
			sym.ExportKind, sym.ExportSource, modifiers, importedNames, exportedNames, calls,
		); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "insert symbol", Underlying: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "commit transaction", Underlying: err}
	}
	return nil
}

// ReplaceDependencies atomically replaces the outgoing edges and unresolved
// imports recorded for source.
func (s *Store) ReplaceDependencies(source string, edges []types.DependencyEdge, unresolved []types.UnresolvedImport) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "begin transaction", Underlying: err}
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM dependencies WHERE source = ?`, source); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete dependencies", Underlying: err}
	}
	if _, err := tx.Exec(`DELETE FROM unresolved_imports WHERE source = ?`, source); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete unresolved", Underlying: err}
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
			source, edge.Target, edge.Kind, edge.Meta.What, edge.Meta.Line, edge.Meta.Specifier, edge.Meta.Strategy,
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
		if _, err := insertUnresolved.Exec(source, u.Specifier, u.Error, u.Meta.Line); err != nil {
			return &cerrors.DatabaseFailureError{Operation: "insert unresolved", Underlying: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "commit transaction", Underlying: err}
	}
	return nil
}

// ClearDependencies drops every edge and unresolved import recorded for
// source without touching its symbols.
func (s *Store) ClearDependencies(source string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "begin transaction", Underlying: err}
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM dependencies WHERE source = ?`, source); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete dependencies", Underlying: err}
	}
	if _, err := tx.Exec(`DELETE FROM unresolved_imports WHERE source = ?`, source); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete unresolved", Underlying: err}
	}
	if err := tx.Commit(); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "commit transaction", Underlying: err}
	}
	return nil
}

// AllFiles returns every file row without its symbols, ordered by path.
func (s *Store) AllFiles() ([]types.FileRecord, error) {
	rows, err := s.db.Query(`SELECT path, last_modified, language FROM files ORDER BY path`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query files", Underlying: err}
	}
	defer rows.Close()

	var out []types.FileRecord
	for rows.Next() {
		var rec types.FileRecord
		if err := rows.Scan(&rec.Path, &rec.LastModified, &rec.Language); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan file", Underlying: err}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// AllEdges returns every resolved dependency edge in the index.
func (s *Store) AllEdges() ([]types.DependencyEdge, error) {
	rows, err := s.db.Query(`SELECT source, target, kind, what, line, specifier, strategy FROM dependencies`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query all edges", Underlying: err}
	}
	defer rows.Close()
	return scanEdges(rows)
}

// FilesWithUnresolved returns the distinct source paths that have at least
// one unresolved import, the work list for rebuild_unresolved.
func (s *Store) FilesWithUnresolved() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT source FROM unresolved_imports ORDER BY source`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query unresolved sources", Underlying: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan unresolved source", Underlying: err}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UnresolvedCountsByFile returns, per source path, how many imports are
// currently unresolved.
func (s *Store) UnresolvedCountsByFile() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT source, COUNT(*) FROM unresolved_imports GROUP BY source`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "count unresolved by file", Underlying: err}
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan unresolved count", Underlying: err}
		}
		out[p] = n
	}
	return out, rows.Err()
}

// DeleteUnderPrefix drops every file whose relative path starts with
// prefix (directory invalidation). Dependent rows cascade.
func (s *Store) DeleteUnderPrefix(prefix string) error {
	if _, err := s.db.Exec(`DELETE FROM files WHERE path = ? OR path LIKE ?`, prefix, prefix+"/%"); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "delete under prefix", Underlying: err}
	}
	return nil
}

// SetMetadata writes one metadata key.
func (s *Store) SetMetadata(key, value string) error {
	if _, err := s.db.Exec(
		`INSERT INTO metadata(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value,
	); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "set metadata", Underlying: err}
	}
	return nil
}

// GetMetadata reads one metadata key, reporting whether it exists.
func (s *Store) GetMetadata(key string) (string, bool, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, &cerrors.DatabaseFailureError{Operation: "get metadata", Underlying: err}
	}
	return v, true, nil
}

// FileTrigrams is one persisted trigram row: a file's term set and its
// document length in terms.
type FileTrigrams struct {
	Path   string
	Terms  []string
	DocLen int
}

// ReplaceTrigrams overwrites the persisted trigram term set for path.
func (s *Store) ReplaceTrigrams(path string, terms []string, docLen int) error {
	data, err := json.Marshal(terms)
	if err != nil {
		return &cerrors.DatabaseFailureError{Operation: "marshal trigrams", Underlying: err}
	}
	if _, err := s.db.Exec(
		`INSERT INTO trigrams(path, terms, doc_len) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET terms = excluded.terms, doc_len = excluded.doc_len`,
		path, string(data), docLen,
	); err != nil {
		return &cerrors.DatabaseFailureError{Operation: "replace trigrams", Underlying: err}
	}
	return nil
}

// AllTrigrams streams every persisted trigram row, from which the
// in-memory posting lists rebuild idempotently at startup.
func (s *Store) AllTrigrams() ([]FileTrigrams, error) {
	rows, err := s.db.Query(`SELECT path, terms, doc_len FROM trigrams`)
	if err != nil {
		return nil, &cerrors.DatabaseFailureError{Operation: "query trigrams", Underlying: err}
	}
	defer rows.Close()

	var out []FileTrigrams
	for rows.Next() {
		var ft FileTrigrams
		var raw string
		if err := rows.Scan(&ft.Path, &raw, &ft.DocLen); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "scan trigrams", Underlying: err}
		}
		if err := json.Unmarshal([]byte(raw), &ft.Terms); err != nil {
			return nil, &cerrors.DatabaseFailureError{Operation: "unmarshal trigrams", Underlying: err}
		}
		out = append(out, ft)
	}
	return out, rows.Err()
}
