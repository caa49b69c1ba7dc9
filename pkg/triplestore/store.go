package triplestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotExist is returned by Open when createIfMissing is false and the
// store path does not already contain a database file.
var ErrNotExist = errors.New("triplestore: store does not exist")

// Store is a single session's durable RDF triple store, backed by a
// SQLite database file under its own directory.
type Store struct {
	dir string
	db  *sql.DB
}

// Open opens (or creates) the triple store rooted at dir. dir is expected
// to already have been validated by the caller (session store manager) to
// be safely contained within its configured base path.
func Open(dir string, createIfMissing bool) (*Store, error) {
	dbPath := filepath.Join(dir, "store.db")

	if !createIfMissing {
		if _, err := os.Stat(dbPath); err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotExist
			}
			return nil, fmt.Errorf("triplestore: stat store: %w", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("triplestore: create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("triplestore: open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("triplestore: connect: %w", err)
	}

	s := &Store{dir: dir, db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("triplestore: init schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS triples (
		subject     TEXT NOT NULL,
		predicate   TEXT NOT NULL,
		object      TEXT NOT NULL,
		object_kind TEXT NOT NULL,
		datatype    TEXT NOT NULL DEFAULT '',
		lang        TEXT NOT NULL DEFAULT '',
		graph       TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_triples_subject   ON triples(subject);
	CREATE INDEX IF NOT EXISTS idx_triples_predicate ON triples(predicate);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_triples_spo ON triples(subject, predicate, object, graph);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory this store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Health reports whether the store can still serve a trivial round-trip.
func (s *Store) Health(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// retryOnBusy retries a mutating operation a bounded number of times if
// SQLite reports the database as locked by a concurrent writer.
func (s *Store) retryOnBusy(op func() error) error {
	var err error
	for i := 0; i < 5; i++ {
		err = op()
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "locked") && !strings.Contains(err.Error(), "busy") {
			return err
		}
		time.Sleep(time.Duration(10*(1<<uint(i))) * time.Millisecond)
	}
	return fmt.Errorf("operation failed after retries: %w", err)
}

// InsertTriples persists triples, ignoring exact (s,p,o,g) duplicates.
func (s *Store) InsertTriples(ctx context.Context, triples []Triple) error {
	if len(triples) == 0 {
		return nil
	}
	return s.retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR IGNORE INTO triples
				(subject, predicate, object, object_kind, datatype, lang, graph)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, t := range triples {
			if _, err := stmt.ExecContext(ctx, t.Subject, t.Predicate, t.Object, string(t.ObjectKind), t.Datatype, t.Lang, t.Graph); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// DeleteTriples removes every stored triple matching pattern, where an
// empty field acts as a wildcard for that position. It returns the number
// of rows removed.
func (s *Store) DeleteTriples(ctx context.Context, pattern Triple) (int, error) {
	clauses := []string{}
	args := []any{}
	if pattern.Subject != "" {
		clauses = append(clauses, "subject = ?")
		args = append(args, pattern.Subject)
	}
	if pattern.Predicate != "" {
		clauses = append(clauses, "predicate = ?")
		args = append(args, pattern.Predicate)
	}
	if pattern.Object != "" {
		clauses = append(clauses, "object = ?")
		args = append(args, pattern.Object)
	}
	if pattern.Graph != "" {
		clauses = append(clauses, "graph = ?")
		args = append(args, pattern.Graph)
	}

	query := "DELETE FROM triples"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	var affected int64
	err := s.retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return int(affected), err
}

// TriplesForSubject returns every triple with the given subject, used by
// the memory adapter to reconstruct a full record from its id without
// composing a SPARQL query for every field.
func (s *Store) TriplesForSubject(ctx context.Context, subject string) ([]Triple, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT subject, predicate, object, object_kind, datatype, lang, graph FROM triples WHERE subject = ?", subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Triple
	for rows.Next() {
		var t Triple
		var kind string
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object, &kind, &t.Datatype, &t.Lang, &t.Graph); err != nil {
			return nil, err
		}
		t.ObjectKind = TermKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTriplesWithSubjectPrefix removes every triple whose subject starts
// with prefix, used by the ontology loader to purge its namespace before a
// reload.
func (s *Store) DeleteTriplesWithSubjectPrefix(ctx context.Context, prefix string) (int, error) {
	var affected int64
	err := s.retryOnBusy(func() error {
		res, err := s.db.ExecContext(ctx, "DELETE FROM triples WHERE subject LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return int(affected), err
}

// LoadTurtleFile parses a Turtle document from disk and inserts its
// triples, returning the number of triples inserted.
func (s *Store) LoadTurtleFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("triplestore: read ontology document %s: %w", path, err)
	}
	triples, err := ParseTurtle(string(data))
	if err != nil {
		return 0, fmt.Errorf("triplestore: parse ontology document %s: %w", path, err)
	}
	if err := s.InsertTriples(ctx, triples); err != nil {
		return 0, fmt.Errorf("triplestore: load ontology document %s: %w", path, err)
	}
	return len(triples), nil
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// AllTriples loads the full triple set for in-memory SPARQL evaluation.
// Per-session stores are expected to stay small (spec documents the O(n)
// scan cost for graph-engine scans), so a full scan on every query is an
// acceptable tradeoff for a correct, simple evaluator.
func (s *Store) AllTriples(ctx context.Context) ([]Triple, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT subject, predicate, object, object_kind, datatype, lang, graph FROM triples")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Triple
	for rows.Next() {
		var t Triple
		var kind string
		if err := rows.Scan(&t.Subject, &t.Predicate, &t.Object, &kind, &t.Datatype, &t.Lang, &t.Graph); err != nil {
			return nil, err
		}
		t.ObjectKind = TermKind(kind)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Stats computes store-wide aggregate counts directly in SQL.
func (s *Store) Stats(ctx context.Context) (*GraphStats, error) {
	gs := &GraphStats{ByType: map[string]int{}, ByConfidence: map[string]int{}}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM triples").Scan(&gs.TotalTriples); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT subject) FROM triples").Scan(&gs.DistinctSubjects); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT predicate) FROM triples").Scan(&gs.DistinctPredicates); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT object) FROM triples").Scan(&gs.DistinctObjects); err != nil {
		return nil, err
	}
	return gs, nil
}
