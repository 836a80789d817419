/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/pages"
	"goformbuilder/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores the derived catalog under the storage root.
	IndexDirName  = ".gfb"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the catalog schema. Bump it and add a step to
	// runMigrations for every schema change.
	schemaVersion = 2

	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// IndexPath returns the full path to the catalog database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures the catalog exists at .gfb/index.sqlite, enables WAL
// and brings the schema up to date.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create .gfb dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .gfb dir: %w", err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can upgrade it
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureIndexSchema creates the current catalog schema on a fresh database.
// Tables that already exist are left for runMigrations.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS forms (
			id            TEXT    PRIMARY KEY,
			title         TEXT    NOT NULL,
			description   TEXT    NOT NULL DEFAULT '',
			element_count INTEGER NOT NULL,
			page_count    INTEGER NOT NULL DEFAULT 0,
			updated_at    TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS fields (
			form_id    TEXT    NOT NULL,
			element_id TEXT    NOT NULL,
			position   INTEGER NOT NULL,
			type       TEXT    NOT NULL,
			label      TEXT    NOT NULL DEFAULT '',
			required   INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(form_id, element_id),
			FOREIGN KEY(form_id) REFERENCES forms(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS revisions (
			id      INTEGER PRIMARY KEY,
			form_id TEXT    NOT NULL,
			ts      TEXT    NOT NULL,
			blob    BLOB    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_revisions_form ON revisions(form_id, id);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 catalogs predate page counts and label search
			has, err := hasColumn(ctx, db, "forms", "page_count")
			if err != nil {
				return fmt.Errorf("migration %d: %w", next, err)
			}
			if !has {
				stmts = append(stmts, `ALTER TABLE forms ADD COLUMN page_count INTEGER NOT NULL DEFAULT 0;`)
			}
			stmts = append(stmts, `CREATE INDEX IF NOT EXISTS idx_fields_label ON fields(label);`)
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	// fresh catalogs skip the migration steps
	if _, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_fields_label ON fields(label);`); err != nil {
		return fmt.Errorf("ensure label index: %w", err)
	}
	return nil
}

func hasColumn(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s);", table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// openCatalog opens the catalog for s. A catalog that cannot be opened or
// fails quick_check is backed up, removed and rebuilt from the documents. An
// empty catalog next to existing documents is populated.
func openCatalog(ctx context.Context, s *Store) (*sql.DB, error) {
	path := IndexPath(s.Root)
	db, err := InitOrOpenIndex(s.Root)
	if err == nil && !healthy(ctx, db) {
		_ = db.Close()
		err = errors.New("quick_check failed")
	}
	if err != nil {
		s.log.Warn("catalog unusable, rebuilding", slog.Any("err", err))
		backupIndexFile(path)
		removeIndexFiles(path)
		if db, err = InitOrOpenIndex(s.Root); err != nil {
			return nil, fmt.Errorf("reopen catalog: %w", err)
		}
	}
	var cnt int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM forms;`).Scan(&cnt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("count forms: %w", err)
	}
	if cnt == 0 {
		s.db = db
		if n, err := s.Reindex(ctx); err != nil {
			s.log.Warn("initial reindex failed", slog.Any("err", err))
		} else if n > 0 {
			s.log.Info("catalog rebuilt", slog.Int("forms", n))
		}
	}
	return db, nil
}

func healthy(ctx context.Context, db *sql.DB) bool {
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(chk), "ok")
}

// backupIndexFile copies the catalog into a timestamped backup in .gfb/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format(backupStamp)))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

func removeIndexFiles(indexPath string) {
	for _, p := range []string{indexPath, indexPath + "-wal", indexPath + "-shm"} {
		_ = os.Remove(p)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertForm(ctx context.Context, tx execer, id string, doc form.Document, updated time.Time) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO forms(id, title, description, element_count, page_count, updated_at)
		VALUES(?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET title=excluded.title, description=excluded.description,
			element_count=excluded.element_count, page_count=excluded.page_count, updated_at=excluded.updated_at;`,
		id, doc.Title, doc.Description, len(doc.Elements), len(pages.Project(doc.Elements)), updated.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("upsert form: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM fields WHERE form_id=?;`, id); err != nil {
		return fmt.Errorf("clear fields: %w", err)
	}
	for i, el := range doc.Elements {
		label := el.Label
		if label == "" {
			label = el.Content
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO fields(form_id, element_id, position, type, label, required) VALUES(?,?,?,?,?,?);`,
			id, el.ID, i, string(el.Type), label, el.Required); err != nil {
			return fmt.Errorf("insert field: %w", err)
		}
	}
	return nil
}

// index records the saved document in the catalog and appends a revision.
func (s *Store) index(ctx context.Context, id string, doc form.Document, data []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	now := s.now()
	if err := upsertForm(ctx, tx, id, doc, now); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, insertRevisionSQL, id, now.UTC().Format(tsLayout), data); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert revision: %w", err)
	}
	return tx.Commit()
}

func (s *Store) unindex(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id=?;`, id); err != nil {
		return fmt.Errorf("unindex form: %w", err)
	}
	// fields follow via ON DELETE CASCADE; be explicit in case foreign keys are off
	if _, err := s.db.ExecContext(ctx, `DELETE FROM fields WHERE form_id=?;`, id); err != nil {
		return fmt.Errorf("unindex fields: %w", err)
	}
	return nil
}

// Reindex replaces the forms and fields tables with the documents currently
// on disk. Revisions are kept. It returns the number of indexed forms.
func (s *Store) Reindex(ctx context.Context) (int, error) {
	dir := filepath.Join(s.Root, FormsDirName)
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read forms dir: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{`DELETE FROM fields;`, `DELETE FROM forms;`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("clear catalog: %w", err)
		}
	}
	n := 0
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, formExt) || strings.HasPrefix(name, ".") {
			continue
		}
		id := strings.TrimSuffix(name, formExt)
		doc, err := readDocument(filepath.Join(dir, name))
		if err != nil {
			s.log.Warn("skip unreadable form", slog.String("form", id), slog.Any("err", err))
			continue
		}
		mod := s.now()
		if fi, err := e.Info(); err == nil {
			mod = fi.ModTime()
		}
		if err := upsertForm(ctx, tx, id, doc, mod); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}

// List returns catalog rows, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, element_count, page_count, updated_at FROM forms ORDER BY updated_at DESC, id;`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []Summary
	for rows.Next() {
		var sm Summary
		var ts string
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Description, &sm.Elements, &sm.Pages, &ts); err != nil {
			return nil, err
		}
		sm.UpdatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, sm)
	}
	return out, rows.Err()
}

// FieldHit is one element matched by SearchFields.
type FieldHit struct {
	FormID    string
	FormTitle string
	ElementID string
	Position  int
	Type      form.Kind
	Label     string
}

// SearchFields finds elements whose label (or content, for content blocks)
// contains q, case-insensitively for ASCII.
func (s *Store) SearchFields(ctx context.Context, q string) ([]FieldHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	pattern := "%" + likeEscaper.Replace(q) + "%"
	rows, err := s.db.QueryContext(ctx, `SELECT f.form_id, fo.title, f.element_id, f.position, f.type, f.label
		FROM fields f JOIN forms fo ON fo.id = f.form_id
		WHERE f.label LIKE ? ESCAPE '\'
		ORDER BY fo.title, f.form_id, f.position;`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search fields: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []FieldHit
	for rows.Next() {
		var h FieldHit
		var typ string
		if err := rows.Scan(&h.FormID, &h.FormTitle, &h.ElementID, &h.Position, &typ, &h.Label); err != nil {
			return nil, err
		}
		h.Type = form.Kind(typ)
		out = append(out, h)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
