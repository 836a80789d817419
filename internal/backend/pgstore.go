/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/pages"
	"goformbuilder/internal/storage"
)

// PGStore keeps form documents in Postgres. Every write bumps the form's
// version and appends a revision row.
type PGStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPGStore wraps an open, migrated database.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, log: applog.WithComponent("backend")}
}

// OpenPGStore connects, migrates and returns a store that owns the connection.
func OpenPGStore(ctx context.Context, dsn string) (*PGStore, error) {
	db, err := OpenPG(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return NewPGStore(db), nil
}

func (s *PGStore) Close() error { return s.db.Close() }

// DB exposes the underlying pool for health checks.
func (s *PGStore) DB() *sql.DB { return s.db }

func encode(doc form.Document) ([]byte, error) {
	doc = doc.Clone()
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal form: %w", err)
	}
	if err := storage.Validate(data); err != nil {
		return nil, err
	}
	return data, nil
}

// Save inserts doc under a new id.
func (s *PGStore) Save(ctx context.Context, doc form.Document) (string, error) {
	id := uuid.NewString()
	if err := s.Update(ctx, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Update upserts doc under id.
func (s *PGStore) Update(ctx context.Context, id string, doc form.Document) error {
	data, err := encode(doc)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	var version int64
	err = tx.QueryRowContext(ctx, `INSERT INTO forms(id, title, description, document, element_count)
		VALUES($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description,
			document = EXCLUDED.document, element_count = EXCLUDED.element_count,
			version = forms.version + 1, updated_at = now()
		RETURNING version`,
		id, doc.Title, doc.Description, string(data), len(doc.Elements)).Scan(&version)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert form: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO form_revisions(form_id, version, document) VALUES($1, $2, $3::jsonb)`, id, version, string(data)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.log.Debug("form stored", slog.String("form", id), slog.Int64("version", version))
	return nil
}

// Load returns the current document for id.
func (s *PGStore) Load(ctx context.Context, id string) (form.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT document FROM forms WHERE id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return form.Document{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return form.Document{}, fmt.Errorf("select form: %w", err)
	}
	var doc form.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return form.Document{}, fmt.Errorf("%w: %v", storage.ErrInvalidDocument, err)
	}
	if doc.Elements == nil {
		doc.Elements = []form.Element{}
	}
	return doc, nil
}

// List returns summaries, most recently updated first.
func (s *PGStore) List(ctx context.Context) ([]storage.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, description, document, element_count, updated_at FROM forms ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.Summary
	for rows.Next() {
		var (
			sm  storage.Summary
			raw []byte
		)
		if err := rows.Scan(&sm.ID, &sm.Title, &sm.Description, &raw, &sm.Elements, &sm.UpdatedAt); err != nil {
			return nil, err
		}
		var doc form.Document
		if err := json.Unmarshal(raw, &doc); err == nil {
			sm.Pages = len(pages.Project(doc.Elements))
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes the form and, through the foreign key, its revisions.
func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM forms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete form: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

// Versions lists stored revision numbers for id, newest first.
func (s *PGStore) Versions(ctx context.Context, id string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM form_revisions WHERE form_id = $1 ORDER BY version DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
