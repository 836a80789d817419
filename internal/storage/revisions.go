/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"fmt"
	"time"

	"goformbuilder/internal/form"
)

// language=SQL
// dialect=SQLite
const insertRevisionSQL = `INSERT INTO revisions(form_id, ts, blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const listRevisionsSQL = `SELECT id, ts, blob FROM revisions WHERE form_id = ? ORDER BY id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const selectRevisionSQL = `SELECT ts, blob FROM revisions WHERE form_id = ? AND id = ?`

// language=SQL
// dialect=SQLite
const pruneRevisionsSQL = `DELETE FROM revisions WHERE form_id = ? AND id NOT IN (
	SELECT id FROM revisions WHERE form_id = ? ORDER BY id DESC LIMIT ?
)`

// Revision is one saved version of a form.
type Revision struct {
	ID       int64
	TS       time.Time
	Document form.Document
}

// ListRevisions returns up to limit most recent revisions of a form, newest first.
func (s *Store) ListRevisions(ctx context.Context, id string, limit int) ([]Revision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listRevisionsSQL, id, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Revision
	for rows.Next() {
		var (
			rev  Revision
			ts   string
			blob []byte
		)
		if err := rows.Scan(&rev.ID, &ts, &blob); err != nil {
			return nil, err
		}
		rev.TS, _ = time.Parse(tsLayout, ts)
		if rev.Document, err = decodeDocument(blob); err != nil {
			return nil, fmt.Errorf("revision %d: %w", rev.ID, err)
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// Revision loads one revision by its id.
func (s *Store) Revision(ctx context.Context, formID string, revID int64) (Revision, error) {
	var (
		ts   string
		blob []byte
	)
	if err := s.db.QueryRowContext(ctx, selectRevisionSQL, formID, revID).Scan(&ts, &blob); err != nil {
		return Revision{}, fmt.Errorf("%w: revision %d of %s", ErrNotFound, revID, formID)
	}
	doc, err := decodeDocument(blob)
	if err != nil {
		return Revision{}, err
	}
	rev := Revision{ID: revID, Document: doc}
	rev.TS, _ = time.Parse(tsLayout, ts)
	return rev, nil
}

// PruneRevisions keeps at most keepLast revisions for the form and deletes older ones.
func (s *Store) PruneRevisions(ctx context.Context, id string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneRevisionsSQL, id, id, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
