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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
)

const (
	FormsDirName   = "forms"
	BackupsDirName = "backups"
	formExt        = ".json"

	// backupStamp is fixed width so backup names sort chronologically.
	backupStamp = "20060102-150405.000000000"
)

var (
	// ErrNotFound is returned when no document (or backup) exists for an id.
	ErrNotFound = errors.New("form not found")
	// ErrInvalidDocument wraps schema violations on save and load.
	ErrInvalidDocument = errors.New("invalid form document")
)

// Store persists form documents under a root directory and keeps the SQLite
// catalog in sync. It is safe for concurrent use.
type Store struct {
	Root string

	mu  sync.Mutex // serializes document writes
	db  *sql.DB
	log *slog.Logger
	now func() time.Time
}

// Open prepares root (creating the standard folders if needed) and opens the
// catalog. A corrupt catalog is backed up and rebuilt from the documents.
func Open(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	for _, d := range []string{FormsDirName, BackupsDirName} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	s := &Store{
		Root: root,
		log:  applog.WithComponent("storage").With(slog.String("root", root)),
		now:  time.Now,
	}
	db, err := openCatalog(context.Background(), s)
	if err != nil {
		return nil, err
	}
	s.db = db
	return s, nil
}

// Close releases the catalog.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// FormPath returns the document path for id.
func (s *Store) FormPath(id string) string {
	return filepath.Join(s.Root, FormsDirName, id+formExt)
}

// Summary is one catalog row.
type Summary struct {
	ID          string
	Title       string
	Description string
	Elements    int
	Pages       int
	UpdatedAt   time.Time
}

// Save stores doc under a newly generated id and returns it.
func (s *Store) Save(ctx context.Context, doc form.Document) (string, error) {
	id := uuid.NewString()
	if err := s.write(ctx, id, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Update overwrites the document stored under id, backing up the previous
// version first. A missing id is created.
func (s *Store) Update(ctx context.Context, id string, doc form.Document) error {
	if err := validateID(id); err != nil {
		return err
	}
	return s.write(ctx, id, doc)
}

func (s *Store) write(ctx context.Context, id string, doc form.Document) error {
	l := applog.WithOperation(s.log, "save").With(slog.String("form", id))
	doc = doc.Clone()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal form: %w", err)
	}
	data = append(data, '\n')
	if err := Validate(data); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.FormPath(id)
	if _, statErr := os.Stat(path); statErr == nil {
		bpath := filepath.Join(s.Root, BackupsDirName, fmt.Sprintf("%s%s.%s.bak", id, formExt, s.now().Format(backupStamp)))
		if cerr := copyFile(path, bpath); cerr != nil {
			return fmt.Errorf("backup current form: %w", cerr)
		}
	}
	if err := replaceFile(path, data); err != nil {
		return err
	}
	if err := s.index(ctx, id, doc, data); err != nil {
		// the catalog is derived; a failed update is repaired by Reindex
		l.Warn("catalog update failed", slog.Any("err", err))
	}
	l.Debug("form written", slog.Int("elements", len(doc.Elements)))
	return nil
}

// Load reads and validates the document stored under id. When the current
// file exists but is unreadable or invalid the latest backup is used instead.
// A missing file is ErrNotFound even when backups remain, so deleted forms
// stay deleted.
func (s *Store) Load(ctx context.Context, id string) (form.Document, error) {
	if err := validateID(id); err != nil {
		return form.Document{}, err
	}
	path := s.FormPath(id)
	doc, err := readDocument(path)
	if err == nil {
		return doc, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return form.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	bdoc, berr := s.openFromLatestBackup(id)
	if berr != nil {
		return form.Document{}, fmt.Errorf("open form: %w; backup attempt: %v", err, berr)
	}
	applog.WithOperation(s.log, "load").Warn("form restored from backup", slog.String("form", id), slog.Any("err", err))
	return bdoc, nil
}

// Delete removes the document and its catalog rows. Backups are kept.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.FormPath(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("delete form: %w", err)
	}
	return s.unindex(ctx, id)
}

// Updater overwrites a document under a known id.
type Updater interface {
	Update(ctx context.Context, id string, doc form.Document) error
}

// Bound is a persister that always writes to one id.
type Bound struct {
	store Updater
	id    string
}

// Bind returns a persister that overwrites id on every save.
func Bind(u Updater, id string) *Bound { return &Bound{store: u, id: id} }

func (b *Bound) Save(ctx context.Context, doc form.Document) (string, error) {
	if err := b.store.Update(ctx, b.id, doc); err != nil {
		return "", err
	}
	return b.id, nil
}

// AutosaveCrashSnapshot writes doc to <root>/backups/crash-<stamp>.json
// without validation so that whatever state existed is preserved.
func AutosaveCrashSnapshot(root string, doc form.Document) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("root path is required")
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal crash snapshot: %w", err)
	}
	bdir := filepath.Join(root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, "crash-"+time.Now().Format(backupStamp)+formExt)
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

func validateID(id string) error {
	if id == "" {
		return errors.New("form id is required")
	}
	for _, r := range id {
		ok := r == '-' || r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if !ok {
			return fmt.Errorf("invalid form id %q", id)
		}
	}
	return nil
}

func readDocument(path string) (form.Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return form.Document{}, err
	}
	return decodeDocument(b)
}

func decodeDocument(b []byte) (form.Document, error) {
	if err := Validate(b); err != nil {
		return form.Document{}, err
	}
	var doc form.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return form.Document{}, fmt.Errorf("parse form: %w", err)
	}
	if doc.Elements == nil {
		doc.Elements = []form.Element{}
	}
	return doc, nil
}

// replaceFile writes to a temp file in the same directory, then renames it over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if werr := writeFileSync(temp, data); werr != nil {
		return fmt.Errorf("write temp form: %w", werr)
	}
	// On Windows, replace by removing destination first if needed
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if rerr := os.Rename(temp, path); rerr != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace form: %w", rerr)
	}
	return nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// backupsFor lists the backups of id, oldest first.
func (s *Store) backupsFor(id string) ([]string, error) {
	bdir := filepath.Join(s.Root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	prefix := id + formExt + "."
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// openFromLatestBackup returns the newest backup of id that still validates.
func (s *Store) openFromLatestBackup(id string) (form.Document, error) {
	candidates, err := s.backupsFor(id)
	if err != nil {
		return form.Document{}, err
	}
	if len(candidates) == 0 {
		return form.Document{}, ErrNotFound
	}
	var lastErr error
	for i := len(candidates) - 1; i >= 0; i-- {
		doc, err := readDocument(candidates[i])
		if err == nil {
			return doc, nil
		}
		lastErr = err
	}
	return form.Document{}, fmt.Errorf("no usable backup: %w", lastErr)
}
