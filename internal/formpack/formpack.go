/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package formpack moves forms between stores as a single zip archive.
// An archive holds forms/<id>.json documents plus a human-readable manifest.
package formpack

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/storage"
	"goformbuilder/internal/version"
)

const (
	manifestName = "formpack.manifest.txt"
	formsDir     = "forms/"
	maxEntrySize = 4 << 20
)

// Source is what Export reads from.
type Source interface {
	List(ctx context.Context) ([]storage.Summary, error)
	Load(ctx context.Context, id string) (form.Document, error)
}

// Target is what Install writes to. Update must create missing ids.
type Target interface {
	Load(ctx context.Context, id string) (form.Document, error)
	Update(ctx context.Context, id string, doc form.Document) error
}

// Export writes the given forms (all forms when ids is empty) to destZip.
// It returns the number of forms written.
func Export(ctx context.Context, src Source, destZip string, ids ...string) (int, error) {
	l := applog.WithOperation(applog.WithComponent("formpack"), "export").With(slog.String("zip", destZip))
	if strings.TrimSpace(destZip) == "" {
		return 0, errors.New("destination path is required")
	}
	if len(ids) == 0 {
		list, err := src.List(ctx)
		if err != nil {
			return 0, fmt.Errorf("list forms: %w", err)
		}
		for _, s := range list {
			ids = append(ids, s.ID)
		}
	}

	if err := os.MkdirAll(filepath.Dir(destZip), 0o755); err != nil {
		return 0, fmt.Errorf("ensure zip dir: %w", err)
	}
	tmp := destZip + ".tmp"
	zf, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("create zip: %w", err)
	}
	defer func() { _ = os.Remove(tmp) }()

	zw := zip.NewWriter(zf)
	n, werr := writeForms(ctx, zw, src, ids)
	if err := zw.Close(); werr == nil {
		werr = err
	}
	if err := zf.Close(); werr == nil {
		werr = err
	}
	if werr != nil {
		l.Error("pack failed", slog.Any("err", werr))
		return 0, werr
	}
	if err := os.Rename(tmp, destZip); err != nil {
		return 0, fmt.Errorf("finalize zip: %w", err)
	}
	l.Info("form pack exported", slog.Int("forms", n))
	return n, nil
}

func writeForms(ctx context.Context, zw *zip.Writer, src Source, ids []string) (int, error) {
	var manifest strings.Builder
	fmt.Fprintf(&manifest, "Go Form Builder form pack\nCreated: %s\nVersion: %s\n\n", time.Now().UTC().Format(time.RFC3339), version.String())

	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		doc, err := src.Load(ctx, id)
		if err != nil {
			return n, fmt.Errorf("load %s: %w", id, err)
		}
		if doc.Elements == nil {
			doc.Elements = []form.Element{}
		}
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return n, fmt.Errorf("encode %s: %w", id, err)
		}
		w, err := zw.Create(formsDir + id + ".json")
		if err != nil {
			return n, err
		}
		if _, err := w.Write(data); err != nil {
			return n, err
		}
		fmt.Fprintf(&manifest, "%s  %s (%d elements)\n", id, doc.Title, len(doc.Elements))
		n++
	}

	w, err := zw.Create(manifestName)
	if err != nil {
		return n, fmt.Errorf("add manifest: %w", err)
	}
	if _, err := io.WriteString(w, manifest.String()); err != nil {
		return n, fmt.Errorf("write manifest: %w", err)
	}
	return n, nil
}

// Result reports what Install did with each archived form.
type Result struct {
	Installed []string
	Skipped   []string // id already present in the target
	Rejected  []string // entry failed validation
}

// Install copies every archived form into dst. Existing ids are never
// overwritten and invalid documents are rejected one by one.
func Install(ctx context.Context, dst Target, packZip string) (Result, error) {
	l := applog.WithOperation(applog.WithComponent("formpack"), "install").With(slog.String("zip", packZip))
	var res Result
	r, err := zip.OpenReader(packZip)
	if err != nil {
		return res, fmt.Errorf("open pack: %w", err)
	}
	defer func() { _ = r.Close() }()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		id, ok := entryID(f.Name)
		if !ok {
			if f.Name != manifestName && !f.FileInfo().IsDir() {
				l.Warn("skip foreign entry", slog.String("entry", f.Name))
			}
			continue
		}
		doc, err := readEntry(f)
		if err == nil && !validID(id) {
			err = fmt.Errorf("invalid form id %q", id)
		}
		if err != nil {
			l.Warn("reject entry", slog.String("entry", f.Name), slog.Any("err", err))
			res.Rejected = append(res.Rejected, id)
			continue
		}
		_, err = dst.Load(ctx, id)
		switch {
		case err == nil:
			l.Warn("skip existing form", slog.String("id", id))
			res.Skipped = append(res.Skipped, id)
			continue
		case !errors.Is(err, storage.ErrNotFound):
			return res, fmt.Errorf("check %s: %w", id, err)
		}
		if err := dst.Update(ctx, id, doc); err != nil {
			return res, fmt.Errorf("install %s: %w", id, err)
		}
		res.Installed = append(res.Installed, id)
	}
	l.Info("form pack installed", slog.Int("installed", len(res.Installed)),
		slog.Int("skipped", len(res.Skipped)), slog.Int("rejected", len(res.Rejected)))
	return res, nil
}

func entryID(name string) (string, bool) {
	if !strings.HasPrefix(name, formsDir) || path.Ext(name) != ".json" {
		return "", false
	}
	id := strings.TrimSuffix(strings.TrimPrefix(name, formsDir), ".json")
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", false
	}
	return id, true
}

func validID(id string) bool {
	for _, r := range id {
		if r != '-' && r != '_' && (r < '0' || r > '9') && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

func readEntry(f *zip.File) (form.Document, error) {
	rc, err := f.Open()
	if err != nil {
		return form.Document{}, err
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return form.Document{}, err
	}
	if len(data) > maxEntrySize {
		return form.Document{}, fmt.Errorf("entry larger than %d bytes", maxEntrySize)
	}
	if err := storage.Validate(data); err != nil {
		return form.Document{}, err
	}
	var doc form.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return form.Document{}, err
	}
	return doc, nil
}
