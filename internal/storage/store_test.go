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
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"goformbuilder/internal/form"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDoc() form.Document {
	return form.Document{
		Title:       "Signup",
		Description: "Join the club",
		Elements: []form.Element{
			{ID: "e1", Type: form.KindShortText, Label: "Name", Required: true},
			{ID: "e2", Type: form.KindSelect, Label: "Plan", Options: []string{"Free", "Pro"}},
			{ID: "e3", Type: form.KindPageBreak},
			{ID: "e4", Type: form.KindRange, Label: "Age", Validation: &form.Validation{Min: 18, Max: 99, Step: 1}},
			{ID: "e5", Type: form.KindThankYou, Content: "Thanks!"},
		},
		Style: form.Style{"primaryColor": "#336699"},
	}
}

func TestOpenCreatesStructure(t *testing.T) {
	s := openStore(t)
	for _, d := range []string{FormsDirName, BackupsDirName, IndexDirName} {
		p := filepath.Join(s.Root, d)
		if fi, err := os.Stat(p); err != nil || !fi.IsDir() {
			t.Fatalf("expected directory %s to exist", p)
		}
	}
	if _, err := os.Stat(IndexPath(s.Root)); err != nil {
		t.Fatalf("catalog missing: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	doc := sampleDoc()
	id, err := s.Save(ctx, doc)
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if id == "" {
		t.Fatalf("Save returned empty id")
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if diff := cmp.Diff(doc, got, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	b, err := os.ReadFile(s.FormPath(id))
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("stored form is not JSON: %v", err)
	}
	for _, k := range []string{"title", "description", "elements", "style"} {
		if _, ok := raw[k]; !ok {
			t.Fatalf("stored form lacks %q", k)
		}
	}
}

func TestEmptyDocumentStoresElementsArray(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, form.Document{Title: "Blank"})
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Elements == nil || len(got.Elements) != 0 {
		t.Fatalf("expected empty non-nil elements, got %#v", got.Elements)
	}
}

func TestUpdateCreatesTimestampedBackup(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, sampleDoc())
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	doc := sampleDoc()
	doc.Title = "Changed"
	if err := s.Update(ctx, id, doc); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	baks, err := s.backupsFor(id)
	if err != nil {
		t.Fatalf("backupsFor: %v", err)
	}
	if len(baks) != 1 {
		t.Fatalf("expected one backup, got %d", len(baks))
	}
	prev, err := readDocument(baks[0])
	if err != nil || prev.Title != "Signup" {
		t.Fatalf("backup should hold previous version: %q %v", prev.Title, err)
	}
}

func TestLoadFallsBackToLatestBackupOnCorruption(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, sampleDoc())
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	doc := sampleDoc()
	doc.Title = "Second"
	if err := s.Update(ctx, id, doc); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := os.WriteFile(s.FormPath(id), []byte("{ this is not json"), 0o644); err != nil {
		t.Fatalf("corrupt form: %v", err)
	}
	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Title != "Signup" {
		t.Fatalf("expected backup content, got %q", got.Title)
	}
}

func TestLoadRejectsSchemaViolationWithoutBackup(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	bad := `{"title":"x","elements":[{"id":"a","type":"hologram"}]}`
	if err := os.WriteFile(s.FormPath("bad"), []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := s.Load(ctx, "bad")
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected invalid document error, got %v", err)
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	s := openStore(t)
	if _, err := s.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.Load(context.Background(), "../etc/passwd"); err == nil {
		t.Fatalf("path-like ids must be rejected")
	}
}

func TestDeletedFormStaysDeleted(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id, err := s.Save(ctx, sampleDoc())
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}
	doc := sampleDoc()
	doc.Title = "Second"
	if err := s.Update(ctx, id, doc); err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if baks, err := s.backupsFor(id); err != nil || len(baks) == 0 {
		t.Fatalf("backups should be kept after delete: %v %v", baks, err)
	}
	got, err := s.Load(ctx, id)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got title=%q err=%v", got.Title, err)
	}
	if err := s.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestSaveRejectsDuplicateIDs(t *testing.T) {
	s := openStore(t)
	doc := form.Document{Title: "Dup", Elements: []form.Element{
		{ID: "a", Type: form.KindEmail}, {ID: "a", Type: form.KindPhone},
	}}
	if _, err := s.Save(context.Background(), doc); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
	ents, _ := os.ReadDir(filepath.Join(s.Root, FormsDirName))
	if len(ents) != 0 {
		t.Fatalf("rejected document was written")
	}
}

func TestListSearchAndDelete(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	id1, err := s.Save(ctx, sampleDoc())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	other := form.Document{Title: "Feedback", Elements: []form.Element{
		{ID: "f1", Type: form.KindLongText, Label: "Your name, again"},
		{ID: "f2", Type: form.KindRating, Label: "Score_100%"},
	}}
	id2, err := s.Save(ctx, other)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := s.List(ctx)
	if err != nil || len(list) != 2 {
		t.Fatalf("List got %d err %v", len(list), err)
	}
	byID := map[string]Summary{}
	for _, sm := range list {
		byID[sm.ID] = sm
	}
	if sm := byID[id1]; sm.Title != "Signup" || sm.Elements != 5 || sm.Pages != 3 {
		t.Fatalf("summary mismatch: %#v", sm)
	}

	hits, err := s.SearchFields(ctx, "NAME")
	if err != nil {
		t.Fatalf("SearchFields: %v", err)
	}
	var got []string
	for _, h := range hits {
		got = append(got, h.FormID+"/"+h.ElementID)
	}
	if diff := cmp.Diff([]string{id2 + "/f1", id1 + "/e1"}, got); diff != "" {
		t.Fatalf("search hits (-want +got):\n%s", diff)
	}
	if hits, _ := s.SearchFields(ctx, "_100%"); len(hits) != 1 || hits[0].ElementID != "f2" {
		t.Fatalf("wildcards should be matched literally: %#v", hits)
	}
	if hits, _ := s.SearchFields(ctx, "Thanks"); len(hits) != 1 || hits[0].Type != form.KindThankYou {
		t.Fatalf("content blocks should be searchable by content: %#v", hits)
	}

	if err := s.Delete(ctx, id2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, id2); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
	list, _ = s.List(ctx)
	if len(list) != 1 || list[0].ID != id1 {
		t.Fatalf("deleted form still listed: %#v", list)
	}
	if hits, _ := s.SearchFields(ctx, "again"); len(hits) != 0 {
		t.Fatalf("deleted form fields still searchable")
	}
}

func TestBindOverwritesFixedID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	p := Bind(s, "fixed-id")
	for _, title := range []string{"one", "two"} {
		doc := sampleDoc()
		doc.Title = title
		id, err := p.Save(ctx, doc)
		if err != nil || id != "fixed-id" {
			t.Fatalf("bound save = %q,%v", id, err)
		}
	}
	got, err := s.Load(ctx, "fixed-id")
	if err != nil || got.Title != "two" {
		t.Fatalf("bound form = %q,%v", got.Title, err)
	}
}

func TestAutosaveCrashSnapshotWritesFile(t *testing.T) {
	root := t.TempDir()
	doc := sampleDoc()
	path, err := AutosaveCrashSnapshot(root, doc)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "crash-") || filepath.Dir(path) != filepath.Join(root, BackupsDirName) {
		t.Fatalf("unexpected snapshot path %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var got form.Document
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if got.Title != doc.Title || len(got.Elements) != len(doc.Elements) {
		t.Fatalf("snapshot content mismatch: %#v", got)
	}
}
