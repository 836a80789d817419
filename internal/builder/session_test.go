/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package builder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"goformbuilder/internal/form"
)

func TestDragPreviewNeverCommits(t *testing.T) {
	b := newTestBuilder()
	a := b.AddElement(text("A"))
	b.AddElement(text("B"))
	c := b.AddElement(text("C"))
	depth := b.HistoryDepth()

	if !b.BeginDrag(a.ID) {
		t.Fatalf("BeginDrag failed")
	}
	for _, id := range []string{c.ID, a.ID, c.ID} {
		b.Hover(id)
	}
	preview, ok := b.DragPreview()
	if !ok {
		t.Fatalf("preview unavailable")
	}
	if diff := cmp.Diff([]string{"B", "C", "A"}, labels(preview)); diff != "" {
		t.Fatalf("preview order (-want +got):\n%s", diff)
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("hovering committed")
	}
	moved, ok := b.Drop()
	if !ok || moved.ID != a.ID {
		t.Fatalf("Drop = %v,%v", moved.ID, ok)
	}
	if b.HistoryDepth() != depth+1 || b.Dragging() {
		t.Fatalf("drop should commit once and end the drag")
	}
	if diff := cmp.Diff([]string{"B", "C", "A"}, labels(b.Elements())); diff != "" {
		t.Fatalf("order after drop (-want +got):\n%s", diff)
	}
	b.Undo()
	if diff := cmp.Diff([]string{"A", "B", "C"}, labels(b.Elements())); diff != "" {
		t.Fatalf("undo of drop (-want +got):\n%s", diff)
	}
}

func TestDragCancelAndSamePosition(t *testing.T) {
	b := newTestBuilder()
	a := b.AddElement(text("A"))
	b.AddElement(text("B"))
	depth := b.HistoryDepth()

	b.BeginDrag(a.ID)
	b.HoverIndex(1)
	b.CancelDrag()
	if _, ok := b.Drop(); ok {
		t.Fatalf("drop after cancel should do nothing")
	}
	b.BeginDrag(a.ID)
	b.Hover(a.ID)
	if _, ok := b.Drop(); ok {
		t.Fatalf("drop onto own position should not commit")
	}
	b.BeginDrag(a.ID)
	if _, ok := b.Drop(); ok {
		t.Fatalf("drop without hover should not commit")
	}
	if b.BeginDrag("missing") || b.Hover("x") {
		t.Fatalf("drag on unknown id should not start")
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("no-op drags committed")
	}
}

func TestExternalDragInsertsNormalized(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	b.AddElement(text("B"))
	if err := b.BeginExternalDrag([]byte(`{"type":"checkbox","label":"Toppings","options":["Ham",""],"required":true}`)); err != nil {
		t.Fatalf("BeginExternalDrag: %v", err)
	}
	b.HoverIndex(1)
	el, ok := b.Drop()
	if !ok {
		t.Fatalf("external drop failed")
	}
	els := b.Elements()
	if els[1].ID != el.ID || els[1].Required {
		t.Fatalf("external element misplaced or required: %#v", els[1])
	}
	if diff := cmp.Diff([]string{"Ham", ""}, els[1].Options); diff != "" {
		t.Fatalf("options:\n%s", diff)
	}
	if err := b.BeginExternalDrag([]byte(`{"label":"no type"}`)); err == nil || b.Dragging() {
		t.Fatalf("malformed external drag should not start")
	}
}

func TestExternalDragWithoutHoverAppends(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	if err := b.BeginExternalDrag([]byte(`{"type":"divider"}`)); err != nil {
		t.Fatalf("BeginExternalDrag: %v", err)
	}
	el, ok := b.Drop()
	if !ok || b.Elements()[1].ID != el.ID {
		t.Fatalf("unhovered external drop should append")
	}
}

func TestInlineEditCommitsOnceOnConfirm(t *testing.T) {
	b := newTestBuilder()
	el := b.AddElement(text("Name"))
	depth := b.HistoryDepth()
	if err := b.BeginEdit(el.ID, form.FieldLabel); err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	for _, v := range []string{"N", "Nu", "Num", "Number"} {
		b.Set(v)
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("keystrokes committed")
	}
	if got, _ := b.Element(el.ID); got.Label != "Name" {
		t.Fatalf("buffer leaked into document: %q", got.Label)
	}
	if !b.Confirm() {
		t.Fatalf("confirm should commit a changed value")
	}
	if got, _ := b.Element(el.ID); got.Label != "Number" || b.HistoryDepth() != depth+1 {
		t.Fatalf("confirm result: %q depth %d", got.Label, b.HistoryDepth())
	}
}

func TestInlineEditUnchangedOrCancelled(t *testing.T) {
	b := newTestBuilder()
	el := b.AddElement(form.NewDescriptor(form.KindParagraph))
	depth := b.HistoryDepth()

	_ = b.BeginEdit(el.ID, form.FieldContent)
	b.Set("draft")
	b.Set(el.Content)
	if b.Confirm() {
		t.Fatalf("unchanged confirm should not commit")
	}
	_ = b.BeginEdit(el.ID, form.FieldContent)
	b.Set("throwaway")
	b.CancelEdit()
	if b.Confirm() || b.HistoryDepth() != depth {
		t.Fatalf("cancelled edit committed")
	}
	if err := b.BeginEdit("missing", form.FieldLabel); err == nil {
		t.Fatalf("edit of missing element should fail")
	}
	if err := b.BeginEdit(el.ID, form.TextField("options")); err == nil {
		t.Fatalf("edit of non-text field should fail")
	}
}

type blockingPersister struct {
	started chan struct{}
	release chan struct{}
	got     form.Document
}

func (p *blockingPersister) Save(_ context.Context, doc form.Document) (string, error) {
	close(p.started)
	<-p.release
	p.got = doc
	return "form-1", nil
}

func TestSaveGateRejectsConcurrentSave(t *testing.T) {
	b := newTestBuilder()
	b.SetTitle("Survey")
	b.AddElement(text("A"))
	p := &blockingPersister{started: make(chan struct{}), release: make(chan struct{})}

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := b.Save(context.Background(), p)
		done <- result{id, err}
	}()
	<-p.started
	if !b.Saving() {
		t.Fatalf("Saving should report in-flight save")
	}
	if _, err := b.Save(context.Background(), p); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("second save err = %v, want ErrSaveInFlight", err)
	}
	close(p.release)
	select {
	case r := <-done:
		if r.err != nil || r.id != "form-1" {
			t.Fatalf("first save = %q,%v", r.id, r.err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("save did not finish")
	}
	if b.ID() != "form-1" || b.Saving() {
		t.Fatalf("id not adopted or gate not released")
	}
	if p.got.Title != "Survey" || len(p.got.Elements) != 1 {
		t.Fatalf("persisted shape mismatch: %#v", p.got)
	}
}

func TestSaveErrorIsWrapped(t *testing.T) {
	b := newTestBuilder()
	boom := errors.New("disk full")
	_, err := b.Save(context.Background(), PersisterFunc(func(context.Context, form.Document) (string, error) {
		return "", boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if b.Saving() {
		t.Fatalf("gate not released after failure")
	}
}

type mapLoader map[string]form.Document

func (m mapLoader) Load(_ context.Context, id string) (form.Document, error) {
	doc, ok := m[id]
	if !ok {
		return form.Document{}, errors.New("not found")
	}
	return doc, nil
}

func TestLoadResetsHistory(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("old"))
	b.AddElement(text("older"))
	b.Undo()
	loader := mapLoader{"f9": {Title: "Loaded", Elements: []form.Element{{ID: "x", Type: form.KindEmail, Label: "Mail"}}}}
	if err := b.Load(context.Background(), loader, "f9"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b.CanUndo() || b.CanRedo() {
		t.Fatalf("load must start a new undo session")
	}
	if b.ID() != "f9" || b.Title() != "Loaded" || len(b.Elements()) != 1 {
		t.Fatalf("loaded state mismatch: %q %q %d", b.ID(), b.Title(), len(b.Elements()))
	}
	if err := b.Load(context.Background(), loader, "nope"); err == nil {
		t.Fatalf("missing document should fail")
	}
	if b.ID() != "f9" {
		t.Fatalf("failed load must keep the session")
	}
}

func TestLoadReassignsDuplicateIDs(t *testing.T) {
	b := newTestBuilder()
	loader := mapLoader{"dup": {Elements: []form.Element{
		{ID: "a", Type: form.KindShortText},
		{ID: "a", Type: form.KindShortText},
	}}}
	if err := b.Load(context.Background(), loader, "dup"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if dups := form.DuplicateIDs(b.Elements()); len(dups) != 0 {
		t.Fatalf("duplicate ids survived load: %v", dups)
	}
	if b.CanUndo() {
		t.Fatalf("load must start a new undo session")
	}
}
