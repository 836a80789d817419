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
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"goformbuilder/internal/form"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestBuilder(opts ...Option) *Builder {
	return New(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func text(label string) form.Descriptor {
	return form.Descriptor{Type: form.KindShortText, Label: label}
}

func strp(s string) *string { return &s }

func labels(els []form.Element) []string {
	out := make([]string, 0, len(els))
	for _, e := range els {
		if e.Label != "" {
			out = append(out, e.Label)
		} else {
			out = append(out, string(e.Type))
		}
	}
	return out
}

func TestHistoryInverseLawThroughFacade(t *testing.T) {
	b := newTestBuilder()
	seed := b.AddElement(text("seed"))
	s0 := b.Elements()
	depth0 := b.HistoryDepth()

	a := b.AddElement(text("A"))
	b.AddElementAt(text("B"), 0)
	b.UpdateElement(a.ID, form.Patch{Label: strp("A2"), Style: form.Style{"columns": 2}})
	dup, _ := b.DuplicateElement(seed.ID)
	b.MoveElement(dup.ID, a.ID)
	b.RemoveElement(seed.ID)
	final := b.Elements()
	n := b.HistoryDepth() - depth0
	if n != 6 {
		t.Fatalf("expected 6 commits, got %d", n)
	}

	for i := 0; i < n; i++ {
		if !b.Undo() {
			t.Fatalf("undo %d failed", i)
		}
	}
	if diff := cmp.Diff(s0, b.Elements()); diff != "" {
		t.Fatalf("undo did not restore S0 (-want +got):\n%s", diff)
	}
	for i := 0; i < n; i++ {
		if !b.Redo() {
			t.Fatalf("redo %d failed", i)
		}
	}
	if diff := cmp.Diff(final, b.Elements()); diff != "" {
		t.Fatalf("redo did not restore final (-want +got):\n%s", diff)
	}
	if b.CanRedo() {
		t.Fatalf("redo stack should be exhausted")
	}
}

func TestCommitOnIdenticalUpdate(t *testing.T) {
	b := newTestBuilder()
	el := b.AddElement(text("Name"))
	before := b.HistoryDepth()
	if !b.UpdateElement(el.ID, form.Patch{Label: strp("Name")}) {
		t.Fatalf("update of existing id reported no-op")
	}
	if got := b.HistoryDepth(); got != before+1 {
		t.Fatalf("identical update should commit once: depth %d -> %d", before, got)
	}
}

func TestUnknownIDsNeverCommit(t *testing.T) {
	b := newTestBuilder()
	el := b.AddElement(text("A"))
	before := b.HistoryDepth()
	if b.UpdateElement("missing", form.Patch{Label: strp("x")}) {
		t.Fatalf("update of missing id reported success")
	}
	if b.RemoveElement("missing") {
		t.Fatalf("remove of missing id reported success")
	}
	if _, ok := b.DuplicateElement("missing"); ok {
		t.Fatalf("duplicate of missing id reported success")
	}
	if b.MoveElement("missing", el.ID) || b.MoveElement(el.ID, el.ID) {
		t.Fatalf("move no-op reported success")
	}
	if b.AddElements(nil) != nil {
		t.Fatalf("empty batch should add nothing")
	}
	if got := b.HistoryDepth(); got != before {
		t.Fatalf("no-ops committed: depth %d -> %d", before, got)
	}
}

func TestUpdateMergesStyleOneLevel(t *testing.T) {
	b := newTestBuilder()
	el := b.AddElement(form.Descriptor{Type: form.KindShortText, Label: "A", Style: form.Style{"columns": 2, "alignment": "left"}})
	b.UpdateElement(el.ID, form.Patch{Style: form.Style{"alignment": "center"}})
	got, _ := b.Element(el.ID)
	want := form.Style{"columns": 2, "alignment": "center"}
	if diff := cmp.Diff(want, got.Style); diff != "" {
		t.Fatalf("style not merged (-want +got):\n%s", diff)
	}
	if got.Label != "A" {
		t.Fatalf("untouched fields changed: %q", got.Label)
	}
}

func TestInsertionAtIndexClamps(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	b.AddElement(text("B"))
	cases := []struct {
		index int
		want  int // with 2, 3 and 4 existing elements
	}{{-5, 0}, {1, 1}, {99, 4}}
	for _, c := range cases {
		n := len(b.Elements())
		el := b.AddElementAt(text("X"), c.index)
		els := b.Elements()
		if len(els) != n+1 {
			t.Fatalf("length %d -> %d", n, len(els))
		}
		if els[c.want].ID != el.ID {
			t.Fatalf("AddElementAt(%d) landed at %d, want %d", c.index, form.IndexOf(els, el.ID), c.want)
		}
	}
}

func TestDuplicatePlacement(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	src := b.AddElement(form.Descriptor{Type: form.KindRadio, Label: "B", Options: []string{"x", "y"}, Required: true})
	b.AddElement(text("C"))
	cp, ok := b.DuplicateElement(src.ID)
	if !ok {
		t.Fatalf("duplicate failed")
	}
	els := b.Elements()
	if els[2].ID != cp.ID || cp.ID == src.ID {
		t.Fatalf("clone not placed right after source: %v", labels(els))
	}
	if diff := cmp.Diff(src.Descriptor(), cp.Descriptor()); diff != "" {
		t.Fatalf("clone fields differ (-src +clone):\n%s", diff)
	}
}

func TestDropNormalization(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	raw := []byte(`{"id":"evil","type":"select","label":"Pick","options":["a","b"],"required":true,"onclick":"x","style":{"color":"red"}}`)
	el, err := b.DropPayload(raw, 0)
	if err != nil {
		t.Fatalf("DropPayload: %v", err)
	}
	got, ok := b.Element(el.ID)
	if !ok || b.Elements()[0].ID != el.ID {
		t.Fatalf("dropped element not at index 0")
	}
	if got.Required || got.ID == "evil" || got.Style != nil {
		t.Fatalf("drop kept unrecognized fields: %#v", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got.Options); diff != "" {
		t.Fatalf("options mismatch:\n%s", diff)
	}
}

func TestMalformedDropChangesNothing(t *testing.T) {
	b := newTestBuilder()
	b.AddElement(text("A"))
	before := b.Elements()
	depth := b.HistoryDepth()
	for _, raw := range []string{"", "{", "[1,2]", `{"type":"nope"}`, "null"} {
		if _, err := b.DropPayload([]byte(raw), -1); err == nil {
			t.Fatalf("DropPayload(%q) expected error", raw)
		}
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("malformed drops committed")
	}
	if diff := cmp.Diff(before, b.Elements()); diff != "" {
		t.Fatalf("document changed:\n%s", diff)
	}
}

func TestReorderRejectsNonPermutation(t *testing.T) {
	b := newTestBuilder()
	a := b.AddElement(text("A"))
	c := b.AddElement(text("C"))
	depth := b.HistoryDepth()

	if err := b.ReorderElements([]form.Element{a}); err == nil {
		t.Fatalf("dropping an element should be rejected")
	}
	if err := b.ReorderElements([]form.Element{a, a}); err == nil {
		t.Fatalf("duplicating an element should be rejected")
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("rejected reorder committed")
	}
	if err := b.ReorderElements([]form.Element{c, a}); err != nil {
		t.Fatalf("valid permutation rejected: %v", err)
	}
	if diff := cmp.Diff([]string{"C", "A"}, labels(b.Elements())); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if b.HistoryDepth() != depth+1 {
		t.Fatalf("valid reorder should commit once")
	}
}

func TestRemoveSelectedSignalsDeselect(t *testing.T) {
	var gone []string
	b := newTestBuilder(WithDeselect(func(id string) { gone = append(gone, id) }))
	a := b.AddElement(text("A"))
	other := b.AddElement(text("B"))
	if !b.Select(a.ID) {
		t.Fatalf("select failed")
	}
	b.RemoveElement(other.ID)
	if len(gone) != 0 || b.Selected() != a.ID {
		t.Fatalf("removing another element must keep selection")
	}
	b.RemoveElement(a.ID)
	if diff := cmp.Diff([]string{a.ID}, gone); diff != "" {
		t.Fatalf("deselect callback mismatch:\n%s", diff)
	}
	if b.Selected() != "" {
		t.Fatalf("selection not cleared")
	}
}

func TestUndoOfAddClearsSelection(t *testing.T) {
	var gone string
	b := newTestBuilder(WithDeselect(func(id string) { gone = id }))
	a := b.AddElement(text("A"))
	b.Select(a.ID)
	b.Undo()
	if gone != a.ID || b.Selected() != "" {
		t.Fatalf("undo removing the selected element should deselect it")
	}
}

func TestPagesFollowEdits(t *testing.T) {
	b := newTestBuilder()
	a := b.AddElement(text("A"))
	br := b.AddElement(form.NewDescriptor(form.KindPageBreak))
	c := b.AddElement(text("B"))
	ps := b.Pages()
	if len(ps) != 2 || ps[1].Label != "Page 2" {
		t.Fatalf("unexpected pages: %#v", ps)
	}
	if i, ok := b.PageOf(c.ID); !ok || i != 1 {
		t.Fatalf("PageOf = %d,%v", i, ok)
	}
	if !b.Select(c.ID) {
		t.Fatalf("select failed")
	}
	if _, i := b.CurrentPage(); i != 1 {
		t.Fatalf("selecting should move preview to page 1, got %d", i)
	}
	b.RemoveElement(br.ID)
	p, i := b.CurrentPage()
	if i != 0 || len(p.Elements) != 2 || p.Elements[0].ID != a.ID {
		t.Fatalf("page selection not re-clamped: %d %#v", i, p)
	}
	if got := b.SelectPage(7); got != 0 {
		t.Fatalf("SelectPage clamp = %d", got)
	}
}

func TestMetadataOutsideHistory(t *testing.T) {
	b := newTestBuilder()
	depth := b.HistoryDepth()
	b.SetTitle("  Signup ")
	b.SetDescription("Join us")
	b.MergeStyle(form.Style{"primaryColor": "#f00", "spacing": "md"})
	b.MergeStyle(form.Style{"spacing": nil})
	if b.HistoryDepth() != depth {
		t.Fatalf("metadata edits must not commit")
	}
	doc := b.Document()
	if doc.Title != "Signup" || doc.Description != "Join us" {
		t.Fatalf("metadata mismatch: %#v", doc)
	}
	if diff := cmp.Diff(form.Style{"primaryColor": "#f00"}, doc.Style); diff != "" {
		t.Fatalf("style mismatch:\n%s", diff)
	}
}

func TestAddElementsIsOneStep(t *testing.T) {
	b := newTestBuilder()
	depth := b.HistoryDepth()
	added := b.AddElements([]form.Descriptor{text("A"), text("B"), text("C")})
	if len(added) != 3 || b.HistoryDepth() != depth+1 {
		t.Fatalf("batch add should be one commit: %d added, depth %d", len(added), b.HistoryDepth())
	}
	b.Undo()
	if len(b.Elements()) != 0 {
		t.Fatalf("undo should remove the whole batch")
	}
}

func TestFromDocumentStartsFreshHistory(t *testing.T) {
	doc := form.Document{Title: "T", Elements: []form.Element{{ID: "e1", Type: form.KindEmail, Label: "Mail"}}}
	b := FromDocument(doc, WithLogger(quietLogger()), WithID("f1"))
	if b.CanUndo() || b.CanRedo() {
		t.Fatalf("hydrated builder should have empty history")
	}
	if b.ID() != "f1" {
		t.Fatalf("id = %q", b.ID())
	}
	doc.Elements[0].Label = "mutated"
	if got, _ := b.Element("e1"); got.Label != "Mail" {
		t.Fatalf("builder aliases caller's document")
	}
}

func TestHistoryDepthOption(t *testing.T) {
	b := newTestBuilder(WithHistoryDepth(2))
	for i := 0; i < 5; i++ {
		b.AddElement(text("x"))
	}
	if b.HistoryDepth() != 2 {
		t.Fatalf("depth cap not applied: %d", b.HistoryDepth())
	}
}

func TestUnknownKindsNeverCommit(t *testing.T) {
	b := newTestBuilder()
	a := b.AddElement(text("A"))
	depth := b.HistoryDepth()
	before := b.Elements()

	bogus := form.Kind("bogus")
	if b.UpdateElement(a.ID, form.Patch{Type: &bogus, Label: strp("changed")}) {
		t.Fatalf("update to an unknown type reported success")
	}
	if el := b.AddElement(form.Descriptor{Type: "also-bogus"}); el.ID != "" {
		t.Fatalf("AddElement committed unknown type: %#v", el)
	}
	if el := b.AddElementAt(form.Descriptor{Type: ""}, 0); el.ID != "" {
		t.Fatalf("AddElementAt committed empty type: %#v", el)
	}
	if added := b.AddElements([]form.Descriptor{text("ok"), {Type: "nope"}}); added != nil {
		t.Fatalf("batch with an unknown type must add nothing, got %d", len(added))
	}
	if b.HistoryDepth() != depth {
		t.Fatalf("rejected edits committed: depth %d -> %d", depth, b.HistoryDepth())
	}
	if diff := cmp.Diff(before, b.Elements()); diff != "" {
		t.Fatalf("document changed (-before +after):\n%s", diff)
	}

	email := form.KindEmail
	if !b.UpdateElement(a.ID, form.Patch{Type: &email}) {
		t.Fatalf("valid type change rejected")
	}
}

func TestFromDocumentReassignsDuplicateIDs(t *testing.T) {
	doc := form.Document{Elements: []form.Element{
		{ID: "x", Type: form.KindShortText, Label: "first"},
		{ID: "x", Type: form.KindEmail, Label: "second"},
		{ID: "", Type: form.KindDivider},
	}}
	b := FromDocument(doc, WithLogger(quietLogger()))
	els := b.Elements()
	if len(els) != 3 || els[0].ID != "x" || els[0].Label != "first" {
		t.Fatalf("first holder must keep its id: %#v", els)
	}
	if els[1].ID == "x" || els[1].ID == "" || els[2].ID == "" || els[1].ID == els[2].ID {
		t.Fatalf("ids not made unique: %v", form.IDs(els))
	}
	if b.CanUndo() {
		t.Fatalf("hydrate must not create history")
	}
	rev := []form.Element{els[2], els[1], els[0]}
	if err := b.ReorderElements(rev); err != nil {
		t.Fatalf("reorder after hydrate: %v", err)
	}
}
