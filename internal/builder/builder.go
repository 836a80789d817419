/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package builder is the single entry point for every structural change to a
// form document. Each successful edit commits exactly one history snapshot;
// unknown ids and rejected input commit nothing. Pages are derived from the
// present element sequence on every read.
//
// A Builder is driven from one goroutine. Save is the only operation that may
// run concurrently with edits and is gated by a busy flag; document metadata is
// guarded so a background save reads a consistent snapshot.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/pages"
	"goformbuilder/internal/reorder"
	"goformbuilder/internal/undo"
)

// ErrNotPermutation is returned by ReorderElements when the replacement
// sequence does not hold exactly the current element ids.
var ErrNotPermutation = errors.New("reorder is not a permutation of the current elements")

// Builder owns one editing session over a form document.
type Builder struct {
	meta        sync.RWMutex
	id          string
	title       string
	description string
	style       form.Style

	hist *undo.History
	base *slog.Logger
	log  *slog.Logger

	selected   string
	page       int
	onDeselect func(id string)

	drag *dragState
	edit *editState

	saving atomic.Bool
}

type options struct {
	depth      int
	logger     *slog.Logger
	onDeselect func(string)
	id         string
}

// Option configures a Builder.
type Option func(*options)

// WithHistoryDepth caps undo steps; 0 is unlimited.
func WithHistoryDepth(n int) Option { return func(o *options) { o.depth = n } }

func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithDeselect registers a callback run when the selected element leaves the document.
func WithDeselect(fn func(id string)) Option { return func(o *options) { o.onDeselect = fn } }

// WithID sets the persisted identifier of the document being edited.
func WithID(id string) Option { return func(o *options) { o.id = id } }

// New starts an empty document.
func New(opts ...Option) *Builder {
	return FromDocument(form.Document{}, opts...)
}

// FromDocument hydrates a session from a persisted document. History starts empty.
func FromDocument(doc form.Document, opts ...Option) *Builder {
	o := options{}
	for _, fn := range opts {
		fn(&o)
	}
	l := o.logger
	if l == nil {
		l = applog.WithComponent("builder")
	}
	b := &Builder{
		title:       doc.Title,
		description: doc.Description,
		style:       doc.Style.Clone(),
		base:        l,
		onDeselect:  o.onDeselect,
	}
	b.setID(o.id)
	b.hist = undo.NewHistory(b.hydrate(doc.Elements), undo.Config{MaxDepth: o.depth})
	return b
}

// hydrate makes ids unique before a sequence becomes the first snapshot.
func (b *Builder) hydrate(elements []form.Element) []form.Element {
	out, replaced := reorder.Dedupe(elements)
	if len(replaced) > 0 {
		b.logger().Warn("duplicate element ids reassigned", slog.Any("ids", replaced))
	}
	return out
}

func (b *Builder) setID(id string) {
	b.meta.Lock()
	defer b.meta.Unlock()
	b.id = id
	b.log = b.base
	if id != "" {
		b.log = b.base.With(slog.String("form", id))
	}
}

// ID returns the persisted identifier, empty until the first save.
func (b *Builder) ID() string {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return b.id
}

func (b *Builder) logger() *slog.Logger {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return b.log
}

// Elements returns a copy of the present element sequence.
func (b *Builder) Elements() []form.Element { return b.hist.Present() }

// Element looks up a present element by id.
func (b *Builder) Element(id string) (form.Element, bool) {
	return form.Find(b.hist.Present(), id)
}

// Document returns the full persistable shape.
func (b *Builder) Document() form.Document {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return form.Document{
		Title:       b.title,
		Description: b.description,
		Elements:    b.hist.Present(),
		Style:       b.style.Clone(),
	}
}

func (b *Builder) commit(op string, next []form.Element, elementID string) {
	b.hist.Commit(next)
	depth, _ := b.hist.Stats()
	b.logger().Debug("commit", slog.String("op", op), slog.String("element", elementID), slog.Int("depth", depth))
	b.checkSelection()
}

func (b *Builder) noop(op, elementID, reason string) {
	b.logger().Debug("no-op", slog.String("op", op), slog.String("element", elementID), slog.String("reason", reason))
}

// AddElement appends d under a fresh id and returns the new element. A
// descriptor of an unknown kind commits nothing and yields the zero Element.
func (b *Builder) AddElement(d form.Descriptor) form.Element {
	if !d.Type.Valid() {
		b.noop("add", "", "unknown type "+string(d.Type))
		return form.Element{}
	}
	next, el := reorder.Append(b.hist.Present(), d)
	b.commit("add", next, el.ID)
	return el
}

// AddElementAt inserts d at index, clamped into [0, len]. Unknown kinds are
// rejected like in AddElement.
func (b *Builder) AddElementAt(d form.Descriptor, index int) form.Element {
	if !d.Type.Valid() {
		b.noop("insert", "", "unknown type "+string(d.Type))
		return form.Element{}
	}
	next, el := reorder.InsertAt(b.hist.Present(), d, index)
	b.commit("insert", next, el.ID)
	return el
}

// AddElements appends all descriptors as one undo step. Nothing is committed
// for an empty list or when any descriptor has an unknown kind.
func (b *Builder) AddElements(ds []form.Descriptor) []form.Element {
	if len(ds) == 0 {
		b.noop("add-batch", "", "empty")
		return nil
	}
	for _, d := range ds {
		if !d.Type.Valid() {
			b.noop("add-batch", "", "unknown type "+string(d.Type))
			return nil
		}
	}
	next := b.hist.Present()
	added := make([]form.Element, 0, len(ds))
	for _, d := range ds {
		var el form.Element
		next, el = reorder.Append(next, d)
		added = append(added, el)
	}
	b.commit("add-batch", next, added[0].ID)
	return added
}

// UpdateElement merges p into the element with id. Identical values still
// commit; an unknown id or a patch to an unknown kind commits nothing.
func (b *Builder) UpdateElement(id string, p form.Patch) bool {
	if p.Type != nil && !p.Type.Valid() {
		b.noop("update", id, "unknown type "+string(*p.Type))
		return false
	}
	cur := b.hist.Present()
	i := form.IndexOf(cur, id)
	if i < 0 {
		b.noop("update", id, "not found")
		return false
	}
	cur[i] = cur[i].Apply(p)
	b.commit("update", cur, id)
	return true
}

// RemoveElement deletes id. Removing the selected element clears the selection
// and notifies the deselect callback.
func (b *Builder) RemoveElement(id string) bool {
	next, ok := reorder.Remove(b.hist.Present(), id)
	if !ok {
		b.noop("remove", id, "not found")
		return false
	}
	b.commit("remove", next, id)
	return true
}

// DuplicateElement places a copy of id right after it.
func (b *Builder) DuplicateElement(id string) (form.Element, bool) {
	next, el, ok := reorder.Duplicate(b.hist.Present(), id)
	if !ok {
		b.noop("duplicate", id, "not found")
		return form.Element{}, false
	}
	b.commit("duplicate", next, el.ID)
	return el, true
}

// MoveElement moves sourceID to targetID's position.
func (b *Builder) MoveElement(sourceID, targetID string) bool {
	cur := b.hist.Present()
	if sourceID == targetID || form.IndexOf(cur, sourceID) < 0 || form.IndexOf(cur, targetID) < 0 {
		b.noop("move", sourceID, "not found or same target")
		return false
	}
	b.commit("move", reorder.Move(cur, sourceID, targetID), sourceID)
	return true
}

// ReorderElements replaces the whole sequence. The replacement must contain
// the current ids exactly once each; otherwise nothing is committed.
func (b *Builder) ReorderElements(next []form.Element) error {
	cur := b.hist.Present()
	if !form.SameIDs(cur, next) || len(form.DuplicateIDs(next)) > 0 {
		b.logger().Warn("reorder rejected", slog.Int("current", len(cur)), slog.Int("next", len(next)))
		return fmt.Errorf("%w: have %d elements, got %d", ErrNotPermutation, len(cur), len(next))
	}
	b.commit("reorder", next, "")
	return nil
}

// DropPayload normalizes an external drag payload and inserts it at index
// (appends when index < 0). A malformed payload changes nothing.
func (b *Builder) DropPayload(raw []byte, index int) (form.Element, error) {
	el, err := reorder.NormalizeDroppedPayload(raw)
	if err != nil {
		b.logger().Warn("drop rejected", slog.Any("err", err))
		return form.Element{}, err
	}
	cur := b.hist.Present()
	if index < 0 {
		index = len(cur)
	}
	b.commit("drop", reorder.Place(cur, el, index), el.ID)
	return el, nil
}

// Undo restores the previous snapshot.
func (b *Builder) Undo() bool {
	if _, ok := b.hist.Undo(); !ok {
		b.noop("undo", "", "empty past")
		return false
	}
	b.checkSelection()
	return true
}

// Redo re-applies the most recently undone snapshot.
func (b *Builder) Redo() bool {
	if _, ok := b.hist.Redo(); !ok {
		b.noop("redo", "", "empty future")
		return false
	}
	b.checkSelection()
	return true
}

func (b *Builder) CanUndo() bool { return b.hist.CanUndo() }
func (b *Builder) CanRedo() bool { return b.hist.CanRedo() }

// HistoryDepth returns the number of undo steps available.
func (b *Builder) HistoryDepth() int {
	past, _ := b.hist.Stats()
	return past
}

// Pages projects the present sequence.
func (b *Builder) Pages() []pages.Page { return pages.Project(b.hist.Present()) }

// SelectPage sets the previewed page, clamped to the available pages.
func (b *Builder) SelectPage(i int) int {
	b.page = pages.Clamp(b.Pages(), i)
	return b.page
}

// CurrentPage returns the previewed page and its index. The index is re-clamped
// since edits can shrink the page list.
func (b *Builder) CurrentPage() (pages.Page, int) {
	ps := b.Pages()
	i := pages.Clamp(ps, b.page)
	return ps[i], i
}

// PageOf returns the page index holding id.
func (b *Builder) PageOf(id string) (int, bool) { return pages.Locate(b.Pages(), id) }

// Select marks id as the selected element and moves the preview to its page.
func (b *Builder) Select(id string) bool {
	i, ok := b.PageOf(id)
	if !ok {
		return false
	}
	b.selected = id
	b.page = i
	return true
}

func (b *Builder) Selected() string { return b.selected }

// Deselect clears the selection without notifying the callback.
func (b *Builder) Deselect() { b.selected = "" }

func (b *Builder) checkSelection() {
	if b.selected == "" || form.IndexOf(b.hist.Present(), b.selected) >= 0 {
		return
	}
	gone := b.selected
	b.selected = ""
	if b.onDeselect != nil {
		b.onDeselect(gone)
	}
}

// Title and metadata live outside the undo history.

func (b *Builder) Title() string {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return b.title
}

func (b *Builder) Description() string {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return b.description
}

func (b *Builder) Style() form.Style {
	b.meta.RLock()
	defer b.meta.RUnlock()
	return b.style.Clone()
}

func (b *Builder) SetTitle(s string) {
	b.meta.Lock()
	b.title = strings.TrimSpace(s)
	b.meta.Unlock()
}

func (b *Builder) SetDescription(s string) {
	b.meta.Lock()
	b.description = strings.TrimSpace(s)
	b.meta.Unlock()
}

// MergeStyle merges patch into the document style one level deep.
func (b *Builder) MergeStyle(patch form.Style) {
	b.meta.Lock()
	b.style = b.style.Merge(patch)
	b.meta.Unlock()
}

// Loader fetches a persisted document.
type Loader interface {
	Load(ctx context.Context, id string) (form.Document, error)
}

// Load replaces the session with a persisted document and resets history.
func (b *Builder) Load(ctx context.Context, l Loader, id string) error {
	doc, err := l.Load(applog.ContextWithForm(ctx, id), id)
	if err != nil {
		return fmt.Errorf("load form %s: %w", id, err)
	}
	b.setID(id)
	b.meta.Lock()
	b.title = doc.Title
	b.description = doc.Description
	b.style = doc.Style.Clone()
	b.meta.Unlock()
	b.hist.Reset(b.hydrate(doc.Elements))
	b.selected = ""
	b.page = 0
	b.drag = nil
	b.edit = nil
	b.logger().Debug("loaded", slog.Int("elements", len(doc.Elements)))
	return nil
}
