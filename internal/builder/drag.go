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
	"log/slog"

	"goformbuilder/internal/form"
	"goformbuilder/internal/reorder"
)

// dragState is the transient drag-in-progress. It never reaches the history:
// only Drop turns it into a commit.
type dragState struct {
	sourceID string       // set for drags of live elements
	external form.Element // set for drags from outside the canvas
	target   int          // candidate drop index, -1 until hovered
}

func (d *dragState) isExternal() bool { return d.sourceID == "" }

// BeginDrag starts dragging a live element. Any previous drag is discarded.
func (b *Builder) BeginDrag(id string) bool {
	if form.IndexOf(b.hist.Present(), id) < 0 {
		b.drag = nil
		return false
	}
	b.drag = &dragState{sourceID: id, target: -1}
	return true
}

// BeginExternalDrag starts dragging a payload from outside the canvas, such as
// a palette item. The payload is normalized up front; a malformed one starts nothing.
func (b *Builder) BeginExternalDrag(raw []byte) error {
	el, err := reorder.NormalizeDroppedPayload(raw)
	if err != nil {
		b.drag = nil
		b.logger().Warn("drag rejected", slog.Any("err", err))
		return err
	}
	b.drag = &dragState{external: el, target: -1}
	return nil
}

// Dragging reports whether a drag is in progress.
func (b *Builder) Dragging() bool { return b.drag != nil }

// Hover sets the candidate drop position to targetID's index.
func (b *Builder) Hover(targetID string) bool {
	if b.drag == nil {
		return false
	}
	i := form.IndexOf(b.hist.Present(), targetID)
	if i < 0 {
		return false
	}
	b.drag.target = i
	return true
}

// HoverIndex sets the candidate drop index directly; it is clamped on drop.
func (b *Builder) HoverIndex(i int) bool {
	if b.drag == nil {
		return false
	}
	if i < 0 {
		i = 0
	}
	b.drag.target = i
	return true
}

// DropIndex returns the candidate index, or -1 when nothing is hovered.
func (b *Builder) DropIndex() int {
	if b.drag == nil {
		return -1
	}
	return b.drag.target
}

// DragPreview returns the sequence as it would look after dropping now.
func (b *Builder) DragPreview() ([]form.Element, bool) {
	if b.drag == nil {
		return nil, false
	}
	next, _, ok := b.resolveDrop()
	return next, ok
}

func (b *Builder) resolveDrop() ([]form.Element, form.Element, bool) {
	cur := b.hist.Present()
	d := b.drag
	if d.isExternal() {
		at := d.target
		if at < 0 || at > len(cur) {
			at = len(cur)
		}
		return reorder.Place(cur, d.external, at), d.external, true
	}
	from := form.IndexOf(cur, d.sourceID)
	if from < 0 || d.target < 0 {
		return cur, form.Element{}, false
	}
	to := d.target
	if to > len(cur)-1 {
		to = len(cur) - 1
	}
	if to == from {
		return cur, form.Element{}, false
	}
	return reorder.MoveIndex(cur, from, to), cur[from], true
}

// Drop ends the drag and commits its result. Dropping a live element onto its
// own position, or after its source vanished, commits nothing.
func (b *Builder) Drop() (form.Element, bool) {
	if b.drag == nil {
		return form.Element{}, false
	}
	next, el, ok := b.resolveDrop()
	op := "drag-move"
	if b.drag.isExternal() {
		op = "drag-insert"
	}
	b.drag = nil
	if !ok {
		b.noop(op, el.ID, "no position change")
		return form.Element{}, false
	}
	b.commit(op, next, el.ID)
	return el, true
}

// CancelDrag abandons the drag without touching the document.
func (b *Builder) CancelDrag() { b.drag = nil }
