/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package reorder computes new element sequences for drag moves, indexed
// insertion, duplication and externally dropped payloads. Every function is
// pure: the input slice is never modified and a fresh slice is returned.
package reorder

import (
	"github.com/google/uuid"

	"goformbuilder/internal/form"
)

// newID is swapped in tests that need deterministic ids.
var newID = uuid.NewString

// Move removes sourceID and reinserts it at targetID's position. Unknown ids
// return the sequence unchanged.
func Move(elements []form.Element, sourceID, targetID string) []form.Element {
	from := form.IndexOf(elements, sourceID)
	to := form.IndexOf(elements, targetID)
	if from < 0 || to < 0 {
		return form.CloneAll(elements)
	}
	return MoveIndex(elements, from, to)
}

// MoveIndex moves the element at from to position to. Out-of-range indexes are a no-op.
func MoveIndex(elements []form.Element, from, to int) []form.Element {
	out := form.CloneAll(elements)
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	moved := out[from]
	out = append(out[:from], out[from+1:]...)
	return insert(out, moved, to)
}

// InsertAt materializes d under a fresh id and splices it in at index,
// clamped into [0, len(elements)].
func InsertAt(elements []form.Element, d form.Descriptor, index int) ([]form.Element, form.Element) {
	el := d.Element(newID())
	return insert(form.CloneAll(elements), el, clamp(index, 0, len(elements))), el
}

// Append materializes d under a fresh id at the end of the sequence.
func Append(elements []form.Element, d form.Descriptor) ([]form.Element, form.Element) {
	el := d.Element(newID())
	return append(form.CloneAll(elements), el), el
}

// Duplicate clones the element with the given id under a fresh id and places
// the copy directly after the source. ok is false when id is unknown.
func Duplicate(elements []form.Element, id string) ([]form.Element, form.Element, bool) {
	i := form.IndexOf(elements, id)
	if i < 0 {
		return form.CloneAll(elements), form.Element{}, false
	}
	cp := elements[i].Descriptor().Element(newID())
	return insert(form.CloneAll(elements), cp, i+1), cp, true
}

// Remove filters id out of the sequence. ok is false when id is unknown.
func Remove(elements []form.Element, id string) ([]form.Element, bool) {
	i := form.IndexOf(elements, id)
	if i < 0 {
		return form.CloneAll(elements), false
	}
	out := form.CloneAll(elements)
	return append(out[:i], out[i+1:]...), true
}

// Place inserts an already identified element at index, clamped.
func Place(elements []form.Element, el form.Element, index int) []form.Element {
	return insert(form.CloneAll(elements), el.Clone(), clamp(index, 0, len(elements)))
}

func insert(s []form.Element, el form.Element, at int) []form.Element {
	s = append(s, form.Element{})
	copy(s[at+1:], s[at:])
	s[at] = el
	return s
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Dedupe gives a fresh id to every element whose id is empty or already used
// earlier in the sequence. It returns the new sequence and the ids that were
// replaced, in order; the first holder of an id keeps it.
func Dedupe(elements []form.Element) ([]form.Element, []string) {
	out := form.CloneAll(elements)
	seen := make(map[string]bool, len(out))
	var replaced []string
	for i := range out {
		id := out[i].ID
		if id != "" && !seen[id] {
			seen[id] = true
			continue
		}
		replaced = append(replaced, id)
		out[i].ID = newID()
		seen[out[i].ID] = true
	}
	return out, replaced
}
