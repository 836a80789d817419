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
	"fmt"

	"goformbuilder/internal/form"
)

// editState buffers an inline text edit. Keystrokes only touch the buffer;
// Confirm turns the final value into one update.
type editState struct {
	id       string
	field    form.TextField
	original string
	value    string
}

// BeginEdit opens an inline edit on one text field of id. Any pending edit is
// discarded.
func (b *Builder) BeginEdit(id string, field form.TextField) error {
	b.edit = nil
	if !field.Valid() {
		return fmt.Errorf("unknown text field %q", field)
	}
	el, ok := form.Find(b.hist.Present(), id)
	if !ok {
		return fmt.Errorf("element %s not found", id)
	}
	v := field.Get(el)
	b.edit = &editState{id: id, field: field, original: v, value: v}
	return nil
}

// Editing reports the element and field under edit.
func (b *Builder) Editing() (string, form.TextField, bool) {
	if b.edit == nil {
		return "", "", false
	}
	return b.edit.id, b.edit.field, true
}

// Set replaces the buffered value. Called per keystroke; never commits.
func (b *Builder) Set(value string) bool {
	if b.edit == nil {
		return false
	}
	b.edit.value = value
	return true
}

// Buffer returns the uncommitted value.
func (b *Builder) Buffer() string {
	if b.edit == nil {
		return ""
	}
	return b.edit.value
}

// Confirm ends the edit. An unchanged buffer commits nothing; otherwise the
// value is applied through UpdateElement as a single undo step.
func (b *Builder) Confirm() bool {
	e := b.edit
	b.edit = nil
	if e == nil {
		return false
	}
	if e.value == e.original {
		b.noop("edit", e.id, "unchanged")
		return false
	}
	return b.UpdateElement(e.id, e.field.Patch(e.value))
}

// CancelEdit drops the buffer.
func (b *Builder) CancelEdit() { b.edit = nil }
