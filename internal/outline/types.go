/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package outline reads a plain-text form outline and turns it into element
// descriptors. It is the authoring shortcut behind "goformbuilder import".
package outline

import (
	"fmt"

	"goformbuilder/internal/form"
)

// Outline is a parsed outline: document metadata plus elements in order.
type Outline struct {
	Title       string
	Description string
	Items       []Item
}

// Item is one element with the line it started on.
type Item struct {
	form.Descriptor
	LineNo int // 1-based
}

// Descriptors drops line numbers.
func (o Outline) Descriptors() []form.Descriptor {
	out := make([]form.Descriptor, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Descriptor
	}
	return out
}

// Error is a parse problem with position context. The offending line is skipped.
type Error struct {
	Line    int
	Message string
}

func (e Error) Error() string { return fmt.Sprintf("line %d: %s", e.Line, e.Message) }
