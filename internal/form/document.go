/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package form

// Document is the persisted shape of a form: {title, description, elements[], style}.
type Document struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Elements    []Element `json:"elements"`
	Style       Style     `json:"style,omitempty"`
}

// Clone deep-copies the document.
func (d Document) Clone() Document {
	return Document{
		Title:       d.Title,
		Description: d.Description,
		Elements:    CloneAll(d.Elements),
		Style:       d.Style.Clone(),
	}
}

// CloneAll deep-copies an element sequence. The result is never nil.
func CloneAll(in []Element) []Element {
	out := make([]Element, len(in))
	for i, e := range in {
		out[i] = e.Clone()
	}
	return out
}

// IndexOf returns the position of id in elements, or -1.
func IndexOf(elements []Element, id string) int {
	for i, e := range elements {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the element with the given id.
func Find(elements []Element, id string) (Element, bool) {
	if i := IndexOf(elements, id); i >= 0 {
		return elements[i], true
	}
	return Element{}, false
}

// IDs lists element ids in sequence order.
func IDs(elements []Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.ID
	}
	return out
}

// SameIDs reports whether a and b hold the same multiset of ids, ignoring order.
func SameIDs(a, b []Element) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, e := range a {
		counts[e.ID]++
	}
	for _, e := range b {
		counts[e.ID]--
		if counts[e.ID] < 0 {
			return false
		}
	}
	return true
}

// DuplicateIDs returns ids that occur more than once, in first-seen order.
func DuplicateIDs(elements []Element) []string {
	seen := make(map[string]int, len(elements))
	var dups []string
	for _, e := range elements {
		seen[e.ID]++
		if seen[e.ID] == 2 {
			dups = append(dups, e.ID)
		}
	}
	return dups
}
