/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package form defines the form document model: elements, their kinds,
// per-element style overrides and the document root that owns the ordered
// element sequence. Position in the sequence is significant; it defines both
// visual order and page membership.
package form

// Validation holds numeric bounds. Only meaningful for KindRange.
type Validation struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Step float64 `json:"step"`
}

// Element is one field or content block. ID is assigned at creation and never changes.
type Element struct {
	ID          string      `json:"id"`
	Type        Kind        `json:"type"`
	Label       string      `json:"label,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Content     string      `json:"content,omitempty"`
	Required    bool        `json:"required"`
	Options     []string    `json:"options,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Style       Style       `json:"style,omitempty"`
}

// Descriptor is an element without identity, as produced by the palette,
// a drop payload or the assist collaborator.
type Descriptor struct {
	Type        Kind        `json:"type"`
	Label       string      `json:"label,omitempty"`
	Placeholder string      `json:"placeholder,omitempty"`
	Content     string      `json:"content,omitempty"`
	Required    bool        `json:"required"`
	Options     []string    `json:"options,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Style       Style       `json:"style,omitempty"`
}

// Element materializes the descriptor under the given id.
func (d Descriptor) Element(id string) Element {
	return Element{
		ID:          id,
		Type:        d.Type,
		Label:       d.Label,
		Placeholder: d.Placeholder,
		Content:     d.Content,
		Required:    d.Required,
		Options:     cloneStrings(d.Options),
		Validation:  cloneValidation(d.Validation),
		Style:       d.Style.Clone(),
	}
}

// Descriptor drops the identity of e.
func (e Element) Descriptor() Descriptor {
	return Descriptor{
		Type:        e.Type,
		Label:       e.Label,
		Placeholder: e.Placeholder,
		Content:     e.Content,
		Required:    e.Required,
		Options:     cloneStrings(e.Options),
		Validation:  cloneValidation(e.Validation),
		Style:       e.Style.Clone(),
	}
}

// Clone returns a deep copy; snapshots never share options, validation or style.
func (e Element) Clone() Element {
	return e.Descriptor().Element(e.ID)
}

// NewDescriptor returns the palette default for a kind.
func NewDescriptor(k Kind) Descriptor {
	d := Descriptor{Type: k}
	if k.HasLabel() && !k.UsesContent() {
		d.Label = k.Title()
	}
	switch k {
	case KindRadio, KindCheckbox, KindSelect:
		d.Options = []string{"Option 1", "Option 2"}
	case KindRange:
		d.Validation = &Validation{Min: 0, Max: 100, Step: 1}
	case KindHeading:
		d.Content = "Heading"
	case KindParagraph:
		d.Content = "Write something here."
	case KindThankYou:
		d.Content = "Thank you for your submission!"
	}
	return d
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneValidation(v *Validation) *Validation {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
