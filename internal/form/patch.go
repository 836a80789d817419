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

// Patch is a partial element update. Nil pointer fields are left unchanged.
// A nil Options slice leaves options unchanged; an empty non-nil slice clears them.
// Style is merged into the existing overrides rather than replacing them.
type Patch struct {
	Type        *Kind       `json:"type,omitempty"`
	Label       *string     `json:"label,omitempty"`
	Placeholder *string     `json:"placeholder,omitempty"`
	Content     *string     `json:"content,omitempty"`
	Required    *bool       `json:"required,omitempty"`
	Options     []string    `json:"options,omitempty"`
	Validation  *Validation `json:"validation,omitempty"`
	Style       Style       `json:"style,omitempty"`
}

// Apply returns a copy of e with p shallow-merged in. The id is never touched.
func (e Element) Apply(p Patch) Element {
	out := e.Clone()
	if p.Type != nil {
		out.Type = *p.Type
	}
	if p.Label != nil {
		out.Label = *p.Label
	}
	if p.Placeholder != nil {
		out.Placeholder = *p.Placeholder
	}
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.Required != nil {
		out.Required = *p.Required
	}
	if p.Options != nil {
		out.Options = cloneStrings(p.Options)
	}
	if p.Validation != nil {
		out.Validation = cloneValidation(p.Validation)
	}
	if p.Style != nil {
		out.Style = out.Style.Merge(p.Style)
	}
	return out
}

// TextField names the free-text attributes that can be edited inline.
type TextField string

const (
	FieldLabel       TextField = "label"
	FieldPlaceholder TextField = "placeholder"
	FieldContent     TextField = "content"
)

// Get reads the text attribute f from e.
func (f TextField) Get(e Element) string {
	switch f {
	case FieldPlaceholder:
		return e.Placeholder
	case FieldContent:
		return e.Content
	default:
		return e.Label
	}
}

// Patch builds the single-attribute patch setting f to value.
func (f TextField) Patch(value string) Patch {
	v := value
	switch f {
	case FieldPlaceholder:
		return Patch{Placeholder: &v}
	case FieldContent:
		return Patch{Content: &v}
	default:
		return Patch{Label: &v}
	}
}

// Valid reports whether f is a known text attribute.
func (f TextField) Valid() bool {
	return f == FieldLabel || f == FieldPlaceholder || f == FieldContent
}
