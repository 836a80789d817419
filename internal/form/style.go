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

// Style is a free-form override map (columns, colors, radius, alignment, spacing...).
// Values are JSON scalars or nested maps.
type Style map[string]any

// Well-known style keys. Unknown keys are carried through untouched.
const (
	StyleColumns     = "columns"
	StylePrimary     = "primaryColor"
	StyleBackground  = "backgroundColor"
	StyleTextColor   = "textColor"
	StyleRadius      = "borderRadius"
	StyleAlignment   = "alignment"
	StyleSpacing     = "spacing"
	StyleFontFamily  = "fontFamily"
	StyleLabelWeight = "labelWeight"
)

// Clone copies the top level of s. Nested maps are copied one level as well.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		if m, ok := v.(map[string]any); ok {
			nm := make(map[string]any, len(m))
			for mk, mv := range m {
				nm[mk] = mv
			}
			v = nm
		}
		out[k] = v
	}
	return out
}

// Merge returns s with patch applied one level deep. A nil value in the patch
// removes the key. Neither input is modified.
func (s Style) Merge(patch Style) Style {
	if len(patch) == 0 {
		return s.Clone()
	}
	out := s.Clone()
	if out == nil {
		out = make(Style, len(patch))
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// EffectiveStyle resolves the style an element renders with: document style
// overlaid by the element's own overrides.
func EffectiveStyle(doc Style, el Element) Style {
	return doc.Merge(el.Style)
}
