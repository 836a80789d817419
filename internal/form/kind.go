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

// Kind is the closed set of element types a form can contain.
type Kind string

const (
	KindShortText Kind = "text"
	KindLongText  Kind = "textarea"
	KindEmail     Kind = "email"
	KindPhone     Kind = "phone"
	KindNumber    Kind = "number"
	KindURL       Kind = "url"
	KindDate      Kind = "date"
	KindDateTime  Kind = "datetime"
	KindTime      Kind = "time"
	KindColor     Kind = "color"
	KindRange     Kind = "range"
	KindTags      Kind = "tags"
	KindRadio     Kind = "radio"
	KindCheckbox  Kind = "checkbox"
	KindSelect    Kind = "select"
	KindToggle    Kind = "toggle"
	KindRating    Kind = "rating"
	KindFile      Kind = "file"
	KindHeading   Kind = "heading"
	KindParagraph Kind = "paragraph"
	KindImage     Kind = "image"
	KindDivider   Kind = "divider"
	KindPageBreak Kind = "pagebreak"
	KindThankYou  Kind = "thankyou"
)

type kindInfo struct {
	title   string
	choice  bool
	content bool
}

// catalog order is the palette order.
var catalog = []struct {
	kind Kind
	info kindInfo
}{
	{KindShortText, kindInfo{title: "Short text"}},
	{KindLongText, kindInfo{title: "Long text"}},
	{KindEmail, kindInfo{title: "Email"}},
	{KindPhone, kindInfo{title: "Phone"}},
	{KindNumber, kindInfo{title: "Number"}},
	{KindURL, kindInfo{title: "Website"}},
	{KindDate, kindInfo{title: "Date"}},
	{KindDateTime, kindInfo{title: "Date & time"}},
	{KindTime, kindInfo{title: "Time"}},
	{KindColor, kindInfo{title: "Color"}},
	{KindRange, kindInfo{title: "Range"}},
	{KindTags, kindInfo{title: "Tags"}},
	{KindRadio, kindInfo{title: "Single choice", choice: true}},
	{KindCheckbox, kindInfo{title: "Multiple choice", choice: true}},
	{KindSelect, kindInfo{title: "Dropdown", choice: true}},
	{KindToggle, kindInfo{title: "Toggle"}},
	{KindRating, kindInfo{title: "Rating"}},
	{KindFile, kindInfo{title: "File upload"}},
	{KindHeading, kindInfo{title: "Heading", content: true}},
	{KindParagraph, kindInfo{title: "Paragraph", content: true}},
	{KindImage, kindInfo{title: "Image", content: true}},
	{KindDivider, kindInfo{title: "Divider", content: true}},
	{KindPageBreak, kindInfo{title: "Page break", content: true}},
	{KindThankYou, kindInfo{title: "Thank you", content: true}},
}

var kinds = func() map[Kind]kindInfo {
	m := make(map[Kind]kindInfo, len(catalog))
	for _, c := range catalog {
		m[c.kind] = c.info
	}
	return m
}()

// Kinds returns every recognized kind in palette order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(catalog))
	for _, c := range catalog {
		out = append(out, c.kind)
	}
	return out
}

// Valid reports whether k belongs to the closed set.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Title is the human-readable palette name.
func (k Kind) Title() string {
	if info, ok := kinds[k]; ok {
		return info.title
	}
	return string(k)
}

// IsChoice reports whether the kind carries an ordered options list.
func (k Kind) IsChoice() bool { return kinds[k].choice }

// IsContent reports whether the kind is a content block rather than an input.
func (k Kind) IsContent() bool { return kinds[k].content }

// IsInput reports whether the kind collects a value from the respondent.
func (k Kind) IsInput() bool { return k.Valid() && !k.IsContent() }

// HasLabel is false for structural markers that have no display name.
func (k Kind) HasLabel() bool { return k != KindDivider && k != KindPageBreak }

// UsesContent reports whether Element.Content is meaningful for the kind.
func (k Kind) UsesContent() bool {
	return k == KindHeading || k == KindParagraph || k == KindThankYou
}
