/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package pages derives the paginated view of a form from its flat element sequence.
// Pages are never stored; they are recomputed from the sequence on every read.
package pages

import (
	"fmt"

	"goformbuilder/internal/form"
)

// Kind distinguishes regular pages from the closing thank-you screen.
type Kind string

const (
	KindNormal   Kind = "normal"
	KindThankYou Kind = "thank-you"
)

const thankYouLabel = "Thank You"

// Page is a contiguous run of elements bounded by page-break or thank-you markers.
type Page struct {
	Kind     Kind           `json:"kind"`
	Label    string         `json:"label"`
	Elements []form.Element `json:"elements"`
}

// Project walks elements once and splits them into pages.
//
// A page break flushes the pending bucket as "Page N" and advances N; a break
// with an empty bucket is dropped, so consecutive breaks never yield empty pages.
// A thank-you element flushes the pending bucket under the current N without
// advancing it, then emits its own "Thank You" page. When nothing was emitted the
// whole sequence is returned as a single "Page 1".
func Project(elements []form.Element) []Page {
	var (
		out        []Page
		bucket     []form.Element
		pageNumber = 1
	)
	flush := func() {
		out = append(out, Page{Kind: KindNormal, Label: pageLabel(pageNumber), Elements: bucket})
		bucket = nil
	}
	for _, el := range elements {
		switch el.Type {
		case form.KindPageBreak:
			if len(bucket) == 0 {
				continue
			}
			flush()
			pageNumber++
		case form.KindThankYou:
			if len(bucket) > 0 {
				// pageNumber intentionally stays put here; later labels may repeat.
				flush()
			}
			out = append(out, Page{Kind: KindThankYou, Label: thankYouLabel, Elements: []form.Element{el}})
		default:
			bucket = append(bucket, el)
		}
	}
	if len(bucket) > 0 {
		flush()
	}
	if len(out) == 0 {
		all := make([]form.Element, len(elements))
		copy(all, elements)
		return []Page{{Kind: KindNormal, Label: pageLabel(1), Elements: all}}
	}
	return out
}

func pageLabel(n int) string { return fmt.Sprintf("Page %d", n) }

// Locate returns the index of the page containing element id.
func Locate(pages []Page, id string) (int, bool) {
	for i, p := range pages {
		if form.IndexOf(p.Elements, id) >= 0 {
			return i, true
		}
	}
	return -1, false
}

// Clamp bounds a selected page index to the available pages.
func Clamp(pages []Page, i int) int {
	if i < 0 || len(pages) == 0 {
		return 0
	}
	if i >= len(pages) {
		return len(pages) - 1
	}
	return i
}
