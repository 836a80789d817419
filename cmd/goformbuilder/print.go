/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"goformbuilder/internal/assist"
	"goformbuilder/internal/builder"
	"goformbuilder/internal/form"
	"goformbuilder/internal/pages"
	"goformbuilder/internal/storage"
)

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// describe renders the text a reader would see for el, truncated.
func describe(el form.Element) string {
	s := el.Label
	if el.Type.UsesContent() || s == "" {
		s = el.Content
	}
	if s == "" {
		s = el.Type.Title()
	}
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > 48 {
		s = string(r[:47]) + "..."
	}
	if el.Required {
		s += " *"
	}
	if el.Type.IsChoice() && len(el.Options) > 0 {
		s += " [" + strings.Join(el.Options, "|") + "]"
	}
	return s
}

func elementLine(pos int, el form.Element, selected bool) string {
	mark := " "
	if selected {
		mark = ">"
	}
	return fmt.Sprintf("%s %3d  %-8s  %-10s %s", mark, pos, shortID(el.ID), el.Type, describe(el))
}

func printSequence(w io.Writer, elements []form.Element, selected string) {
	if len(elements) == 0 {
		_, _ = fmt.Fprintln(w, "(no elements)")
		return
	}
	for i, el := range elements {
		_, _ = fmt.Fprintln(w, elementLine(i+1, el, el.ID == selected))
	}
}

// printElements lists subset with positions taken from the full sequence.
func printElements(w io.Writer, all, subset []form.Element, selected string) {
	if len(subset) == 0 {
		_, _ = fmt.Fprintln(w, "    (empty)")
		return
	}
	for _, el := range subset {
		_, _ = fmt.Fprintln(w, "  "+elementLine(form.IndexOf(all, el.ID)+1, el, el.ID == selected))
	}
}

func printPages(w io.Writer, b *builder.Builder) {
	all := b.Elements()
	_, current := b.CurrentPage()
	for i, pg := range b.Pages() {
		mark := " "
		if i == current {
			mark = "*"
		}
		_, _ = fmt.Fprintf(w, "%s %s (%d)\n", mark, pg.Label, len(pg.Elements))
		printElements(w, all, pg.Elements, b.Selected())
	}
}

func printDocument(w io.Writer, id string, doc form.Document) {
	_, _ = fmt.Fprintf(w, "Form: %s\n", doc.Title)
	_, _ = fmt.Fprintf(w, "ID: %s\n", id)
	if doc.Description != "" {
		_, _ = fmt.Fprintf(w, "Description: %s\n", doc.Description)
	}
	projected := pages.Project(doc.Elements)
	_, _ = fmt.Fprintf(w, "Elements: %d  Pages: %d\n", len(doc.Elements), len(projected))
	for _, pg := range projected {
		_, _ = fmt.Fprintf(w, "  %s (%d)\n", pg.Label, len(pg.Elements))
		printElements(w, doc.Elements, pg.Elements, "")
	}
}

func printSummaries(w io.Writer, list []storage.Summary) {
	if len(list) == 0 {
		_, _ = fmt.Fprintln(w, "(no forms)")
		return
	}
	for _, s := range list {
		_, _ = fmt.Fprintf(w, "%s  %-32s  %3d elements  %2d pages  %s\n",
			s.ID, s.Title, s.Elements, s.Pages, s.UpdatedAt.Local().Format(time.DateTime))
	}
}

func printSuggestion(w io.Writer, s assist.Suggestion) {
	for _, d := range s.Elements {
		_, _ = fmt.Fprintf(w, "  + %-10s %s\n", d.Type, describe(d.Element("")))
	}
	for k, v := range s.Style {
		if v == nil {
			_, _ = fmt.Fprintf(w, "  style %s removed\n", k)
			continue
		}
		_, _ = fmt.Fprintf(w, "  style %s = %v\n", k, v)
	}
}
