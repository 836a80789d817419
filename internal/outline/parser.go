/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package outline

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"goformbuilder/internal/form"
)

var (
	reHeading = regexp.MustCompile(`^(#+)\s*(.*)$`)
	reField   = regexp.MustCompile(`^([A-Za-z][A-Za-z &]{0,31})\s*:\s*(.*)$`)
	reBracket = regexp.MustCompile(`\[([^\]]*)\]\s*$`)
	reBreak   = regexp.MustCompile(`^-{3,}$`)
)

// Parse reads an outline.
//
//   - "# Title" before any element names the form; later headings become heading elements.
//   - "> text" lines before any element form the description.
//   - "---" is a page break.
//   - "kind: label" adds an element; kind is a type value ("email") or palette title ("Single choice").
//     A trailing "*" marks an input required. "[a, b, c]" sets choice options;
//     for a range it is "[min, max, step]".
//   - Lines starting with ";" are notes and ignored.
//   - Any other line is a paragraph. Lines indented by two or more spaces continue
//     the previous element's text.
func Parse(input string) (Outline, []Error) {
	var (
		out    Outline
		errs   []Error
		last   *form.Descriptor
		lineNo int
	)
	add := func(d form.Descriptor) {
		out.Items = append(out.Items, Item{Descriptor: d, LineNo: lineNo})
		last = &out.Items[len(out.Items)-1].Descriptor
	}

	sc := bufio.NewScanner(strings.NewReader(input))
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		if strings.HasPrefix(line, "  ") && last != nil {
			if cont := strings.TrimSpace(line); cont != "" {
				appendText(last, cont)
			}
			continue
		}

		trim := strings.TrimSpace(line)
		switch {
		case trim == "":
			last = nil
		case strings.HasPrefix(trim, ";"):
			last = nil
		case reBreak.MatchString(trim):
			add(form.NewDescriptor(form.KindPageBreak))
			last = nil
		case strings.HasPrefix(trim, ">") && len(out.Items) == 0:
			text := strings.TrimSpace(strings.TrimPrefix(trim, ">"))
			if out.Description != "" {
				out.Description += "\n"
			}
			out.Description += text
			last = nil
		case reHeading.MatchString(trim):
			m := reHeading.FindStringSubmatch(trim)
			text := strings.TrimSpace(m[2])
			if len(m[1]) == 1 && out.Title == "" && len(out.Items) == 0 {
				out.Title = text
				last = nil
				continue
			}
			d := form.NewDescriptor(form.KindHeading)
			d.Content = text
			add(d)
		default:
			d, ok, err := field(trim)
			if err != nil {
				errs = append(errs, Error{Line: lineNo, Message: err.Error()})
				last = nil
				continue
			}
			if !ok {
				d = form.NewDescriptor(form.KindParagraph)
				d.Content = trim
			}
			add(d)
		}
	}
	if err := sc.Err(); err != nil {
		errs = append(errs, Error{Line: lineNo, Message: err.Error()})
	}
	return out, errs
}

// field parses "kind: label"; ok is false when the prefix names no kind.
func field(line string) (form.Descriptor, bool, error) {
	m := reField.FindStringSubmatch(line)
	if m == nil {
		return form.Descriptor{}, false, nil
	}
	k, ok := kindOf(m[1])
	if !ok {
		return form.Descriptor{}, false, nil
	}
	d := form.NewDescriptor(k)
	rest := strings.TrimSpace(m[2])

	if bm := reBracket.FindStringSubmatchIndex(rest); bm != nil {
		inner := rest[bm[2]:bm[3]]
		rest = strings.TrimSpace(rest[:bm[0]])
		switch {
		case k.IsChoice():
			if opts := splitList(inner); len(opts) > 0 {
				d.Options = opts
			}
		case k == form.KindRange:
			v, err := bounds(inner)
			if err != nil {
				return form.Descriptor{}, false, err
			}
			d.Validation = v
		}
	}
	if strings.HasSuffix(rest, "*") {
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "*"))
		d.Required = k.IsInput()
	}
	switch {
	case rest == "":
	case k.UsesContent():
		d.Content = rest
	case k.HasLabel():
		d.Label = rest
	}
	return d, true, nil
}

func kindOf(s string) (form.Kind, bool) {
	s = strings.TrimSpace(s)
	k := form.Kind(strings.ToLower(s))
	if k.Valid() {
		return k, true
	}
	for _, c := range form.Kinds() {
		if strings.EqualFold(c.Title(), s) {
			return c, true
		}
	}
	return "", false
}

func splitList(s string) []string {
	sep := ","
	if strings.Contains(s, "|") {
		sep = "|"
	}
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func bounds(s string) (*form.Validation, error) {
	parts := splitList(s)
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("range needs [min, max] or [min, max, step], got [%s]", s)
	}
	nums := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("range bound %q is not a number", p)
		}
		nums[i] = f
	}
	v := &form.Validation{Min: nums[0], Max: nums[1], Step: 1}
	if len(nums) == 3 {
		v.Step = nums[2]
	}
	if v.Min >= v.Max || v.Step <= 0 {
		return nil, fmt.Errorf("range [%s] needs min < max and a positive step", s)
	}
	return v, nil
}

func appendText(d *form.Descriptor, s string) {
	if d.Type.UsesContent() {
		d.Content = joinLine(d.Content, s)
		return
	}
	if d.Type.HasLabel() {
		d.Label = joinLine(d.Label, s)
	}
}

func joinLine(a, b string) string {
	if a == "" {
		return b
	}
	return a + "\n" + b
}
