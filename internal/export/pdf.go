/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders a form document to printable formats.
package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"goformbuilder/internal/form"
	"goformbuilder/internal/pages"
)

// PDFOptions controls PDF export. Units are points.
// Built-in Helvetica keeps text vector without embedding; text is translated
// to cp1252, so glyphs outside it print as '?'.
type PDFOptions struct {
	Paper      Paper
	Landscape  bool
	Margin     float64 // default 48
	PageLabels bool    // print "Page N" / "Thank You" in the page header
	Pages      []int   // projected page indexes; empty exports all
	Author     string
}

type rgb struct{ r, g, b int }

var (
	black     = rgb{0, 0, 0}
	muted     = rgb{110, 110, 110}
	fieldLine = rgb{160, 160, 160}
	accent    = rgb{37, 99, 235}
)

type renderer struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	doc    form.Document
	w, h   float64
	margin float64
}

// ExportPDF writes doc as a multi-page PDF, one or more sheets per projected page.
func ExportPDF(doc form.Document, outPath string, opt PDFOptions) error {
	if strings.TrimSpace(outPath) == "" {
		return errors.New("output path is required")
	}
	w, h := opt.Paper.Size(opt.Landscape)
	margin := opt.Margin
	if margin <= 0 {
		margin = 48
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: w, Ht: h},
	})
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	title := doc.Title
	if title == "" {
		title = "Untitled form"
	}
	pdf.SetTitle(title, true)
	pdf.SetCreator("Go Form Builder", true)
	if opt.Author != "" {
		pdf.SetAuthor(opt.Author, true)
	}

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), doc: doc, w: w, h: h, margin: margin}
	projected := pages.Project(doc.Elements)
	for n, idx := range pageIndexes(len(projected), opt.Pages) {
		pg := projected[idx]
		pdf.AddPage()
		if n == 0 {
			r.header(title, doc.Description)
		}
		if opt.PageLabels {
			r.pageLabel(pg.Label)
		}
		for _, el := range pg.Elements {
			r.element(el)
		}
	}
	if pdf.PageNo() == 0 {
		pdf.AddPage()
		r.header(title, doc.Description)
	}
	if pdf.Err() {
		return fmt.Errorf("render pdf: %w", pdf.Error())
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure out dir: %w", err)
		}
	}
	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// pageIndexes keeps requested indexes that exist, in request order.
func pageIndexes(total int, specific []int) []int {
	if len(specific) == 0 {
		out := make([]int, total)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, 0, len(specific))
	for _, i := range specific {
		if i >= 0 && i < total {
			out = append(out, i)
		}
	}
	return out
}

func (r *renderer) contentWidth() float64 { return r.w - 2*r.margin }

// ensure starts a new sheet when fewer than need points remain.
func (r *renderer) ensure(need float64) {
	if r.pdf.GetY()+need > r.h-r.margin {
		r.pdf.AddPage()
	}
}

func (r *renderer) color(c rgb) { r.pdf.SetTextColor(c.r, c.g, c.b) }

func (r *renderer) header(title, description string) {
	r.color(black)
	r.pdf.SetFont("Helvetica", "B", 20)
	r.pdf.MultiCell(r.contentWidth(), 24, r.tr(title), "", "L", false)
	if description != "" {
		r.color(muted)
		r.pdf.SetFont("Helvetica", "", 11)
		r.pdf.MultiCell(r.contentWidth(), 14, r.tr(description), "", "L", false)
	}
	r.pdf.Ln(12)
}

func (r *renderer) pageLabel(label string) {
	r.color(muted)
	r.pdf.SetFont("Helvetica", "", 9)
	r.pdf.CellFormat(r.contentWidth(), 12, r.tr(label), "", 1, "R", false, 0, "")
	r.pdf.Ln(4)
}

func (r *renderer) element(el form.Element) {
	st := form.EffectiveStyle(r.doc.Style, el)
	primary := styleColor(st, form.StylePrimary, accent)
	text := styleColor(st, form.StyleTextColor, black)
	align := alignment(st)
	x := r.margin
	cw := r.contentWidth()

	switch el.Type {
	case form.KindHeading:
		r.ensure(28)
		r.color(text)
		r.pdf.SetFont("Helvetica", "B", 15)
		r.pdf.MultiCell(cw, 20, r.tr(el.Content), "", align, false)
		r.pdf.Ln(6)
		return
	case form.KindParagraph:
		r.ensure(18)
		r.color(text)
		r.pdf.SetFont("Helvetica", "", 11)
		r.pdf.MultiCell(cw, 14, r.tr(el.Content), "", align, false)
		r.pdf.Ln(8)
		return
	case form.KindDivider:
		r.ensure(16)
		y := r.pdf.GetY() + 6
		r.pdf.SetDrawColor(fieldLine.r, fieldLine.g, fieldLine.b)
		r.pdf.SetLineWidth(0.5)
		r.pdf.Line(x, y, x+cw, y)
		r.pdf.SetY(y + 10)
		return
	case form.KindImage:
		r.ensure(90)
		y := r.pdf.GetY()
		r.pdf.SetDrawColor(fieldLine.r, fieldLine.g, fieldLine.b)
		r.pdf.Rect(x, y, cw, 80, "D")
		r.color(muted)
		r.pdf.SetFont("Helvetica", "I", 10)
		r.pdf.SetXY(x, y+34)
		caption := el.Label
		if caption == "" {
			caption = "Image"
		}
		r.pdf.CellFormat(cw, 12, r.tr(caption), "", 1, "C", false, 0, "")
		r.pdf.SetY(y + 90)
		return
	case form.KindThankYou:
		r.ensure(40)
		r.pdf.Ln(40)
		r.color(primary)
		r.pdf.SetFont("Helvetica", "B", 16)
		r.pdf.MultiCell(cw, 22, r.tr(el.Content), "", "C", false)
		return
	case form.KindPageBreak:
		return
	}

	// input kinds: label then a field sketch
	label := el.Label
	if label == "" {
		label = el.Type.Title()
	}
	if el.Required {
		label += " *"
	}
	r.ensure(40)
	r.color(text)
	r.pdf.SetFont("Helvetica", "B", 10)
	r.pdf.MultiCell(cw, 14, r.tr(label), "", "L", false)
	r.pdf.Ln(2)
	r.pdf.SetDrawColor(primary.r, primary.g, primary.b)
	r.pdf.SetLineWidth(0.6)
	r.pdf.SetFont("Helvetica", "", 10)

	switch {
	case el.Type == form.KindRadio || el.Type == form.KindCheckbox:
		for _, opt := range el.Options {
			r.ensure(16)
			y := r.pdf.GetY()
			if el.Type == form.KindRadio {
				r.pdf.Circle(x+5, y+6, 4.5, "D")
			} else {
				r.pdf.Rect(x+0.5, y+1.5, 9, 9, "D")
			}
			r.color(text)
			r.pdf.SetXY(x+16, y)
			r.pdf.CellFormat(cw-16, 12, r.tr(opt), "", 1, "L", false, 0, "")
			r.pdf.Ln(3)
		}
	case el.Type == form.KindSelect:
		r.box(x, cw, 20, firstOr(el.Placeholder, "Select..."))
		r.color(muted)
		r.pdf.SetFont("Helvetica", "", 8)
		r.pdf.MultiCell(cw, 10, r.tr("Options: "+strings.Join(el.Options, ", ")), "", "L", false)
	case el.Type == form.KindLongText:
		r.box(x, cw, 64, el.Placeholder)
	case el.Type == form.KindRange:
		r.rangeLine(x, cw, el.Validation)
	case el.Type == form.KindRating:
		y := r.pdf.GetY()
		for i := 0; i < 5; i++ {
			r.pdf.Rect(x+float64(i)*18, y, 12, 12, "D")
		}
		r.pdf.SetY(y + 16)
	case el.Type == form.KindToggle:
		y := r.pdf.GetY()
		r.pdf.Rect(x, y, 26, 12, "D")
		r.pdf.Circle(x+6, y+6, 4, "D")
		r.pdf.SetY(y + 16)
	case el.Type == form.KindFile:
		r.box(x, cw, 36, firstOr(el.Placeholder, "Attach file"))
	default:
		r.box(x, cw/2+cw/4, 20, firstOr(el.Placeholder, placeholderFor(el.Type)))
	}
	r.pdf.Ln(10)
}

func (r *renderer) box(x, w, h float64, hint string) {
	r.ensure(h + 4)
	y := r.pdf.GetY()
	r.pdf.Rect(x, y, w, h, "D")
	if hint != "" {
		r.color(muted)
		r.pdf.SetXY(x+4, y+4)
		r.pdf.CellFormat(w-8, 12, r.tr(hint), "", 0, "L", false, 0, "")
	}
	r.pdf.SetXY(x, y+h+2)
}

func (r *renderer) rangeLine(x, w float64, v *form.Validation) {
	lo, hi := 0.0, 100.0
	if v != nil {
		lo, hi = v.Min, v.Max
	}
	y := r.pdf.GetY() + 6
	r.pdf.Line(x, y, x+w, y)
	r.pdf.Line(x, y-4, x, y+4)
	r.pdf.Line(x+w, y-4, x+w, y+4)
	r.color(muted)
	r.pdf.SetFont("Helvetica", "", 8)
	r.pdf.SetXY(x, y+5)
	r.pdf.CellFormat(w/2, 10, formatNum(lo), "", 0, "L", false, 0, "")
	r.pdf.CellFormat(w/2, 10, formatNum(hi), "", 1, "R", false, 0, "")
}

func placeholderFor(k form.Kind) string {
	switch k {
	case form.KindDate:
		return "YYYY-MM-DD"
	case form.KindDateTime:
		return "YYYY-MM-DD hh:mm"
	case form.KindTime:
		return "hh:mm"
	case form.KindEmail:
		return "name@example.com"
	case form.KindURL:
		return "https://"
	case form.KindColor:
		return "#RRGGBB"
	case form.KindTags:
		return "tag, tag, tag"
	}
	return ""
}

func firstOr(s, def string) string {
	if s != "" {
		return s
	}
	return def
}

func formatNum(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func alignment(st form.Style) string {
	s, _ := st[form.StyleAlignment].(string)
	switch strings.ToLower(s) {
	case "center":
		return "C"
	case "right":
		return "R"
	}
	return "L"
}

// styleColor reads a "#rgb" or "#rrggbb" value from st.
func styleColor(st form.Style, key string, def rgb) rgb {
	s, _ := st[key].(string)
	if c, ok := parseHex(s); ok {
		return c
	}
	return def
}

func parseHex(s string) (rgb, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}
