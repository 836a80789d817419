/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParsePaper(t *testing.T) {
	cases := []struct {
		in      string
		want    Paper
		wantErr bool
	}{
		{"", PaperA4, false},
		{"A4", PaperA4, false},
		{" Letter ", PaperLetter, false},
		{"tabloid", "", true},
	}
	for _, c := range cases {
		got, err := ParsePaper(c.in)
		if (err != nil) != c.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", c.in, err, c.wantErr)
		}
		if got != c.want {
			t.Fatalf("%q: got %q want %q", c.in, got, c.want)
		}
	}
}

func TestPaperSize(t *testing.T) {
	w, h := PaperLetter.Size(false)
	if w != 612 || h != 792 {
		t.Fatalf("letter portrait = %vx%v", w, h)
	}
	w, h = PaperLetter.Size(true)
	if w != 792 || h != 612 {
		t.Fatalf("letter landscape = %vx%v", w, h)
	}
	aw, ah := PaperA4.Size(false)
	uw, uh := Paper("bogus").Size(false)
	if aw != uw || ah != uh {
		t.Fatalf("unknown paper should fall back to A4")
	}
	want := []Paper{PaperA4, PaperA5, PaperLegal, PaperLetter}
	if diff := cmp.Diff(want, Papers()); diff != "" {
		t.Fatalf("papers mismatch (-want +got):\n%s", diff)
	}
}
