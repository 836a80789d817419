/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"sort"
	"strings"
)

// Paper names a printable page size.
type Paper string

const (
	PaperA4     Paper = "a4"
	PaperA5     Paper = "a5"
	PaperLetter Paper = "letter"
	PaperLegal  Paper = "legal"
)

// sizes in points (1/72 in), portrait.
var paperSizes = map[Paper][2]float64{
	PaperA4:     {595.28, 841.89},
	PaperA5:     {419.53, 595.28},
	PaperLetter: {612, 792},
	PaperLegal:  {612, 1008},
}

// Papers lists the supported paper names, sorted.
func Papers() []Paper {
	out := make([]Paper, 0, len(paperSizes))
	for p := range paperSizes {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParsePaper resolves a case-insensitive paper name. Empty means A4.
func ParsePaper(s string) (Paper, error) {
	p := Paper(strings.ToLower(strings.TrimSpace(s)))
	if p == "" {
		return PaperA4, nil
	}
	if _, ok := paperSizes[p]; !ok {
		return "", fmt.Errorf("unknown paper %q", s)
	}
	return p, nil
}

// Size returns width and height in points. Unknown papers fall back to A4.
func (p Paper) Size(landscape bool) (w, h float64) {
	sz, ok := paperSizes[p]
	if !ok {
		sz = paperSizes[PaperA4]
	}
	if landscape {
		return sz[1], sz[0]
	}
	return sz[0], sz[1]
}
