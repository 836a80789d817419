/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package reorder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"goformbuilder/internal/form"
)

// ErrMalformedPayload is returned for drop payloads that are not a JSON object
// or lack a recognized element type.
var ErrMalformedPayload = errors.New("malformed drop payload")

// NormalizeDroppedPayload turns an externally sourced drag payload into a
// canonical element. Only type, label, content, placeholder and options are
// read and their values are copied as is; required is always false and
// everything else is discarded. The result carries a fresh id.
func NormalizeDroppedPayload(raw []byte) (form.Element, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return form.Element{}, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return form.Element{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if fields == nil {
		return form.Element{}, fmt.Errorf("%w: null", ErrMalformedPayload)
	}
	d, err := NormalizeFields(fields)
	if err != nil {
		return form.Element{}, err
	}
	return d.Element(newID()), nil
}

// NormalizeFields is NormalizeDroppedPayload for an already decoded object.
// It returns a descriptor so callers can decide where the element goes.
func NormalizeFields(fields map[string]any) (form.Descriptor, error) {
	typ, _ := fields["type"].(string)
	kind := form.Kind(strings.TrimSpace(typ))
	if !kind.Valid() {
		return form.Descriptor{}, fmt.Errorf("%w: unknown type %q", ErrMalformedPayload, typ)
	}
	d := form.Descriptor{
		Type:        kind,
		Label:       textOf(fields["label"]),
		Content:     textOf(fields["content"]),
		Placeholder: textOf(fields["placeholder"]),
		Required:    false,
	}
	if kind.IsChoice() {
		d.Options = optionsOf(fields["options"])
	}
	return d, nil
}

// optionsOf keeps the string items of a JSON array in order.
func optionsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// textOf reads a string field. Non-strings read as empty.
func textOf(v any) string {
	s, _ := v.(string)
	return s
}
