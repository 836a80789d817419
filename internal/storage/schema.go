/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"goformbuilder/internal/form"
)

//go:embed form.schema.json
var formSchemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(formSchemaJSON))
	})
	return schema, schemaErr
}

// Schema returns the JSON schema persisted documents conform to.
func Schema() []byte { return append([]byte(nil), formSchemaJSON...) }

// Validate checks a serialized document against the form schema and rejects
// duplicate element ids, which the schema cannot express.
func Validate(data []byte) error {
	sch, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile form schema: %w", err)
	}
	res, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
	}
	return checkUniqueIDs(data)
}

func checkUniqueIDs(data []byte) error {
	var shape struct {
		Elements []struct {
			ID string `json:"id"`
		} `json:"elements"`
	}
	if err := json.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	els := make([]form.Element, len(shape.Elements))
	for i, e := range shape.Elements {
		els[i].ID = e.ID
	}
	if dups := form.DuplicateIDs(els); len(dups) > 0 {
		return fmt.Errorf("%w: duplicate element ids %s", ErrInvalidDocument, strings.Join(dups, ", "))
	}
	return nil
}
