/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"goformbuilder/internal/form"
)

const (
	openAPIVersion = "3.0.3"
	colorPattern   = `^#[0-9a-fA-F]{6}$`
	timePattern    = `^([01][0-9]|2[0-3]):[0-5][0-9]$`
	ratingMax      = 5
)

// SubmissionSpec describes what a respondent posts for the form as an OpenAPI
// document with a single POST /forms/{id}/submissions operation. The request
// body is an object keyed by element id; content blocks are left out.
func SubmissionSpec(doc form.Document, id string) (*openapi3.T, error) {
	if id == "" {
		return nil, errors.New("openapi: form id is required")
	}
	title := doc.Title
	if title == "" {
		title = "Untitled form"
	}

	body := SubmissionSchema(doc)
	op := openapi3.NewOperation()
	op.OperationID = "submit-" + id
	op.Summary = title
	op.Description = doc.Description
	op.RequestBody = &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchema(body),
	}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(201, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Submission accepted")}),
		openapi3.WithStatus(422, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription("Submission rejected")}),
	)

	spec := &openapi3.T{
		OpenAPI: openAPIVersion,
		Info:    &openapi3.Info{Title: title, Version: "1"},
		Paths: openapi3.NewPaths(
			openapi3.WithPath(fmt.Sprintf("/forms/%s/submissions", id), &openapi3.PathItem{Post: op}),
		),
	}
	if err := spec.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("openapi: validate: %w", err)
	}
	return spec, nil
}

// SubmissionSchema returns the object schema of one submission.
func SubmissionSchema(doc form.Document) *openapi3.Schema {
	obj := openapi3.NewObjectSchema()
	obj.Properties = openapi3.Schemas{}
	for _, el := range doc.Elements {
		if !el.Type.IsInput() {
			continue
		}
		s := fieldSchema(el)
		if el.Label != "" {
			s.Title = el.Label
		}
		if el.Placeholder != "" {
			s.Description = el.Placeholder
		}
		obj.Properties[el.ID] = openapi3.NewSchemaRef("", s)
		if el.Required {
			obj.Required = append(obj.Required, el.ID)
		}
	}
	return obj
}

func fieldSchema(el form.Element) *openapi3.Schema {
	switch el.Type {
	case form.KindEmail:
		return openapi3.NewStringSchema().WithFormat("email")
	case form.KindURL:
		return openapi3.NewStringSchema().WithFormat("uri")
	case form.KindDate:
		return openapi3.NewStringSchema().WithFormat("date")
	case form.KindDateTime:
		return openapi3.NewStringSchema().WithFormat("date-time")
	case form.KindTime:
		return openapi3.NewStringSchema().WithPattern(timePattern)
	case form.KindColor:
		return openapi3.NewStringSchema().WithPattern(colorPattern)
	case form.KindNumber:
		return openapi3.NewFloat64Schema()
	case form.KindRange:
		s := openapi3.NewFloat64Schema()
		if v := el.Validation; v != nil {
			s = s.WithMin(v.Min).WithMax(v.Max)
			if v.Step > 0 {
				step := v.Step
				s.MultipleOf = &step
			}
		}
		return s
	case form.KindRating:
		return openapi3.NewIntegerSchema().WithMin(1).WithMax(ratingMax)
	case form.KindToggle:
		return openapi3.NewBoolSchema()
	case form.KindFile:
		return openapi3.NewStringSchema().WithFormat("binary")
	case form.KindTags:
		return openapi3.NewArraySchema().WithItems(openapi3.NewStringSchema())
	case form.KindRadio, form.KindSelect:
		return choiceSchema(el.Options)
	case form.KindCheckbox:
		return openapi3.NewArraySchema().WithItems(choiceSchema(el.Options)).WithUniqueItems(true)
	default:
		return openapi3.NewStringSchema()
	}
}

// choiceSchema restricts a string to the option list; an empty list allows any string.
func choiceSchema(options []string) *openapi3.Schema {
	s := openapi3.NewStringSchema()
	if len(options) == 0 {
		return s
	}
	values := make([]any, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, o := range options {
		if seen[o] {
			continue
		}
		seen[o] = true
		values = append(values, o)
	}
	return s.WithEnum(values...)
}
