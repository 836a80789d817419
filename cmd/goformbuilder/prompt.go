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
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"goformbuilder/internal/form"
)

// errAborted is returned when the user interrupts a prompt.
var errAborted = errors.New("aborted")

// Prompter asks the user for decisions the command line does not carry.
type Prompter interface {
	PickKind(ctx context.Context) (form.Kind, error)
	Confirm(ctx context.Context, msg string, def bool) (bool, error)
	Input(ctx context.Context, msg, def string) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) PickKind(ctx context.Context) (form.Kind, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	kinds := form.Kinds()
	options := make([]string, len(kinds))
	for i, k := range kinds {
		options[i] = kindOption(k)
	}
	var out string
	prompt := &survey.Select{
		Message:  "Element type:",
		Options:  options,
		PageSize: 12,
	}
	if err := survey.AskOne(prompt, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	for i, o := range options {
		if o == out {
			return kinds[i], nil
		}
	}
	return "", fmt.Errorf("unknown choice %q", out)
}

func (surveyPrompter) Confirm(ctx context.Context, msg string, def bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var out bool
	if err := survey.AskOne(&survey.Confirm{Message: msg, Default: def}, &out); err != nil {
		return false, translateSurveyErr(err)
	}
	return out, nil
}

func (surveyPrompter) Input(ctx context.Context, msg, def string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	if err := survey.AskOne(&survey.Input{Message: msg, Default: def}, &out); err != nil {
		return "", translateSurveyErr(err)
	}
	return strings.TrimSpace(out), nil
}

func kindOption(k form.Kind) string { return fmt.Sprintf("%-16s %s", k.Title(), k) }

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return errAborted
	}
	return err
}
