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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"goformbuilder/internal/config"
	"goformbuilder/internal/telemetry"
)

type cli struct {
	t      *testing.T
	dir    string
	prompt *fakePrompter
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{t: t, dir: t.TempDir(), prompt: &fakePrompter{}}
	cfg := config.Defaults()
	cfg.Storage.Driver = config.DriverFile
	cfg.Storage.Dir = c.dir
	cfg.Logging = config.LoggingConfig{Level: "error", Format: "console"}

	prevLoad, prevPrompt := loadConfig, newPrompter
	loadConfig = func() (config.AppConfig, string, error) { return cfg, "", nil }
	newPrompter = func() Prompter { return c.prompt }
	telemetry.SetDefault(telemetry.New(telemetry.Config{}))
	t.Cleanup(func() {
		loadConfig, newPrompter = prevLoad, prevPrompt
		telemetry.SetDefault(nil)
	})
	return c
}

func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func (c *cli) mustRun(stdin string, args ...string) string {
	c.t.Helper()
	code, out, errOut := c.run(stdin, args...)
	if code != 0 {
		c.t.Fatalf("%v exited %d\nstdout:\n%s\nstderr:\n%s", args, code, out, errOut)
	}
	return out
}

func TestVersionAndUsage(t *testing.T) {
	c := newCLI(t)
	if out := c.mustRun("", "version"); !strings.Contains(out, "Go Form Builder") {
		t.Fatalf("version output:\n%s", out)
	}
	if out := c.mustRun(""); !strings.Contains(out, "Usage:") {
		t.Fatalf("usage output:\n%s", out)
	}
	if code, _, errOut := c.run("", "frobnicate"); code != 2 || !strings.Contains(errOut, `unknown command "frobnicate"`) {
		t.Fatalf("unknown command: code=%d\n%s", code, errOut)
	}
	if code, _, errOut := c.run("", "show", c.dir); code != 2 || !strings.Contains(errOut, "show requires") {
		t.Fatalf("missing args: code=%d\n%s", code, errOut)
	}
}

func TestFormLifecycle(t *testing.T) {
	c := newCLI(t)
	c.mustRun("", "init", c.dir)
	id := strings.TrimSpace(c.mustRun("", "new", c.dir, "Contact", "Reach", "us"))
	if id == "" {
		t.Fatalf("new printed no id")
	}

	if out := c.mustRun("", "add", c.dir, id, "email", "Your", "email"); !strings.Contains(out, "added email") {
		t.Fatalf("add output:\n%s", out)
	}
	c.prompt.kinds = append(c.prompt.kinds, "pagebreak")
	c.mustRun("", "add", c.dir, id)
	if out := c.mustRun(`{"type":"text","label":"Name","required":true}`, "drop", c.dir, id, "-", "1"); !strings.Contains(out, "at #1") {
		t.Fatalf("drop output:\n%s", out)
	}

	show := c.mustRun("", "show", c.dir, id)
	for _, want := range []string{"Form: Contact", "Description: Reach us", "Elements: 3  Pages: 1", "Name", "Your email"} {
		if !strings.Contains(show, want) {
			t.Fatalf("show missing %q:\n%s", want, show)
		}
	}
	if strings.Index(show, "Name") > strings.Index(show, "Your email") {
		t.Fatalf("dropped field should come first:\n%s", show)
	}
	if out := c.mustRun("", "list", c.dir); !strings.Contains(out, id) || !strings.Contains(out, "Contact") {
		t.Fatalf("list output:\n%s", out)
	}
	if out := c.mustRun("", "search", c.dir, "email"); !strings.Contains(out, "Your email") {
		t.Fatalf("search output:\n%s", out)
	}
	c.mustRun("", "revisions", c.dir, id)

	pdf := filepath.Join(t.TempDir(), "contact.pdf")
	c.mustRun("", "export", c.dir, id, pdf, "letter")
	data, err := os.ReadFile(pdf)
	if err != nil || !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("exported file: %v", err)
	}

	c.prompt.confirms = []bool{false}
	c.mustRun("", "rm", c.dir, id)
	c.mustRun("", "show", c.dir, id)

	c.prompt.confirms = []bool{true}
	if out := c.mustRun("", "rm", c.dir, id); !strings.Contains(out, "Deleted") {
		t.Fatalf("rm output:\n%s", out)
	}
	if code, _, _ := c.run("", "show", c.dir, id); code != 1 {
		t.Fatalf("show after rm exited %d", code)
	}
}

func TestEditSessionPersists(t *testing.T) {
	c := newCLI(t)
	id := strings.TrimSpace(c.mustRun("", "new", c.dir, "Survey"))
	out := c.mustRun("add rating How was it\nadd textarea Comments\nset 2 required true\nsave\nquit\n", "edit", c.dir, id)
	if !strings.Contains(out, "saved "+id) {
		t.Fatalf("edit output:\n%s", out)
	}
	show := c.mustRun("", "show", c.dir, id)
	if !strings.Contains(show, "How was it") || !strings.Contains(show, "Comments") {
		t.Fatalf("show after edit:\n%s", show)
	}
}

func TestDropRejectsMalformedPayload(t *testing.T) {
	c := newCLI(t)
	id := strings.TrimSpace(c.mustRun("", "new", c.dir, "Empty"))
	if code, _, errOut := c.run(`{"type":"hologram"}`, "drop", c.dir, id, "-"); code != 1 || !strings.Contains(errOut, "hologram") {
		t.Fatalf("code=%d\n%s", code, errOut)
	}
	if show := c.mustRun("", "show", c.dir, id); !strings.Contains(show, "Elements: 0") {
		t.Fatalf("malformed drop changed the form:\n%s", show)
	}
}

func TestSuggestWithoutAssistService(t *testing.T) {
	c := newCLI(t)
	id := strings.TrimSpace(c.mustRun("", "new", c.dir, "Empty"))
	if code, _, errOut := c.run("", "suggest", c.dir, id, "add", "a", "name"); code != 1 || !strings.Contains(errOut, "GFB_ASSIST_URL") {
		t.Fatalf("code=%d\n%s", code, errOut)
	}
}

func TestImportOutlineAndPack(t *testing.T) {
	c := newCLI(t)
	outlineText := "# Signup\n> Join the club\ntext: Name *\nSingle choice: Plan [Free, Pro]\n---\nthankyou: Welcome!\n"
	id := strings.TrimSpace(c.mustRun(outlineText, "import", c.dir, "-"))
	show := c.mustRun("", "show", c.dir, id)
	for _, want := range []string{"Form: Signup", "Description: Join the club", "Elements: 4", "Thank You"} {
		if !strings.Contains(show, want) {
			t.Fatalf("show missing %q:\n%s", want, show)
		}
	}
	schema := c.mustRun("", "schema", c.dir, id)
	for _, want := range []string{`"openapi": "3.0.3"`, "/forms/" + id + "/submissions", `"Free"`, `"required"`} {
		if !strings.Contains(schema, want) {
			t.Fatalf("schema missing %q:\n%s", want, schema)
		}
	}
	if code, _, errOut := c.run("range: X [5, 1]\n", "import", c.dir, "-"); code != 1 || !strings.Contains(errOut, "line 1") {
		t.Fatalf("bad outline: code=%d\n%s", code, errOut)
	}

	zipPath := filepath.Join(t.TempDir(), "forms.zip")
	if out := c.mustRun("", "pack", c.dir, zipPath); !strings.Contains(out, "Packed 1 forms") {
		t.Fatalf("pack output:\n%s", out)
	}
	other := t.TempDir()
	if out := c.mustRun("", "unpack", other, zipPath); !strings.Contains(out, "Installed 1, skipped 0") {
		t.Fatalf("unpack output:\n%s", out)
	}
	if show := c.mustRun("", "show", other, id); !strings.Contains(show, "Form: Signup") {
		t.Fatalf("unpacked form:\n%s", show)
	}
}
