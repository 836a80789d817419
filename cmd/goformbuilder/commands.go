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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"goformbuilder/internal/assist"
	"goformbuilder/internal/backend"
	"goformbuilder/internal/builder"
	"goformbuilder/internal/config"
	"goformbuilder/internal/crash"
	"goformbuilder/internal/export"
	"goformbuilder/internal/form"
	"goformbuilder/internal/formpack"
	"goformbuilder/internal/keys"
	"goformbuilder/internal/outline"
	"goformbuilder/internal/storage"
	"goformbuilder/internal/telemetry"
)

type app struct {
	ctx    context.Context
	cfg    config.AppConfig
	token  string
	in     io.Reader
	out    io.Writer
	prompt Prompter
	crash  *crash.Session
	tel    *telemetry.Client
	log    *slog.Logger
}

// formStore is what every storage driver offers the CLI.
type formStore interface {
	backend.Forms
	Close() error
}

var commands = map[string]func(*app, []string) error{
	"init":         cmdInit,
	"new":          cmdNew,
	"list":         cmdList,
	"show":         cmdShow,
	"add":          cmdAdd,
	"drop":         cmdDrop,
	"edit":         cmdEdit,
	"schema":       cmdSchema,
	"export":       cmdExport,
	"suggest":      cmdSuggest,
	"search":       cmdSearch,
	"revisions":    cmdRevisions,
	"rm":           cmdRemove,
	"import":       cmdImport,
	"pack":         cmdPack,
	"unpack":       cmdUnpack,
	"serve":        cmdServe,
	"assist-token": cmdAssistToken,
}

func usageErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// openStore opens the configured driver. dir always anchors crash reports;
// it is the document root only for the file driver.
func (a *app) openStore(dir string) (formStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	a.crash.Root = abs
	switch a.cfg.Storage.Driver {
	case config.DriverPostgres:
		if a.cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver postgres needs %s", config.EnvPostgresDSN)
		}
		return backend.OpenPGStore(a.ctx, a.cfg.Storage.PostgresDSN)
	case config.DriverRemote:
		if a.cfg.Storage.RemoteURL == "" {
			return nil, fmt.Errorf("storage driver remote needs %s", config.EnvRemoteURL)
		}
		c := backend.NewClient(a.cfg.Storage.RemoteURL, os.Getenv("GFB_REMOTE_TOKEN"))
		if c.Token == "" {
			if _, err := c.IssueToken(a.ctx, currentUser(), time.Hour); err != nil {
				return nil, fmt.Errorf("remote token: %w", err)
			}
		}
		return c, nil
	case config.DriverFile, "":
		return storage.Open(abs)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

func currentUser() string {
	for _, k := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return "goformbuilder"
}

func (a *app) newBuilder(opts ...builder.Option) *builder.Builder {
	opts = append([]builder.Option{builder.WithHistoryDepth(a.cfg.Editor.HistoryDepth)}, opts...)
	return builder.New(opts...)
}

// openForm loads id into a fresh builder and registers it for crash autosave.
func (a *app) openForm(dir, id string) (formStore, *builder.Builder, error) {
	st, err := a.openStore(dir)
	if err != nil {
		return nil, nil, err
	}
	b := a.newBuilder()
	if err := b.Load(a.ctx, st, id); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	a.crash.Form = b
	return st, b, nil
}

func (a *app) save(b *builder.Builder, st formStore) error {
	var p builder.Persister = st
	if b.ID() != "" {
		p = storage.Bind(st, b.ID())
	}
	if _, err := b.Save(a.ctx, p); err != nil {
		return err
	}
	a.tel.FormEvent(telemetry.EventFormSaved, b.Document())
	return nil
}

func cmdInit(a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("init requires <dir>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	_, _ = fmt.Fprintln(a.out, "Initialized form store at", a.crash.Root)
	return nil
}

func cmdNew(a *app, args []string) error {
	if len(args) < 2 {
		return usageErr("new requires <dir> and <title>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	b := a.newBuilder()
	b.SetTitle(args[1])
	if len(args) > 2 {
		b.SetDescription(strings.Join(args[2:], " "))
	}
	if err := a.save(b, st); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, b.ID())
	return nil
}

func cmdList(a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("list requires <dir>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	list, err := st.List(a.ctx)
	if err != nil {
		return err
	}
	printSummaries(a.out, list)
	return nil
}

func cmdShow(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("show requires <dir> and <id>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	doc, err := st.Load(a.ctx, args[1])
	if err != nil {
		return err
	}
	printDocument(a.out, args[1], doc)
	return nil
}

func cmdAdd(a *app, args []string) error {
	if len(args) < 2 {
		return usageErr("add requires <dir> and <id>")
	}
	st, b, err := a.openForm(args[0], args[1])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	s := &session{ctx: a.ctx, b: b, prompt: a.prompt, out: io.Discard}
	if err := s.add(args[2:]); err != nil {
		return err
	}
	if err := a.save(b, st); err != nil {
		return err
	}
	els := b.Elements()
	last := els[len(els)-1]
	_, _ = fmt.Fprintf(a.out, "added %s %s at #%d\n", last.Type, last.ID, len(els))
	return nil
}

func cmdDrop(a *app, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return usageErr("drop requires <dir> <id> <payload-file|-> [pos]")
	}
	index := -1
	if len(args) == 4 {
		n, err := strconv.Atoi(strings.TrimPrefix(args[3], "#"))
		if err != nil {
			return usageErr("bad position %q", args[3])
		}
		index = n - 1
	}
	raw, err := a.readInput(args[2])
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	st, b, err := a.openForm(args[0], args[1])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	el, err := b.DropPayload(raw, index)
	if err != nil {
		return err
	}
	if err := a.save(b, st); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "dropped %s %s at #%d\n", el.Type, el.ID, form.IndexOf(b.Elements(), el.ID)+1)
	return nil
}

func (a *app) keymap() (*keys.Keymap, error) {
	km := keys.Default()
	if len(a.cfg.Editor.Keys) > 0 {
		if err := km.Override(a.cfg.Editor.Keys); err != nil {
			return nil, fmt.Errorf("editor.keys: %w", err)
		}
	}
	return km, nil
}

func (a *app) assistClient() *assist.Client {
	if a.cfg.Assist.BaseURL == "" {
		return nil
	}
	return assist.New(a.cfg.Assist.BaseURL, a.token, a.cfg.Assist.Timeout())
}

func cmdEdit(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("edit requires <dir> and <id>")
	}
	km, err := a.keymap()
	if err != nil {
		return err
	}
	st, b, err := a.openForm(args[0], args[1])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	s := &session{
		ctx:    a.ctx,
		b:      b,
		store:  storage.Bind(st, b.ID()),
		keymap: km,
		prompt: a.prompt,
		assist: a.assistClient(),
		out:    a.out,
		saved:  func(doc form.Document) { a.tel.FormEvent(telemetry.EventFormSaved, doc) },
	}
	_, _ = fmt.Fprintf(a.out, "Editing %q (%d elements). Type help for commands.\n", b.Title(), len(b.Elements()))
	return s.run(a.in)
}

func cmdExport(a *app, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return usageErr("export requires <dir> <id> <out.pdf> [paper]")
	}
	paper := export.PaperA4
	if len(args) == 4 {
		p, err := export.ParsePaper(args[3])
		if err != nil {
			return usageErr("%v", err)
		}
		paper = p
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	doc, err := st.Load(a.ctx, args[1])
	if err != nil {
		return err
	}
	if err := export.ExportPDF(doc, args[2], export.PDFOptions{Paper: paper, PageLabels: true, Author: currentUser()}); err != nil {
		return err
	}
	a.tel.FormEvent(telemetry.EventFormExported, doc)
	_, _ = fmt.Fprintln(a.out, "Exported", args[2])
	return nil
}

func cmdSchema(a *app, args []string) error {
	if len(args) < 2 || len(args) > 3 {
		return usageErr("schema requires <dir> <id> [out.json]")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	doc, err := st.Load(a.ctx, args[1])
	if err != nil {
		return err
	}
	spec, err := export.SubmissionSpec(doc, args[1])
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	if len(args) == 2 || args[2] == "-" {
		_, err = a.out.Write(b)
		return err
	}
	if err := os.WriteFile(args[2], b, 0o644); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Wrote", args[2])
	return nil
}

func cmdSuggest(a *app, args []string) error {
	if len(args) < 3 {
		return usageErr("suggest requires <dir> <id> <instruction...>")
	}
	c := a.assistClient()
	if c == nil {
		return fmt.Errorf("%w: set assist.base_url or %s", assist.ErrNotConfigured, config.EnvAssistURL)
	}
	st, b, err := a.openForm(args[0], args[1])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	sg, err := c.Suggest(a.ctx, b.Elements(), strings.Join(args[2:], " "))
	if err != nil {
		return err
	}
	if sg.Empty() {
		_, _ = fmt.Fprintln(a.out, "nothing suggested")
		return nil
	}
	printSuggestion(a.out, sg)
	ok, err := a.prompt.Confirm(a.ctx, "Apply and save?", true)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	added := assist.Apply(b, sg, assist.AllAtOnce)
	if err := a.save(b, st); err != nil {
		return err
	}
	a.tel.FormEvent(telemetry.EventAssistMerged, b.Document())
	_, _ = fmt.Fprintf(a.out, "applied %d elements\n", len(added))
	return nil
}

func (a *app) fileStore(dir string) (*storage.Store, error) {
	st, err := a.openStore(dir)
	if err != nil {
		return nil, err
	}
	fs, ok := st.(*storage.Store)
	if !ok {
		_ = st.Close()
		return nil, errors.New("this command needs the file storage driver")
	}
	return fs, nil
}

func cmdSearch(a *app, args []string) error {
	if len(args) < 2 {
		return usageErr("search requires <dir> and <text>")
	}
	st, err := a.fileStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	hits, err := st.SearchFields(a.ctx, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		_, _ = fmt.Fprintln(a.out, "(no matches)")
	}
	for _, h := range hits {
		_, _ = fmt.Fprintf(a.out, "%s  %-24s #%-3d %-10s %s\n", h.FormID, h.FormTitle, h.Position+1, h.Type, h.Label)
	}
	return nil
}

func cmdRevisions(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("revisions requires <dir> and <id>")
	}
	st, err := a.fileStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	revs, err := st.ListRevisions(a.ctx, args[1], 0)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		_, _ = fmt.Fprintln(a.out, "(no revisions)")
	}
	for _, r := range revs {
		_, _ = fmt.Fprintf(a.out, "%6d  %s  %-32s %d elements\n", r.ID, r.TS.Local().Format(time.DateTime), r.Document.Title, len(r.Document.Elements))
	}
	return nil
}

func cmdRemove(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("rm requires <dir> and <id>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	doc, err := st.Load(a.ctx, args[1])
	if err != nil {
		return err
	}
	ok, err := a.prompt.Confirm(a.ctx, fmt.Sprintf("Delete %q?", doc.Title), false)
	if err != nil || !ok {
		return err
	}
	if err := st.Delete(a.ctx, args[1]); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Deleted", args[1])
	return nil
}

func cmdServe(a *app, args []string) error {
	if len(args) != 1 {
		return usageErr("serve requires <dir>")
	}
	if a.cfg.Storage.Driver == config.DriverRemote {
		return errors.New("serve cannot use the remote storage driver")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	var ready backend.Pinger
	switch v := st.(type) {
	case *backend.PGStore:
		ready = v.DB()
	case *storage.Store:
		go func() {
			if err := v.Watch(a.ctx, 0, nil); err != nil {
				a.log.Warn("form watcher stopped", slog.Any("err", err))
			}
		}()
	}
	scfg := backend.ConfigFromEnv()
	srv := backend.NewServer(st, ready, scfg.Secret).AllowOrigins(scfg.Origins...)
	_, _ = fmt.Fprintln(a.out, "Serving forms on", scfg.Addr)
	return srv.ListenAndServe(a.ctx, scfg.Addr)
}

func cmdAssistToken(a *app, args []string) error {
	if len(args) > 1 {
		return usageErr("assist-token takes at most one argument")
	}
	tok := ""
	if len(args) == 1 {
		tok = args[0]
	} else {
		v, err := a.prompt.Input(a.ctx, "Assist API token:", "")
		if err != nil {
			return err
		}
		tok = v
	}
	if tok == "-" || tok == "" {
		if err := config.ForgetToken(); err != nil {
			return err
		}
		_, _ = fmt.Fprintln(a.out, "Assist token removed")
		return nil
	}
	if err := config.SetToken(tok); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, "Assist token stored in the OS keychain")
	return nil
}

func (a *app) readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(io.LimitReader(a.in, 1<<20))
	}
	return os.ReadFile(name)
}

func cmdImport(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("import requires <dir> and <outline-file|->")
	}
	raw, err := a.readInput(args[1])
	if err != nil {
		return fmt.Errorf("read outline: %w", err)
	}
	o, perrs := outline.Parse(string(raw))
	if len(perrs) > 0 {
		errs := make([]error, len(perrs))
		for i, e := range perrs {
			errs[i] = e
		}
		return fmt.Errorf("outline: %w", errors.Join(errs...))
	}
	title := o.Title
	if title == "" && args[1] != "-" {
		title = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	b := a.newBuilder()
	b.SetTitle(title)
	b.SetDescription(o.Description)
	b.AddElements(o.Descriptors())
	a.crash.Form = b
	if err := a.save(b, st); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(a.out, b.ID())
	return nil
}

func cmdPack(a *app, args []string) error {
	if len(args) < 2 {
		return usageErr("pack requires <dir> <out.zip> [id...]")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	n, err := formpack.Export(a.ctx, st, args[1], args[2:]...)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Packed %d forms into %s\n", n, args[1])
	return nil
}

func cmdUnpack(a *app, args []string) error {
	if len(args) != 2 {
		return usageErr("unpack requires <dir> and <pack.zip>")
	}
	st, err := a.openStore(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	res, err := formpack.Install(a.ctx, st, args[1])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(a.out, "Installed %d, skipped %d existing, rejected %d invalid\n",
		len(res.Installed), len(res.Skipped), len(res.Rejected))
	for _, id := range res.Rejected {
		_, _ = fmt.Fprintln(a.out, "  rejected", id)
	}
	return nil
}
