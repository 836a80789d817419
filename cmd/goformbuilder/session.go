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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"goformbuilder/internal/assist"
	"goformbuilder/internal/builder"
	"goformbuilder/internal/form"
	"goformbuilder/internal/keys"
)

// session is the line-oriented editor behind "goformbuilder edit".
type session struct {
	ctx    context.Context
	b      *builder.Builder
	store  builder.Persister // nil disables save
	keymap *keys.Keymap
	prompt Prompter
	assist *assist.Client // nil disables suggest
	out    io.Writer
	dirty  bool
	saved  func(doc form.Document)
}

const sessionHelp = `Commands:
  ls                               list elements in order
  pages                            list pages
  page <n>                         select page n
  add [kind] [label...]            append an element (no kind opens the picker)
  insert <pos> <kind> [label...]   insert at position pos
  set <ref> <field> <value...>     field: label|placeholder|content|required|options|type
  rm <ref> | dup <ref>             remove or duplicate
  move <ref> <target-ref>          drag ref onto target
  drop [pos] <json>                drop an external payload
  select <ref>                     select an element
  title <text...> | description <text...>
  style <key> <value|->            merge a document style key ("-" removes it)
  suggest <instruction...>         ask the assist service
  undo | redo | key <chord> | save | quit
A ref is a position (3 or #3), an element id, or a unique id prefix.
`

func (s *session) run(in io.Reader) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		_, _ = fmt.Fprint(s.out, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		quit, err := s.exec(line)
		if err != nil {
			if errors.Is(err, errAborted) {
				_, _ = fmt.Fprintln(s.out, "aborted")
				continue
			}
			_, _ = fmt.Fprintln(s.out, "error:", err)
			continue
		}
		if quit {
			return nil
		}
		if err := s.ctx.Err(); err != nil {
			return err
		}
	}
	_, _ = fmt.Fprintln(s.out)
	if s.dirty {
		_, _ = fmt.Fprintln(s.out, "input closed; unsaved changes discarded")
	}
	return sc.Err()
}

func (s *session) exec(line string) (bool, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)
	switch strings.ToLower(cmd) {
	case "help", "?":
		_, _ = fmt.Fprint(s.out, sessionHelp)
	case "ls":
		printSequence(s.out, s.b.Elements(), s.b.Selected())
	case "pages":
		printPages(s.out, s.b)
	case "page":
		n, err := needInt(args, "page <n>")
		if err != nil {
			return false, err
		}
		idx := s.b.SelectPage(n - 1)
		pg, _ := s.b.CurrentPage()
		_, _ = fmt.Fprintf(s.out, "%s (%d of %d)\n", pg.Label, idx+1, len(s.b.Pages()))
		printElements(s.out, s.b.Elements(), pg.Elements, s.b.Selected())
	case "add":
		return false, s.add(args)
	case "insert":
		return false, s.insert(args)
	case "set":
		return false, s.set(rest)
	case "rm", "remove":
		id, err := s.ref(args, "rm <ref>")
		if err != nil {
			return false, err
		}
		s.changed(s.b.RemoveElement(id), "removed")
	case "dup", "duplicate":
		id, err := s.ref(args, "dup <ref>")
		if err != nil {
			return false, err
		}
		el, ok := s.b.DuplicateElement(id)
		s.changed(ok, "duplicated as "+shortID(el.ID))
	case "move":
		return false, s.move(args)
	case "drop":
		return false, s.drop(rest)
	case "select":
		id, err := s.ref(args, "select <ref>")
		if err != nil {
			return false, err
		}
		s.b.Select(id)
		_, idx := s.b.CurrentPage()
		_, _ = fmt.Fprintf(s.out, "selected %s on page %d\n", shortID(id), idx+1)
	case "title":
		s.b.SetTitle(rest)
		s.dirty = true
	case "description":
		s.b.SetDescription(rest)
		s.dirty = true
	case "style":
		return false, s.style(args)
	case "suggest":
		return false, s.suggest(rest)
	case "undo":
		return false, s.action(keys.ActionUndo)
	case "redo":
		return false, s.action(keys.ActionRedo)
	case "key":
		if len(args) != 1 {
			return false, errors.New("usage: key <chord>")
		}
		a, ok := s.keymap.Resolve(args[0], keys.FocusCanvas)
		if !ok {
			_, _ = fmt.Fprintf(s.out, "%s is not bound\n", args[0])
			return false, nil
		}
		return false, s.action(a)
	case "save":
		return false, s.action(keys.ActionSave)
	case "quit", "exit", "q":
		if !s.dirty {
			return true, nil
		}
		ok, err := s.prompt.Confirm(s.ctx, "Discard unsaved changes?", false)
		if err != nil {
			return false, err
		}
		return ok, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return false, nil
}

// action runs a bindable action.
func (s *session) action(a keys.Action) error {
	switch a {
	case keys.ActionUndo:
		s.changed(s.b.Undo(), "undone")
	case keys.ActionRedo:
		s.changed(s.b.Redo(), "redone")
	case keys.ActionSave:
		if s.store == nil {
			return errors.New("this session has no store")
		}
		id, err := s.b.Save(s.ctx, s.store)
		if err != nil {
			return err
		}
		s.dirty = false
		if s.saved != nil {
			s.saved(s.b.Document())
		}
		_, _ = fmt.Fprintln(s.out, "saved", id)
	case keys.ActionPalette:
		return s.add(nil)
	default:
		return fmt.Errorf("unsupported action %q", a)
	}
	return nil
}

func (s *session) changed(ok bool, msg string) {
	if !ok {
		_, _ = fmt.Fprintln(s.out, "no change")
		return
	}
	s.dirty = true
	_, _ = fmt.Fprintln(s.out, msg)
}

func (s *session) descriptor(kindArg string, label []string) (form.Descriptor, error) {
	var k form.Kind
	if kindArg == "" {
		picked, err := s.prompt.PickKind(s.ctx)
		if err != nil {
			return form.Descriptor{}, err
		}
		k = picked
	} else {
		parsed, err := parseKind(kindArg)
		if err != nil {
			return form.Descriptor{}, err
		}
		k = parsed
	}
	d := form.NewDescriptor(k)
	if text := strings.Join(label, " "); text != "" {
		if k.UsesContent() {
			d.Content = text
		} else {
			d.Label = text
		}
	}
	return d, nil
}

func (s *session) add(args []string) error {
	kindArg := ""
	if len(args) > 0 {
		kindArg, args = args[0], args[1:]
	}
	d, err := s.descriptor(kindArg, args)
	if err != nil {
		return err
	}
	el := s.b.AddElement(d)
	if el.ID == "" {
		return fmt.Errorf("unknown element type %q", d.Type)
	}
	s.changed(true, fmt.Sprintf("added #%d %s", len(s.b.Elements()), shortID(el.ID)))
	return nil
}

func (s *session) insert(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: insert <pos> <kind> [label...]")
	}
	pos, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil {
		return fmt.Errorf("bad position %q", args[0])
	}
	d, err := s.descriptor(args[1], args[2:])
	if err != nil {
		return err
	}
	el := s.b.AddElementAt(d, pos-1)
	if el.ID == "" {
		return fmt.Errorf("unknown element type %q", d.Type)
	}
	s.changed(true, fmt.Sprintf("inserted #%d %s", form.IndexOf(s.b.Elements(), el.ID)+1, shortID(el.ID)))
	return nil
}

func (s *session) set(rest string) error {
	parts := strings.SplitN(rest, " ", 3)
	if len(parts) < 3 {
		return errors.New("usage: set <ref> <field> <value...>")
	}
	id, err := resolveRef(s.b.Elements(), parts[0])
	if err != nil {
		return err
	}
	field, value := strings.ToLower(parts[1]), strings.TrimSpace(parts[2])
	switch field {
	case "label", "placeholder", "content":
		if err := s.b.BeginEdit(id, form.TextField(field)); err != nil {
			return err
		}
		s.b.Set(value)
		s.changed(s.b.Confirm(), "updated "+field)
	case "required":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("required must be true or false")
		}
		s.changed(s.b.UpdateElement(id, form.Patch{Required: &v}), "updated required")
	case "options":
		var opts []string
		for _, o := range strings.Split(value, ",") {
			if o = strings.TrimSpace(o); o != "" {
				opts = append(opts, o)
			}
		}
		if opts == nil {
			opts = []string{}
		}
		s.changed(s.b.UpdateElement(id, form.Patch{Options: opts}), "updated options")
	case "type":
		k, err := parseKind(value)
		if err != nil {
			return err
		}
		s.changed(s.b.UpdateElement(id, form.Patch{Type: &k}), "updated type")
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// move runs a drag from ref onto target so preview and drop share one path.
func (s *session) move(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: move <ref> <target-ref>")
	}
	src, err := resolveRef(s.b.Elements(), args[0])
	if err != nil {
		return err
	}
	dst, err := resolveRef(s.b.Elements(), args[1])
	if err != nil {
		return err
	}
	if !s.b.BeginDrag(src) || !s.b.Hover(dst) {
		s.b.CancelDrag()
		s.changed(false, "")
		return nil
	}
	_, ok := s.b.Drop()
	s.changed(ok, fmt.Sprintf("moved to #%d", form.IndexOf(s.b.Elements(), src)+1))
	return nil
}

func (s *session) drop(rest string) error {
	index := -1
	if head, tail, ok := strings.Cut(rest, " "); ok {
		if n, err := strconv.Atoi(strings.TrimPrefix(head, "#")); err == nil {
			index, rest = n-1, strings.TrimSpace(tail)
		}
	}
	if rest == "" {
		return errors.New("usage: drop [pos] <json>")
	}
	el, err := s.b.DropPayload([]byte(rest), index)
	if err != nil {
		return err
	}
	s.changed(true, fmt.Sprintf("dropped %s as #%d", el.Type, form.IndexOf(s.b.Elements(), el.ID)+1))
	return nil
}

func (s *session) style(args []string) error {
	if len(args) < 2 {
		return errors.New("usage: style <key> <value|->")
	}
	key, raw := args[0], strings.Join(args[1:], " ")
	var v any = raw
	switch {
	case raw == "-":
		v = nil
	case raw == "true" || raw == "false":
		v = raw == "true"
	default:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			v = f
		}
	}
	s.b.MergeStyle(form.Style{key: v})
	s.dirty = true
	return nil
}

func (s *session) suggest(instruction string) error {
	if s.assist == nil {
		return assist.ErrNotConfigured
	}
	sg, err := s.assist.Suggest(s.ctx, s.b.Elements(), instruction)
	if err != nil {
		return err
	}
	if sg.Empty() {
		_, _ = fmt.Fprintln(s.out, "nothing suggested")
		return nil
	}
	printSuggestion(s.out, sg)
	ok, err := s.prompt.Confirm(s.ctx, "Apply suggestion?", true)
	if err != nil || !ok {
		return err
	}
	mode := assist.AllAtOnce
	if len(sg.Elements) > 1 {
		each, err := s.prompt.Confirm(s.ctx, "Add elements as separate undo steps?", false)
		if err != nil {
			return err
		}
		if each {
			mode = assist.OneByOne
		}
	}
	added := assist.Apply(s.b, sg, mode)
	s.changed(true, fmt.Sprintf("applied %d elements", len(added)))
	return nil
}

func (s *session) ref(args []string, usage string) (string, error) {
	if len(args) != 1 {
		return "", errors.New("usage: " + usage)
	}
	return resolveRef(s.b.Elements(), args[0])
}

func needInt(args []string, usage string) (int, error) {
	if len(args) != 1 {
		return 0, errors.New("usage: " + usage)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	return n, nil
}

// resolveRef accepts a 1-based position ("3" or "#3"), an exact id or a unique id prefix.
func resolveRef(elements []form.Element, ref string) (string, error) {
	if n, err := strconv.Atoi(strings.TrimPrefix(ref, "#")); err == nil {
		if n < 1 || n > len(elements) {
			return "", fmt.Errorf("position %d out of range (1-%d)", n, len(elements))
		}
		return elements[n-1].ID, nil
	}
	if i := form.IndexOf(elements, ref); i >= 0 {
		return ref, nil
	}
	var match string
	for _, e := range elements {
		if strings.HasPrefix(e.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("ambiguous ref %q", ref)
			}
			match = e.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no element %q", ref)
	}
	return match, nil
}

func parseKind(s string) (form.Kind, error) {
	k := form.Kind(strings.ToLower(strings.TrimSpace(s)))
	if k.Valid() {
		return k, nil
	}
	for _, c := range form.Kinds() {
		if strings.EqualFold(c.Title(), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown element type %q", s)
}
