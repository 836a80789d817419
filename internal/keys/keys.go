/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package keys maps keyboard chords to editor actions. Bindings are kept
// distinct, and resolution is suppressed while a text input or modal dialog
// owns focus so in-place editing keeps its native undo.
package keys

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Action string

const (
	ActionUndo    Action = "undo"
	ActionRedo    Action = "redo"
	ActionSave    Action = "save"
	ActionPalette Action = "palette"
)

// Actions lists the recognized actions.
func Actions() []Action { return []Action{ActionUndo, ActionRedo, ActionSave, ActionPalette} }

func (a Action) Valid() bool {
	for _, x := range Actions() {
		if a == x {
			return true
		}
	}
	return false
}

// Focus describes what currently owns keyboard input.
type Focus int

const (
	FocusCanvas Focus = iota
	FocusTextInput
	FocusModal
)

// Chord is a normalized key combination such as "ctrl+shift+z".
type Chord string

var modifierOrder = []string{"ctrl", "alt", "shift", "meta"}

var modifierAliases = map[string]string{
	"ctrl": "ctrl", "control": "ctrl", "ctl": "ctrl",
	"alt": "alt", "option": "alt", "opt": "alt",
	"shift": "shift",
	"meta": "meta", "cmd": "meta", "command": "meta", "super": "meta", "win": "meta",
}

var (
	ErrEmptyChord    = errors.New("empty chord")
	ErrUnknownAction = errors.New("unknown action")
)

// Parse normalizes a chord string. Modifiers are case-insensitive, may use
// common aliases ("cmd", "control") and are reordered canonically. Exactly one
// non-modifier key is required.
func Parse(s string) (Chord, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", ErrEmptyChord
	}
	parts := strings.Split(s, "+")
	mods := map[string]bool{}
	key := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return "", fmt.Errorf("chord %q: empty segment", s)
		}
		if m, ok := modifierAliases[p]; ok {
			mods[m] = true
			continue
		}
		if key != "" {
			return "", fmt.Errorf("chord %q: more than one key", s)
		}
		key = p
	}
	if key == "" {
		return "", fmt.Errorf("chord %q: missing key", s)
	}
	out := make([]string, 0, len(mods)+1)
	for _, m := range modifierOrder {
		if mods[m] {
			out = append(out, m)
		}
	}
	out = append(out, key)
	return Chord(strings.Join(out, "+")), nil
}

// Keymap binds chords to actions. The zero value is empty and usable.
type Keymap struct {
	bindings map[Chord]Action
}

// Default returns the stock bindings.
func Default() *Keymap {
	km := &Keymap{}
	for _, b := range []struct {
		chord  Chord
		action Action
	}{
		{"ctrl+z", ActionUndo},
		{"meta+z", ActionUndo},
		{"ctrl+shift+z", ActionRedo},
		{"shift+meta+z", ActionRedo},
		{"ctrl+y", ActionRedo},
		{"ctrl+s", ActionSave},
		{"meta+s", ActionSave},
		{"ctrl+k", ActionPalette},
		{"meta+k", ActionPalette},
	} {
		km.set(b.chord, b.action)
	}
	return km
}

func (k *Keymap) set(c Chord, a Action) {
	if k.bindings == nil {
		k.bindings = map[Chord]Action{}
	}
	k.bindings[c] = a
}

// Bind adds a binding. A chord already bound to a different action is a conflict;
// rebinding to the same action is a no-op.
func (k *Keymap) Bind(chord string, action Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	c, err := Parse(chord)
	if err != nil {
		return err
	}
	if cur, ok := k.bindings[c]; ok && cur != action {
		return fmt.Errorf("chord %s already bound to %s", c, cur)
	}
	k.set(c, action)
	return nil
}

// Unbind removes a chord. Reports whether it was bound.
func (k *Keymap) Unbind(chord string) bool {
	c, err := Parse(chord)
	if err != nil {
		return false
	}
	if _, ok := k.bindings[c]; !ok {
		return false
	}
	delete(k.bindings, c)
	return true
}

// Override applies user overrides (chord -> action name). A chord listed here
// replaces whatever it was bound to. Two raw chords that normalize to the same
// chord are rejected.
func (k *Keymap) Override(overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for c := range overrides {
		keys = append(keys, c)
	}
	sort.Strings(keys)
	seen := map[Chord]string{}
	for _, raw := range keys {
		a := Action(strings.ToLower(strings.TrimSpace(overrides[raw])))
		if !a.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownAction, overrides[raw])
		}
		c, err := Parse(raw)
		if err != nil {
			return err
		}
		if prev, dup := seen[c]; dup {
			return fmt.Errorf("chords %q and %q normalize to %s", prev, raw, c)
		}
		seen[c] = raw
		k.set(c, a)
	}
	return nil
}

// Resolve returns the action for a chord given the current focus.
func (k *Keymap) Resolve(chord string, focus Focus) (Action, bool) {
	if focus == FocusTextInput || focus == FocusModal {
		return "", false
	}
	c, err := Parse(chord)
	if err != nil {
		return "", false
	}
	a, ok := k.bindings[c]
	return a, ok
}

// Chords returns the chords bound to an action, sorted.
func (k *Keymap) Chords(a Action) []Chord {
	var out []Chord
	for c, x := range k.bindings {
		if x == a {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
