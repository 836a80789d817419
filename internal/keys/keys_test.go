/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package keys

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseNormalizes(t *testing.T) {
	cases := map[string]Chord{
		"Ctrl+Z":          "ctrl+z",
		"shift+ctrl+z":    "ctrl+shift+z",
		"Cmd+Shift+Z":     "shift+meta+z",
		" control + y ":   "ctrl+y",
		"option+meta+F12": "alt+meta+f12",
	}
	for in, want := range cases {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %q, want %q", in, got, want)
		}
	}
	for _, bad := range []string{"", "ctrl+", "ctrl+shift", "a+b", "ctrl++z"} {
		if _, err := Parse(bad); err == nil {
			t.Fatalf("Parse(%q) expected error", bad)
		}
	}
}

func TestDefaultBindingsAreDistinct(t *testing.T) {
	km := Default()
	want := map[Action][]Chord{
		ActionUndo:    {"ctrl+z", "meta+z"},
		ActionRedo:    {"ctrl+shift+z", "ctrl+y", "shift+meta+z"},
		ActionSave:    {"ctrl+s", "meta+s"},
		ActionPalette: {"ctrl+k", "meta+k"},
	}
	for a, chords := range want {
		if diff := cmp.Diff(chords, km.Chords(a)); diff != "" {
			t.Fatalf("chords for %s mismatch (-want +got):\n%s", a, diff)
		}
	}
	seen := map[Chord]Action{}
	for _, a := range Actions() {
		for _, c := range km.Chords(a) {
			if prev, ok := seen[c]; ok {
				t.Fatalf("chord %s bound to both %s and %s", c, prev, a)
			}
			seen[c] = a
		}
	}
}

func TestResolveSuppressedUnderTextFocus(t *testing.T) {
	km := Default()
	if a, ok := km.Resolve("Ctrl+Z", FocusCanvas); !ok || a != ActionUndo {
		t.Fatalf("Resolve on canvas = %q,%v", a, ok)
	}
	if a, ok := km.Resolve("cmd+shift+z", FocusCanvas); !ok || a != ActionRedo {
		t.Fatalf("Resolve redo = %q,%v", a, ok)
	}
	for _, f := range []Focus{FocusTextInput, FocusModal} {
		if _, ok := km.Resolve("ctrl+z", f); ok {
			t.Fatalf("Resolve should be suppressed for focus %d", f)
		}
		if _, ok := km.Resolve("ctrl+s", f); ok {
			t.Fatalf("save should be suppressed for focus %d", f)
		}
	}
	if _, ok := km.Resolve("ctrl+q", FocusCanvas); ok {
		t.Fatalf("unbound chord should not resolve")
	}
}

func TestBindConflicts(t *testing.T) {
	km := Default()
	if err := km.Bind("ctrl+z", ActionRedo); err == nil {
		t.Fatalf("expected conflict binding ctrl+z to redo")
	}
	if err := km.Bind("control+z", ActionUndo); err != nil {
		t.Fatalf("rebinding same action should be ok: %v", err)
	}
	if err := km.Bind("ctrl+u", Action("explode")); err == nil {
		t.Fatalf("expected unknown action error")
	}
	if err := km.Bind("alt+u", ActionUndo); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if a, ok := km.Resolve("alt+u", FocusCanvas); !ok || a != ActionUndo {
		t.Fatalf("new binding not resolved: %q,%v", a, ok)
	}
	if !km.Unbind("alt+u") || km.Unbind("alt+u") {
		t.Fatalf("Unbind should report once")
	}
}

func TestOverrideReplacesBinding(t *testing.T) {
	km := Default()
	if err := km.Override(map[string]string{"Ctrl+Y": "palette", "alt+z": "Undo"}); err != nil {
		t.Fatalf("Override: %v", err)
	}
	if a, _ := km.Resolve("ctrl+y", FocusCanvas); a != ActionPalette {
		t.Fatalf("ctrl+y should now be palette, got %q", a)
	}
	if a, _ := km.Resolve("alt+z", FocusCanvas); a != ActionUndo {
		t.Fatalf("alt+z should be undo, got %q", a)
	}
	if err := km.Override(map[string]string{"ctrl+shift+z": "rewind"}); err == nil {
		t.Fatalf("expected unknown action error")
	}
	if err := km.Override(map[string]string{"ctrl+shift+q": "save", "shift+ctrl+q": "save"}); err == nil {
		t.Fatalf("expected duplicate-normalization error")
	}
}

func TestZeroKeymapIsUsable(t *testing.T) {
	var km Keymap
	if _, ok := km.Resolve("ctrl+z", FocusCanvas); ok {
		t.Fatalf("empty keymap resolved a chord")
	}
	if err := km.Bind("ctrl+z", ActionUndo); err != nil {
		t.Fatalf("Bind on zero keymap: %v", err)
	}
}
