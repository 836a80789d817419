/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"
	"time"

	"goformbuilder/internal/form"
)

// Snapshot is an immutable copy of the element sequence at one point in time.
// TS is when the snapshot became the present.
type Snapshot struct {
	Elements []form.Element
	TS       time.Time
}

// Config controls history depth.
type Config struct {
	// MaxDepth caps the number of undo steps kept (0 means unlimited).
	// The oldest entries are dropped first.
	MaxDepth int
}

// History is a present/past/future snapshot stack over whole element sequences.
// Committing always clears the redo branch. It is safe for concurrent use.
type History struct {
	cfg     Config
	mu      sync.Mutex
	past    []Snapshot
	present Snapshot
	future  []Snapshot
	now     func() time.Time
}

// NewHistory starts a history whose present is initial and whose stacks are empty.
func NewHistory(initial []form.Element, cfg Config) *History {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = 0
	}
	h := &History{cfg: cfg, now: time.Now}
	h.present = Snapshot{Elements: form.CloneAll(initial), TS: h.now()}
	return h
}

// Commit pushes the present onto past, makes next the present and clears future.
func (h *History) Commit(next []form.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.past = append(h.past, h.present)
	h.present = Snapshot{Elements: form.CloneAll(next), TS: h.now()}
	// Any new change invalidates the redo branch
	h.future = nil
	h.enforceCapLocked()
}

// Undo moves the most recent past entry into present. ok is false when there is nothing to undo.
func (h *History) Undo() ([]form.Element, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.past)
	if n == 0 {
		return nil, false
	}
	prev := h.past[n-1]
	h.past = h.past[:n-1]
	h.future = append(h.future, h.present)
	h.present = prev
	return form.CloneAll(prev.Elements), true
}

// Redo moves the most recent future entry into present.
func (h *History) Redo() ([]form.Element, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.future)
	if n == 0 {
		return nil, false
	}
	next := h.future[n-1]
	h.future = h.future[:n-1]
	h.past = append(h.past, h.present)
	h.present = next
	h.enforceCapLocked()
	return form.CloneAll(next.Elements), true
}

// Present returns a copy of the current sequence.
func (h *History) Present() []form.Element {
	h.mu.Lock()
	defer h.mu.Unlock()
	return form.CloneAll(h.present.Elements)
}

// PresentSnapshot returns the current snapshot including its timestamp.
func (h *History) PresentSnapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Snapshot{Elements: form.CloneAll(h.present.Elements), TS: h.present.TS}
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future) > 0
}

// Reset discards both stacks and installs initial as the present.
// Loading a document always starts a new undo session.
func (h *History) Reset(initial []form.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.past = nil
	h.future = nil
	h.present = Snapshot{Elements: form.CloneAll(initial), TS: h.now()}
}

// Stats returns the stack depths for diagnostics.
func (h *History) Stats() (past int, future int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past), len(h.future)
}

func (h *History) enforceCapLocked() {
	if h.cfg.MaxDepth <= 0 || len(h.past) <= h.cfg.MaxDepth {
		return
	}
	// drop the oldest extras
	toDrop := len(h.past) - h.cfg.MaxDepth
	h.past = append([]Snapshot(nil), h.past[toDrop:]...)
}
