/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
)

// ErrSaveInFlight is returned when Save is called while another save is running.
var ErrSaveInFlight = errors.New("save already in progress")

// Persister stores a document snapshot and returns its identifier.
type Persister interface {
	Save(ctx context.Context, doc form.Document) (string, error)
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, doc form.Document) (string, error)

func (f PersisterFunc) Save(ctx context.Context, doc form.Document) (string, error) {
	return f(ctx, doc)
}

// Save serializes the whole document and hands it to p. At most one save runs
// at a time; a concurrent call fails fast with ErrSaveInFlight. The returned id
// becomes the session id.
func (b *Builder) Save(ctx context.Context, p Persister) (string, error) {
	if !b.saving.CompareAndSwap(false, true) {
		return "", ErrSaveInFlight
	}
	defer b.saving.Store(false)

	doc := b.Document()
	id, err := p.Save(applog.ContextWithForm(ctx, b.ID()), doc)
	if err != nil {
		b.logger().Error("save failed", slog.Any("err", err))
		return "", fmt.Errorf("save form: %w", err)
	}
	if id != b.ID() {
		b.setID(id)
	}
	b.logger().Info("saved", slog.Int("elements", len(doc.Elements)))
	return id, nil
}

// Saving reports whether a save is in flight.
func (b *Builder) Saving() bool { return b.saving.Load() }
