/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic in the CLI into a crash report plus an autosave
// of the form being edited.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"goformbuilder/internal/form"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/pages"
	"goformbuilder/internal/storage"
	"goformbuilder/internal/telemetry"
	"goformbuilder/internal/version"
)

// exitFn is swapped in tests.
var exitFn = os.Exit

// uploadWait bounds how long Recover waits for an opted-in crash upload.
var uploadWait = 2 * time.Second

// Source yields the document currently being edited. *builder.Builder satisfies it.
type Source interface {
	ID() string
	Document() form.Document
}

// Session is what Recover knows about the running command. Root may be empty
// when no store was opened; Form may be nil outside an editing session.
type Session struct {
	Root string
	Form Source
}

// Recover captures a panic, logs it with a stacktrace, writes a crash report
// and autosaves the current form when there is one.
//
// It must be deferred directly: defer crash.Recover(sess). Fields of sess may
// be filled in after the defer statement runs.
func Recover(sess *Session) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, report, err := writeReport(sess, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if sess != nil && sess.Root != "" && sess.Form != nil {
		if path, err := autosave(sess); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
			_, _ = fmt.Fprintf(os.Stderr, "Unsaved form written to: %s\n", path)
		}
	}
	select {
	case <-telemetry.Default().UploadCrash(report):
	case <-time.After(uploadWait):
	}

	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// autosave snapshots the document; a panic while reading it must not mask the original crash.
func autosave(sess *Session) (path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("snapshot panicked: %v", r)
		}
	}()
	return storage.AutosaveCrashSnapshot(sess.Root, sess.Form.Document())
}

func writeReport(sess *Session, panicVal any, stack []byte) (string, []byte, error) {
	dir := os.TempDir()
	if sess != nil && sess.Root != "" {
		dir = filepath.Join(sess.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	now := time.Now()
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405.000000000")))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Go Form Builder Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if sess != nil {
		if sess.Root != "" {
			_, _ = fmt.Fprintf(&buf, "StoreRoot: %s\n", sess.Root)
		}
		if sess.Form != nil {
			describeForm(&buf, sess.Form)
		}
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, buf.Bytes(), err
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, buf.Bytes(), err
	}
	_ = f.Sync()
	return path, buf.Bytes(), nil
}

// describeForm writes structural facts only; labels and content stay out of reports.
func describeForm(buf *bytes.Buffer, src Source) {
	defer func() { _ = recover() }()
	doc := src.Document()
	id := src.ID()
	if id == "" {
		id = "(unsaved)"
	}
	_, _ = fmt.Fprintf(buf, "Form: %s\n", id)
	_, _ = fmt.Fprintf(buf, "Elements: %d\n", len(doc.Elements))
	_, _ = fmt.Fprintf(buf, "Pages: %d\n", len(pages.Project(doc.Elements)))
}
