/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"goformbuilder/internal/config"
	"goformbuilder/internal/crash"
	applog "goformbuilder/internal/log"
	"goformbuilder/internal/telemetry"
	"goformbuilder/internal/version"
)

// errUsage marks argument errors; run prints usage and exits 2.
var errUsage = errors.New("usage")

// Swapped in tests to keep the OS keyring and the terminal out of them.
var (
	loadConfig  = config.Load
	newPrompter = func() Prompter { return surveyPrompter{} }
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Go Form Builder")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  goformbuilder version|-v|--version                 Show version")
	_, _ = fmt.Fprintln(w, "  goformbuilder init <dir>                           Create a form store at <dir>")
	_, _ = fmt.Fprintln(w, "  goformbuilder new <dir> <title> [description]      Create an empty form")
	_, _ = fmt.Fprintln(w, "  goformbuilder list <dir>                           List forms")
	_, _ = fmt.Fprintln(w, "  goformbuilder show <dir> <id>                      Print a form page by page")
	_, _ = fmt.Fprintln(w, "  goformbuilder add <dir> <id> [kind] [label...]     Append an element")
	_, _ = fmt.Fprintln(w, "  goformbuilder drop <dir> <id> <file|-> [pos]       Insert an external JSON payload")
	_, _ = fmt.Fprintln(w, "  goformbuilder edit <dir> <id>                      Interactive editing session")
	_, _ = fmt.Fprintln(w, "  goformbuilder export <dir> <id> <out.pdf> [paper]  Printable PDF (a4, a5, letter, legal)")
	_, _ = fmt.Fprintln(w, "  goformbuilder schema <dir> <id> [out.json]         OpenAPI description of a submission")
	_, _ = fmt.Fprintln(w, "  goformbuilder suggest <dir> <id> <instruction...>  Ask the assist service for fields")
	_, _ = fmt.Fprintln(w, "  goformbuilder search <dir> <text>                  Find fields by label")
	_, _ = fmt.Fprintln(w, "  goformbuilder revisions <dir> <id>                 List saved revisions")
	_, _ = fmt.Fprintln(w, "  goformbuilder rm <dir> <id>                        Delete a form")
	_, _ = fmt.Fprintln(w, "  goformbuilder import <dir> <outline|->             Create a form from a text outline")
	_, _ = fmt.Fprintln(w, "  goformbuilder pack <dir> <out.zip> [id...]         Bundle forms into a zip")
	_, _ = fmt.Fprintln(w, "  goformbuilder unpack <dir> <pack.zip>              Install forms from a zip")
	_, _ = fmt.Fprintln(w, "  goformbuilder serve <dir>                          Serve the forms HTTP API")
	_, _ = fmt.Fprintln(w, "  goformbuilder assist-token [token|-]               Store or forget the assist token")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	sess := &crash.Session{}
	defer crash.Recover(sess)

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			_, _ = fmt.Fprintln(stdout, "Go Form Builder")
			_, _ = fmt.Fprintln(stdout, version.String())
			return 0
		case "help", "-h", "--help":
			usage(stdout)
			return 0
		}
	}
	if len(args) == 0 {
		usage(stdout)
		return 0
	}

	cfg, token, err := loadConfig()
	if err != nil {
		_, _ = fmt.Fprintln(stderr, "Error: load config:", err)
		return 1
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	l.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))

	tel := telemetry.Default()
	defer tel.Flush(context.Background())

	a := &app{
		ctx:    ctx,
		cfg:    cfg,
		token:  token,
		in:     stdin,
		out:    stdout,
		prompt: newPrompter(),
		crash:  sess,
		tel:    tel,
		log:    l,
	}

	cmd, ok := commands[args[0]]
	if !ok {
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}
	if err := cmd(a, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprintln(stderr, err)
			usage(stderr)
			return 2
		}
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
