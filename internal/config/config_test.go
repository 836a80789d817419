/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) { return m[service+"/"+key], nil }
func (m memTokens) Set(service, key, value string) error {
	m[service+"/"+key] = value
	return nil
}
func (m memTokens) Delete(service, key string) error {
	delete(m, service+"/"+key)
	return nil
}

// isolate points config at a temp file and an in-memory keyring.
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	old := tokenStore
	tokenStore = memTokens{}
	t.Cleanup(func() { tokenStore = old })
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("expected empty token, got %q", tok)
	}
	if cfg.Editor.HistoryDepth != 0 || cfg.Storage.Driver != DriverFile {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}

func TestSaveThenLoadRoundsTripFileAndToken(t *testing.T) {
	isolate(t)
	cfg := Defaults()
	cfg.Storage.Dir = "/srv/forms"
	cfg.Editor.Keys = map[string]string{"Ctrl+U": "Undo"}
	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Storage.Dir != "/srv/forms" || tok != "secret-token" {
		t.Fatalf("round trip mismatch: dir=%q tok=%q", got.Storage.Dir, tok)
	}
	if got.Editor.Keys["ctrl+u"] != "undo" {
		t.Fatalf("key overrides should be normalized: %v", got.Editor.Keys)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvStorageDriver, "Postgres")
	t.Setenv(EnvPostgresDSN, "postgres://u@h/db")
	t.Setenv(EnvHistoryDepth, "25")
	t.Setenv(EnvAssistURL, "https://assist.example.test")
	t.Setenv(EnvAssistTimeoutMs, "1500")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvRemoteURL, "https://forms.example.test")

	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Storage.PostgresDSN != "postgres://u@h/db" {
		t.Fatalf("storage overrides not applied: %#v", cfg.Storage)
	}
	if cfg.Storage.RemoteURL != "https://forms.example.test" {
		t.Fatalf("remote url override not applied: %#v", cfg.Storage)
	}
	if cfg.Editor.HistoryDepth != 25 {
		t.Fatalf("history depth override not applied: %d", cfg.Editor.HistoryDepth)
	}
	if cfg.Assist.BaseURL != "https://assist.example.test" || cfg.Assist.Timeout() != 1500*time.Millisecond {
		t.Fatalf("assist overrides not applied: %#v", cfg.Assist)
	}
	if cfg.Logging.Level != "error" || !cfg.Logging.Source {
		t.Fatalf("logging overrides not applied: %#v", cfg.Logging)
	}
	if name, ok := EnvOverrideFor("storage.driver"); !ok || name != EnvStorageDriver {
		t.Fatalf("EnvOverrideFor(storage.driver) = %q,%v", name, ok)
	}
	if _, ok := EnvOverrideFor("storage.dir"); ok {
		t.Fatalf("storage.dir is not overridden")
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := AppConfig{Logging: LoggingConfig{Level: "Debug", Format: "json", Source: true, File: "/tmp/gfb.log"}}
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/gfb.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
	if dst.Editor.HistoryDepth != 0 {
		t.Fatalf("absent history depth should keep the unlimited default, got %d", dst.Editor.HistoryDepth)
	}
}

func TestMalformedFileFallsBackToDefaults(t *testing.T) {
	path := isolate(t)
	if err := os.WriteFile(path, []byte("editor: [not, a, map"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.HistoryDepth != Defaults().Editor.HistoryDepth {
		t.Fatalf("malformed file should be ignored: %#v", cfg.Editor)
	}
}

func TestSetAndForgetToken(t *testing.T) {
	isolate(t)
	if err := SetToken("abc"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, tok, _ := Load(); tok != "abc" {
		t.Fatalf("token = %q, want abc", tok)
	}
	if err := SetToken(""); err != nil {
		t.Fatalf("SetToken(empty): %v", err)
	}
	if _, tok, _ := Load(); tok != "" {
		t.Fatalf("token should be forgotten, got %q", tok)
	}
}
