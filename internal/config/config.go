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
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Storage       StorageConfig `yaml:"storage"`
	Assist        AssistConfig  `yaml:"assist"`
	Logging       LoggingConfig `yaml:"logging"`
}

type EditorConfig struct {
	// HistoryDepth caps undo steps per session; 0 means unlimited.
	HistoryDepth int `yaml:"history_depth"`
	// Keys maps chords ("ctrl+shift+z") to actions ("undo", "redo", "save", "palette").
	Keys map[string]string `yaml:"keys,omitempty"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // "file" | "postgres" | "remote"
	Dir         string `yaml:"dir"`
	PostgresDSN string `yaml:"postgres_dsn,omitempty"`
	RemoteURL   string `yaml:"remote_url,omitempty"`
}

type AssistConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverRemote   = "remote"
)

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{HistoryDepth: 0},
		Storage:       StorageConfig{Driver: DriverFile, Dir: defaultDataDir()},
		Assist:        AssistConfig{BaseURL: "", TimeoutMs: 20000},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvHistoryDepth    = "GFB_HISTORY_DEPTH"
	EnvStorageDriver   = "GFB_STORAGE_DRIVER"
	EnvStorageDir      = "GFB_STORAGE_DIR"
	EnvPostgresDSN     = "GFB_PG_DSN"
	EnvRemoteURL       = "GFB_REMOTE_URL"
	EnvAssistURL       = "GFB_ASSIST_URL"
	EnvAssistTimeoutMs = "GFB_ASSIST_TIMEOUT_MS"
	EnvLogLevel        = "GFB_LOG_LEVEL"
	EnvLogFormat       = "GFB_LOG_FORMAT"
	EnvLogSource       = "GFB_LOG_SOURCE"
	EnvLogFile         = "GFB_LOG_FILE"
	// EnvConfigPath points Load/Save at an explicit file instead of the per-user path.
	EnvConfigPath = "GFB_CONFIG"
)

// envKeys maps dotted config keys to the env var that overrides them.
var envKeys = map[string]string{
	"editor.history_depth": EnvHistoryDepth,
	"storage.driver":       EnvStorageDriver,
	"storage.dir":          EnvStorageDir,
	"storage.postgres_dsn": EnvPostgresDSN,
	"storage.remote_url":   EnvRemoteURL,
	"assist.base_url":      EnvAssistURL,
	"assist.timeout_ms":    EnvAssistTimeoutMs,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base := userConfigBase()
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

func userConfigBase() string {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		return filepath.Join(base, "GoFormBuilder")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "GoFormBuilder")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			return filepath.Join(x, "goformbuilder")
		}
		return filepath.Join(os.Getenv("HOME"), ".config", "goformbuilder")
	}
}

func defaultDataDir() string {
	if base := userConfigBase(); base != "" {
		return filepath.Join(base, "forms")
	}
	return "forms"
}

// Load reads the user config file (if present), applies defaults and merges environment overrides.
// The assist token is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return err
		}
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// history depth 0 (unlimited) is the default and indistinguishable from absent, so only a positive cap is merged
	if src.Editor.HistoryDepth > 0 {
		dst.Editor.HistoryDepth = src.Editor.HistoryDepth
	}
	if len(src.Editor.Keys) > 0 {
		dst.Editor.Keys = make(map[string]string, len(src.Editor.Keys))
		for k, v := range src.Editor.Keys {
			dst.Editor.Keys[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
		}
	}
	if v := strings.TrimSpace(src.Storage.Driver); v != "" {
		dst.Storage.Driver = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Storage.Dir); v != "" {
		dst.Storage.Dir = v
	}
	if v := strings.TrimSpace(src.Storage.PostgresDSN); v != "" {
		dst.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(src.Storage.RemoteURL); v != "" {
		dst.Storage.RemoteURL = v
	}
	if v := strings.TrimSpace(src.Assist.BaseURL); v != "" {
		dst.Assist.BaseURL = v
	}
	if src.Assist.TimeoutMs > 0 {
		dst.Assist.TimeoutMs = src.Assist.TimeoutMs
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := env(EnvHistoryDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Editor.HistoryDepth = n
		}
	}
	if v := env(EnvStorageDriver); v != "" {
		cfg.Storage.Driver = strings.ToLower(v)
	}
	if v := env(EnvStorageDir); v != "" {
		cfg.Storage.Dir = v
	}
	if v := env(EnvPostgresDSN); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := env(EnvRemoteURL); v != "" {
		cfg.Storage.RemoteURL = v
	}
	if v := env(EnvAssistURL); v != "" {
		cfg.Assist.BaseURL = v
	}
	if v := env(EnvAssistTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Assist.TimeoutMs = n
		}
	}
	if v := env(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := env(EnvLogFormat); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := env(EnvLogSource); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
	if v := env(EnvLogFile); v != "" {
		cfg.Logging.File = v
	}
}

func env(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// EnvOverrideFor returns the env var name if the dotted key is overridden by the environment.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Timeout returns the assist request timeout, falling back to the default.
func (a AssistConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return time.Duration(Defaults().Assist.TimeoutMs) * time.Millisecond
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}
