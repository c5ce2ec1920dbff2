// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteConfig(t *testing.T) {
	isolate(t)
	configPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Services["crm"] = ServiceConfig{Endpoint: "https://crm.internal", TokenEnv: "CRM_PAT"}

	if err := WriteConfig(cfg, configPath); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Failed to stat config file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected file permissions 0600, got %o", info.Mode().Perm())
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	content := string(data)
	if !strings.HasPrefix(content, "# opwire configuration") {
		t.Error("Config file missing header comment")
	}
	if !strings.Contains(content, "token_env: CRM_PAT") {
		t.Error("Config file missing token_env")
	}
	if !strings.Contains(content, "timeout: 30s") {
		t.Errorf("durations should be written as strings:\n%s", content)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if loaded.Services["crm"].Endpoint != "https://crm.internal" {
		t.Errorf("round trip lost endpoint: %+v", loaded.Services["crm"])
	}
	if loaded.Retry != cfg.Retry {
		t.Errorf("round trip changed retry: %+v != %+v", loaded.Retry, cfg.Retry)
	}
}

func TestWriteConfigBackup(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	cfg := Default()
	cfg.Services["crm"] = ServiceConfig{Endpoint: "https://old.example", TokenEnv: "T"}
	if err := WriteConfig(cfg, configPath); err != nil {
		t.Fatalf("First WriteConfig failed: %v", err)
	}
	cfg.Services["crm"] = ServiceConfig{Endpoint: "https://new.example", TokenEnv: "T"}
	if err := WriteConfig(cfg, configPath); err != nil {
		t.Fatalf("Second WriteConfig failed: %v", err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	backupFound := false
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), "config.yaml.bak.") {
			continue
		}
		backupFound = true
		data, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			t.Fatalf("Failed to read backup file: %v", err)
		}
		if !strings.Contains(string(data), "https://old.example") {
			t.Error("Backup doesn't contain old config")
		}
	}
	if !backupFound {
		t.Error("No backup file was created")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read current config: %v", err)
	}
	if !strings.Contains(string(data), "https://new.example") {
		t.Error("Current config doesn't contain new data")
	}
}

func TestRotateBackups(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	cfg := Default()

	// The first write has nothing to back up; the next five each add one.
	for i := 0; i < 6; i++ {
		cfg.HTTP.UserAgent = "opwire-test/" + string(rune('0'+i))
		if err := WriteConfig(cfg, configPath); err != nil {
			t.Fatalf("WriteConfig %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	backupCount := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "config.yaml.bak.") {
			backupCount++
		}
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("temporary file left behind: %s", entry.Name())
		}
	}
	if backupCount != maxBackups {
		t.Errorf("Expected %d backup files, got %d", maxBackups, backupCount)
	}
}
