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
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxBackups is how many previous config files WriteConfig keeps.
const maxBackups = 3

const header = `# opwire configuration
#
# Tokens never live in this file: each service names the environment
# variable that holds its bearer token in token_env.

`

// WriteConfig writes cfg to path as YAML. An existing file is first copied
// to path.bak.<timestamp>, keeping the newest three backups. The new file
// is written to a temporary sibling and renamed into place, so readers
// never see a partial file.
func WriteConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(header)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := backup(path); err != nil {
		return err
	}
	return writeAtomic(path, buf.Bytes())
}

func writeAtomic(path string, data []byte) error {
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func backup(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read existing config: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102T150405.000000000")
	if err := os.WriteFile(path+".bak."+stamp, data, 0600); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return rotateBackups(path)
}

// rotateBackups removes all but the newest maxBackups backups. Timestamps
// sort lexically, so name order is age order.
func rotateBackups(path string) error {
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	prefix := filepath.Base(path) + ".bak."
	var backups []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			backups = append(backups, e.Name())
		}
	}
	slices.Sort(backups)
	for len(backups) > maxBackups {
		if err := os.Remove(filepath.Join(filepath.Dir(path), backups[0])); err != nil {
			return fmt.Errorf("failed to remove old backup: %w", err)
		}
		backups = backups[1:]
	}
	return nil
}
