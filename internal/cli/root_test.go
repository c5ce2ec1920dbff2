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
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/opwire/internal/commands/shared"
	"github.com/tombee/opwire/internal/testing/fakeapi"
)

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()

	assert.Equal(t, "opwire", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	for _, flag := range []string{"verbose", "json", "config"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	for _, sub := range []string{"call", "pages", "items", "operations", "config", "version"} {
		found, _, err := cmd.Find([]string{sub})
		require.NoError(t, err, sub)
		assert.Equal(t, sub, found.Name())
	}
}

func TestSetVersion(t *testing.T) {
	SetVersion("1.2.3", "abc123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	v, c, b := GetVersion()
	assert.Equal(t, "1.2.3", v)
	assert.Equal(t, "abc123", c)
	assert.Equal(t, "2025-12-22", b)
}

// harness runs the CLI against a fake API with an isolated environment.
type harness struct {
	srv    *fakeapi.Server
	config string
}

func newHarness(t *testing.T, extraConfig string) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"OPWIRE_CRM_ENDPOINT", "OPWIRE_ANALYTICS_ENDPOINT", "OPWIRE_HTTP_TIMEOUT",
		"OPWIRE_RETRY_MAX_ATTEMPTS", "OPWIRE_TRACING", "OPWIRE_TRACING_EXPORTER",
		"OPWIRE_TRACING_ENDPOINT", "OPWIRE_DEBUG", "OPWIRE_LOG_LEVEL", "LOG_LEVEL",
		"LOG_FORMAT", "LOG_SOURCE",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("TEST_CRM_TOKEN", "secret-token-1234")
	t.Setenv("TEST_ANALYTICS_TOKEN", "secret-token-1234")

	srv := fakeapi.New(t, fakeapi.WithToken("secret-token-1234"))
	content := fmt.Sprintf(`services:
  crm:
    endpoint: %s
    token_env: TEST_CRM_TOKEN
  analytics:
    endpoint: %s
    token_env: TEST_ANALYTICS_TOKEN
retry:
  max_attempts: 2
  base_delay: 1ms
  max_delay: 5ms
log:
  level: error
%s`, srv.URL, srv.URL, extraConfig)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	t.Cleanup(shared.ResetFlagsForTest)
	return &harness{srv: srv, config: path}
}

func (h *harness) run(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--config", h.config}, args...))
	err = cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestCall(t *testing.T) {
	h := newHarness(t, "")
	id := h.srv.AddContact(map[string]string{"email": "cli@x.io"})

	out, _, err := h.run("call", "crm.contacts.get", "--input", `{"id":"`+id+`"}`)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, id, got["id"])
	assert.Equal(t, "cli@x.io", got["properties"].(map[string]any)["email"])

	r, ok := h.srv.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "Bearer secret-token-1234", r.Header.Get("Authorization"))
}

func TestCall_InputFileAndJQ(t *testing.T) {
	h := newHarness(t, "")
	h.srv.AddDashboard("7", "Growth")
	id := h.srv.AddDashboard("7", "Retention")

	input := filepath.Join(t.TempDir(), "in.json")
	require.NoError(t, os.WriteFile(input, []byte(fmt.Sprintf(`{"project_id":"7","id":%d}`, id)), 0600))

	out, _, err := h.run("call", "analytics.dashboards.get", "-i", "@"+input, "--jq", ".name")
	require.NoError(t, err)
	assert.Equal(t, "\"Retention\"\n", out)
}

func TestItems_MaxAndJQ(t *testing.T) {
	h := newHarness(t, "")
	for _, e := range []string{"a@x.io", "b@x.io", "c@x.io", "d@x.io"} {
		h.srv.AddContact(map[string]string{"email": e})
	}

	out, _, err := h.run("items", "crm.contacts.list", "--input", `{"limit":1}`, "--jq", ".properties.email", "--max", "3")
	require.NoError(t, err)
	assert.Equal(t, "\"a@x.io\"\n\"b@x.io\"\n\"c@x.io\"\n", out)
	assert.Len(t, h.srv.Requests(), 3)
}

func TestPages(t *testing.T) {
	h := newHarness(t, "")
	for i := range 5 {
		h.srv.AddPerson("1", fmt.Sprintf("p%d", i))
	}

	out, _, err := h.run("pages", "analytics.persons.list", "--input", `{"project_id":"1","limit":2}`, "--jq", ".results | length")
	require.NoError(t, err)
	assert.Equal(t, "2\n2\n1\n", out)
}

func TestPages_NotPaginated(t *testing.T) {
	h := newHarness(t, "")

	_, _, err := h.run("pages", "crm.contacts.get")
	assert.ErrorContains(t, err, "not paginated")
	assert.Equal(t, shared.ExitUsage, shared.ExitCode(err))
}

func TestCall_APIErrorJSON(t *testing.T) {
	h := newHarness(t, "")

	out, _, err := h.run("--json", "call", "crm.contacts.get", "--input", `{"id":"404"}`)
	require.Error(t, err)
	assert.Equal(t, shared.ExitAPIError, shared.ExitCode(err))

	var envelope struct {
		Success bool             `json:"success"`
		Command string           `json:"command"`
		Error   shared.JSONError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope))
	assert.False(t, envelope.Success)
	assert.Equal(t, "call", envelope.Command)
	assert.Equal(t, "not_found", envelope.Error.Kind)
	assert.Equal(t, 404, envelope.Error.Status)
	assert.Equal(t, "resource not found", envelope.Error.Message)
}

func TestCall_UsageErrors(t *testing.T) {
	h := newHarness(t, "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown operation", []string{"call", "crm.nope"}, "unknown operation"},
		{"bad json", []string{"call", "crm.contacts.get", "-i", "{"}, "not valid JSON"},
		{"unknown input field", []string{"call", "crm.contacts.get", "-i", `{"idd":"1"}`}, "idd"},
		{"bad jq", []string{"items", "crm.contacts.list", "--jq", ".["}, "invalid --jq"},
		{"negative max", []string{"items", "crm.contacts.list", "--max", "-1"}, "--max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := h.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCall_RetriesThenFails(t *testing.T) {
	h := newHarness(t, "")
	h.srv.FailNext(502, `{"message":"bad gateway"}`)
	h.srv.FailNext(502, `{"message":"bad gateway"}`)

	_, _, err := h.run("call", "crm.contacts.get", "-i", `{"id":"1"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad gateway")
	assert.Equal(t, shared.ExitAPIError, shared.ExitCode(err))
	assert.Len(t, h.srv.Requests(), 2)
}

func TestCall_BadConfig(t *testing.T) {
	h := newHarness(t, "bogus: true\n")

	_, _, err := h.run("call", "crm.contacts.get")
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfig, shared.ExitCode(err))
}

func TestCall_TracingPropagates(t *testing.T) {
	h := newHarness(t, "tracing:\n  enabled: true\n  exporter:\n    type: console\n")
	id := h.srv.AddContact(map[string]string{"email": "t@x.io"})

	_, stderr, err := h.run("call", "crm.contacts.get", "-i", `{"id":"`+id+`"}`)
	require.NoError(t, err)

	r, _ := h.srv.LastRequest()
	assert.NotEmpty(t, r.TraceID)
	assert.NotEmpty(t, r.Header.Get("Traceparent"))
	assert.True(t, strings.Contains(stderr, "crm.contacts.get"), "console exporter output missing:\n%s", stderr)
	assert.Contains(t, stderr, r.TraceID)
}

func TestOperations(t *testing.T) {
	h := newHarness(t, "")

	out, _, err := h.run("operations")
	require.NoError(t, err)
	assert.Contains(t, out, "crm.contacts.list")
	assert.Contains(t, out, "GET /api/projects/{project_id}/persons/")

	out, _, err = h.run("--json", "operations", "--service", "analytics")
	require.NoError(t, err)
	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	assert.Len(t, infos, 5)
	for _, info := range infos {
		assert.Equal(t, "analytics", info["service"])
	}

	_, _, err = h.run("operations", "--service", "billing")
	assert.Equal(t, shared.ExitUsage, shared.ExitCode(err))
}

func TestVersion(t *testing.T) {
	h := newHarness(t, "")
	SetVersion("1.0.0", "test123", "2025-12-22")
	defer SetVersion("dev", "unknown", "unknown")

	out, _, err := h.run("version")
	require.NoError(t, err)
	assert.Contains(t, out, "opwire version 1.0.0")

	out, _, err = h.run("--json", "version")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "test123", info["commit"])
}

func TestConfigShow_MasksTokens(t *testing.T) {
	h := newHarness(t, "")

	out, _, err := h.run("config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "token_env: TEST_CRM_TOKEN")
	assert.Contains(t, out, "set (...1234)")
	assert.NotContains(t, out, "secret-token-1234")
}

func TestConfigInit(t *testing.T) {
	newHarness(t, "")
	path := filepath.Join(t.TempDir(), "opwire", "config.yaml")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OPWIRE_CRM_TOKEN")

	cmd = NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--config", path, "config", "init"})
	err = cmd.Execute()
	assert.ErrorContains(t, err, "already exists")
}
