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
package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ExporterConfig
		wantErr string
	}{
		{"empty", ExporterConfig{}, ""},
		{"none", ExporterConfig{Type: ExporterNone}, ""},
		{"console", ExporterConfig{Type: ExporterConsole}, ""},
		{"http with endpoint", ExporterConfig{Type: ExporterOTLPHTTP, Endpoint: "localhost:4318"}, ""},
		{"grpc without endpoint", ExporterConfig{Type: ExporterOTLPGRPC}, "requires an endpoint"},
		{"unknown", ExporterConfig{Type: "zipkin"}, "unknown exporter type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewExporter_None(t *testing.T) {
	exp, err := NewExporter(context.Background(), ExporterConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, exp)
}

func TestNewExporter_OTLPDoesNotDial(t *testing.T) {
	for _, typ := range []string{ExporterOTLPHTTP, ExporterOTLPGRPC} {
		exp, err := NewExporter(context.Background(), ExporterConfig{Type: typ, Endpoint: "127.0.0.1:1", Insecure: true}, nil)
		require.NoError(t, err, typ)
		require.NotNil(t, exp)
		assert.NoError(t, exp.Shutdown(context.Background()))
	}
}

func TestSetup_ConsoleExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := Setup(context.Background(), Options{
		ServiceName: "opwire",
		Version:     "test",
		Sampling:    SamplerConfig{Rate: 1},
		Exporter:    ExporterConfig{Type: ExporterConsole},
		Console:     &buf,
	})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "crm.contacts.get")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	out := buf.String()
	assert.True(t, strings.Contains(out, "crm.contacts.get"), out)
	assert.Contains(t, out, "opwire")
}

func TestSetup_NeverSampleExportsNothing(t *testing.T) {
	var buf bytes.Buffer
	tp, err := Setup(context.Background(), Options{
		ServiceName: "opwire",
		Sampling:    SamplerConfig{Rate: 0},
		Exporter:    ExporterConfig{Type: ExporterConsole},
		Console:     &buf,
	})
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "dropped")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))
	assert.Empty(t, buf.String())
}
