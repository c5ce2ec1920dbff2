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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/opwire/internal/commands/shared"
	"github.com/tombee/opwire/internal/config"
	oplog "github.com/tombee/opwire/internal/log"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and manage configuration",
		Long: `View and manage opwire configuration.

Subcommands:
  show - Display the effective configuration
  path - Show config file location
  init - Write a default configuration file`,
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigInitCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = runConfigShow
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults and environment overrides.

Tokens are never printed; each service shows whether its token variable is
set. Use --json for machine-readable output.`,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newConfigInitCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return shared.NewUsageError(fmt.Sprintf("%s already exists (use --force to overwrite)", path), nil)
			}
			if err := config.WriteConfig(config.Default(), path); err != nil {
				return shared.NewConfigError("failed to write configuration", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file, keeping a backup")
	return cmd
}

// ServiceStatus is a service as shown by config show.
type ServiceStatus struct {
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	TokenEnv string `json:"token_env" yaml:"token_env"`
	Token    string `json:"token" yaml:"token"`
}

// view is the shown configuration: the loaded config with services
// replaced by their status.
type view struct {
	Path     string                   `json:"path" yaml:"-"`
	Services map[string]ServiceStatus `json:"services" yaml:"services"`
	HTTP     any                      `json:"http" yaml:"http"`
	Retry    any                      `json:"retry" yaml:"retry"`
	Log      any                      `json:"log" yaml:"log"`
	Tracing  any                      `json:"tracing" yaml:"tracing"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("failed to load configuration", err)
	}
	path, _ := configPath()

	v := view{
		Path:     path,
		Services: make(map[string]ServiceStatus, len(cfg.Services)),
		HTTP:     cfg.HTTP,
		Retry:    cfg.Retry,
		Log:      cfg.Log,
		Tracing:  cfg.Tracing,
	}
	for _, name := range cfg.ServiceNames() {
		svc := cfg.Services[name]
		token := "not set"
		if t := os.Getenv(svc.TokenEnv); t != "" {
			token = "set (" + oplog.SanitizeAPIKey(t) + ")"
		}
		v.Services[name] = ServiceStatus{Endpoint: svc.Endpoint, TokenEnv: svc.TokenEnv, Token: token}
	}

	if shared.GetJSON() {
		return shared.EmitJSON(cmd.OutOrStdout(), v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)
	return nil
}

func configPath() (string, error) {
	if p := shared.GetConfigPath(); p != "" {
		return p, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", fmt.Errorf("failed to determine config path: %w", err)
	}
	return p, nil
}
