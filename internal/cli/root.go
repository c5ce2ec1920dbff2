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
	"github.com/spf13/cobra"

	"github.com/tombee/opwire/internal/commands/call"
	configcmd "github.com/tombee/opwire/internal/commands/config"
	"github.com/tombee/opwire/internal/commands/operations"
	"github.com/tombee/opwire/internal/commands/shared"
	versioncmd "github.com/tombee/opwire/internal/commands/version"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// NewRootCommand creates the root Cobra command with every subcommand
// attached.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opwire",
		Short: "opwire - typed calls against HTTP APIs",
		Long: `opwire calls the operations of the bundled API clients from the
command line. Each operation takes JSON input, is sent with the configured
credentials and retry policy, and prints the decoded response.

Run 'opwire operations' to list what can be called.
Run 'opwire config init' to write a configuration file.`,
		SilenceUsage:  true, // Don't show usage on errors
		SilenceErrors: true, // We handle errors ourselves for proper exit codes
	}

	verbose, json, config := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/opwire/config.yaml)")

	cmd.AddCommand(call.NewCallCommand())
	cmd.AddCommand(call.NewPagesCommand())
	cmd.AddCommand(call.NewItemsCommand())
	cmd.AddCommand(operations.NewCommand())
	cmd.AddCommand(configcmd.NewConfigCommand())
	cmd.AddCommand(versioncmd.NewVersionCommand())

	return cmd
}

// HandleExitError handles exit errors with proper exit codes
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
