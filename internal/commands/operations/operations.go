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
// Package operations implements the operations command, which lists
// every operation the CLI can call.
package operations

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/opwire/internal/commands/shared"
	"github.com/tombee/opwire/pkg/operation"
)

// Info describes one operation in JSON output.
type Info struct {
	Name        string `json:"name"`
	Service     string `json:"service"`
	Method      string `json:"method"`
	URI         string `json:"uri"`
	Paginated   bool   `json:"paginated"`
	Description string `json:"description"`
}

// NewCommand creates the operations command
func NewCommand() *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:     "operations",
		Aliases: []string{"ops"},
		Short:   "List callable operations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return list(cmd, shared.NewRegistry(), service)
		},
	}
	cmd.Flags().StringVarP(&service, "service", "s", "", "Only list operations of this service")
	return cmd
}

func list(cmd *cobra.Command, r *operation.Registry, service string) error {
	var infos []Info
	for _, e := range r.List() {
		if service != "" && e.Service() != service {
			continue
		}
		infos = append(infos, Info{
			Name:        e.Name,
			Service:     e.Service(),
			Method:      e.Method,
			URI:         e.URI,
			Paginated:   e.Paginated,
			Description: e.Description,
		})
	}
	if service != "" && len(infos) == 0 {
		return shared.NewUsageError(fmt.Sprintf("unknown service %q", service), nil)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, infos)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPERATION\tROUTE\tPAGES\tDESCRIPTION")
	for _, info := range infos {
		pages := ""
		if info.Paginated {
			pages = "yes"
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\n", info.Name, info.Method, info.URI, pages, info.Description)
	}
	return w.Flush()
}
