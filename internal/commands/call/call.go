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
// Package call implements the commands that invoke operations: call, pages
// and items.
package call

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/opwire/internal/commands/shared"
	"github.com/tombee/opwire/internal/jq"
	"github.com/tombee/opwire/pkg/operation"
)

type options struct {
	input string
	query string
	max   int
}

func (o *options) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.input, "input", "i", "", "Operation input as JSON, @file or - for stdin")
	cmd.Flags().StringVar(&o.query, "jq", "", "jq expression applied to each result")
}

// NewCallCommand creates the call command
func NewCallCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "call <operation>",
		Short: "Call an operation once",
		Long: `Call an operation once and print the decoded response.

Input is JSON matching the operation's input type. Use 'opwire operations'
to list operation names.

Examples:
  opwire call crm.contacts.get --input '{"id":"123"}'
  opwire call analytics.dashboards.get -i @dashboard.json --jq .name`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "call", args[0], opts, func(ctx context.Context, e *operation.Entry, rt *operation.Runtime, in []byte) iter.Seq2[any, error] {
				return func(yield func(any, error) bool) {
					yield(e.Call(ctx, rt, in))
				}
			})
		},
	}
	opts.register(cmd)
	return cmd
}

// NewPagesCommand creates the pages command
func NewPagesCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "pages <operation>",
		Short: "Stream every page of a list operation",
		Long: `Follow a list operation's next links and print each page as one JSON
line.

Examples:
  opwire pages crm.contacts.list --input '{"limit":100}'
  opwire pages analytics.dashboards.list -i '{"project_id":"1"}' --max 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "pages", args[0], opts, func(ctx context.Context, e *operation.Entry, rt *operation.Runtime, in []byte) iter.Seq2[any, error] {
				return e.Pages(ctx, rt, in)
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.max, "max", 0, "Stop after this many pages (0 = all)")
	return cmd
}

// NewItemsCommand creates the items command
func NewItemsCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "items <operation>",
		Short: "Stream every item of a list operation",
		Long: `Follow a list operation's next links and print each item of every
page as one JSON line.

Examples:
  opwire items crm.contacts.list --jq .properties.email
  opwire items analytics.persons.list -i '{"project_id":"1"}' --max 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "items", args[0], opts, func(ctx context.Context, e *operation.Entry, rt *operation.Runtime, in []byte) iter.Seq2[any, error] {
				return e.Items(ctx, rt, in)
			})
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.max, "max", 0, "Stop after this many items (0 = all)")
	return cmd
}

type streamFunc func(ctx context.Context, e *operation.Entry, rt *operation.Runtime, in []byte) iter.Seq2[any, error]

func run(cmd *cobra.Command, command, name string, opts options, stream streamFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.max < 0 {
		return shared.NewUsageError("--max must be >= 0", nil)
	}

	executor := jq.NewExecutor(0, 0)
	if err := executor.Validate(opts.query); err != nil {
		return shared.NewUsageError("invalid --jq expression", err)
	}
	in, err := readInput(opts.input, cmd.InOrStdin())
	if err != nil {
		return err
	}

	env, err := shared.LoadEnv(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = env.Close(shutdownCtx)
	}()

	entry, rt, err := env.Entry(name)
	if err != nil {
		return err
	}
	if command != "call" && !entry.Paginated {
		return shared.NewUsageError(fmt.Sprintf("operation %s is not paginated", name), nil)
	}

	out := cmd.OutOrStdout()
	emit := shared.EmitJSONLine
	if command == "call" {
		emit = shared.EmitJSON
	}

	count := 0
	for v, err := range stream(ctx, entry, rt, in) {
		if err != nil {
			return fail(out, command, name, err)
		}
		result, err := executor.Execute(ctx, opts.query, v)
		if err != nil {
			return shared.NewUsageError("--jq failed", err)
		}
		if err := emit(out, result); err != nil {
			return err
		}
		count++
		if opts.max > 0 && count >= opts.max {
			break
		}
	}
	env.Logger.Debug("command finished", "command", command, "operation", name, "results", count)
	return nil
}

// fail reports a call error. With --json the error envelope goes to
// stdout as well.
func fail(out io.Writer, command, name string, err error) error {
	if shared.GetJSON() {
		_ = shared.EmitJSONError(out, command, err)
	}
	exitErr := shared.NewCallError(name+" failed", err)
	if errors.Is(err, context.Canceled) {
		exitErr.Message = name + " canceled"
	}
	return exitErr
}
