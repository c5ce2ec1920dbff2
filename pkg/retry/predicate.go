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

package retry

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	operrors "github.com/tombee/opwire/pkg/errors"
)

// predicateEnv is the variable set visible to retry expressions.
type predicateEnv struct {
	Kind       string  `expr:"kind"`
	Status     int     `expr:"status"`
	RetryAfter float64 `expr:"retry_after"`
	Message    string  `expr:"message"`
}

// PredicateFromExpr compiles a boolean expression into a Predicate.
//
// The expression sees kind (e.g. "rate_limit", "server", "http_transport"),
// status (0 for non-API errors), retry_after (seconds, 0 when absent) and
// message:
//
//	kind in ["rate_limit", "http_transport"] || status in [502, 503]
//
// Context cancellation is never retried regardless of the expression. An
// empty expression yields DefaultShouldRetry.
func PredicateFromExpr(expression string) (Predicate, error) {
	if strings.TrimSpace(expression) == "" {
		return DefaultShouldRetry, nil
	}

	program, err := expr.Compile(expression,
		expr.Env(predicateEnv{}),
		expr.AsBool(),
	)
	if err != nil {
		return nil, operrors.Wrap(err, "failed to compile retry expression")
	}

	return func(err error) bool {
		if err == nil || operrors.IsCanceled(err) {
			return false
		}
		return evalPredicate(program, envFor(err))
	}, nil
}

func evalPredicate(program *vm.Program, env predicateEnv) bool {
	out, err := expr.Run(program, env)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

func envFor(err error) predicateEnv {
	env := predicateEnv{Message: err.Error()}

	typed, ok := operrors.AsTyped(err)
	if !ok {
		return env
	}
	env.Kind = string(typed.Kind())
	if api, ok := typed.(operrors.APIError); ok {
		env.Status = api.Status()
		env.Message = api.Msg()
	}
	if rl, ok := typed.(*operrors.RateLimitError); ok && rl.RetryAfterSeconds != nil {
		env.RetryAfter = *rl.RetryAfterSeconds
	}
	return env
}
