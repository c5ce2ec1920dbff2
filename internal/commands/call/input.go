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
package call

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tombee/opwire/internal/commands/shared"
)

// readInput resolves the --input flag: inline JSON, "@path" for a file or
// "-" for stdin. Empty means the zero input.
func readInput(flag string, stdin io.Reader) (json.RawMessage, error) {
	var raw []byte
	switch {
	case flag == "":
		return nil, nil
	case flag == "-":
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, shared.NewUsageError("failed to read input from stdin", err)
		}
		raw = b
	case strings.HasPrefix(flag, "@"):
		b, err := os.ReadFile(flag[1:])
		if err != nil {
			return nil, shared.NewUsageError("failed to read input file", err)
		}
		raw = b
	default:
		raw = []byte(flag)
	}

	if !json.Valid(raw) {
		return nil, shared.NewUsageError("input is not valid JSON", fmt.Errorf("%.80q", string(raw)))
	}
	return raw, nil
}
