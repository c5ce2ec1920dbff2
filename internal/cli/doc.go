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
/*
Package cli provides the root command for the opwire CLI.

This package creates the Cobra command tree and handles global concerns like
version information, persistent flags, and exit codes. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

	opwire
	├── call          Call an operation once
	├── pages         Stream every page of a list operation
	├── items         Stream every item of a list operation
	├── operations    List callable operations
	├── config        Show, locate or initialize configuration
	└── version       Show version

# Exit Codes

	0  success
	1  transport, decoding or other local failure
	2  bad arguments or input
	3  configuration could not be loaded
	4  the API answered with an error status
*/
package cli
