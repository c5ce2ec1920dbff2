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
Package tracing provides correlation IDs and OpenTelemetry setup for opwire.

A correlation ID is attached to the context once per operation call and sent
as X-Correlation-ID on every HTTP round trip made for that call, so retries
and page fetches can be grouped in server logs:

	ctx, id := tracing.Ensure(ctx)
	logger.Info("calling", "correlation_id", id)

NewProvider builds an SDK tracer provider that the operation runtime uses to
emit one span per call.
*/
package tracing
