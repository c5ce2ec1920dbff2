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

package operation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	operrors "github.com/tombee/opwire/pkg/errors"
)

var (
	// compilationsTotal counts request/response compilations by operation
	compilationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opwire_operation_compilations_total",
			Help: "Total operation compilations by operation name",
		},
		[]string{"operation"},
	)

	// callsTotal counts completed calls by operation and outcome
	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opwire_operation_calls_total",
			Help: "Total operation calls by operation name and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// callDuration tracks call latency including retries
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "opwire_operation_call_duration_seconds",
			Help:    "Operation call duration in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// retriesTotal counts retry attempts by operation and error kind
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opwire_operation_retries_total",
			Help: "Total retry attempts by operation name and error kind",
		},
		[]string{"operation", "kind"},
	)

	// pagesTotal counts pages fetched by paginated operations
	pagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "opwire_operation_pages_total",
			Help: "Total pages fetched by operation name",
		},
		[]string{"operation"},
	)
)

// outcome labels a finished call: "success" or the error kind.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if kind := operrors.KindOf(err); kind != "" {
		return string(kind)
	}
	if operrors.IsCanceled(err) {
		return "canceled"
	}
	return "unknown"
}

func recordCall(name string, err error, seconds float64) {
	callsTotal.WithLabelValues(name, outcome(err)).Inc()
	callDuration.WithLabelValues(name).Observe(seconds)
}

func recordRetry(name string, err error) {
	retriesTotal.WithLabelValues(name, outcome(err)).Inc()
}

func recordPage(name string) {
	pagesTotal.WithLabelValues(name).Inc()
}
