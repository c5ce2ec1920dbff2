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
// Package analytics declares the product analytics API's dashboards,
// feature flags and persons operations. Every operation is scoped to a
// project.
package analytics

import (
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/operation"
)

// Service is the name operations are registered under.
const Service = "analytics"

var readErrors = []operrors.Kind{
	operrors.KindAuthentication,
	operrors.KindAuthorization,
	operrors.KindNotFound,
	operrors.KindRateLimit,
}

var (
	ListDashboards = &operation.Operation[ListDashboardsInput, ListDashboardsOutput]{
		Name:   "analytics.dashboards.list",
		Errors: readErrors,
		Pagination: &operation.Pagination{
			InputToken:  "offset",
			OutputToken: "next",
			PageSize:    "limit",
			Mode:        operation.ModeOffset,
		},
	}

	GetDashboard = &operation.Operation[GetDashboardInput, Dashboard]{
		Name:   "analytics.dashboards.get",
		Errors: readErrors,
	}

	CreateDashboard = &operation.Operation[CreateDashboardInput, Dashboard]{
		Name:   "analytics.dashboards.create",
		Errors: append([]operrors.Kind{operrors.KindValidation}, readErrors...),
	}

	UpdateFeatureFlag = &operation.Operation[UpdateFeatureFlagInput, FeatureFlag]{
		Name:   "analytics.feature_flags.update",
		Errors: append([]operrors.Kind{operrors.KindValidation, operrors.KindConflict}, readErrors...),
	}

	ListPersons = &operation.Operation[ListPersonsInput, ListPersonsOutput]{
		Name:   "analytics.persons.list",
		Errors: readErrors,
		Pagination: &operation.Pagination{
			InputToken:  "cursor",
			OutputToken: "next",
			PageSize:    "limit",
			Mode:        operation.ModeCursor,
		},
	}
)

// Client groups typed clients for every analytics operation.
type Client struct {
	Dashboards        *operation.Paginated[ListDashboardsInput, ListDashboardsOutput, Dashboard]
	GetDashboard      operation.Client[GetDashboardInput, Dashboard]
	CreateDashboard   operation.Client[CreateDashboardInput, Dashboard]
	UpdateFeatureFlag operation.Client[UpdateFeatureFlagInput, FeatureFlag]
	Persons           *operation.Paginated[ListPersonsInput, ListPersonsOutput, Person]
}

// New returns a Client bound to rt.
func New(rt *operation.Runtime) *Client {
	return &Client{
		Dashboards:        operation.MakePaginated[ListDashboardsInput, ListDashboardsOutput, Dashboard](rt, ListDashboards),
		GetDashboard:      operation.MakeClient(rt, GetDashboard),
		CreateDashboard:   operation.MakeClient(rt, CreateDashboard),
		UpdateFeatureFlag: operation.MakeClient(rt, UpdateFeatureFlag),
		Persons:           operation.MakePaginated[ListPersonsInput, ListPersonsOutput, Person](rt, ListPersons),
	}
}

// Register adds every analytics operation to r.
func Register(r *operation.Registry) {
	operation.RegisterPaginated[ListDashboardsInput, ListDashboardsOutput, Dashboard](r, ListDashboards, "List dashboards in a project")
	operation.Register(r, GetDashboard, "Get a dashboard by ID")
	operation.Register(r, CreateDashboard, "Create a dashboard")
	operation.Register(r, UpdateFeatureFlag, "Change a feature flag's state or rollout")
	operation.RegisterPaginated[ListPersonsInput, ListPersonsOutput, Person](r, ListPersons, "List persons in a project")
}
