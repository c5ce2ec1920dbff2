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
package analytics

import "time"

// Dashboard is a saved collection of insights.
type Dashboard struct {
	ID          int       `json:"id" validate:"required"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Pinned      bool      `json:"pinned"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Deleted     bool      `json:"deleted"`
}

// FeatureFlag is a rollout switch.
type FeatureFlag struct {
	ID                int    `json:"id"`
	Key               string `json:"key" validate:"required"`
	Name              string `json:"name"`
	Active            bool   `json:"active"`
	RolloutPercentage *int   `json:"rollout_percentage"`
}

// Person is an identified user.
type Person struct {
	ID          string         `json:"id" validate:"required"`
	DistinctIDs []string       `json:"distinct_ids"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ListDashboardsInput selects a page of dashboards by offset.
type ListDashboardsInput struct {
	_ struct{} `http:"GET /api/projects/{project_id}/dashboards/"`

	ProjectID string `http:"path=project_id" json:"project_id"`
	Limit     int    `http:"query=limit,omitempty" json:"limit,omitempty"`
	Offset    *int   `http:"query=offset" json:"offset,omitempty"`
	Search    string `http:"query=search,omitempty" json:"search,omitempty"`
}

// ListDashboardsOutput is one page of dashboards. Next is the URL of the
// following page, absent on the last one.
type ListDashboardsOutput struct {
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
	Results  []Dashboard `json:"results" validate:"dive"`
}

// GetDashboardInput selects one dashboard.
type GetDashboardInput struct {
	_ struct{} `http:"GET /api/projects/{project_id}/dashboards/{id}/"`

	ProjectID string `http:"path=project_id" json:"project_id"`
	ID        int    `http:"path=id" json:"id"`
}

// CreateDashboardInput creates a dashboard. The body is sent wrapped in a
// "data" envelope.
type CreateDashboardInput struct {
	_ struct{} `http:"POST /api/projects/{project_id}/dashboards/" envelope:"data"`

	ProjectID   string   `http:"path=project_id" json:"project_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Pinned      bool     `json:"pinned,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// FeatureFlagPatch holds the flag fields to change. Nil fields are left
// untouched.
type FeatureFlagPatch struct {
	Name              *string `json:"name,omitempty"`
	Active            *bool   `json:"active,omitempty"`
	RolloutPercentage *int    `json:"rollout_percentage,omitempty"`
}

// UpdateFeatureFlagInput patches a flag. Patch is sent as the whole body.
type UpdateFeatureFlagInput struct {
	_ struct{} `http:"PATCH /api/projects/{project_id}/feature_flags/{id}/"`

	ProjectID string           `http:"path=project_id" json:"project_id"`
	ID        int              `http:"path=id" json:"id"`
	Patch     FeatureFlagPatch `http:"payload" json:"patch"`
}

// ListPersonsInput selects a page of persons by cursor.
type ListPersonsInput struct {
	_ struct{} `http:"GET /api/projects/{project_id}/persons/"`

	ProjectID  string `http:"path=project_id" json:"project_id"`
	Limit      int    `http:"query=limit,omitempty" json:"limit,omitempty"`
	Cursor     string `http:"query=cursor,omitempty" json:"cursor,omitempty"`
	DistinctID string `http:"query=distinct_id,omitempty" json:"distinct_id,omitempty"`
}

// ListPersonsOutput is one page of persons.
type ListPersonsOutput struct {
	Next    *string  `json:"next"`
	Results []Person `json:"results" validate:"dive"`
}
