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
package analytics_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oplog "github.com/tombee/opwire/internal/log"
	"github.com/tombee/opwire/internal/testing/fakeapi"
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/operation"
	"github.com/tombee/opwire/pkg/retry"
	"github.com/tombee/opwire/pkg/transport"
	"github.com/tombee/opwire/sdk/analytics"
)

const project = "4242"

func setup(t *testing.T) (*fakeapi.Server, *analytics.Client) {
	t.Helper()
	srv := fakeapi.New(t, fakeapi.WithToken("phx_test"))
	tr, err := transport.NewHTTP(transport.DefaultHTTPConfig(), transport.WithLogger(oplog.Discard()))
	require.NoError(t, err)
	rt, err := operation.New(operation.Config{
		Endpoint:    srv.URL,
		Transport:   tr,
		Credentials: operation.StaticToken("phx_test"),
		Retry:       &retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Factor: 2},
		Logger:      oplog.Discard(),
	})
	require.NoError(t, err)
	return srv, analytics.New(rt)
}

func TestDashboards_OffsetPaging(t *testing.T) {
	srv, c := setup(t)
	for i := range 5 {
		srv.AddDashboard(project, fmt.Sprintf("Board %d", i))
	}

	var pages []analytics.ListDashboardsOutput
	for page, err := range c.Dashboards.Pages(context.Background(), analytics.ListDashboardsInput{ProjectID: project, Limit: 2}) {
		require.NoError(t, err)
		pages = append(pages, page)
	}
	require.Len(t, pages, 3)
	assert.Equal(t, 5, pages[0].Count)
	assert.Nil(t, pages[0].Previous)
	assert.NotNil(t, pages[1].Previous)
	assert.Nil(t, pages[2].Next)
	assert.Len(t, pages[2].Results, 1)

	var offsets []string
	for _, r := range srv.Requests() {
		assert.Equal(t, "/api/projects/"+project+"/dashboards/", r.Path)
		offsets = append(offsets, r.Query.Get("offset"))
	}
	assert.Equal(t, []string{"", "2", "4"}, offsets)
}

func TestDashboards_SearchItems(t *testing.T) {
	srv, c := setup(t)
	srv.AddDashboard(project, "Revenue weekly")
	srv.AddDashboard(project, "Signups")
	srv.AddDashboard(project, "Revenue monthly")

	var names []string
	for d, err := range c.Dashboards.Items(context.Background(), analytics.ListDashboardsInput{ProjectID: project, Limit: 1, Search: "revenue"}) {
		require.NoError(t, err)
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Revenue weekly", "Revenue monthly"}, names)
}

func TestDashboards_StartOffset(t *testing.T) {
	srv, c := setup(t)
	for i := range 4 {
		srv.AddDashboard(project, fmt.Sprintf("D%d", i))
	}
	offset := 3

	var names []string
	for d, err := range c.Dashboards.Items(context.Background(), analytics.ListDashboardsInput{ProjectID: project, Offset: &offset}) {
		require.NoError(t, err)
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"D3"}, names)
}

func TestGetDashboard_NotFound(t *testing.T) {
	srv, c := setup(t)
	srv.AddDashboard(project, "exists")

	_, err := c.GetDashboard(context.Background(), analytics.GetDashboardInput{ProjectID: project, ID: 12345})
	var nf *operrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Not found.", nf.Message)
}

func TestCreateDashboard_Envelope(t *testing.T) {
	srv, c := setup(t)

	got, err := c.CreateDashboard(context.Background(), analytics.CreateDashboardInput{
		ProjectID: project,
		Name:      "Launch",
		Tags:      []string{"q3"},
	})
	require.NoError(t, err)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Launch", got.Name)
	assert.Equal(t, []string{"q3"}, got.Tags)

	r, _ := srv.LastRequest()
	assert.JSONEq(t, `{"data":{"name":"Launch","tags":["q3"]}}`, string(r.Body))
	assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

	fetched, err := c.GetDashboard(context.Background(), analytics.GetDashboardInput{ProjectID: project, ID: got.ID})
	require.NoError(t, err)
	assert.Equal(t, got.ID, fetched.ID)
}

func TestCreateDashboard_Validation(t *testing.T) {
	_, c := setup(t)

	_, err := c.CreateDashboard(context.Background(), analytics.CreateDashboardInput{ProjectID: project})
	var ve *operrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "This field is required.", ve.Message)
	assert.Equal(t, "name", ve.Details.(map[string]any)["attr"])
}

func TestUpdateFeatureFlag_Payload(t *testing.T) {
	srv, c := setup(t)
	id := srv.AddFeatureFlag(project, "new-onboarding")
	active, rollout := true, 25

	got, err := c.UpdateFeatureFlag(context.Background(), analytics.UpdateFeatureFlagInput{
		ProjectID: project,
		ID:        id,
		Patch:     analytics.FeatureFlagPatch{Active: &active, RolloutPercentage: &rollout},
	})
	require.NoError(t, err)
	assert.Equal(t, "new-onboarding", got.Key)
	assert.True(t, got.Active)
	require.NotNil(t, got.RolloutPercentage)
	assert.Equal(t, 25, *got.RolloutPercentage)

	r, _ := srv.LastRequest()
	assert.Equal(t, fmt.Sprintf("/api/projects/%s/feature_flags/%d/", project, id), r.Path)
	assert.JSONEq(t, `{"active":true,"rollout_percentage":25}`, string(r.Body))

	isActive, stored, ok := srv.FeatureFlagState(project, id)
	require.True(t, ok)
	assert.True(t, isActive)
	assert.Equal(t, 25, *stored)
}

func TestUpdateFeatureFlag_OutOfRange(t *testing.T) {
	srv, c := setup(t)
	id := srv.AddFeatureFlag(project, "f")
	rollout := 150

	_, err := c.UpdateFeatureFlag(context.Background(), analytics.UpdateFeatureFlagInput{
		ProjectID: project,
		ID:        id,
		Patch:     analytics.FeatureFlagPatch{RolloutPercentage: &rollout},
	})
	assert.Equal(t, operrors.KindValidation, operrors.KindOf(err))
}

func TestPersons_CursorPaging(t *testing.T) {
	srv, c := setup(t)
	var want []string
	for i := range 7 {
		want = append(want, srv.AddPerson(project, fmt.Sprintf("user-%d", i)))
	}

	var got []string
	for p, err := range c.Persons.Items(context.Background(), analytics.ListPersonsInput{ProjectID: project, Limit: 3}) {
		require.NoError(t, err)
		got = append(got, p.ID)
	}
	assert.Equal(t, want, got)

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Empty(t, reqs[0].Query.Get("cursor"))
	assert.NotEmpty(t, reqs[1].Query.Get("cursor"))
	assert.NotEqual(t, reqs[1].Query.Get("cursor"), reqs[2].Query.Get("cursor"))
}

func TestPersons_DistinctIDFilter(t *testing.T) {
	srv, c := setup(t)
	srv.AddPerson(project, "alice", "alice@x.io")
	bob := srv.AddPerson(project, "bob")

	page, err := c.Persons.Call(context.Background(), analytics.ListPersonsInput{ProjectID: project, DistinctID: "bob"})
	require.NoError(t, err)
	require.Len(t, page.Results, 1)
	assert.Equal(t, bob, page.Results[0].ID)
	assert.Nil(t, page.Next)
}

func TestPersons_RateLimitedPage(t *testing.T) {
	srv, c := setup(t)
	for i := range 4 {
		srv.AddPerson(project, fmt.Sprintf("u%d", i))
	}

	n := 0
	for _, err := range c.Persons.Items(context.Background(), analytics.ListPersonsInput{ProjectID: project, Limit: 2}) {
		require.NoError(t, err)
		n++
		if n == 2 {
			srv.FailNext(429, `{"type":"throttled","detail":"Request was throttled.","retry_after":0.001}`)
		}
	}
	assert.Equal(t, 4, n)
	assert.Len(t, srv.Requests(), 3)
}

func TestUnknownProject(t *testing.T) {
	_, c := setup(t)

	for _, err := range c.Dashboards.Items(context.Background(), analytics.ListDashboardsInput{ProjectID: "nope"}) {
		assert.Equal(t, operrors.KindNotFound, operrors.KindOf(err))
		return
	}
	t.Fatal("expected an error from the first page")
}

func TestRegister(t *testing.T) {
	r := operation.NewRegistry()
	analytics.Register(r)

	names := make([]string, 0)
	for _, e := range r.List() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{
		"analytics.dashboards.create",
		"analytics.dashboards.get",
		"analytics.dashboards.list",
		"analytics.feature_flags.update",
		"analytics.persons.list",
	}, names)

	e, err := r.Get("analytics.feature_flags.update")
	require.NoError(t, err)
	assert.Equal(t, "PATCH", e.Method)
	assert.False(t, e.Paginated)

	_, err = e.Call(context.Background(), nil, json.RawMessage(`{"bogus":1}`))
	assert.ErrorContains(t, err, "bogus")
}
