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
package fakeapi

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type dashboard struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Pinned      bool      `json:"pinned"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	Deleted     bool      `json:"deleted"`
}

type featureFlag struct {
	ID                int    `json:"id"`
	Key               string `json:"key"`
	Name              string `json:"name"`
	Active            bool   `json:"active"`
	RolloutPercentage *int   `json:"rollout_percentage"`
}

type person struct {
	ID          string         `json:"id"`
	DistinctIDs []string       `json:"distinct_ids"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
}

type project struct {
	dashboards []*dashboard
	flags      []*featureFlag
	persons    []*person
}

func analyticsError(typ, code, detail string) map[string]any {
	return map[string]any{"type": typ, "code": code, "detail": detail, "attr": nil}
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, analyticsError("invalid_request", "not_found", "Not found."))
}

func invalid(w http.ResponseWriter, attr, detail string) {
	body := analyticsError("validation_error", "invalid_input", detail)
	body["attr"] = attr
	writeJSON(w, http.StatusBadRequest, body)
}

func (s *Server) routeAnalytics(r *mux.Router) {
	p := r.PathPrefix("/api/projects/{project_id}").Subrouter()
	p.HandleFunc("/dashboards/", s.listDashboards).Methods(http.MethodGet)
	p.HandleFunc("/dashboards/", s.createDashboard).Methods(http.MethodPost)
	p.HandleFunc("/dashboards/{id:[0-9]+}/", s.getDashboard).Methods(http.MethodGet)
	p.HandleFunc("/feature_flags/{id:[0-9]+}/", s.updateFeatureFlag).Methods(http.MethodPatch)
	p.HandleFunc("/persons/", s.listPersons).Methods(http.MethodGet)
}

func (s *Server) project(id string) *project {
	p, ok := s.projects[id]
	if !ok {
		p = &project{}
		s.projects[id] = p
	}
	return p
}

// lookupProject returns the project named in r's path. Projects exist once
// anything has been added to them.
func (s *Server) lookupProject(r *http.Request) (*project, bool) {
	p, ok := s.projects[mux.Vars(r)["project_id"]]
	return p, ok
}

// AddDashboard stores a dashboard in a project and returns its ID.
func (s *Server) AddDashboard(projectID, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &dashboard{ID: s.nextSeq(), Name: name, Tags: []string{}, CreatedAt: s.now()}
	p := s.project(projectID)
	p.dashboards = append(p.dashboards, d)
	return d.ID
}

// AddFeatureFlag stores an inactive flag in a project and returns its ID.
func (s *Server) AddFeatureFlag(projectID, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := &featureFlag{ID: s.nextSeq(), Key: key, Name: key}
	p := s.project(projectID)
	p.flags = append(p.flags, f)
	return f.ID
}

// FeatureFlagState reports a flag's active state and rollout.
func (s *Server) FeatureFlagState(projectID string, id int) (active bool, rollout *int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, exists := s.projects[projectID]
	if !exists {
		return false, nil, false
	}
	for _, f := range p.flags {
		if f.ID == id {
			return f.Active, f.RolloutPercentage, true
		}
	}
	return false, nil, false
}

// AddPerson stores a person in a project and returns its ID.
func (s *Server) AddPerson(projectID string, distinctIDs ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	pr := &person{
		ID:          uuid.NewString(),
		DistinctIDs: slices.Clone(distinctIDs),
		Properties:  map[string]any{},
		CreatedAt:   s.now(),
	}
	if len(distinctIDs) > 0 {
		pr.Properties["email"] = distinctIDs[0]
	}
	p := s.project(projectID)
	p.persons = append(p.persons, pr)
	return pr.ID
}

func (s *Server) listDashboards(w http.ResponseWriter, r *http.Request) {
	q, err := s.decodeQuery(r)
	if err != nil {
		invalid(w, "", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookupProject(r)
	if !ok {
		notFound(w)
		return
	}

	var matching []*dashboard
	for _, d := range p.dashboards {
		if d.Deleted {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(q.Search)) {
			continue
		}
		matching = append(matching, d)
	}

	start, end, more := window(len(matching), q.Offset, q.Limit)
	var next, previous *string
	if more {
		u := pageURL(r, "offset", strconv.Itoa(end))
		next = &u
	}
	if start > 0 {
		u := pageURL(r, "offset", strconv.Itoa(max(start-q.Limit, 0)))
		previous = &u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(matching),
		"next":     next,
		"previous": previous,
		"results":  append([]*dashboard{}, matching[start:end]...),
	})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookupProject(r)
	if !ok {
		notFound(w)
		return
	}
	for _, d := range p.dashboards {
		if d.ID == id && !d.Deleted {
			writeJSON(w, http.StatusOK, d)
			return
		}
	}
	notFound(w)
}

type dashboardBody struct {
	Data *struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Pinned      bool     `json:"pinned"`
		Tags        []string `json:"tags"`
	} `json:"data"`
}

func (s *Server) createDashboard(w http.ResponseWriter, r *http.Request) {
	var body dashboardBody
	if err := decodeBody(r, &body); err != nil {
		invalid(w, "", "Malformed request: "+err.Error())
		return
	}
	if body.Data == nil {
		invalid(w, "data", "This field is required.")
		return
	}
	if body.Data.Name == "" {
		invalid(w, "name", "This field is required.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := &dashboard{
		ID:          s.nextSeq(),
		Name:        body.Data.Name,
		Description: body.Data.Description,
		Pinned:      body.Data.Pinned,
		Tags:        body.Data.Tags,
		CreatedAt:   s.now(),
	}
	if d.Tags == nil {
		d.Tags = []string{}
	}
	p := s.project(mux.Vars(r)["project_id"])
	p.dashboards = append(p.dashboards, d)
	writeJSON(w, http.StatusCreated, d)
}

type flagPatch struct {
	Name              *string `json:"name"`
	Active            *bool   `json:"active"`
	RolloutPercentage *int    `json:"rollout_percentage"`
}

func (s *Server) updateFeatureFlag(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])
	var patch flagPatch
	if err := decodeBody(r, &patch); err != nil {
		invalid(w, "", "Malformed request: "+err.Error())
		return
	}
	if rp := patch.RolloutPercentage; rp != nil && (*rp < 0 || *rp > 100) {
		invalid(w, "rollout_percentage", "Rollout percentage must be between 0 and 100.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookupProject(r)
	if !ok {
		notFound(w)
		return
	}
	idx := slices.IndexFunc(p.flags, func(f *featureFlag) bool { return f.ID == id })
	if idx < 0 {
		notFound(w)
		return
	}
	f := p.flags[idx]
	if patch.Name != nil {
		f.Name = *patch.Name
	}
	if patch.Active != nil {
		f.Active = *patch.Active
	}
	if patch.RolloutPercentage != nil {
		rp := *patch.RolloutPercentage
		f.RolloutPercentage = &rp
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) listPersons(w http.ResponseWriter, r *http.Request) {
	q, err := s.decodeQuery(r)
	if err != nil {
		invalid(w, "", err.Error())
		return
	}
	offset, ok := decodeCursor(q.Cursor)
	if !ok {
		invalid(w, "cursor", "Invalid cursor.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.lookupProject(r)
	if !ok {
		notFound(w)
		return
	}

	var matching []*person
	for _, pr := range p.persons {
		if q.DistinctID == "" || slices.Contains(pr.DistinctIDs, q.DistinctID) {
			matching = append(matching, pr)
		}
	}
	start, end, more := window(len(matching), offset, q.Limit)
	var next *string
	if more {
		u := pageURL(r, "cursor", encodeCursor(end))
		next = &u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"next":    next,
		"results": append([]*person{}, matching[start:end]...),
	})
}

// Person cursors are opaque to clients: base64 of "offset=N".
func encodeCursor(offset int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf("offset=%d", offset)))
}

func decodeCursor(cursor string) (int, bool) {
	if cursor == "" {
		return 0, true
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, false
	}
	var offset int
	if _, err := fmt.Sscanf(string(raw), "offset=%d", &offset); err != nil || offset < 0 {
		return 0, false
	}
	return offset, true
}
