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
	"fmt"
	"maps"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

type contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Archived   bool              `json:"archived"`
}

type deal struct {
	ID        string     `json:"id"`
	Name      string     `json:"dealname"`
	Amount    string     `json:"amount"`
	Stage     string     `json:"dealstage"`
	CloseDate *time.Time `json:"closedate,omitempty"`
	Archived  bool       `json:"archived"`
}

type file struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type crmStore struct {
	contacts    []*contact
	deals       []*deal
	files       map[string]*file
	idempotency map[string]string
}

func newCRMStore() *crmStore {
	return &crmStore{
		files:       make(map[string]*file),
		idempotency: make(map[string]string),
	}
}

func (c *crmStore) contact(id string) *contact {
	for _, ct := range c.contacts {
		if ct.ID == id && !ct.Archived {
			return ct
		}
	}
	return nil
}

func (c *crmStore) contactByEmail(email string) *contact {
	for _, ct := range c.contacts {
		if !ct.Archived && ct.Properties["email"] == email {
			return ct
		}
	}
	return nil
}

func crmError(category, message string) map[string]any {
	return map[string]any{
		"status":        "error",
		"message":       message,
		"category":      category,
		"correlationId": "00000000-0000-0000-0000-000000000000",
	}
}

func (s *Server) routeCRM(r *mux.Router) {
	contacts := r.PathPrefix("/crm/v3/objects/contacts").Subrouter()
	contacts.HandleFunc("", s.listContacts).Methods(http.MethodGet)
	contacts.HandleFunc("", s.createContact).Methods(http.MethodPost)
	contacts.HandleFunc("/{contactId}", s.getContact).Methods(http.MethodGet)
	contacts.HandleFunc("/{contactId}", s.updateContact).Methods(http.MethodPatch)
	contacts.HandleFunc("/{contactId}", s.deleteContact).Methods(http.MethodDelete)

	deals := r.PathPrefix("/crm/v3/objects/deals").Subrouter()
	deals.HandleFunc("", s.listDeals).Methods(http.MethodGet)
	deals.HandleFunc("", s.createDeal).Methods(http.MethodPost)

	r.HandleFunc("/files/v3/files/stat/{path:.+}", s.statFile).Methods(http.MethodGet)
}

// AddContact stores a contact and returns its ID.
func (s *Server) AddContact(properties map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addContact(properties).ID
}

func (s *Server) addContact(properties map[string]string) *contact {
	now := s.now()
	ct := &contact{
		ID:         strconv.Itoa(s.nextSeq()),
		Properties: maps.Clone(properties),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ct.Properties == nil {
		ct.Properties = map[string]string{}
	}
	s.crm.contacts = append(s.crm.contacts, ct)
	return ct
}

// ContactProperties returns a copy of a stored contact's properties and
// whether it exists and is not archived.
func (s *Server) ContactProperties(id string) (map[string]string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.crm.contact(id)
	if ct == nil {
		return nil, false
	}
	return maps.Clone(ct.Properties), true
}

// AddDeal stores a deal. Amount is kept verbatim.
func (s *Server) AddDeal(name, amount, stage string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := &deal{ID: strconv.Itoa(s.nextSeq()), Name: name, Amount: amount, Stage: stage}
	s.crm.deals = append(s.crm.deals, d)
	return d.ID
}

// AddFile stores a file at path, e.g. "reports/2025/q1.pdf".
func (s *Server) AddFile(path string, size int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := path[strings.LastIndex(path, "/")+1:]
	f := &file{
		ID:        strconv.Itoa(s.nextSeq()),
		Name:      name,
		Path:      "/" + strings.TrimPrefix(path, "/"),
		Size:      size,
		Type:      "OTHER",
		CreatedAt: s.now(),
	}
	if ext := strings.LastIndex(name, "."); ext >= 0 {
		f.Type = strings.ToUpper(name[ext+1:])
	}
	f.URL = s.URL + "/files" + f.Path
	s.crm.files[f.Path] = f
	return f.ID
}

func (s *Server) listContacts(w http.ResponseWriter, r *http.Request) {
	q, err := s.decodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", err.Error()))
		return
	}
	offset, ok := parseAfter(q.After)
	if !ok {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", fmt.Sprintf("Invalid after token %q", q.After)))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []*contact
	for _, ct := range s.crm.contacts {
		if ct.Archived == q.Archived {
			matching = append(matching, ct)
		}
	}
	start, end, more := window(len(matching), offset, q.Limit)
	results := make([]contact, 0, end-start)
	for _, ct := range matching[start:end] {
		results = append(results, selectProperties(*ct, q.Properties))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"paging":  crmPaging(r, end, more),
	})
}

func (s *Server) getContact(w http.ResponseWriter, r *http.Request) {
	q, err := s.decodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.crm.contact(mux.Vars(r)["contactId"])
	if ct == nil {
		writeJSON(w, http.StatusNotFound, crmError("OBJECT_NOT_FOUND", "resource not found"))
		return
	}
	writeJSON(w, http.StatusOK, selectProperties(*ct, q.Properties))
}

type contactBody struct {
	Properties map[string]string `json:"properties"`
}

func (s *Server) createContact(w http.ResponseWriter, r *http.Request) {
	var body contactBody
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", "Invalid input JSON: "+err.Error()))
		return
	}
	email := body.Properties["email"]
	if email == "" {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", "Property values were not valid: email is required"))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := r.Header.Get("Idempotency-Key")
	if id, ok := s.crm.idempotency[key]; ok && key != "" {
		if ct := s.crm.contact(id); ct != nil {
			writeJSON(w, http.StatusOK, ct)
			return
		}
	}
	if existing := s.crm.contactByEmail(email); existing != nil {
		writeJSON(w, http.StatusConflict, crmError("CONFLICT", "Contact already exists. Existing ID: "+existing.ID))
		return
	}

	ct := s.addContact(body.Properties)
	if key != "" {
		s.crm.idempotency[key] = ct.ID
	}
	writeJSON(w, http.StatusCreated, ct)
}

func (s *Server) updateContact(w http.ResponseWriter, r *http.Request) {
	var body contactBody
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", "Invalid input JSON: "+err.Error()))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.crm.contact(mux.Vars(r)["contactId"])
	if ct == nil {
		writeJSON(w, http.StatusNotFound, crmError("OBJECT_NOT_FOUND", "resource not found"))
		return
	}
	maps.Copy(ct.Properties, body.Properties)
	ct.UpdatedAt = s.now()
	writeJSON(w, http.StatusOK, ct)
}

func (s *Server) deleteContact(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ct := s.crm.contact(mux.Vars(r)["contactId"])
	if ct == nil {
		writeJSON(w, http.StatusNotFound, crmError("OBJECT_NOT_FOUND", "resource not found"))
		return
	}
	ct.Archived = true
	ct.UpdatedAt = s.now()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listDeals(w http.ResponseWriter, r *http.Request) {
	q, err := s.decodeQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", err.Error()))
		return
	}
	offset, ok := parseAfter(q.After)
	if !ok {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", fmt.Sprintf("Invalid after token %q", q.After)))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []*deal
	for _, d := range s.crm.deals {
		if !d.Archived && (q.Stage == "" || d.Stage == q.Stage) {
			matching = append(matching, d)
		}
	}
	start, end, more := window(len(matching), offset, q.Limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"results": append([]*deal{}, matching[start:end]...),
		"paging":  crmPaging(r, end, more),
	})
}

type dealBody struct {
	Name      string     `json:"dealname"`
	Amount    any        `json:"amount"`
	Stage     string     `json:"dealstage"`
	CloseDate *time.Time `json:"closedate"`
}

func (s *Server) createDeal(w http.ResponseWriter, r *http.Request) {
	var body dealBody
	if err := decodeBody(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", "Invalid input JSON: "+err.Error()))
		return
	}
	if body.Name == "" {
		writeJSON(w, http.StatusBadRequest, crmError("VALIDATION_ERROR", "Property values were not valid: dealname is required"))
		return
	}
	if body.Stage == "" {
		body.Stage = "appointmentscheduled"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := &deal{
		ID:        strconv.Itoa(s.nextSeq()),
		Name:      body.Name,
		Amount:    fmt.Sprint(body.Amount),
		Stage:     body.Stage,
		CloseDate: body.CloseDate,
	}
	if body.Amount == nil {
		d.Amount = "0"
	}
	s.crm.deals = append(s.crm.deals, d)
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) statFile(w http.ResponseWriter, r *http.Request) {
	path := "/" + strings.TrimPrefix(mux.Vars(r)["path"], "/")

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.crm.files[path]
	if !ok {
		writeJSON(w, http.StatusNotFound, crmError("OBJECT_NOT_FOUND", "File not found at path "+path))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": f})
}

// selectProperties returns ct limited to the named properties, or ct
// unchanged when names is empty.
func selectProperties(ct contact, names []string) contact {
	if len(names) == 0 {
		ct.Properties = maps.Clone(ct.Properties)
		return ct
	}
	props := make(map[string]string, len(names))
	for _, name := range names {
		if v, ok := ct.Properties[name]; ok {
			props[name] = v
		}
	}
	ct.Properties = props
	return ct
}

// parseAfter reads a CRM cursor. Cursors are item offsets rendered as
// decimal strings.
func parseAfter(after string) (int, bool) {
	if after == "" {
		return 0, true
	}
	n, err := strconv.Atoi(after)
	return n, err == nil && n >= 0
}

func crmPaging(r *http.Request, end int, more bool) map[string]any {
	if !more {
		return map[string]any{}
	}
	after := strconv.Itoa(end)
	return map[string]any{
		"next": map[string]any{
			"after": after,
			"link":  pageURL(r, "after", after),
		},
	}
}
