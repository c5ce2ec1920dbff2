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
package crm

import (
	"time"

	"github.com/shopspring/decimal"
)

// Contact is a CRM contact record.
type Contact struct {
	ID         string            `json:"id" validate:"required"`
	Properties map[string]string `json:"properties"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Archived   bool              `json:"archived"`
}

// Email returns the contact's email property.
func (c Contact) Email() string {
	return c.Properties["email"]
}

// Paging is the cursor block of a list response.
type Paging struct {
	Next *NextPage `json:"next,omitempty"`
}

// NextPage points at the following page.
type NextPage struct {
	After string `json:"after"`
	Link  string `json:"link"`
}

// Deal is a sales opportunity. Amount keeps the exact decimal value the
// API sends.
type Deal struct {
	ID        string          `json:"id" validate:"required"`
	Name      string          `json:"dealname"`
	Amount    decimal.Decimal `json:"amount"`
	Stage     string          `json:"dealstage"`
	CloseDate *time.Time      `json:"closedate,omitempty"`
	Archived  bool            `json:"archived"`
}

// File is a stored file's metadata.
type File struct {
	ID        string    `json:"id" validate:"required"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListContactsInput selects a page of contacts.
type ListContactsInput struct {
	_ struct{} `http:"GET /crm/v3/objects/contacts"`

	Limit      int      `http:"query=limit,omitempty" json:"limit,omitempty"`
	After      string   `http:"query=after,omitempty" json:"after,omitempty"`
	Properties []string `http:"query=properties" json:"properties,omitempty"`
	Archived   *bool    `http:"query=archived" json:"archived,omitempty"`
}

// ListContactsOutput is one page of contacts.
type ListContactsOutput struct {
	Results []Contact `json:"results" validate:"dive"`
	Paging  *Paging   `json:"paging,omitempty"`
}

// GetContactInput selects one contact.
type GetContactInput struct {
	_ struct{} `http:"GET /crm/v3/objects/contacts/{contactId}"`

	ID         string   `http:"path=contactId" json:"id"`
	Properties []string `http:"query=properties" json:"properties,omitempty"`
}

// CreateContactInput creates a contact. A repeated IdempotencyKey returns
// the contact created by the first request.
type CreateContactInput struct {
	_ struct{} `http:"POST /crm/v3/objects/contacts"`

	IdempotencyKey string            `http:"header=Idempotency-Key,omitempty" json:"idempotency_key,omitempty"`
	Properties     map[string]string `json:"properties"`
}

// UpdateContactInput changes contact properties. Only the given
// properties are modified.
type UpdateContactInput struct {
	_ struct{} `http:"PATCH /crm/v3/objects/contacts/{contactId}"`

	ID         string            `http:"path=contactId" json:"id"`
	Properties map[string]string `json:"properties"`
}

// DeleteContactInput archives a contact.
type DeleteContactInput struct {
	_ struct{} `http:"DELETE /crm/v3/objects/contacts/{contactId}"`

	ID string `http:"path=contactId" json:"id"`
}

// ListDealsInput selects a page of deals.
type ListDealsInput struct {
	_ struct{} `http:"GET /crm/v3/objects/deals"`

	Limit int    `http:"query=limit,omitempty" json:"limit,omitempty"`
	After string `http:"query=after,omitempty" json:"after,omitempty"`
	Stage string `http:"query=dealstage,omitempty" json:"dealstage,omitempty"`
}

// ListDealsOutput is one page of deals.
type ListDealsOutput struct {
	Results []Deal  `json:"results" validate:"dive"`
	Paging  *Paging `json:"paging,omitempty"`
}

// CreateDealInput creates a deal.
type CreateDealInput struct {
	_ struct{} `http:"POST /crm/v3/objects/deals"`

	Name      string          `json:"dealname"`
	Amount    decimal.Decimal `json:"amount"`
	Stage     string          `json:"dealstage,omitempty"`
	CloseDate *time.Time      `json:"closedate,omitempty"`
}

// GetFileByPathInput looks a file up by its folder path. Path may contain
// slashes; they are sent as-is.
type GetFileByPathInput struct {
	_ struct{} `http:"GET /files/v3/files/stat/{path+}"`

	Path string `http:"path=path" json:"path"`
}

// FileStat wraps the file found at a path.
type FileStat struct {
	File *File `json:"file"`
}
