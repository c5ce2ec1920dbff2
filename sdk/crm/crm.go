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
// Package crm declares the CRM API's contacts, deals and files operations.
//
//	rt, _ := operation.New(operation.Config{
//	    Endpoint:    "https://api.hubapi.com",
//	    Transport:   t,
//	    Credentials: operation.StaticToken(os.Getenv("OPWIRE_CRM_TOKEN")),
//	})
//	c := crm.New(rt)
//	for contact, err := range c.Contacts.Items(ctx, crm.ListContactsInput{Limit: 100}) {
//	    ...
//	}
package crm

import (
	operrors "github.com/tombee/opwire/pkg/errors"
	"github.com/tombee/opwire/pkg/operation"
)

// Service is the name operations are registered under.
const Service = "crm"

var cursorPaging = operation.Pagination{
	InputToken:  "after",
	OutputToken: "paging.next.link",
	Items:       "results",
	PageSize:    "limit",
	Mode:        operation.ModeCursor,
}

var readErrors = []operrors.Kind{
	operrors.KindAuthentication,
	operrors.KindAuthorization,
	operrors.KindNotFound,
	operrors.KindRateLimit,
	operrors.KindServer,
}

var writeErrors = append([]operrors.Kind{operrors.KindValidation, operrors.KindConflict}, readErrors...)

var (
	ListContacts = &operation.Operation[ListContactsInput, ListContactsOutput]{
		Name:       "crm.contacts.list",
		Errors:     readErrors,
		Pagination: &cursorPaging,
	}

	GetContact = &operation.Operation[GetContactInput, Contact]{
		Name:   "crm.contacts.get",
		Errors: readErrors,
	}

	CreateContact = &operation.Operation[CreateContactInput, Contact]{
		Name:   "crm.contacts.create",
		Errors: writeErrors,
	}

	UpdateContact = &operation.Operation[UpdateContactInput, Contact]{
		Name:   "crm.contacts.update",
		Errors: writeErrors,
	}

	DeleteContact = &operation.Operation[DeleteContactInput, operation.Empty]{
		Name:   "crm.contacts.delete",
		Errors: readErrors,
	}

	ListDeals = &operation.Operation[ListDealsInput, ListDealsOutput]{
		Name:       "crm.deals.list",
		Errors:     readErrors,
		Pagination: &cursorPaging,
	}

	CreateDeal = &operation.Operation[CreateDealInput, Deal]{
		Name:   "crm.deals.create",
		Errors: writeErrors,
	}

	GetFileByPath = &operation.Operation[GetFileByPathInput, FileStat]{
		Name:   "crm.files.stat",
		Errors: readErrors,
	}
)

// Client groups typed clients for every CRM operation.
type Client struct {
	Contacts      *operation.Paginated[ListContactsInput, ListContactsOutput, Contact]
	GetContact    operation.Client[GetContactInput, Contact]
	CreateContact operation.Client[CreateContactInput, Contact]
	UpdateContact operation.Client[UpdateContactInput, Contact]
	DeleteContact operation.Client[DeleteContactInput, operation.Empty]

	Deals      *operation.Paginated[ListDealsInput, ListDealsOutput, Deal]
	CreateDeal operation.Client[CreateDealInput, Deal]

	GetFileByPath operation.Client[GetFileByPathInput, FileStat]
}

// New returns a Client bound to rt.
func New(rt *operation.Runtime) *Client {
	return &Client{
		Contacts:      operation.MakePaginated[ListContactsInput, ListContactsOutput, Contact](rt, ListContacts),
		GetContact:    operation.MakeClient(rt, GetContact),
		CreateContact: operation.MakeClient(rt, CreateContact),
		UpdateContact: operation.MakeClient(rt, UpdateContact),
		DeleteContact: operation.MakeClient(rt, DeleteContact),

		Deals:      operation.MakePaginated[ListDealsInput, ListDealsOutput, Deal](rt, ListDeals),
		CreateDeal: operation.MakeClient(rt, CreateDeal),

		GetFileByPath: operation.MakeClient(rt, GetFileByPath),
	}
}

// Register adds every CRM operation to r.
func Register(r *operation.Registry) {
	operation.RegisterPaginated[ListContactsInput, ListContactsOutput, Contact](r, ListContacts, "List contacts, newest first")
	operation.Register(r, GetContact, "Get a contact by ID")
	operation.Register(r, CreateContact, "Create a contact")
	operation.Register(r, UpdateContact, "Update contact properties")
	operation.Register(r, DeleteContact, "Archive a contact")
	operation.RegisterPaginated[ListDealsInput, ListDealsOutput, Deal](r, ListDeals, "List deals")
	operation.Register(r, CreateDeal, "Create a deal")
	operation.Register(r, GetFileByPath, "Look up a file by folder path")
}
