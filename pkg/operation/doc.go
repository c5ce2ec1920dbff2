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
// Package operation compiles declarative operation descriptors into typed
// HTTP clients.
//
// An operation pairs an input struct, whose fields are bound to the wire by
// http tags (see package binding), with an output type:
//
//	var GetContact = &operation.Operation[GetContactInput, Contact]{
//	    Name: "crm.contacts.get",
//	}
//
//	rt, _ := operation.New(operation.Config{Endpoint: url, Transport: t})
//	get := operation.MakeClient(rt, GetContact)
//	contact, err := get(ctx, GetContactInput{ID: "42"})
//
// The request builder and response parser are compiled once per operation
// pointer and shared by every client of it. Failures are returned as one of
// the typed errors in package errors. List operations with a Pagination
// descriptor are wrapped by MakePaginated, whose Pages and Items methods
// return lazy iterators.
package operation
