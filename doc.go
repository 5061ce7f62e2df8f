// Copyright 2024 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scb implements a client for the table API of Statistics Sweden
// (SCB), also known as the PxWeb API.
//
// Official documentation is at https://www.scb.se/en/services/open-data-api/ .
//
// Each table, called a Topic here, has metadata listing its dimensions
// ("variables") and their categories ("values"). The type of a dimension is
// inferred from its ID: "Region", "Tid" (time) and "ContentsCode" are special,
// everything else is a category dimension.
//
// A Query selects category values for some of the dimensions. It is validated
// against the topic metadata before anything is sent to the server. The
// response contains one value per element of the Cartesian product of the
// selections, and the API limits the size of a single response. Larger queries
// are split into chunks along a single dimension (see Basepoint and
// SplitPayload), executed one after another, and merged into one ResultSet.
//
// A ResultSet turns the response into a table.Table indexed by the non-content
// columns.
//
// Typical use:
//
//	ctx = scb.UseClient(ctx, scb.NewClient(nil, nil))
//	topic := scb.NewTopic(ctx, "BE/BE0101/BE0101A/BefolkningNy")
//	q, err := topic.QuerySelect(ctx, map[string][]string{
//	  "Region": {"00"}, "Tid": {"2020", "2021"}, "ContentsCode": {"BE0101N1"},
//	})
//	...
//	res, err := q.Execute(ctx)
//	...
//	tbl, err := res.Table()
package scb
