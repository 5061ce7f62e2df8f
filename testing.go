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

package scb

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/stockparfait/errors"
)

// TestTransport is an in-memory Transport for use in tests.
type TestTransport struct {
	Metadata map[string]*Metadata // by URL; a missing URL results in HTTP 404
	// Respond generates the response to the i'th POST request (0-based). When
	// nil, TestResponse is used.
	Respond func(i int, p *Payload) (*Response, error)
	Gets    []string   // URLs of all GET requests
	Posts   []*Payload // all POSTed payloads
}

var _ Transport = &TestTransport{}

// NewTestTransport creates a TestTransport serving the metadata at the
// topic's URL of the default Config.
func NewTestTransport(topicID string, m *Metadata) *TestTransport {
	return &TestTransport{
		Metadata: map[string]*Metadata{NewClient(nil, nil).TopicURL(topicID): m},
	}
}

func roundTrip(from, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return errors.Annotate(err, "failed to encode")
	}
	return errors.Annotate(json.Unmarshal(data, to), "failed to decode")
}

// GetJSON implements Transport.
func (t *TestTransport) GetJSON(ctx context.Context, uri string, v any) error {
	t.Gets = append(t.Gets, uri)
	m, ok := t.Metadata[uri]
	if !ok {
		return &TransportError{Method: http.MethodGet, URL: uri,
			StatusCode: http.StatusNotFound, Err: errors.Reason("not found")}
	}
	return roundTrip(m, v)
}

// PostJSON implements Transport.
func (t *TestTransport) PostJSON(ctx context.Context, uri string, body, v any) error {
	var p Payload
	if err := roundTrip(body, &p); err != nil {
		return err
	}
	i := len(t.Posts)
	t.Posts = append(t.Posts, &p)
	respond := t.Respond
	if respond == nil {
		respond = func(_ int, p *Payload) (*Response, error) { return TestResponse(p), nil }
	}
	resp, err := respond(i, &p)
	if err != nil {
		return err
	}
	return roundTrip(resp, v)
}

// TestResponse generates a response to the payload as the API would: every
// selection except ContentsCode is an index column, every selected
// ContentsCode value is a content column, and there is one data row per
// combination of the index values, the last dimension varying fastest. The
// content values are the 1-based row numbers.
func TestResponse(p *Payload) *Response {
	codes := map[DimensionType]string{
		TimeDimension:     "t",
		RegionDimension:   "r",
		CategoryDimension: "d",
	}
	var resp Response
	var keys [][]string
	var contents []string
	for _, s := range p.Query {
		if s.Code == ContentsID {
			contents = append(contents, s.Selection.Values...)
			continue
		}
		resp.Columns = append(resp.Columns, ResponseColumn{
			Code: s.Code, Text: s.Code, Type: codes[DimensionTypeOf(s.Code)]})
		keys = append(keys, s.Selection.Values)
	}
	for _, c := range contents {
		resp.Columns = append(resp.Columns, ResponseColumn{Code: c, Text: c, Type: "c"})
	}
	var product func(prefix []string, k int)
	product = func(prefix []string, k int) {
		if k == len(keys) {
			row := ResponseRow{Key: append([]string{}, prefix...)}
			for range contents {
				row.Values = append(row.Values, strconv.Itoa(len(resp.Data)+1))
			}
			resp.Data = append(resp.Data, row)
			return
		}
		for _, v := range keys[k] {
			product(append(prefix, v), k+1)
		}
	}
	product(nil, 0)
	return &resp
}
