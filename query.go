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
	"math"
	"net/http"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/scb/message"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Filter of a Selection. Only the "item" filter, an explicit list of category
// IDs, is supported.
type Filter struct {
	Filter string   `json:"filter" default:"item" choices:"item"`
	Values []string `json:"values" required:"true"`
}

var _ message.Message = &Filter{}

// InitMessage implements message.Message.
func (f *Filter) InitMessage(js any) error {
	return errors.Annotate(message.Init(f, js), "failed to init Filter")
}

// Selection of category values for a single dimension.
type Selection struct {
	Code      string `json:"code" required:"true"`
	Selection Filter `json:"selection" required:"true"`
}

var _ message.Message = &Selection{}

// InitMessage implements message.Message.
func (s *Selection) InitMessage(js any) error {
	return errors.Annotate(message.Init(s, js), "failed to init Selection")
}

// Select creates an "item" Selection of the given values.
func Select(code string, values ...string) Selection {
	return Selection{Code: code, Selection: Filter{Filter: "item", Values: values}}
}

// ResponseFormat requested from the API.
type ResponseFormat struct {
	Format string `json:"format" default:"json" choices:"json"`
}

var _ message.Message = &ResponseFormat{}

// InitMessage implements message.Message.
func (r *ResponseFormat) InitMessage(js any) error {
	return errors.Annotate(message.Init(r, js), "failed to init ResponseFormat")
}

// Payload is the body of a query request, e.g.:
//
//	{"query": [{"code": "Tid", "selection": {"filter": "item", "values": ["2020"]}}],
//	 "response": {"format": "json"}}
type Payload struct {
	Query    []Selection    `json:"query" required:"true"`
	Response ResponseFormat `json:"response"`
}

var _ message.Message = &Payload{}

// InitMessage implements message.Message.
func (p *Payload) InitMessage(js any) error {
	return errors.Annotate(message.Init(p, js), "failed to init Payload")
}

// NewPayload creates a Payload with the selections in the given order.
func NewPayload(selections ...Selection) *Payload {
	return &Payload{Query: selections, Response: ResponseFormat{Format: "json"}}
}

// Copy creates a deep copy of the payload.
func (p *Payload) Copy() *Payload {
	p2 := Payload{Query: make([]Selection, len(p.Query)), Response: p.Response}
	for i, s := range p.Query {
		p2.Query[i] = s
		p2.Query[i].Selection.Values = append([]string(nil), s.Selection.Values...)
	}
	return &p2
}

// Counts of the selected values for each dimension, in the payload order.
func (p *Payload) Counts() []int {
	res := make([]int, len(p.Query))
	for i, s := range p.Query {
		res[i] = len(s.Selection.Values)
	}
	return res
}

// Size of the Cartesian product of the selections, which is the number of
// values in the response. An empty payload has size 0. A product which does
// not fit into an int is math.MaxInt.
func (p *Payload) Size() int {
	counts := p.Counts()
	if len(counts) == 0 || slices.Contains(counts, 0) {
		return 0
	}
	size := 1
	for _, n := range counts {
		if size > math.MaxInt/n {
			return math.MaxInt
		}
		size *= n
	}
	return size
}

// Query is a selection validated against the metadata of a Topic. Queries
// which are too large for a single request are split into chunks along one
// dimension, see SplitPayload.
type Query struct {
	Topic   *Topic
	Limit   int // maximum number of values in a single request
	payload *Payload
}

// NewQuery creates an unbuilt query for the topic. The limit defaults to the
// client's QueryLimit.
func NewQuery(t *Topic) *Query {
	return &Query{Topic: t, Limit: t.client.config.QueryLimit}
}

// Payload of the built query, or nil if not built.
func (q *Query) Payload() *Payload { return q.payload }

// Build validates the payload against the topic's dimensions and stores its
// copy in the query. A query which fails validation remains unbuilt.
//
// All the invalid values of a dimension are reported together in a
// *ValidationError; an unknown dimension results in a *NotFoundError.
func (q *Query) Build(ctx context.Context, p *Payload) error {
	p = p.Copy()
	if p.Response.Format == "" {
		p.Response.Format = "json"
	}
	if len(p.Query) == 0 {
		return errors.Reason("query for %s has no selections", q.Topic.ID)
	}
	for i := range p.Query {
		s := &p.Query[i]
		if s.Selection.Filter == "" {
			s.Selection.Filter = "item"
		}
		if s.Selection.Filter != "item" {
			return errors.Reason("unsupported filter '%s' for dimension '%s'",
				s.Selection.Filter, s.Code)
		}
		if len(s.Selection.Values) == 0 {
			return errors.Reason("no values selected for dimension '%s'", s.Code)
		}
		d, err := q.Topic.Dimension(ctx, s.Code)
		if err != nil {
			return err
		}
		if err := validateValues(d, s.Selection.Values); err != nil {
			return err
		}
	}
	q.payload = p
	return nil
}

// validateValues collects all the values not among the dimension's categories,
// each reported once, in the order of the selection.
func validateValues(d *Dimension, values []string) error {
	var invalid []string
	seen := make(map[string]bool)
	for _, v := range values {
		if d.HasCategory(v) || seen[v] {
			continue
		}
		seen[v] = true
		invalid = append(invalid, v)
	}
	if len(invalid) > 0 {
		return &ValidationError{Dimension: d.ID, Values: invalid}
	}
	return nil
}

// Size of the built query. The second value is false if the query is not
// built.
func (q *Query) Size() (int, bool) {
	if q.payload == nil {
		return 0, false
	}
	return q.payload.Size(), true
}

// Chunks returns the payloads of the requests the query executes, in the order
// of execution. A query within the limit has exactly one chunk.
func (q *Query) Chunks() ([]*Payload, error) {
	if q.payload == nil {
		return nil, errors.Reason("query for %s is not built", q.Topic.ID)
	}
	if q.payload.Size() <= q.Limit {
		return []*Payload{q.payload.Copy()}, nil
	}
	return SplitPayload(q.payload, q.Limit)
}

// Execute the query. An oversized query is executed sequentially chunk by
// chunk, and the results are merged in the chunk order. A failure of any chunk
// fails the whole query.
func (q *Query) Execute(ctx context.Context) (*ResultSet, error) {
	chunks, err := q.Chunks()
	if err != nil {
		return nil, err
	}
	if len(chunks) == 1 {
		return q.post(ctx, chunks[0])
	}
	size, _ := q.Size()
	logging.Infof(ctx, "splitting query of size %d for %s into %d chunks",
		size, q.Topic.ID, len(chunks))
	results := make([]*ResultSet, len(chunks))
	for i, c := range chunks {
		rs, err := q.post(ctx, c)
		if err != nil {
			logging.Warningf(ctx, "chunk %d of %d failed for %s", i+1, len(chunks), q.Topic.ID)
			return nil, err
		}
		logging.Debugf(ctx, "chunk %d of %d: %d rows", i+1, len(chunks), len(rs.response.Data))
		results[i] = rs
	}
	return Merge(results...)
}

func (q *Query) post(ctx context.Context, p *Payload) (*ResultSet, error) {
	var resp Response
	if err := q.Topic.client.transport.PostJSON(ctx, q.Topic.URL, p, &resp); err != nil {
		if te, ok := asTransportError(err); ok && te.StatusCode == http.StatusNotFound {
			return nil, &QueryError{Topic: q.Topic.ID, Err: err}
		}
		return nil, err
	}
	return NewResultSet(&resp, q), nil
}

// QueryPayload builds a query from the payload.
func (t *Topic) QueryPayload(ctx context.Context, p *Payload) (*Query, error) {
	q := NewQuery(t)
	if err := q.Build(ctx, p); err != nil {
		return nil, err
	}
	return q, nil
}

// QueryJSON builds a query from a payload decoded by encoding/json into an
// 'any'.
func (t *Topic) QueryJSON(ctx context.Context, js any) (*Query, error) {
	var p Payload
	if err := p.InitMessage(js); err != nil {
		return nil, errors.Annotate(err, "invalid query JSON")
	}
	return t.QueryPayload(ctx, &p)
}

// QueryFile builds a query from a JSON file containing the payload.
func (t *Topic) QueryFile(ctx context.Context, path string) (*Query, error) {
	var p Payload
	if err := message.FromFile(&p, path); err != nil {
		return nil, errors.Annotate(err, "failed to load query")
	}
	return t.QueryPayload(ctx, &p)
}

// QuerySelect builds a query from a map of dimension ID to the selected
// category IDs. The selections are ordered as the topic's dimensions.
func (t *Topic) QuerySelect(ctx context.Context, selections map[string][]string) (*Query, error) {
	dims, err := t.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	var sels []Selection
	for _, d := range dims {
		if values, ok := selections[d.ID]; ok {
			sels = append(sels, Select(d.ID, values...))
		}
	}
	if len(sels) != len(selections) {
		ids := maps.Keys(selections)
		slices.Sort(ids)
		for _, id := range ids {
			if _, err := t.Dimension(ctx, id); err != nil {
				return nil, err
			}
		}
	}
	return t.QueryPayload(ctx, NewPayload(sels...))
}
