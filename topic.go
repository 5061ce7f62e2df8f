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
	"fmt"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// DimensionType classifies the dimensions of a table, and the columns of a
// query response.
type DimensionType string

// Values of DimensionType.
const (
	TimeDimension     = DimensionType("time")
	RegionDimension   = DimensionType("region")
	CategoryDimension = DimensionType("category")
	ContentDimension  = DimensionType("content")
)

// Reserved dimension IDs which determine the dimension type.
const (
	RegionID   = "Region"
	TimeID     = "Tid"
	ContentsID = "ContentsCode"
)

// DimensionTypeOf infers the type of a dimension from its ID. Only the exact
// reserved IDs have special types; everything else is a category.
func DimensionTypeOf(id string) DimensionType {
	switch id {
	case RegionID:
		return RegionDimension
	case TimeID:
		return TimeDimension
	case ContentsID:
		return ContentDimension
	}
	return CategoryDimension
}

// Variable is the metadata of a single dimension, as returned by the API.
type Variable struct {
	Code        string   `json:"code"`
	Text        string   `json:"text"`
	Values      []string `json:"values"`
	ValueTexts  []string `json:"valueTexts"`
	Comment     string   `json:"comment,omitempty"`
	Elimination bool     `json:"elimination,omitempty"`
	Time        bool     `json:"time,omitempty"`
}

// Metadata of a topic, as returned by the API.
type Metadata struct {
	Title     string     `json:"title"`
	Variables []Variable `json:"variables"`
}

// Category is a single coded value of a dimension.
type Category struct {
	ID    string
	Label string
}

func (c *Category) String() string {
	return fmt.Sprintf("%s (%s)", c.Label, c.ID)
}

// Dimension is one axis of a table.
type Dimension struct {
	ID          string
	Label       string
	Type        DimensionType
	Note        string // empty when the dimension has no note
	Elimination bool   // the dimension may be left out of a query
	categories  []*Category
	byID        map[string]*Category
}

// NewDimension creates a Dimension from its metadata.
func NewDimension(v *Variable) (*Dimension, error) {
	if len(v.Values) != len(v.ValueTexts) {
		return nil, errors.Reason("dimension '%s' has %d values but %d value texts",
			v.Code, len(v.Values), len(v.ValueTexts))
	}
	d := &Dimension{
		ID:          v.Code,
		Label:       v.Text,
		Type:        DimensionTypeOf(v.Code),
		Note:        v.Comment,
		Elimination: v.Elimination,
		categories:  make([]*Category, len(v.Values)),
		byID:        make(map[string]*Category, len(v.Values)),
	}
	for i, id := range v.Values {
		if _, ok := d.byID[id]; ok {
			return nil, errors.Reason("duplicate category '%s' in dimension '%s'", id, v.Code)
		}
		c := &Category{ID: id, Label: v.ValueTexts[i]}
		d.categories[i] = c
		d.byID[id] = c
	}
	return d, nil
}

func (d *Dimension) String() string {
	return fmt.Sprintf("%s (%s)", d.Label, d.ID)
}

// Categories of the dimension in the API order.
func (d *Dimension) Categories() []*Category {
	res := make([]*Category, len(d.categories))
	copy(res, d.categories)
	return res
}

// CategoryIDs in the API order.
func (d *Dimension) CategoryIDs() []string {
	res := make([]string, len(d.categories))
	for i, c := range d.categories {
		res[i] = c.ID
	}
	return res
}

// HasCategory checks if id is a valid category of the dimension.
func (d *Dimension) HasCategory(id string) bool {
	_, ok := d.byID[id]
	return ok
}

// Category by its ID.
func (d *Dimension) Category(id string) (*Category, error) {
	c, ok := d.byID[id]
	if !ok {
		return nil, &NotFoundError{Kind: "category", ID: id, Parent: d.ID}
	}
	return c, nil
}

// Topic is a table of the API, e.g. "BE/BE0101/BE0101A/BefolkningNy". Its
// metadata is fetched on first use and kept for the lifetime of the instance.
// A Topic is not safe for concurrent use.
type Topic struct {
	ID         string
	URL        string
	client     *Client
	metadata   *Metadata
	dimensions []*Dimension
}

// NewTopic creates a Topic using the Client from the context, or the default
// client if there is none.
func NewTopic(ctx context.Context, id string) *Topic {
	c := clientOrDefault(ctx)
	return &Topic{ID: id, URL: c.TopicURL(id), client: c}
}

// Client used by the topic.
func (t *Topic) Client() *Client { return t.client }

// Metadata of the topic, fetched once.
func (t *Topic) Metadata(ctx context.Context) (*Metadata, error) {
	if t.metadata == nil {
		var m Metadata
		if err := t.client.transport.GetJSON(ctx, t.URL, &m); err != nil {
			return nil, err
		}
		logging.Debugf(ctx, "fetched metadata for %s: %d variables", t.ID, len(m.Variables))
		t.metadata = &m
	}
	return t.metadata, nil
}

// Label of the topic, its title in the metadata.
func (t *Topic) Label(ctx context.Context) (string, error) {
	m, err := t.Metadata(ctx)
	if err != nil {
		return "", err
	}
	return m.Title, nil
}

// Dimensions of the topic in the API order.
func (t *Topic) Dimensions(ctx context.Context) ([]*Dimension, error) {
	if t.dimensions == nil {
		m, err := t.Metadata(ctx)
		if err != nil {
			return nil, err
		}
		dims := make([]*Dimension, len(m.Variables))
		for i := range m.Variables {
			d, err := NewDimension(&m.Variables[i])
			if err != nil {
				return nil, errors.Annotate(err, "invalid metadata for %s", t.ID)
			}
			dims[i] = d
		}
		t.dimensions = dims
	}
	return t.dimensions, nil
}

// Dimension by its ID.
func (t *Topic) Dimension(ctx context.Context, id string) (*Dimension, error) {
	dims, err := t.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range dims {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, &NotFoundError{Kind: "dimension", ID: id, Parent: t.ID}
}

// DimensionsOfType returns all the dimensions of the given type, in the API
// order.
func (t *Topic) DimensionsOfType(ctx context.Context, tp DimensionType) ([]*Dimension, error) {
	dims, err := t.Dimensions(ctx)
	if err != nil {
		return nil, err
	}
	var res []*Dimension
	for _, d := range dims {
		if d.Type == tp {
			res = append(res, d)
		}
	}
	return res, nil
}

// ContentDimensions of the topic.
func (t *Topic) ContentDimensions(ctx context.Context) ([]*Dimension, error) {
	return t.DimensionsOfType(ctx, ContentDimension)
}

// Regions returns the regional dimension of the topic. It is an error if the
// topic has none.
func (t *Topic) Regions(ctx context.Context) (*Dimension, error) {
	dims, err := t.DimensionsOfType(ctx, RegionDimension)
	if err != nil {
		return nil, err
	}
	if len(dims) == 0 {
		return nil, errors.Reason("%s has no regional dimension", t.ID)
	}
	return dims[0], nil
}
