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
	"github.com/stockparfait/errors"
	"github.com/stockparfait/scb/stats"
	"github.com/stockparfait/scb/table"
)

// ResponseColumn describes a column of a query response.
type ResponseColumn struct {
	Code    string `json:"code"`
	Text    string `json:"text"`
	Type    string `json:"type"` // "t", "r", "d" or "c"
	Unit    string `json:"unit,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// ResponseRow is a single data entry: the index values followed by the
// content values.
type ResponseRow struct {
	Key    []string `json:"key"`
	Values []string `json:"values"`
}

// ResponseComment is a note on a dimension or a category.
type ResponseComment struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
	Comment  string `json:"comment"`
}

// Response is the JSON payload of a query response.
type Response struct {
	Columns  []ResponseColumn  `json:"columns"`
	Comments []ResponseComment `json:"comments"`
	Data     []ResponseRow     `json:"data"`
}

var columnTypes = map[string]DimensionType{
	"t": TimeDimension,
	"r": RegionDimension,
	"d": CategoryDimension,
	"c": ContentDimension,
}

// Column of a ResultSet.
type Column struct {
	ID    string
	Label string
	Type  DimensionType
}

// Note attached to a dimension and a category. An empty Dimension means the
// note is about the whole topic, and an empty Category means it is about the
// whole dimension.
type Note struct {
	Text      string
	Dimension string
	Category  string
}

// ResultSet wraps a query response. The derived values are computed on first
// use and cached. A ResultSet is not safe for concurrent use.
type ResultSet struct {
	Query    *Query
	response *Response
	columns  []Column
	table    *table.Table
	notes    []Note
}

// NewResultSet wraps the response of the query.
func NewResultSet(resp *Response, q *Query) *ResultSet {
	return &ResultSet{Query: q, response: resp}
}

// Response returns the raw response.
func (r *ResultSet) Response() *Response { return r.response }

// Topic of the query which produced the result, if known.
func (r *ResultSet) Topic() *Topic {
	if r.Query == nil {
		return nil
	}
	return r.Query.Topic
}

func (r *ResultSet) topicID() string {
	if t := r.Topic(); t != nil {
		return t.ID
	}
	return ""
}

// Columns of the response in the response order.
func (r *ResultSet) Columns() ([]Column, error) {
	if r.columns == nil {
		cols := make([]Column, len(r.response.Columns))
		for i, c := range r.response.Columns {
			tp, ok := columnTypes[c.Type]
			if !ok {
				return nil, &UnknownColumnTypeError{Column: c.Code, Code: c.Type}
			}
			cols[i] = Column{ID: c.Code, Label: c.Text, Type: tp}
		}
		r.columns = cols
	}
	return r.columns, nil
}

func (r *ResultSet) filterColumns(content bool) ([]Column, error) {
	cols, err := r.Columns()
	if err != nil {
		return nil, err
	}
	res := []Column{}
	for _, c := range cols {
		if (c.Type == ContentDimension) == content {
			res = append(res, c)
		}
	}
	return res, nil
}

// IndexColumns are all the non-content columns, which identify a row.
func (r *ResultSet) IndexColumns() ([]Column, error) {
	return r.filterColumns(false)
}

// ContentColumns hold the values.
func (r *ResultSet) ContentColumns() ([]Column, error) {
	return r.filterColumns(true)
}

// Index returns the IDs of the index columns.
func (r *ResultSet) Index() ([]string, error) {
	cols, err := r.IndexColumns()
	if err != nil {
		return nil, err
	}
	res := make([]string, len(cols))
	for i, c := range cols {
		res[i] = c.ID
	}
	return res, nil
}

// Table of the response with one row per data entry: the index columns
// followed by the content columns, and the index columns set as the row index.
func (r *ResultSet) Table() (*table.Table, error) {
	if r.table != nil {
		return r.table, nil
	}
	index, err := r.IndexColumns()
	if err != nil {
		return nil, err
	}
	content, err := r.ContentColumns()
	if err != nil {
		return nil, err
	}
	header := make([]string, 0, len(index)+len(content))
	for _, c := range index {
		header = append(header, c.ID)
	}
	for _, c := range content {
		header = append(header, c.ID)
	}
	t := table.NewTable(header...)
	for i, d := range r.response.Data {
		if len(d.Key) != len(index) || len(d.Values) != len(content) {
			return nil, errors.Reason(
				"row %d has %d keys and %d values, expected %d and %d",
				i, len(d.Key), len(d.Values), len(index), len(content))
		}
		row := make(table.Strings, 0, len(header))
		row = append(row, d.Key...)
		row = append(row, d.Values...)
		t.AddRow(row)
	}
	if err := t.SetIndex(header[:len(index)]...); err != nil {
		return nil, errors.Annotate(err, "failed to set the index")
	}
	r.table = t
	return t, nil
}

// Values returns the sorted distinct values of an index dimension present in
// the result.
func (r *ResultSet) Values(dimID string) ([]string, error) {
	index, err := r.Index()
	if err != nil {
		return nil, err
	}
	level := -1
	for i, id := range index {
		if id == dimID {
			level = i
			break
		}
	}
	if level < 0 {
		return nil, &NotFoundError{Kind: "index dimension", ID: dimID, Parent: r.topicID()}
	}
	t, err := r.Table()
	if err != nil {
		return nil, err
	}
	return t.Level(level)
}

// ColumnValues returns all the cells of a column, index or content, in row
// order.
func (r *ResultSet) ColumnValues(colID string) ([]string, error) {
	t, err := r.Table()
	if err != nil {
		return nil, err
	}
	if t.ColumnIndex(colID) < 0 {
		return nil, &NotFoundError{Kind: "column", ID: colID, Parent: r.topicID()}
	}
	return t.Column(colID)
}

// Notes of the response, in the response order.
func (r *ResultSet) Notes() []Note {
	if r.notes == nil {
		notes := make([]Note, len(r.response.Comments))
		for i, c := range r.response.Comments {
			notes[i] = Note{Text: c.Comment, Dimension: c.Variable, Category: c.Value}
		}
		r.notes = notes
	}
	return r.notes
}

// Sample of the numeric values of a content column. Non-numeric cells, such
// as ".." for missing values, are skipped and counted in the second value.
func (r *ResultSet) Sample(contentID string) (*stats.Sample, int, error) {
	content, err := r.ContentColumns()
	if err != nil {
		return nil, 0, err
	}
	found := false
	for _, c := range content {
		found = found || c.ID == contentID
	}
	if !found {
		return nil, 0, &NotFoundError{Kind: "content column", ID: contentID, Parent: r.topicID()}
	}
	t, err := r.Table()
	if err != nil {
		return nil, 0, err
	}
	cells, err := t.Column(contentID)
	if err != nil {
		return nil, 0, err
	}
	s, skipped := stats.ParseSample(cells)
	return s, skipped, nil
}

// Merge the results of the chunks of a query into one ResultSet. The data rows
// and the comments are concatenated in the order of the arguments, which must
// all have the same columns.
func Merge(results ...*ResultSet) (*ResultSet, error) {
	if len(results) == 0 {
		return nil, errors.Reason("nothing to merge")
	}
	first := results[0].response
	merged := &Response{
		Columns:  append([]ResponseColumn(nil), first.Columns...),
		Comments: []ResponseComment{},
		Data:     []ResponseRow{},
	}
	for i, r := range results {
		resp := r.response
		if len(resp.Columns) != len(first.Columns) {
			return nil, errors.Reason("result %d has %d columns, expected %d",
				i, len(resp.Columns), len(first.Columns))
		}
		for j, c := range resp.Columns {
			if c.Code != first.Columns[j].Code || c.Type != first.Columns[j].Type {
				return nil, errors.Reason("result %d column %d is '%s', expected '%s'",
					i, j, c.Code, first.Columns[j].Code)
			}
		}
		merged.Data = append(merged.Data, resp.Data...)
		merged.Comments = append(merged.Comments, resp.Comments...)
	}
	return NewResultSet(merged, results[0].Query), nil
}
