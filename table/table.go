// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/stockparfait/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Row interface that a table row representation must implement.
type Row interface {
	CSV() []string // an encoding/csv compatible row representation
}

// Strings is the simplest Row, a list of cell values.
type Strings []string

var _ Row = Strings{}

func (s Strings) CSV() []string { return s }

// Table container with an optional multi-level row index.
//
// A typical use:
//
//	t := NewTable("Region", "Tid", "BE0101N1")
//	t.AddRow(Strings{"00", "2020", "10379295"}, Strings{"01", "2020", "2391990"})
//	if err := t.SetIndex("Region", "Tid"); err != nil { ... }
//	regions, _ := t.Level(0) // ["00", "01"]
//
// The index columns remain part of each row; the index only records which
// header columns identify a row.
type Table struct {
	Header []string // optional, may be nil
	Rows   []Row
	index  []int // positions of the index columns in Header
}

// NewTable creates a new Table instance with optional column headers.  It is
// expected that, when present, the number of column headers is the same as the
// number of elements in each Row.
func NewTable(header ...string) *Table {
	return &Table{Header: header}
}

// AddRow adds one or more rows to the table.
func (t *Table) AddRow(rows ...Row) {
	t.Rows = append(t.Rows, rows...)
}

// NumRows in the table.
func (t *Table) NumRows() int { return len(t.Rows) }

// ColumnIndex returns the position of the named column in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Header, name)
}

// SetIndex sets the named header columns as the row index, in the given order.
// Calling it with no columns clears the index.
func (t *Table) SetIndex(columns ...string) error {
	index := make([]int, len(columns))
	for i, c := range columns {
		j := t.ColumnIndex(c)
		if j < 0 {
			return errors.Reason("no column '%s' in the table header", c)
		}
		if slices.Contains(index[:i], j) {
			return errors.Reason("duplicate index column '%s'", c)
		}
		index[i] = j
	}
	t.index = index
	return nil
}

// Index returns the names of the index columns, one per index level.
func (t *Table) Index() []string {
	res := make([]string, len(t.index))
	for i, j := range t.index {
		res[i] = t.Header[j]
	}
	return res
}

// Key returns the index values of the r'th row.
func (t *Table) Key(r int) ([]string, error) {
	if r < 0 || r >= len(t.Rows) {
		return nil, errors.Reason("row %d is out of range [0..%d)", r, len(t.Rows))
	}
	row := t.Rows[r].CSV()
	key := make([]string, len(t.index))
	for i, j := range t.index {
		if j >= len(row) {
			return nil, errors.Reason("row %d has only %d cells", r, len(row))
		}
		key[i] = row[j]
	}
	return key, nil
}

// Level returns the sorted distinct values of the i'th index level.
func (t *Table) Level(i int) ([]string, error) {
	if i < 0 || i >= len(t.index) {
		return nil, errors.Reason("index level %d is out of range [0..%d)", i, len(t.index))
	}
	j := t.index[i]
	set := make(map[string]struct{})
	for r, row := range t.Rows {
		cells := row.CSV()
		if j >= len(cells) {
			return nil, errors.Reason("row %d has only %d cells", r, len(cells))
		}
		set[cells[j]] = struct{}{}
	}
	res := maps.Keys(set)
	slices.Sort(res)
	return res, nil
}

// Column returns all the values of the named column, in row order.
func (t *Table) Column(name string) ([]string, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, errors.Reason("no column '%s' in the table header", name)
	}
	res := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		cells := row.CSV()
		if j >= len(cells) {
			return nil, errors.Reason("row %d has only %d cells", r, len(cells))
		}
		res[r] = cells[j]
	}
	return res, nil
}

// Params are parameters for pretty-printing or CSV export of Table data.
type Params struct {
	Rows        int  // max. number of rows to write; 0 = unlimited (default)
	NoHeader    bool // whether to print the header, default - yes
	MaxColWidth int  // for WriteText only; 0 = unlimited, otherwise must be >= 4
}

// WriteCSV writes the entire table to w in CSV format.
func (t *Table) WriteCSV(w io.Writer, p Params) error {
	cw := csv.NewWriter(w)
	if !p.NoHeader && len(t.Header) > 0 {
		if err := cw.Write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := cw.Write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Annotate(err, "failed to flush written rows")
	}
	return nil
}

// WriteText writes the table as a text formatted for ease of reading. Index
// columns are aligned to the left, all the other columns to the right.
func (t *Table) WriteText(w io.Writer, p Params) error {
	if p.MaxColWidth != 0 && p.MaxColWidth < 4 {
		return errors.Reason("MaxColWidth [%d] must be 0 or >= 4", p.MaxColWidth)
	}
	var widths []int
	update := func(row []string) error {
		if len(row) == 0 {
			return errors.Reason("row size = 0")
		}
		if len(widths) == 0 {
			widths = make([]int, len(row))
		}
		if len(row) != len(widths) {
			return errors.Reason("row size [%d] != expected size [%d]",
				len(row), len(widths))
		}
		for i := range widths {
			if widths[i] < len(row[i]) {
				widths[i] = len(row[i])
				if p.MaxColWidth > 0 && widths[i] > p.MaxColWidth {
					widths[i] = p.MaxColWidth
				}
			}
		}
		return nil
	}

	write := func(row []string) error {
		trimmed := make([]string, len(row))
		for i, s := range row {
			trimmed[i] = s
			if len([]rune(s)) > widths[i] {
				r := []rune(s)[:widths[i]-2]
				trimmed[i] = string(r) + ".."
			}
			if slices.Contains(t.index, i) {
				trimmed[i] = fmt.Sprintf("%-[2]*[1]s", trimmed[i], widths[i])
			} else {
				trimmed[i] = fmt.Sprintf("%[2]*[1]s", trimmed[i], widths[i])
			}
		}
		_, err := fmt.Fprintf(w, "%s\n", strings.Join(trimmed, " | "))
		return err
	}

	dashes := func(n int) string {
		b := make([]byte, n)
		for i := range b {
			b[i] = byte('-')
		}
		return string(b)
	}

	dashedRow := func() []string {
		row := make([]string, len(widths))
		for i, w := range widths {
			row[i] = dashes(w)
		}
		return row
	}

	if !p.NoHeader && len(t.Header) > 0 {
		if err := update(t.Header); err != nil {
			return errors.Annotate(err, "failed to update header widths")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := update(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to update row widths")
		}
	}

	if !p.NoHeader && len(t.Header) > 0 {
		if err := write(t.Header); err != nil {
			return errors.Annotate(err, "failed to write header")
		}
		if err := write(dashedRow()); err != nil {
			return errors.Annotate(err, "failed to write header separator")
		}
	}
	for i, r := range t.Rows {
		if p.Rows > 0 && i >= p.Rows {
			break
		}
		if err := write(r.CSV()); err != nil {
			return errors.Annotate(err, "failed to write row")
		}
	}
	return nil
}
