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

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/scb"
	"github.com/stockparfait/scb/table"
)

type Flags struct {
	LogLevel logging.Level
	Config   string // default: ~/.scb/config.toml
	Topic    string // required
	// Exactly one of Query or Select must be present.
	Query  string // query file
	Select string // e.g. "Region=00,01;Tid=2020"
	Limit  int    // overrides query_limit from the config when > 0
	CSV    bool   // dump CSV format; default: text.
	Notes  bool   // print the notes after the table
	Stats  bool   // print summary statistics of the content columns instead
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("scb-query", flag.ExitOnError)
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Config, "conf",
		filepath.Join(os.Getenv("HOME"), ".scb", "config.toml"),
		"TOML config file")
	fs.StringVar(&flags.Topic, "topic", "", "topic ID, e.g. BE/BE0101/BE0101A/BefolkningNy (required)")
	fs.StringVar(&flags.Query, "query", "", "JSON file with the query payload")
	fs.StringVar(&flags.Select, "select", "",
		"selection shorthand: Dim1=v1,v2;Dim2=v3")
	fs.IntVar(&flags.Limit, "limit", 0, "max. number of values in a single request")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")
	fs.BoolVar(&flags.Notes, "notes", false, "print notes after the table")
	fs.BoolVar(&flags.Stats, "stats", false, "print statistics of the content columns")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	if flags.Topic == "" {
		return nil, errors.Reason("missing required -topic argument")
	}
	if (flags.Query == "") == (flags.Select == "") {
		return nil, errors.Reason("expected exactly one of -query or -select")
	}
	return &flags, nil
}

// parseSelect parses the -select shorthand into a map of dimension ID to the
// selected values.
func parseSelect(s string) (map[string][]string, error) {
	res := make(map[string][]string)
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			return nil, errors.Reason("expected Dim=v1,v2,..., got '%s'", part)
		}
		dim := strings.TrimSpace(kv[0])
		if dim == "" {
			return nil, errors.Reason("missing dimension in '%s'", part)
		}
		if _, ok := res[dim]; ok {
			return nil, errors.Reason("dimension '%s' is selected more than once", dim)
		}
		var values []string
		for _, v := range strings.Split(kv[1], ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, errors.Reason("no values for dimension '%s'", dim)
		}
		res[dim] = values
	}
	if len(res) == 0 {
		return nil, errors.Reason("empty selection")
	}
	return res, nil
}

func buildQuery(ctx context.Context, flags *Flags) (*scb.Query, error) {
	topic := scb.NewTopic(ctx, flags.Topic)
	var q *scb.Query
	var err error
	if flags.Query != "" {
		q, err = topic.QueryFile(ctx, flags.Query)
	} else {
		var sel map[string][]string
		if sel, err = parseSelect(flags.Select); err != nil {
			return nil, errors.Annotate(err, "invalid -select")
		}
		q, err = topic.QuerySelect(ctx, sel)
	}
	if err != nil {
		return nil, errors.Annotate(err, "failed to build query for %s", flags.Topic)
	}
	if flags.Limit > 0 {
		q.Limit = flags.Limit
	}
	return q, nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', 6, 64)
}

func statsTable(rs *scb.ResultSet) (*table.Table, error) {
	content, err := rs.ContentColumns()
	if err != nil {
		return nil, errors.Annotate(err, "failed to read content columns")
	}
	tbl := table.NewTable("Content", "Values", "Missing", "Min", "Median", "Mean",
		"Max", "MAD", "Sigma")
	for _, c := range content {
		s, skipped, err := rs.Sample(c.ID)
		if err != nil {
			return nil, errors.Annotate(err, "failed to sample %s", c.ID)
		}
		sum := s.Summarize()
		row := table.Strings{c.ID, strconv.Itoa(sum.Len), strconv.Itoa(skipped)}
		if sum.Len == 0 {
			row = append(row, "", "", "", "", "", "")
		} else {
			for _, x := range []float64{sum.Min, sum.Median, sum.Mean, sum.Max, sum.MAD, sum.Sigma} {
				row = append(row, formatFloat(x))
			}
		}
		tbl.AddRow(row)
	}
	if err := tbl.SetIndex("Content"); err != nil {
		return nil, errors.Annotate(err, "failed to set index")
	}
	return tbl, nil
}

func writeNotes(w io.Writer, notes []scb.Note) error {
	for _, n := range notes {
		var about string
		switch {
		case n.Dimension == "":
			about = "topic"
		case n.Category == "":
			about = n.Dimension
		default:
			about = n.Dimension + "=" + n.Category
		}
		if _, err := fmt.Fprintf(w, "Note [%s]: %s\n", about, n.Text); err != nil {
			return err
		}
	}
	return nil
}

func printData(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := scb.ReadConfig(flags.Config, false)
	if err != nil {
		return errors.Annotate(err, "failed to read config")
	}
	ctx = scb.UseClient(ctx, scb.NewClient(config, nil))
	q, err := buildQuery(ctx, flags)
	if err != nil {
		return err
	}
	size, _ := q.Size()
	logging.Debugf(ctx, "query of size %d for %s", size, flags.Topic)
	rs, err := q.Execute(ctx)
	if err != nil {
		return errors.Annotate(err, "failed to execute query for %s", flags.Topic)
	}
	var tbl *table.Table
	if flags.Stats {
		tbl, err = statsTable(rs)
	} else {
		tbl, err = rs.Table()
	}
	if err != nil {
		return errors.Annotate(err, "failed to create table")
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
	} else if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
	}
	if flags.Notes {
		if err := writeNotes(w, rs.Notes()); err != nil {
			return errors.Annotate(err, "failed to print notes")
		}
	}
	return nil
}

func main() {
	ctx := context.Background()
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		ctx = logging.Use(ctx, logging.DefaultGoLogger(logging.Info))
		logging.Errorf(ctx, "failed to parse flags: %s", err.Error())
		os.Exit(1)
	}
	ctx = logging.Use(ctx, logging.DefaultGoLogger(flags.LogLevel))

	if err := printData(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
