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
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/logging"
	"github.com/stockparfait/scb"
	"github.com/stockparfait/scb/table"
)

type Flags struct {
	LogLevel   logging.Level
	Config     string   // default: ~/.scb/config.toml
	Lang       string   // overrides lang from the config
	Categories bool     // list all the categories of each dimension
	CSV        bool     // dump CSV format; default: text.
	Topics     []string // positional arguments, at least one
}

func parseFlags(args []string) (*Flags, error) {
	var flags Flags
	fs := flag.NewFlagSet("scb-topics", flag.ExitOnError)
	flags.LogLevel = logging.Info
	fs.Var(&flags.LogLevel, "log-level", "Log level: debug, info, warning, error")
	fs.StringVar(&flags.Config, "conf",
		filepath.Join(os.Getenv("HOME"), ".scb", "config.toml"),
		"TOML config file")
	fs.StringVar(&flags.Lang, "lang", "", "language of the labels: sv or en")
	fs.BoolVar(&flags.Categories, "categories", false,
		"list categories; default: one row per dimension")
	fs.BoolVar(&flags.CSV, "csv", false, "print table in CSV format; default: text")

	err := fs.Parse(args)
	if err != nil {
		return nil, err
	}
	flags.Topics = fs.Args()
	if len(flags.Topics) == 0 {
		return nil, errors.Reason("expected at least one topic ID")
	}
	return &flags, nil
}

type topicResult struct {
	topic      *scb.Topic
	dimensions []*scb.Dimension
	err        error
}

// describe fetches the metadata of all the topics concurrently. The results
// are in the order of the IDs.
func describe(ctx context.Context, ids []string) []topicResult {
	f := func(id string) topicResult {
		t := scb.NewTopic(ctx, id)
		dims, err := t.Dimensions(ctx)
		return topicResult{topic: t, dimensions: dims, err: err}
	}
	pm := iterator.ParallelMap(ctx, 2*runtime.NumCPU(), iterator.FromSlice(ids), f)
	defer pm.Close()

	byID := iterator.Reduce[topicResult, map[string]topicResult](
		pm, map[string]topicResult{},
		func(r topicResult, m map[string]topicResult) map[string]topicResult {
			m[r.topic.ID] = r
			return m
		})
	res := make([]topicResult, len(ids))
	for i, id := range ids {
		res[i] = byID[id]
	}
	return res
}

func dimensionsTable(results []topicResult) *table.Table {
	tbl := table.NewTable("Topic", "Dimension", "Type", "Categories", "Label", "Note")
	for _, r := range results {
		for _, d := range r.dimensions {
			tbl.AddRow(table.Strings{r.topic.ID, d.ID, string(d.Type),
				strconv.Itoa(len(d.Categories())), d.Label, d.Note})
		}
	}
	return tbl
}

func categoriesTable(results []topicResult) *table.Table {
	tbl := table.NewTable("Topic", "Dimension", "Category", "Label")
	for _, r := range results {
		for _, d := range r.dimensions {
			for _, c := range d.Categories() {
				tbl.AddRow(table.Strings{r.topic.ID, d.ID, c.ID, c.Label})
			}
		}
	}
	return tbl
}

func printTopics(ctx context.Context, flags *Flags, w io.Writer) error {
	config, err := scb.ReadConfig(flags.Config, false)
	if err != nil {
		return errors.Annotate(err, "failed to read config")
	}
	if flags.Lang != "" {
		config.Lang = flags.Lang
		if err := config.Check(); err != nil {
			return errors.Annotate(err, "invalid -lang")
		}
	}
	ctx = scb.UseClient(ctx, scb.NewClient(config, nil))

	var ok []topicResult
	var failed []string
	for _, r := range describe(ctx, flags.Topics) {
		if r.err != nil {
			logging.Warningf(ctx, "failed to describe %s: %s", r.topic.ID, r.err.Error())
			failed = append(failed, r.topic.ID)
			continue
		}
		ok = append(ok, r)
	}
	if len(ok) == 0 {
		return errors.Reason("failed to describe all topics: %s", strings.Join(failed, ", "))
	}

	var tbl *table.Table
	if flags.Categories {
		tbl = categoriesTable(ok)
	} else {
		tbl = dimensionsTable(ok)
	}
	if err := tbl.SetIndex("Topic", "Dimension"); err != nil {
		return errors.Annotate(err, "failed to set index")
	}
	if flags.CSV {
		if err := tbl.WriteCSV(w, table.Params{}); err != nil {
			return errors.Annotate(err, "failed to print CSV")
		}
		return nil
	}
	if err := tbl.WriteText(w, table.Params{}); err != nil {
		return errors.Annotate(err, "failed to print text")
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

	if err := printTopics(ctx, flags, os.Stdout); err != nil {
		logging.Errorf(ctx, err.Error())
		os.Exit(1)
	}
}
