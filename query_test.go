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
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestQuery(t *testing.T) {
	t.Parallel()

	tmpdir, tmpdirErr := os.MkdirTemp("", "test_scb_query")
	defer os.RemoveAll(tmpdir)

	Convey("Setup succeeded", t, func() {
		So(tmpdirErr, ShouldBeNil)
	})

	Convey("Payload", t, func() {
		p := NewPayload(
			Select("Region", "00", "01"),
			Select("Tid", "2019", "2020", "2021"))
		So(p.Counts(), ShouldResemble, []int{2, 3})
		So(p.Size(), ShouldEqual, 6)
		So(NewPayload().Size(), ShouldEqual, 0)

		Convey("initializes from JSON with defaults", func() {
			var p2 Payload
			So(p2.InitMessage(map[string]any{
				"query": []any{
					map[string]any{
						"code":      "Region",
						"selection": map[string]any{"values": []any{"00", "01"}},
					},
					map[string]any{
						"code": "Tid",
						"selection": map[string]any{
							"filter": "item",
							"values": []any{"2019", "2020", "2021"},
						},
					},
				},
			}), ShouldBeNil)
			So(&p2, ShouldResemble, p)
		})

		Convey("rejects unsupported filters and fields", func() {
			var p2 Payload
			err := p2.InitMessage(map[string]any{
				"query": []any{map[string]any{
					"code":      "Tid",
					"selection": map[string]any{"filter": "top", "values": []any{"3"}},
				}},
			})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "is not one of [item]")

			err = p2.InitMessage(map[string]any{"query": []any{}, "extra": 1.0})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "unsupported fields: extra")

			err = p2.InitMessage(map[string]any{})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "missing required fields: query")
		})
	})

	Convey("Query", t, func() {
		tr := NewTestTransport(testTopicID, testMetadata())
		ctx := testContext(tr)
		topic := NewTopic(ctx, testTopicID)

		Convey("builds a valid payload", func() {
			q := NewQuery(topic)
			So(q.Limit, ShouldEqual, 100000)
			_, ok := q.Size()
			So(ok, ShouldBeFalse)

			p := NewPayload(
				Select("Region", "00", "01"),
				Select("ContentsCode", "BE0101N1"),
				Select("Tid", "2019", "2020"))
			So(q.Build(ctx, p), ShouldBeNil)
			size, ok := q.Size()
			So(ok, ShouldBeTrue)
			So(size, ShouldEqual, 4)
			So(q.Payload(), ShouldResemble, p)

			p.Query[0].Selection.Values[0] = "03"
			So(q.Payload().Query[0].Selection.Values[0], ShouldEqual, "00")
			So(len(tr.Posts), ShouldEqual, 0)
		})

		Convey("rejects an unknown dimension", func() {
			q := NewQuery(topic)
			err := q.Build(ctx, NewPayload(Select("Alder", "0")))
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			_, ok := q.Size()
			So(ok, ShouldBeFalse)
		})

		Convey("reports all invalid values of a dimension", func() {
			_, err := topic.QueryPayload(ctx, NewPayload(
				Select("Region", "00"),
				Select("Tid", "1999", "2020", "abc", "1999"),
				Select("Kon", "3")))
			So(errors.Is(err, ErrValidation), ShouldBeTrue)
			var verr *ValidationError
			So(errors.As(err, &verr), ShouldBeTrue)
			So(verr.Dimension, ShouldEqual, "Tid")
			So(verr.Values, ShouldResemble, []string{"1999", "abc"})
			So(err.Error(), ShouldEqual,
				"[1999, abc] are not valid values for dimension 'Tid'")
		})

		Convey("rejects empty selections", func() {
			_, err := topic.QueryPayload(ctx, NewPayload())
			So(err, ShouldNotBeNil)
			_, err = topic.QueryPayload(ctx, NewPayload(Select("Tid")))
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "no values selected for dimension 'Tid'")
		})

		Convey("executes a small query with a single request", func() {
			q, err := topic.QuerySelect(ctx, map[string][]string{
				"Tid":          {"2020"},
				"Region":       {"00"},
				"ContentsCode": {"BE0101N1"},
			})
			So(err, ShouldBeNil)
			size, _ := q.Size()
			So(size, ShouldEqual, 1)
			So(q.Payload(), ShouldResemble, NewPayload(
				Select("Region", "00"),
				Select("ContentsCode", "BE0101N1"),
				Select("Tid", "2020")))

			rs, err := q.Execute(ctx)
			So(err, ShouldBeNil)
			So(len(tr.Posts), ShouldEqual, 1)
			So(tr.Posts[0], ShouldResemble, q.Payload())
			So(rs.Topic(), ShouldEqual, topic)

			index, err := rs.Index()
			So(err, ShouldBeNil)
			So(index, ShouldResemble, []string{"Region", "Tid"})
			tbl, err := rs.Table()
			So(err, ShouldBeNil)
			So(tbl.NumRows(), ShouldEqual, 1)
			So(tbl.Index(), ShouldResemble, []string{"Region", "Tid"})
		})

		Convey("rejects unknown dimensions in a selection map", func() {
			_, err := topic.QuerySelect(ctx, map[string][]string{
				"Tid":   {"2020"},
				"Alder": {"0"},
				"Bogus": {"1"},
			})
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "no dimension 'Alder'")
		})

		Convey("executes an oversized query in chunks", func() {
			q, err := topic.QuerySelect(ctx, map[string][]string{
				"Region": {"00", "01"},
				"Tid":    {"2019", "2020", "2021"},
			})
			So(err, ShouldBeNil)
			q.Limit = 2
			chunks, err := q.Chunks()
			So(err, ShouldBeNil)
			So(len(chunks), ShouldEqual, 3)

			rs, err := q.Execute(ctx)
			So(err, ShouldBeNil)
			So(len(tr.Posts), ShouldEqual, 3)
			for i, p := range tr.Posts {
				So(p, ShouldResemble, chunks[i])
			}
			So(len(rs.Response().Data), ShouldEqual, 6)
			keys := [][]string{}
			for _, d := range rs.Response().Data {
				keys = append(keys, d.Key)
			}
			So(keys, ShouldResemble, [][]string{
				{"00", "2019"}, {"01", "2019"},
				{"00", "2020"}, {"01", "2020"},
				{"00", "2021"}, {"01", "2021"},
			})
			years, err := rs.Values("Tid")
			So(err, ShouldBeNil)
			So(years, ShouldResemble, []string{"2019", "2020", "2021"})
		})

		Convey("fails the whole query when a chunk fails", func() {
			tr.Respond = func(i int, p *Payload) (*Response, error) {
				if i == 1 {
					return nil, &TransportError{Method: "POST", URL: topic.URL,
						Err: context.DeadlineExceeded}
				}
				return TestResponse(p), nil
			}
			q, err := topic.QuerySelect(ctx, map[string][]string{
				"Region": {"00", "01"},
				"Tid":    {"2019", "2020", "2021"},
			})
			So(err, ShouldBeNil)
			q.Limit = 2
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrTransport), ShouldBeTrue)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			So(len(tr.Posts), ShouldEqual, 2)
		})

		Convey("rejects an unsupported split before any request", func() {
			q, err := topic.QuerySelect(ctx, map[string][]string{
				"Region": {"00", "01", "03"},
				"Tid":    {"2019", "2020", "2021"},
			})
			So(err, ShouldBeNil)
			q.Limit = 2
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrUnsupported), ShouldBeTrue)
			So(len(tr.Posts), ShouldEqual, 0)
		})

		Convey("maps HTTP 404 to a query error", func() {
			tr.Respond = func(int, *Payload) (*Response, error) {
				return nil, &TransportError{Method: "POST", URL: topic.URL,
					StatusCode: 404}
			}
			q, err := topic.QuerySelect(ctx, map[string][]string{"Tid": {"2020"}})
			So(err, ShouldBeNil)
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrQuery), ShouldBeTrue)
			So(errors.Is(err, ErrTransport), ShouldBeTrue)

			tr.Respond = func(int, *Payload) (*Response, error) {
				return nil, &TransportError{Method: "POST", URL: topic.URL,
					StatusCode: 503}
			}
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrQuery), ShouldBeFalse)
			So(errors.Is(err, ErrTransport), ShouldBeTrue)
		})

		Convey("finds a 404 in an annotated transport error", func() {
			tr.Respond = func(int, *Payload) (*Response, error) {
				return nil, fmt.Errorf("custom transport: %w", &TransportError{
					Method: "POST", URL: topic.URL, StatusCode: 404})
			}
			q, err := topic.QuerySelect(ctx, map[string][]string{"Tid": {"2020"}})
			So(err, ShouldBeNil)
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrQuery), ShouldBeTrue)
			var qerr *QueryError
			So(errors.As(err, &qerr), ShouldBeTrue)
			So(qerr.Topic, ShouldEqual, testTopicID)
		})

		Convey("does not send a query whose size overflows", func() {
			m := &Metadata{Title: "Wide"}
			var sels []Selection
			values := make([]string, 16)
			for i := range values {
				values[i] = strconv.Itoa(i)
			}
			for i := 0; i < 16; i++ {
				code := "D" + strconv.Itoa(i)
				m.Variables = append(m.Variables, Variable{
					Code: code, Text: code, Values: values, ValueTexts: values})
				sels = append(sels, Select(code, values...))
			}
			tr.Metadata[topic.URL] = m
			q, err := topic.QueryPayload(ctx, NewPayload(sels...))
			So(err, ShouldBeNil)
			size, _ := q.Size()
			So(size, ShouldEqual, math.MaxInt)
			_, err = q.Execute(ctx)
			So(errors.Is(err, ErrUnsupported), ShouldBeTrue)
			So(len(tr.Posts), ShouldEqual, 0)
		})

		Convey("cannot execute an unbuilt query", func() {
			_, err := NewQuery(topic).Execute(ctx)
			So(err, ShouldNotBeNil)
		})

		Convey("QueryJSON", func() {
			q, err := topic.QueryJSON(ctx, map[string]any{
				"query": []any{map[string]any{
					"code":      "Kon",
					"selection": map[string]any{"values": []any{"1", "2"}},
				}},
				"response": map[string]any{"format": "json"},
			})
			So(err, ShouldBeNil)
			So(q.Payload(), ShouldResemble, NewPayload(Select("Kon", "1", "2")))

			_, err = topic.QueryJSON(ctx, []any{})
			So(err, ShouldNotBeNil)
		})

		Convey("QueryFile", func() {
			path := filepath.Join(tmpdir, "query.json")
			So(os.WriteFile(path, []byte(`{
  "query": [
    {"code": "Tid", "selection": {"filter": "item", "values": ["2020", "2021"]}}
  ],
  "response": {"format": "json"}
}`), 0644), ShouldBeNil)
			q, err := topic.QueryFile(ctx, path)
			So(err, ShouldBeNil)
			So(q.Payload(), ShouldResemble, NewPayload(Select("Tid", "2020", "2021")))

			_, err = topic.QueryFile(ctx, filepath.Join(tmpdir, "missing.json"))
			So(err, ShouldNotBeNil)

			bad := filepath.Join(tmpdir, "bad.json")
			So(os.WriteFile(bad, []byte(`{"query": [{"code": "Tid"}]}`), 0644), ShouldBeNil)
			_, err = topic.QueryFile(ctx, bad)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "missing required fields: selection")
		})
	})
}
