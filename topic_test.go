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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

const testTopicID = "BE/BE0101/BE0101A/BefolkningNy"

func testMetadata() *Metadata {
	return &Metadata{
		Title: "Folkmängd efter region, kön och år",
		Variables: []Variable{
			{
				Code:       "Region",
				Text:       "region",
				Values:     []string{"00", "01", "03"},
				ValueTexts: []string{"Riket", "Stockholms län", "Uppsala län"},
			},
			{
				Code:        "Kon",
				Text:        "kön",
				Values:      []string{"1", "2"},
				ValueTexts:  []string{"män", "kvinnor"},
				Elimination: true,
			},
			{
				Code:       "ContentsCode",
				Text:       "tabellinnehåll",
				Values:     []string{"BE0101N1", "BE0101N2"},
				ValueTexts: []string{"Folkmängd", "Folkökning"},
				Comment:    "Folkmängden avser förhållandet den 31 december.",
			},
			{
				Code:       "Tid",
				Text:       "år",
				Values:     []string{"2019", "2020", "2021"},
				ValueTexts: []string{"2019", "2020", "2021"},
				Time:       true,
			},
		},
	}
}

func testContext(tr *TestTransport) context.Context {
	return UseClient(context.Background(), NewClient(nil, tr))
}

func TestTopic(t *testing.T) {
	t.Parallel()

	Convey("DimensionTypeOf matches reserved IDs exactly", t, func() {
		So(DimensionTypeOf("Region"), ShouldEqual, RegionDimension)
		So(DimensionTypeOf("Tid"), ShouldEqual, TimeDimension)
		So(DimensionTypeOf("ContentsCode"), ShouldEqual, ContentDimension)
		for _, id := range []string{"Kon", "region", "TID", "Regions", "ContentsCodes", ""} {
			So(DimensionTypeOf(id), ShouldEqual, CategoryDimension)
		}
	})

	Convey("Dimension", t, func() {
		d, err := NewDimension(&testMetadata().Variables[0])
		So(err, ShouldBeNil)
		So(d.ID, ShouldEqual, "Region")
		So(d.Label, ShouldEqual, "region")
		So(d.Type, ShouldEqual, RegionDimension)
		So(d.Note, ShouldEqual, "")
		So(d.String(), ShouldEqual, "region (Region)")
		So(d.CategoryIDs(), ShouldResemble, []string{"00", "01", "03"})
		So(len(d.Categories()), ShouldEqual, 3)
		So(d.HasCategory("01"), ShouldBeTrue)
		So(d.HasCategory("02"), ShouldBeFalse)

		c, err := d.Category("03")
		So(err, ShouldBeNil)
		So(c, ShouldResemble, &Category{ID: "03", Label: "Uppsala län"})
		So(c.String(), ShouldEqual, "Uppsala län (03)")

		_, err = d.Category("99")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		So(err.Error(), ShouldEqual, "no category '99' in 'Region'")

		Convey("with a note", func() {
			d, err := NewDimension(&testMetadata().Variables[2])
			So(err, ShouldBeNil)
			So(d.Type, ShouldEqual, ContentDimension)
			So(d.Note, ShouldEqual, "Folkmängden avser förhållandet den 31 december.")
		})

		Convey("rejects inconsistent metadata", func() {
			_, err := NewDimension(&Variable{
				Code: "Kon", Values: []string{"1", "2"}, ValueTexts: []string{"män"}})
			So(err, ShouldNotBeNil)
			_, err = NewDimension(&Variable{
				Code: "Kon", Values: []string{"1", "1"}, ValueTexts: []string{"a", "b"}})
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "duplicate category '1'")
		})
	})

	Convey("Topic", t, func() {
		tr := NewTestTransport(testTopicID, testMetadata())
		ctx := testContext(tr)
		topic := NewTopic(ctx, testTopicID)
		So(topic.URL, ShouldEqual,
			"http://api.scb.se/OV0104/v1/doris/sv/ssd/BE/BE0101/BE0101A/BefolkningNy")

		Convey("fetches metadata once", func() {
			m, err := topic.Metadata(ctx)
			So(err, ShouldBeNil)
			So(m.Title, ShouldEqual, "Folkmängd efter region, kön och år")
			label, err := topic.Label(ctx)
			So(err, ShouldBeNil)
			So(label, ShouldEqual, m.Title)
			_, err = topic.Dimensions(ctx)
			So(err, ShouldBeNil)
			So(tr.Gets, ShouldResemble, []string{topic.URL})
		})

		Convey("lists dimensions in the API order", func() {
			dims, err := topic.Dimensions(ctx)
			So(err, ShouldBeNil)
			ids := []string{}
			for _, d := range dims {
				ids = append(ids, d.ID)
			}
			So(ids, ShouldResemble, []string{"Region", "Kon", "ContentsCode", "Tid"})
			So(dims[1].Elimination, ShouldBeTrue)
			dims2, err := topic.Dimensions(ctx)
			So(err, ShouldBeNil)
			So(dims2[0], ShouldEqual, dims[0])
		})

		Convey("looks up dimensions", func() {
			d, err := topic.Dimension(ctx, "Tid")
			So(err, ShouldBeNil)
			So(d.Type, ShouldEqual, TimeDimension)

			_, err = topic.Dimension(ctx, "Alder")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
			So(err.Error(), ShouldEqual,
				"no dimension 'Alder' in 'BE/BE0101/BE0101A/BefolkningNy'")
		})

		Convey("filters dimensions by type", func() {
			content, err := topic.ContentDimensions(ctx)
			So(err, ShouldBeNil)
			So(len(content), ShouldEqual, 1)
			So(content[0].ID, ShouldEqual, "ContentsCode")

			r, err := topic.Regions(ctx)
			So(err, ShouldBeNil)
			So(r.ID, ShouldEqual, "Region")

			cats, err := topic.DimensionsOfType(ctx, CategoryDimension)
			So(err, ShouldBeNil)
			So(len(cats), ShouldEqual, 1)
			So(cats[0].ID, ShouldEqual, "Kon")
		})

		Convey("fails Regions without a regional dimension", func() {
			m := testMetadata()
			m.Variables = m.Variables[1:]
			tr.Metadata[topic.URL] = m
			_, err := topic.Regions(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "has no regional dimension")
		})

		Convey("propagates transport errors and does not cache them", func() {
			other := NewTopic(ctx, "AM/AM0101/Missing")
			_, err := other.Dimensions(ctx)
			So(errors.Is(err, ErrTransport), ShouldBeTrue)
			_, err = other.Metadata(ctx)
			So(err, ShouldNotBeNil)
			So(len(tr.Gets), ShouldEqual, 2)
		})

		Convey("fails on inconsistent metadata", func() {
			m := testMetadata()
			m.Variables[0].ValueTexts = nil
			tr.Metadata[topic.URL] = m
			_, err := topic.Dimensions(ctx)
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "has 3 values but 0 value texts")
		})
	})
}
