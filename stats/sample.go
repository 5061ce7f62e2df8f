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

// Package stats computes summary statistics over the numeric values of
// statistical tables.
package stats

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
)

// Sample of the numeric cells of a table column. The derived values are
// computed on first use and cached, so the data must not change.
type Sample struct {
	data    []float64
	sorted  []float64 // ascending copy of data
	moments *moments
}

// moments are computed in two passes: the mean, then the deviations from it.
type moments struct {
	mean   float64
	absDev float64 // sum of |x - mean|
	sqDev  float64 // sum of (x - mean)^2
}

// Summary of a Sample, as printed in tables. All the values are 0 for an
// empty Sample.
type Summary struct {
	Len    int
	Min    float64
	Median float64
	Mean   float64
	Max    float64
	MAD    float64 // mean absolute deviation
	Sigma  float64 // standard deviation
}

// NewSample wraps data without copying it.
func NewSample(data []float64) *Sample {
	return &Sample{data: data}
}

// ParseSample converts table cell values to numbers. Cells which are not
// numbers, such as ".." used for missing values, are skipped, and their count
// is returned as the second value.
func ParseSample(cells []string) (*Sample, int) {
	data := make([]float64, 0, len(cells))
	skipped := 0
	for _, c := range cells {
		x, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil || math.IsNaN(x) || math.IsInf(x, 0) {
			skipped++
			continue
		}
		data = append(data, x)
	}
	return NewSample(data), skipped
}

// Len is the number of values in the Sample.
func (s *Sample) Len() int { return len(s.data) }

func (s *Sample) getMoments() *moments {
	if s.moments == nil {
		var m moments
		if n := len(s.data); n > 0 {
			for _, x := range s.data {
				m.mean += x
			}
			m.mean /= float64(n)
			for _, x := range s.data {
				d := x - m.mean
				m.absDev += math.Abs(d)
				m.sqDev += d * d
			}
		}
		s.moments = &m
	}
	return s.moments
}

// Mean of the values; 0 for an empty Sample.
func (s *Sample) Mean() float64 { return s.getMoments().mean }

// MAD is the mean absolute deviation from the mean.
func (s *Sample) MAD() float64 {
	if len(s.data) == 0 {
		return 0.0
	}
	return s.getMoments().absDev / float64(len(s.data))
}

// Variance is the population variance, sigma squared.
func (s *Sample) Variance() float64 {
	if len(s.data) == 0 {
		return 0.0
	}
	return s.getMoments().sqDev / float64(len(s.data))
}

// Sigma is the standard deviation.
func (s *Sample) Sigma() float64 { return math.Sqrt(s.Variance()) }

func (s *Sample) sortedData() []float64 {
	if s.sorted == nil {
		s.sorted = slices.Clone(s.data)
		slices.Sort(s.sorted)
	}
	return s.sorted
}

// Min value; 0 for an empty Sample.
func (s *Sample) Min() float64 {
	if len(s.data) == 0 {
		return 0.0
	}
	return s.sortedData()[0]
}

// Max value; 0 for an empty Sample.
func (s *Sample) Max() float64 {
	if len(s.data) == 0 {
		return 0.0
	}
	d := s.sortedData()
	return d[len(d)-1]
}

// Quantile of the empirical distribution of the Sample, for p in [0..1].
func (s *Sample) Quantile(p float64) float64 {
	if len(s.data) == 0 {
		return 0.0
	}
	return stat.Quantile(p, stat.Empirical, s.sortedData(), nil)
}

// Median is the 0.5 quantile.
func (s *Sample) Median() float64 { return s.Quantile(0.5) }

// Summarize computes all the Summary values.
func (s *Sample) Summarize() Summary {
	return Summary{
		Len:    s.Len(),
		Min:    s.Min(),
		Median: s.Median(),
		Mean:   s.Mean(),
		Max:    s.Max(),
		MAD:    s.MAD(),
		Sigma:  s.Sigma(),
	}
}
