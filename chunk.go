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
	"fmt"
)

// Basepoint finds the first dimension, in the order of counts, whose values
// cannot all fit into a chunk together with all the combinations of the
// preceding dimensions. It returns the index i of that dimension, and the
// number j of its values which do fit: chunkSize / product(counts[:i]).
//
// If everything fits into a single chunk, it returns (len(counts), 0).
func Basepoint(counts []int, chunkSize int) (int, int) {
	prev := 1
	for i, n := range counts {
		// prev <= chunkSize, and prev*n > chunkSize iff n > chunkSize/prev.
		if n > chunkSize/prev {
			return i, chunkSize / prev
		}
		prev *= n
	}
	return len(counts), 0
}

// SplitPayload splits an oversized payload into consecutive chunks along the
// basepoint dimension, each chunk holding at most limit values. The selections
// of all the other dimensions are copied to every chunk, and the concatenation
// of the chunks' basepoint values is the original selection.
//
// Only a single dimension is ever split, together with all the combinations of
// the dimensions preceding it: a *UnsupportedError is returned when any
// dimension after the basepoint selects more than one value, or when the
// basepoint is the first dimension, which alone is larger than the limit.
func SplitPayload(p *Payload, limit int) ([]*Payload, error) {
	size := p.Size()
	if limit <= 0 {
		return nil, &UnsupportedError{Size: size, Limit: limit,
			Reason: "the limit must be positive"}
	}
	counts := p.Counts()
	i, j := Basepoint(counts, limit)
	if i == len(counts) {
		return []*Payload{p.Copy()}, nil
	}
	for k := i + 1; k < len(counts); k++ {
		if counts[k] > 1 {
			return nil, &UnsupportedError{Size: size, Limit: limit, Reason: fmt.Sprintf(
				"splitting '%s' is not enough, '%s' would also need to be split",
				p.Query[i].Code, p.Query[k].Code)}
		}
	}
	if i == 0 {
		return nil, &UnsupportedError{Size: size, Limit: limit, Reason: fmt.Sprintf(
			"'%s' alone exceeds the limit", p.Query[i].Code)}
	}
	values := p.Query[i].Selection.Values
	var chunks []*Payload
	for start := 0; start < len(values); start += j {
		end := start + j
		if end > len(values) {
			end = len(values)
		}
		c := p.Copy()
		c.Query[i].Selection.Values = c.Query[i].Selection.Values[start:end:end]
		chunks = append(chunks, c)
	}
	return chunks, nil
}
