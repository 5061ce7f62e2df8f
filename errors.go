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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for use with errors.Is. Each error type in this package
// matches exactly one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("invalid selection")
	ErrQuery             = errors.New("invalid query")
	ErrTransport         = errors.New("transport failure")
	ErrUnsupported       = errors.New("unsupported query")
	ErrUnknownColumnType = errors.New("unknown column type")
)

// NotFoundError is returned when a dimension, a category or an index column
// is looked up by an unknown ID.
type NotFoundError struct {
	Kind   string // "dimension", "category" or "index dimension"
	ID     string
	Parent string // where it was looked up: a topic or a dimension ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s '%s' in '%s'", e.Kind, e.ID, e.Parent)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError lists all the selected values which are not categories of
// the dimension.
type ValidationError struct {
	Dimension string
	Values    []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] are not valid values for dimension '%s'",
		strings.Join(e.Values, ", "), e.Dimension)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// QueryError is returned when the server rejects a query as invalid.
type QueryError struct {
	Topic string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid query for topic '%s': %s", e.Topic, e.Err)
}

func (e *QueryError) Is(target error) bool { return target == ErrQuery }

func (e *QueryError) Unwrap() error { return e.Err }

// TransportError is a network or HTTP level failure.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Err)
}

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

func (e *TransportError) Unwrap() error { return e.Err }

// asTransportError finds a *TransportError in the chain of err.
func asTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// UnsupportedError is returned for a query too large for a single request
// which cannot be split along a single dimension.
type UnsupportedError struct {
	Size   int
	Limit  int
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("query of size %d exceeds the limit %d: %s",
		e.Size, e.Limit, e.Reason)
}

func (e *UnsupportedError) Is(target error) bool { return target == ErrUnsupported }

// UnknownColumnTypeError is returned for a response column with a type code
// other than t, r, d or c.
type UnknownColumnTypeError struct {
	Column string
	Code   string
}

func (e *UnknownColumnTypeError) Error() string {
	return fmt.Sprintf("column '%s' has unknown type code '%s'", e.Column, e.Code)
}

func (e *UnknownColumnTypeError) Is(target error) bool {
	return target == ErrUnknownColumnType
}
