// Copyright the Arafura authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package arerrors defines the diagnostic types shared by every stage of
// the translator: the front end, the tag-name pre-pass, and the four
// lowering emitters. Every error produced by the core carries a source
// position and a Kind drawn from the taxonomy in §7 of the specification.
package arerrors

import (
	"errors"
	"fmt"
	"slices"

	"arafura.dev/arafura/internal/past"
)

// Kind classifies an Error into one of the taxonomy categories the
// specification defines. Callers (tests, the CLI) can branch on Kind
// without matching on message text.
type Kind int

const (
	// KindParse means the input failed the SurfaceLang front end.
	KindParse Kind = iota
	// KindUnrecognisedPattern means an AST shape appeared in a position
	// the translator expects one of a specific set of forms for.
	KindUnrecognisedPattern
	// KindMissingContext means W(k=v,...) was used where the contextual
	// type C is absent.
	KindMissingContext
	// KindAnnotationMismatch covers partial def annotations, mismatched
	// for-loop tuple arities, and a misplaced flexible array member.
	KindAnnotationMismatch
	// KindReservedMisuse covers W used as an ordinary identifier and
	// label/macro used outside their sentinel positions.
	KindReservedMisuse
	// KindUnknownDecorator means a class decorator other than Typedef
	// or Var was used.
	KindUnknownDecorator
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindUnrecognisedPattern:
		return "unrecognised pattern"
	case KindMissingContext:
		return "missing context"
	case KindAnnotationMismatch:
		return "annotation mismatch"
	case KindReservedMisuse:
		return "reserved misuse"
	case KindUnknownDecorator:
		return "unknown decorator"
	default:
		return "error"
	}
}

// Error is the common diagnostic type produced anywhere in the translator.
type Error interface {
	error
	// Position returns the source position the error is anchored to.
	Position() past.Position
	// Kind returns the taxonomy category of the error.
	Kind() Kind
	// Msg returns the unformatted message and its arguments, for callers
	// that want to reformat or localize the text.
	Msg() (format string, args []any)
}

type posError struct {
	pos    past.Position
	kind   Kind
	format string
	args   []any
}

func (e *posError) Position() past.Position     { return e.pos }
func (e *posError) Kind() Kind                  { return e.kind }
func (e *posError) Msg() (string, []any)        { return e.format, e.args }
func (e *posError) Error() string {
	msg := fmt.Sprintf(e.format, e.args...)
	if e.pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.pos, msg)
	}
	return msg
}

var _ Error = (*posError)(nil)

// Newf creates an Error of the given Kind anchored at pos.
func Newf(kind Kind, pos past.Position, format string, args ...any) Error {
	return &posError{pos: pos, kind: kind, format: format, args: args}
}

// As reports whether err is (or wraps) an arerrors.Error, and if so sets
// *target to it. It is a thin wrapper around the standard library's
// errors.As so callers don't need to import both packages.
func As(err error, target *Error) bool {
	return errors.As(err, target)
}

// List is a collection of Errors that itself implements error. Like the
// teacher's errors.List, a List sorts by position and removes exact
// duplicates on a best-effort basis so a single malformed construct does
// not produce a wall of repeated diagnostics.
type List []Error

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
	}
}

// Add appends err to the list; a nil err is ignored.
func (l *List) Add(err Error) {
	if err == nil {
		return
	}
	*l = append(*l, err)
}

// AddNewf is a convenience wrapper combining Newf and Add.
func (l *List) AddNewf(kind Kind, pos past.Position, format string, args ...any) {
	l.Add(Newf(kind, pos, format, args...))
}

// Sort orders the list by position, then by message text, and removes
// exact duplicates.
func (l *List) Sort() {
	a := *l
	slices.SortFunc(a, func(x, y Error) int {
		xp, yp := x.Position(), y.Position()
		if c := comparePos(xp, yp); c != 0 {
			return c
		}
		if x.Error() < y.Error() {
			return -1
		}
		if x.Error() > y.Error() {
			return 1
		}
		return 0
	})
	a = slices.CompactFunc(a, func(x, y Error) bool { return x.Error() == y.Error() })
	*l = a
}

func comparePos(a, b past.Position) int {
	switch {
	case a.Filename != b.Filename:
		if a.Filename < b.Filename {
			return -1
		}
		return 1
	case a.Line != b.Line:
		return a.Line - b.Line
	default:
		return a.Column - b.Column
	}
}

// Err returns l as an error, or nil if l is empty — the usual pattern for
// returning an accumulated diagnostic list from a function that may have
// recorded zero errors.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
