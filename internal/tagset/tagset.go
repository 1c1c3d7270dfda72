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

// Package tagset implements the tag-name pre-pass (§4.1 of the
// specification): a single, side-effect-free walk over a module's
// top-level declarations that records every user-declared composite tag
// name before any lowering happens.
package tagset

import (
	"github.com/mpvl/unique"

	"arafura.dev/arafura/internal/past"
)

// Kind is the composite-type kind a tag was declared with.
type Kind int

const (
	Struct Kind = iota
	Union
	Enum
)

// Entry is the record kept for one tag.
type Entry struct {
	Kind      Kind
	Typedefed bool
}

// Set is the read-only tag set T: a map from tag name to its Entry,
// populated once by Build and never mutated afterward.
type Set struct {
	entries map[string]Entry
}

// Lookup reports the Entry for name and whether it was declared at all.
func (s *Set) Lookup(name string) (Entry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Typedefed reports whether name was declared with the Typedef decorator.
// It is false both when name is absent from T and when it is present but
// undecorated — callers that need to distinguish the two should use
// Lookup.
func (s *Set) Typedefed(name string) bool {
	e, ok := s.entries[name]
	return ok && e.Typedefed
}

// Names returns the sorted, duplicate-free list of every recorded tag.
// Sorting and de-duplication go through github.com/mpvl/unique, which
// provides exactly the "slice of comparable values, sort, keep one of
// each" operation this needs.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	unique.Sort(unique.StringSlice{P: &names})
	return names
}

// Build walks mod's top-level declarations and records every class
// definition (and Enum/Union base-class marker) into a new Set. It emits
// nothing and has no effect beyond the returned Set: the pre-pass
// completes before any lowering, and its presence is order-independent
// with respect to the rest of the file (§4.1).
func Build(mod *past.Module) *Set {
	s := &Set{entries: map[string]Entry{}}
	for _, d := range mod.Decls {
		recordDecl(s, d)
	}
	return s
}

func recordDecl(s *Set, d past.Decl) {
	cd, ok := d.(*past.ClassDef)
	if !ok {
		return
	}
	record(s, cd)
}

// record adds cd's own tag (unless it is the anonymous wildcard W) and
// recurses into nested class definitions, which become nested composite
// type definitions at the C level (§4.5) and so must also be tag-set
// members.
func record(s *Set, cd *past.ClassDef) {
	if cd.Name != nil && !cd.Name.IsWildcard() {
		kind := Struct
		for _, b := range cd.Bases {
			if id, ok := b.(*past.Ident); ok {
				switch id.Name {
				case "Union":
					kind = Union
				case "Enum":
					kind = Enum
				}
			}
		}
		s.entries[cd.Name.Name] = Entry{Kind: kind, Typedefed: hasTypedef(cd)}
	}
	for _, nested := range cd.Body {
		if ncd, ok := nested.(*past.ClassDef); ok {
			record(s, ncd)
		}
	}
}

func hasTypedef(cd *past.ClassDef) bool {
	for _, dec := range cd.Decorators {
		if dec.Name != nil && dec.Name.Name == "Typedef" {
			return true
		}
	}
	return false
}
