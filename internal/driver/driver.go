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

// Package driver wires the front end and the core lowering packages into
// the single per-file operation the CLI drives: ingest, build the tag
// set, walk the declarations, and hand back the rendered C source. It
// owns none of the stages' logic — it is the same thin "load, build,
// walk, render" shell cue/load and cmd/cue/cmd/common.go use to turn a
// parsed tree into the thing a command actually prints.
package driver

import (
	"os"

	"github.com/kr/pretty"

	"arafura.dev/arafura/internal/arerrors"
	"arafura.dev/arafura/internal/clower/cdecl"
	"arafura.dev/arafura/internal/cwriter"
	"arafura.dev/arafura/internal/pyparse"
	"arafura.dev/arafura/internal/tagset"
)

// Options configures a single-file translation. The zero value is the
// baseline CLI contract: write C source, do not dump the AST.
type Options struct {
	// DumpAST, when set, writes a pretty-printed form of the ingested
	// Module to DumpWriter before lowering begins.
	DumpAST   bool
	DumpWriter *os.File
}

// Result is the outcome of translating one file.
type Result struct {
	// Filename is the source path that was translated.
	Filename string
	// Source is the rendered C99/C11 text. Empty when translation returns
	// an error.
	Source string
}

// TranslateFile ingests the SurfaceLang source at path, builds its tag
// set, and lowers every top-level declaration in order, returning the
// concatenated C source. A ParseError from pyparse aborts before any
// lowering. Lowering errors from cdecl are collected across all top-level
// declarations, sorted by position and returned together as an
// arerrors.List; any error means no C source is returned.
func TranslateFile(path string, opts Options) (Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return Result{}, err
	}
	return Translate(path, src, opts)
}

// Translate is TranslateFile without the filesystem read, for callers
// (such as tests) that already have the source bytes.
func Translate(filename string, src []byte, opts Options) (Result, error) {
	mod, err := pyparse.ParseFile(filename, src)
	if err != nil {
		return Result{}, err
	}

	if opts.DumpAST {
		w := opts.DumpWriter
		if w == nil {
			w = os.Stderr
		}
		pretty.Fprintf(w, "%# v\n", mod)
	}

	tags := tagset.Build(mod)

	w := cwriter.New()
	var errs arerrors.List
	for _, d := range mod.Decls {
		if err := cdecl.Emit(d, w, tags); err != nil {
			var aerr arerrors.Error
			if arerrors.As(err, &aerr) {
				errs.Add(aerr)
				continue
			}
			return Result{}, err
		}
	}
	errs.Sort()
	if err := errs.Err(); err != nil {
		return Result{}, err
	}

	return Result{Filename: filename, Source: w.String()}, nil
}
