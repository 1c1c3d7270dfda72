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

// Package cmd is the arafura command tree, built the way
// cmd/cue/cmd/root.go builds cue's: a root *cobra.Command carrying
// persistent flags, errors silenced so Main can print and exit on its
// own terms, and one primary verb (translate) also runnable as the bare
// root command.
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"arafura.dev/arafura/internal/arerrors"
)

// Command wraps the root *cobra.Command the way cue's Command does,
// leaving room to carry shared state (none yet) across subcommands.
type Command struct {
	*cobra.Command
}

// ErrPrintedError indicates a diagnostic has already been written to
// stderr, so Main should not print err itself — only translate it into a
// non-zero exit code. Mirrors cmd/cue/cmd's sentinel of the same name.
var ErrPrintedError = fmt.Errorf("terminating because of errors")

// New builds the root command tree.
func New(args []string) *Command {
	root := &cobra.Command{
		Use:   "arafura",
		Short: "arafura translates SurfaceLang sources into C99/C11",

		SilenceErrors: true,
		SilenceUsage:  true,
	}
	c := &Command{Command: root}

	addGlobalFlags(root.PersistentFlags())

	translate := newTranslateCmd(c)
	root.AddCommand(translate)

	// `arafura in.sl` is shorthand for `arafura translate in.sl`, the
	// same "verb is also the default" shape cmd/cue/cmd gives `cue eval`.
	root.RunE = translate.RunE
	root.Args = translate.Args
	root.Flags().AddFlagSet(translate.Flags())

	root.SetArgs(args)
	return c
}

// Main runs the CLI and returns the process exit code; it never calls
// os.Exit itself so it stays usable from tests.
func Main() int {
	c := New(os.Args[1:])
	if err := c.Execute(); err != nil {
		if err != ErrPrintedError {
			printDiag(os.Stderr, err)
		}
		return 1
	}
	return 0
}

// printDiag renders err to w. For an arerrors.List it prints an
// "N error(s)" header, the word chosen by pluralize and the line
// formatted through a golang.org/x/text/message printer, then one line
// per error.
func printDiag(w *os.File, err error) {
	p := message.NewPrinter(getLang())
	var list arerrors.List
	if le, ok := err.(arerrors.List); ok {
		list = le
	}
	if len(list) > 0 {
		p.Fprintf(w, "%d %s:\n", len(list), pluralize(len(list), "error", "errors"))
		for _, e := range list {
			fmt.Fprintln(w, e.Error())
		}
		return
	}
	fmt.Fprintln(w, err)
}

// getLang reports the printer's locale from LC_ALL/LANG, falling back to
// the unspecified tag (matched to a sane default by x/text/message).
func getLang() language.Tag {
	loc := os.Getenv("LC_ALL")
	if loc == "" {
		loc = os.Getenv("LANG")
	}
	loc = strings.Split(loc, ".")[0]
	return language.Make(loc)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
