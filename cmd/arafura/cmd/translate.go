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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"arafura.dev/arafura/internal/driver"
)

func newTranslateCmd(c *Command) *cobra.Command {
	var (
		out     string
		check   bool
		dumpAST bool
		cfgPath string
	)

	cmd := &cobra.Command{
		Use:   "translate FILE...",
		Short: "translate one or more SurfaceLang files to C99/C11",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cc *cobra.Command, args []string) error {
			outPath := out
			if cfgPath != "" {
				cfg, err := loadProjectConfig(cfgPath)
				if err != nil {
					return err
				}
				if outPath == "" {
					outPath = cfg.Out
				}
			}

			for _, path := range args {
				res, err := driver.TranslateFile(path, driver.Options{DumpAST: dumpAST})
				if err != nil {
					return err
				}
				if check {
					continue
				}
				if err := writeResult(res, outPath); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "write output to PATH instead of standard output")
	cmd.Flags().BoolVar(&check, "check", false, "parse and lower but discard the output")
	cmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "pretty-print the ingested AST to stderr before lowering")
	cmd.Flags().StringVar(&cfgPath, "config", "", "load a YAML project file providing defaults for --out")

	return cmd
}

func writeResult(res driver.Result, outPath string) error {
	if outPath == "" {
		_, err := fmt.Fprint(os.Stdout, res.Source)
		return err
	}
	return os.WriteFile(outPath, []byte(res.Source), 0o644)
}
