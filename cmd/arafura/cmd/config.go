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
	"os"

	"gopkg.in/yaml.v3"
)

// projectConfig is the shape of the --config YAML file: defaults that
// CLI flags always override, the same "flags win over config" rule
// cmd/cue/cmd/common.go applies to its own project file.
type projectConfig struct {
	// Out is the default -o/--out path when the flag is not given.
	Out string `yaml:"out"`
	// IncludeDirs lists extra search directories consulted when an
	// `import`/`from ... import *` decl's name does not resolve relative
	// to the translated file — recorded here so a future preprocessor
	// front end has a place to read it from; the current translator
	// resolves both forms purely syntactically (§4.5) and does not
	// itself walk the filesystem for includes.
	IncludeDirs []string `yaml:"includeDirs"`
}

func loadProjectConfig(path string) (projectConfig, error) {
	var cfg projectConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
