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
	"path/filepath"
	"testing"

	"github.com/go-quicktest/qt"
)

func TestLoadProjectConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arafura.yaml")
	content := "out: build/out.c\nincludeDirs:\n  - vendor\n  - third_party\n"
	qt.Assert(t, qt.IsNil(os.WriteFile(path, []byte(content), 0o644)))

	cfg, err := loadProjectConfig(path)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(cfg.Out, "build/out.c"))
	qt.Assert(t, qt.DeepEquals(cfg.IncludeDirs, []string{"vendor", "third_party"}))
}

func TestLoadProjectConfigMissingFile(t *testing.T) {
	_, err := loadProjectConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	qt.Assert(t, qt.IsNotNil(err))
}
