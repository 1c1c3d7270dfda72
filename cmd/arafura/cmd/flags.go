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

import "github.com/spf13/pflag"

// addGlobalFlags adds the flags shared by every subcommand, the way
// cmd/cue/cmd/flags.go's addGlobalFlags does for --verbose/--trace.
func addGlobalFlags(f *pflag.FlagSet) {
	// No process-wide flags yet; translate.go's flags are command-local
	// since arafura has only one real verb.
}
