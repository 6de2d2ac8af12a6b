// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

// Command kawaid runs the kawai ingest engine: it binds log topics to
// schemas, translates those schemas to relational columns, and
// materializes decoded records into an embedded analytic database.
package main

import (
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "kawaid",
		Short: "kawai ingest-and-query bridge",
	}
	root.AddCommand(startCmd())

	if err := root.Execute(); err != nil {
		log.WithError(err).Fatal("kawaid exited with an error")
	}
}
