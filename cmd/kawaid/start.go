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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cockroachdb/kawai/internal/kawai"
)

// startCmd binds Config's flags and runs the engine until the process
// receives an interrupt or a worker reports a fatal error.
func startCmd() *cobra.Command {
	var cfg kawai.Config

	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the ingest engine and drain every configured topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStart(cmd.Context(), cfg)
		},
	}
	cfg.Bind(cmd.Flags())
	return cmd
}

func runStart(parent context.Context, cfg kawai.Config) error {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine := kawai.Instance()
	if err := engine.Init(cfg); err != nil {
		return errors.Wrap(err, "initializing engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.WithError(err).Warn("error closing engine")
		}
	}()

	if err := engine.Start(ctx); err != nil {
		return errors.Wrap(err, "starting engine")
	}

	log.Info("kawaid started")
	<-ctx.Done()
	log.Info("kawaid shutting down")

	return engine.Wait()
}
