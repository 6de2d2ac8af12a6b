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

package kawai_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cockroachdb/kawai/internal/kawai"
	"github.com/cockroachdb/kawai/internal/kerrors"
)

// TestSyncRequiresRunning exercises C8's rule that Sync is only
// permitted while the engine is Running: calling it on a fresh,
// uninitialized instance must fail closed with a LifecycleError rather
// than blocking or panicking.
func TestSyncRequiresRunning(t *testing.T) {
	defer func() { _ = kawai.CloseInstance() }()

	err := kawai.Instance().Sync(context.Background())
	require.Error(t, err)

	var lifecycleErr *kerrors.LifecycleError
	require.ErrorAs(t, err, &lifecycleErr)
	require.Equal(t, "Sync", lifecycleErr.Op)
	require.Equal(t, "uninitialized", lifecycleErr.State)
	require.Equal(t, "running", lifecycleErr.Expected)
}
