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

// Package stopper provides a cooperative shutdown context: every
// goroutine that a component spawns is registered with Go, Stop
// closes the Stopping channel and cancels the embedded context, and
// Close does that and then waits for all of them to return. Cancelling
// the parent context calls Stop. This is the only cancellation signal
// used anywhere in kawai
// (spec §5): a worker observes Stopping() between records and at every
// suspension point, finishes whatever insert is in flight, and exits.
package stopper

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// A Context wraps a context.Context with goroutine bookkeeping.
type Context struct {
	context.Context

	mu       sync.Mutex
	err      error
	errs     []error
	stopping chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// WithContext returns a new stopper.Context derived from parent.
func WithContext(parent context.Context) *Context {
	ctx, cancel := context.WithCancel(parent)
	c := &Context{
		Context:  ctx,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return c
}

// Go runs fn in a new goroutine tracked by the Context. If fn returns
// a non-nil error, it is recorded and Stopping() begins returning
// closed, so that sibling goroutines wind down too.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil {
			c.mu.Lock()
			c.errs = append(c.errs, err)
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
			c.Stop()
		}
	}()
}

// Stopping returns a channel that is closed once Stop has been called
// or a tracked goroutine has failed.
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// Stop requests that every goroutine registered with Go observe
// Stopping() and exit, and cancels the embedded context so that calls
// blocked on it return. It does not wait for them; call Wait for that.
func (c *Context) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopping)
		c.cancel()
	})
}

// Wait blocks until every goroutine registered with Go has returned,
// then returns the first error any of them reported, if any.
func (c *Context) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.errs) == 0 {
		return nil
	}
	return errors.WithStack(c.err)
}

// Close is a convenience for Stop followed by Wait.
func (c *Context) Close() error {
	c.Stop()
	return c.Wait()
}
