// Copyright 2025 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

package base

import (
	"sync"
	"sync/atomic"
)

// InitOnce runs an initialization function at most once successfully. Unlike
// sync.Once, a failed attempt does not latch: a subsequent call retries the
// function. Concurrent first calls race safely; exactly one runs the function
// at a time and the others observe its outcome.
//
// The zero value is ready to use.
type InitOnce struct {
	done atomic.Bool
	mu   sync.Mutex
}

// Do invokes fn unless a previous invocation already succeeded. It returns
// the error from fn, or nil if initialization has already completed.
func (o *InitOnce) Do(fn func() error) error {
	if o.done.Load() {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done.Load() {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	o.done.Store(true)
	return nil
}

// Done reports whether initialization has completed successfully.
func (o *InitOnce) Done() bool {
	return o.done.Load()
}
