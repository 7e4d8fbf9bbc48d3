/*
 * MIT License
 *
 * Copyright (c) 2022 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package startStop runs a blocking start function in its own goroutine and
// a separate stop function to unblock it, tracking uptime and every error
// either function returns.
package startStop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	libpol "github.com/nabbar/pronet/errors/pool"
)

// FuncStart is launched in its own goroutine by Start. It is expected to
// block until ctx is done (cancelled by Stop/Restart or by the caller's own
// context), though it may also return earlier on its own.
type FuncStart func(ctx context.Context) error

// FuncStop is called by Stop/Restart to unblock a running FuncStart, e.g. by
// closing a listener FuncStart is blocked accepting on.
type FuncStop func(ctx context.Context) error

// StartStop pairs a blocking start routine with the stop routine that
// unblocks it.
type StartStop interface {
	// Start launches FuncStart in a new goroutine, stopping any instance
	// already running first. It returns immediately; errors from
	// FuncStart surface through ErrorsLast/ErrorsList.
	Start(ctx context.Context) error

	// Stop calls FuncStop to unblock the running FuncStart and waits
	// (bounded) for its goroutine to exit. It is a no-op when not
	// running.
	Stop(ctx context.Context) error

	// Restart is Start after Stop.
	Restart(ctx context.Context) error

	// IsRunning reports whether FuncStart's goroutine is active.
	IsRunning() bool

	// Uptime reports elapsed time since the last Start, or 0 when not
	// running.
	Uptime() time.Duration

	// ErrorsLast returns the most recently collected error, or nil.
	ErrorsLast() error

	// ErrorsList returns every error collected since the last Start.
	ErrorsList() []error
}

type ss struct {
	fctStart atomic.Value // FuncStart
	fctStop  atomic.Value // FuncStop

	mu        sync.Mutex
	run       atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}

	pool atomic.Value // libpol.Pool
}

// New builds a StartStop pairing start and stop. Either may be nil: calling
// the missing half then records ErrInvalidStartFunction/ErrInvalidStopFunction
// instead of panicking.
func New(start FuncStart, stop FuncStop) StartStop {
	s := &ss{}
	s.fctStart.Store(start)
	s.fctStop.Store(stop)
	s.pool.Store(libpol.New())

	return s
}

func (s *ss) getPool() libpol.Pool {
	p, _ := s.pool.Load().(libpol.Pool)
	return p
}

func (s *ss) getStart() FuncStart {
	f, _ := s.fctStart.Load().(FuncStart)
	return f
}

func (s *ss) getStop() FuncStop {
	f, _ := s.fctStop.Load().(FuncStop)
	return f
}

// Start stops any running instance, then launches FuncStart fresh.
func (s *ss) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(ctx)
	s.startLocked(ctx)

	return nil
}

// Restart is Start after Stop.
func (s *ss) Restart(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(ctx)
	s.startLocked(ctx)

	return nil
}

// Stop calls FuncStop and waits (bounded to 3s) for FuncStart to exit.
func (s *ss) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked(ctx)

	return nil
}

func (s *ss) startLocked(ctx context.Context) {
	s.pool.Store(libpol.New())

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	s.cancel = cancel
	s.done = done
	s.startedAt.Store(time.Now().UnixNano())
	s.run.Store(true)

	go s.runLoop(cctx, done)
}

// runLoop invokes FuncStart and, on its return (whether natural or forced by
// Stop cancelling ctx), records its error and clears the running state — but
// only if this goroutine's done channel is still the one current start/stop
// state points at, so a superseded instance never clobbers a later Start.
func (s *ss) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in start function: %v", r)
			}
		}()

		if f := s.getStart(); f == nil {
			err = ErrInvalidStartFunction
		} else {
			err = f(ctx)
		}
	}()

	if p := s.getPool(); p != nil {
		p.Add(err)
	}

	s.mu.Lock()
	if s.done == done {
		s.run.Store(false)
		s.startedAt.Store(0)
		s.cancel = nil
		s.done = nil
	}
	s.mu.Unlock()
}

func (s *ss) stopLocked(ctx context.Context) {
	if !s.run.Load() {
		return
	}

	if s.cancel != nil {
		s.cancel()
	}

	if done := s.done; done != nil {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
		}
	}

	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in stop function: %v", r)
			}
		}()

		if f := s.getStop(); f == nil {
			err = ErrInvalidStopFunction
		} else {
			err = f(ctx)
		}
	}()

	if p := s.getPool(); p != nil {
		p.Add(err)
	}

	s.run.Store(false)
	s.startedAt.Store(0)
	s.cancel = nil
	s.done = nil
}

// IsRunning reports whether FuncStart's goroutine is active.
func (s *ss) IsRunning() bool {
	return s.run.Load()
}

// Uptime reports elapsed time since the last Start, or 0 when not running.
func (s *ss) Uptime() time.Duration {
	t := s.startedAt.Load()
	if t == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - t)
}

// ErrorsLast returns the most recently collected error, or nil.
func (s *ss) ErrorsLast() error {
	if p := s.getPool(); p != nil {
		return p.Last()
	}
	return nil
}

// ErrorsList returns every error collected since the last Start.
func (s *ss) ErrorsList() []error {
	if p := s.getPool(); p != nil {
		return p.Slice()
	}
	return nil
}
