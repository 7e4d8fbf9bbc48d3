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

// Package ticker runs a function on a fixed interval until stopped, collecting
// every error it returns into an errors/pool.Pool.
package ticker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	libpol "github.com/nabbar/pronet/errors/pool"
)

// defaultDuration is used in place of any Duration <= 0 passed to New.
const defaultDuration = 30 * time.Second

// FuncTick is called on every tick. ctx is cancelled when the ticker is
// stopped or its parent context ends; tck is the underlying *time.Ticker so
// the function may reset it if it needs a different cadence.
type FuncTick func(ctx context.Context, tck *time.Ticker) error

// Ticker runs a FuncTick on a fixed interval in its own goroutine.
type Ticker interface {
	// Start begins ticking, stopping any previous run first. Errors
	// collected are cleared on every Start.
	Start(ctx context.Context) error

	// Stop cancels the running tick loop and waits (bounded) for it to
	// exit. It is a no-op, returning nil, when not running.
	Stop(ctx context.Context) error

	// Restart stops then starts the ticker, clearing uptime and errors.
	Restart(ctx context.Context) error

	// IsRunning reports whether the tick loop is currently active.
	IsRunning() bool

	// Uptime reports elapsed time since the last Start, or 0 when not
	// running.
	Uptime() time.Duration

	// ErrorsLast returns the most recently collected error, or nil.
	ErrorsLast() error

	// ErrorsList returns every error collected since the last Start.
	ErrorsList() []error
}

type tck struct {
	dur time.Duration
	fct atomic.Value // FuncTick

	mu        sync.Mutex
	run       atomic.Bool
	startedAt atomic.Int64
	cancel    context.CancelFunc
	done      chan struct{}

	pool atomic.Value // libpol.Pool
}

// New builds a Ticker for fct, ticking every d. A d <= 0 uses
// defaultDuration instead. fct may be nil: every tick then records
// ErrInvalidFunction and the loop keeps running.
func New(d time.Duration, fct FuncTick) Ticker {
	if d <= 0 {
		d = defaultDuration
	}

	t := &tck{dur: d}
	t.fct.Store(fct)
	t.pool.Store(libpol.New())

	return t
}

func (t *tck) getPool() libpol.Pool {
	p, _ := t.pool.Load().(libpol.Pool)
	return p
}

func (t *tck) getFunc() FuncTick {
	f, _ := t.fct.Load().(FuncTick)
	return f
}

// Start stops any running instance then begins a fresh tick loop.
func (t *tck) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.startLocked(ctx)

	return nil
}

// Restart is equivalent to Stop followed by Start.
func (t *tck) Restart(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.startLocked(ctx)

	return nil
}

// Stop cancels the running loop and waits (bounded to 3s) for it to exit.
func (t *tck) Stop(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()

	return nil
}

func (t *tck) startLocked(ctx context.Context) {
	t.pool.Store(libpol.New())

	cctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	t.cancel = cancel
	t.done = done
	t.startedAt.Store(time.Now().UnixNano())
	t.run.Store(true)

	go t.loop(cctx, done)
}

func (t *tck) stopLocked() {
	if !t.run.Load() {
		return
	}

	if t.cancel != nil {
		t.cancel()
	}

	if done := t.done; done != nil {
		select {
		case <-done:
		case <-time.After(3 * time.Second):
		}
	}

	t.cancel = nil
	t.done = nil
	t.run.Store(false)
	t.startedAt.Store(0)
}

func (t *tck) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(t.dur)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			f := t.getFunc()

			var err error
			if f == nil {
				err = ErrInvalidFunction
			} else {
				err = f(ctx, tk)
			}

			if p := t.getPool(); p != nil {
				p.Add(err)
			}
		}
	}
}

// IsRunning reports whether the tick loop is currently active.
func (t *tck) IsRunning() bool {
	return t.run.Load()
}

// Uptime reports elapsed time since the last Start, or 0 when not running.
func (t *tck) Uptime() time.Duration {
	s := t.startedAt.Load()
	if s == 0 {
		return 0
	}
	return time.Duration(time.Now().UnixNano() - s)
}

// ErrorsLast returns the most recently collected error, or nil.
func (t *tck) ErrorsLast() error {
	if p := t.getPool(); p != nil {
		return p.Last()
	}
	return nil
}

// ErrorsList returns every error collected since the last Start.
func (t *tck) ErrorsList() []error {
	if p := t.getPool(); p != nil {
		return p.Slice()
	}
	return nil
}
