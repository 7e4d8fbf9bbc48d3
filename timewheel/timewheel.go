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

// Package timewheel implements a monotonic, min-heap-ordered timer set with
// round-robin heartbeat slotting, as used by a reactor worker to schedule
// one-shot/periodic timers and evenly spread heartbeat fire times.
package timewheel

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	runss "github.com/nabbar/pronet/runner/startStop"
)

// idSeq mints process-unique timer ids; the low bit distinguishes a
// multimedia (high-precision) timer from a regular one.
var idSeq atomic.Uint64

func nextID(mm bool) uint64 {
	n := idSeq.Add(1) << 1
	if mm {
		n |= 1
	}
	return n
}

// IsMM reports whether id was minted for a multimedia (high-precision) timer.
func IsMM(id uint64) bool {
	return id&1 == 1
}

// Handler receives timer fires. OnTimer runs on the wheel's own goroutine;
// it must not block.
type Handler interface {
	OnTimer(id uint64, tick time.Time, userData int64)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(id uint64, tick time.Time, userData int64)

func (f HandlerFunc) OnTimer(id uint64, tick time.Time, userData int64) {
	f(id, tick, userData)
}

// Timer is a single scheduled entry. Period == 0 marks a one-shot timer that
// auto-unregisters on fire.
type Timer struct {
	ID        uint64
	Deadline  time.Time
	Period    time.Duration
	Owner     Handler
	UserData  int64
	Heartbeat bool
	SlotIndex uint32

	index int // heap.Interface bookkeeping
}

// Wheel schedules timers and dispatches fires to their owning Handler.
type Wheel interface {
	// Start begins the scheduling loop. Stopping and restarting clears no
	// registered timer; only CancelTimer removes one.
	Start(ctx context.Context) error
	Stop(ctx context.Context) error

	// SetupTimer registers a timer firing first after firstDelay, then
	// (if period > 0) every period, rescheduled by deadline += period with
	// no drift accumulation beyond one period.
	SetupTimer(owner Handler, firstDelay time.Duration, period time.Duration, userData int64) uint64

	// SetupHeartbeatTimer registers a heartbeat timer at the wheel's
	// current heartbeat interval, assigned the next round-robin slot.
	SetupHeartbeatTimer(owner Handler, userData int64) uint64

	// SetupTimerMM is SetupTimer, but mints an id with the multimedia
	// (high-precision) low bit set, for a wheel dedicated to mm timers.
	SetupTimerMM(owner Handler, firstDelay time.Duration, period time.Duration, userData int64) uint64

	// CancelTimer removes a timer; after it returns, no new fire of the
	// id starts. A fire whose OnTimer is already running is not waited
	// for and may still be in progress when CancelTimer returns.
	CancelTimer(id uint64)

	// UpdateHeartbeatTimers reschedules every heartbeat timer to
	// now + (slot mod n) * interval / n, n being the interval's whole
	// seconds (at least 1), so fire times stay evenly spread, and changes
	// the interval used for future heartbeat timers.
	UpdateHeartbeatTimers(interval time.Duration)

	// HeartbeatInterval reports the interval passed to the last
	// UpdateHeartbeatTimers call (or the default, 20s).
	HeartbeatInterval() time.Duration

	// GetTimerCount reports the number of currently registered timers.
	GetTimerCount() int
}

const defaultHeartbeatInterval = 20 * time.Second

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if !h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].Deadline.Before(h[j].Deadline)
	}
	return h[i].ID < h[j].ID
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *timerHeap) Push(x interface{}) {
	t := x.(*Timer)
	t.index = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

type wheel struct {
	mu   sync.Mutex
	h    timerHeap
	byID map[uint64]*Timer

	htbtInterval atomic.Int64 // time.Duration
	htbtSlots    uint32

	wake chan struct{}

	runner runss.StartStop
}

// New builds an empty Wheel. A wheel dedicated to multimedia timers is
// built the same way; only the ids differ, minted by SetupTimerMM with the
// low bit set, and both share the same scheduling loop.
func New() Wheel {
	w := &wheel{
		byID: make(map[uint64]*Timer),
		wake: make(chan struct{}, 1),
	}
	w.htbtInterval.Store(int64(defaultHeartbeatInterval))
	w.runner = runss.New(w.run, w.shutdown)
	return w
}

func (w *wheel) Start(ctx context.Context) error {
	return w.runner.Start(ctx)
}

func (w *wheel) Stop(ctx context.Context) error {
	return w.runner.Stop(ctx)
}

func (w *wheel) shutdown(_ context.Context) error {
	return nil
}

func (w *wheel) poke() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *wheel) SetupTimer(owner Handler, firstDelay time.Duration, period time.Duration, userData int64) uint64 {
	id := nextID(false)
	t := &Timer{
		ID:       id,
		Deadline: time.Now().Add(firstDelay),
		Period:   period,
		Owner:    owner,
		UserData: userData,
	}

	w.mu.Lock()
	heap.Push(&w.h, t)
	w.byID[id] = t
	w.mu.Unlock()

	w.poke()
	return id
}

func (w *wheel) SetupTimerMM(owner Handler, firstDelay time.Duration, period time.Duration, userData int64) uint64 {
	id := nextID(true)
	t := &Timer{
		ID:       id,
		Deadline: time.Now().Add(firstDelay),
		Period:   period,
		Owner:    owner,
		UserData: userData,
	}

	w.mu.Lock()
	heap.Push(&w.h, t)
	w.byID[id] = t
	w.mu.Unlock()

	w.poke()
	return id
}

func (w *wheel) SetupHeartbeatTimer(owner Handler, userData int64) uint64 {
	id := nextID(false)
	interval := time.Duration(w.htbtInterval.Load())

	w.mu.Lock()
	slot := w.htbtSlots
	w.htbtSlots++
	delay := slotDelay(slot, interval)

	t := &Timer{
		ID:        id,
		Deadline:  time.Now().Add(delay),
		Period:    interval,
		Owner:     owner,
		UserData:  userData,
		Heartbeat: true,
		SlotIndex: slot,
	}
	heap.Push(&w.h, t)
	w.byID[id] = t
	w.mu.Unlock()

	w.poke()
	return id
}

// slotDelay places heartbeat slot s at (s mod n) * interval / n, where n is
// the interval's whole seconds (at least 1), so consecutive slots land on
// distinct, evenly spaced offsets inside one interval.
func slotDelay(slot uint32, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	n := int64(interval / time.Second)
	if n < 1 {
		n = 1
	}
	return time.Duration(int64(slot)%n) * interval / time.Duration(n)
}

func (w *wheel) CancelTimer(id uint64) {
	w.mu.Lock()
	t, ok := w.byID[id]
	if ok {
		delete(w.byID, id)
		if t.index >= 0 && t.index < len(w.h) {
			heap.Remove(&w.h, t.index)
		}
	}
	w.mu.Unlock()
}

func (w *wheel) UpdateHeartbeatTimers(interval time.Duration) {
	if interval <= 0 {
		return
	}
	w.htbtInterval.Store(int64(interval))

	now := time.Now()

	w.mu.Lock()
	for _, t := range w.h {
		if !t.Heartbeat {
			continue
		}
		t.Period = interval
		t.Deadline = now.Add(slotDelay(t.SlotIndex, interval))
	}
	heap.Init(&w.h)
	w.mu.Unlock()

	w.poke()
}

func (w *wheel) HeartbeatInterval() time.Duration {
	return time.Duration(w.htbtInterval.Load())
}

func (w *wheel) GetTimerCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.h)
}

// run is the scheduling loop, launched by the embedded runner/startStop
// instance. It blocks until ctx is cancelled (by Stop); with an empty heap
// it waits for a wake.
func (w *wheel) run(ctx context.Context) error {
	for {
		w.mu.Lock()
		var wait time.Duration
		var due *Timer

		if len(w.h) == 0 {
			wait = -1
		} else {
			due = w.h[0]
			wait = time.Until(due.Deadline)
		}
		w.mu.Unlock()

		if due == nil {
			select {
			case <-ctx.Done():
				return nil
			case <-w.wake:
				continue
			}
		}

		if wait <= 0 {
			w.fire(due)
			continue
		}

		tm := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			tm.Stop()
			return nil
		case <-w.wake:
			tm.Stop()
			continue
		case <-tm.C:
			continue
		}
	}
}

func (w *wheel) fire(t *Timer) {
	w.mu.Lock()
	cur, ok := w.byID[t.ID]
	if !ok || cur != t {
		w.mu.Unlock()
		return
	}

	if t.index >= 0 && t.index < len(w.h) && w.h[t.index] == t {
		heap.Remove(&w.h, t.index)
	}

	if t.Period > 0 {
		t.Deadline = t.Deadline.Add(t.Period)
		heap.Push(&w.h, t)
	} else {
		delete(w.byID, t.ID)
	}
	w.mu.Unlock()

	if t.Owner != nil {
		t.Owner.OnTimer(t.ID, time.Now(), t.UserData)
	}
}
