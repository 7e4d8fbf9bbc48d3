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
 */

package msg

import "sync/atomic"

// Backpressure redlines of spec.md §4.10: server->c2s defaults to 8 MiB,
// server->user and a client's own output redline default to 1 MiB.
const (
	DefaultRedlineServerToC2S  = 8 * 1024 * 1024
	DefaultRedlineServerToUser = 1 * 1024 * 1024
	DefaultOutputRedline       = 1 * 1024 * 1024
)

// redline is the outbound-queue-depth counter one destination's sends are
// measured against. reserve is called before a send and release
// immediately after it returns, so depth reflects bytes in flight through
// one SendPacket call rather than a truly asynchronous queue; it still
// gives SendingBytes a meaningful reading and rejects a burst of
// concurrent sends to the same destination once they outrun its redline.
// depth never goes negative even if release overcounts.
type redline struct {
	limit   int64
	pending atomic.Int64
}

func newRedline(limit int64) *redline {
	if limit <= 0 {
		limit = DefaultRedlineServerToUser
	}
	return &redline{limit: limit}
}

// reserve accounts n additional outbound bytes against the redline and
// reports whether they were accepted: it returns false, adding nothing,
// when the destination is already at or over its limit, and true once the
// bytes are counted. Callers give the bytes back with release.
func (r *redline) reserve(n int) bool {
	if r.pending.Load() >= r.limit {
		return false
	}
	r.pending.Add(int64(n))
	return true
}

func (r *redline) release(n int) {
	if r.pending.Add(-int64(n)) < 0 {
		r.pending.Store(0)
	}
}

func (r *redline) depth() int64 {
	return r.pending.Load()
}
