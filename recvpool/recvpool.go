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

// Package recvpool implements the two receive-buffer shapes a transport
// drains in OnRecv: a ring buffer for stream protocols (TCP/TLS) that
// tolerates partial frames, and a linear buffer for datagram protocols
// (UDP/multicast) that holds exactly one pending datagram.
package recvpool

import "sync"

// DefaultCapacity is used by New* when capacity <= 0: 64 KiB plus one extra
// 1024-byte margin for a protocol header riding along the payload.
const DefaultCapacity = 64*1024 + 1024

// Pool is the common receive-buffer surface. PeekInto/Flush never block;
// Write is the only call that can fail, when the pool has no room left.
type Pool interface {
	// Write appends received bytes. It returns the number of bytes
	// actually stored; on a ring pool a short write means the pool
	// filled up (ErrPoolFull) and the remainder was dropped — the
	// caller should close the connection, per the reactor readability
	// invariant (free_size == 0 on a readable socket is a hard error).
	Write(p []byte) (int, error)

	// PeekSize reports the number of contiguous unread bytes available
	// via PeekInto without a copy wrap — on a ring pool this can be
	// short of the pool's total unread byte count when the backing
	// array has wrapped.
	PeekSize() int

	// PeekInto copies up to len(buf) unread bytes into buf without
	// consuming them, returning the number copied.
	PeekInto(buf []byte) int

	// Flush advances the read pointer by n bytes, consuming them.
	Flush(n int)

	// FreeSize reports remaining write capacity.
	FreeSize() int

	// Reset drops all buffered data, returning the pool to empty.
	Reset()
}

type ring struct {
	mu       sync.Mutex
	buf      []byte
	readPos  int
	writePos int
	size     int
}

// NewRing builds a ring-buffered Pool of capacity bytes (DefaultCapacity if
// capacity <= 0), suitable for TCP/TLS streams where a frame may arrive
// split across several reads.
func NewRing(capacity int) Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ring{buf: make([]byte, capacity)}
}

func (r *ring) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	free := len(r.buf) - r.size
	n := len(p)
	if n > free {
		n = free
	}

	for i := 0; i < n; i++ {
		r.buf[(r.writePos+i)%len(r.buf)] = p[i]
	}
	r.writePos = (r.writePos + n) % len(r.buf)
	r.size += n

	if n < len(p) {
		return n, ErrPoolFull
	}
	return n, nil
}

func (r *ring) PeekSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.peekSizeLocked()
}

func (r *ring) peekSizeLocked() int {
	contiguous := len(r.buf) - r.readPos
	if contiguous > r.size {
		contiguous = r.size
	}
	return contiguous
}

func (r *ring) PeekInto(buf []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.peekSizeLocked()
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, r.buf[r.readPos:r.readPos+n])
	return n
}

func (r *ring) Flush(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n > r.size {
		n = r.size
	}
	r.readPos = (r.readPos + n) % len(r.buf)
	r.size -= n
}

func (r *ring) FreeSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf) - r.size
}

func (r *ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readPos, r.writePos, r.size = 0, 0, 0
}

type linear struct {
	mu     sync.Mutex
	buf    []byte
	length int
}

// NewLinear builds a linear Pool of capacity bytes (DefaultCapacity if
// capacity <= 0), suitable for UDP/multicast where each datagram is
// independent and must be drained in one OnRecv call.
func NewLinear(capacity int) Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &linear{buf: make([]byte, capacity)}
}

func (l *linear) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(p) > len(l.buf) {
		copy(l.buf, p[:len(l.buf)])
		l.length = len(l.buf)
		return len(l.buf), ErrPoolFull
	}

	copy(l.buf, p)
	l.length = len(p)
	return len(p), nil
}

func (l *linear) PeekSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.length
}

func (l *linear) PeekInto(buf []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.length
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf, l.buf[:n])
	return n
}

func (l *linear) Flush(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n >= l.length {
		l.length = 0
		return
	}
	remaining := l.length - n
	copy(l.buf, l.buf[n:l.length])
	l.length = remaining
}

func (l *linear) FreeSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buf) - l.length
}

func (l *linear) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.length = 0
}
