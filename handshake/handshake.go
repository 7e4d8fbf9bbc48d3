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

// Package handshake implements the bounded, known-size send-then-recv
// step a socket runs before it is wrapped as a transport.Transport, per
// spec.md §4.6. A Handshaker takes ownership of a net.Conn: on success it
// returns whatever bytes the exchange received; on failure it closes the
// connection itself so the caller never has to.
package handshake

import (
	"context"
	"io"
	"net"
	"time"
)

// DefaultTimeout bounds a Handshaker.Run call when the handshaker was built
// with timeout <= 0.
const DefaultTimeout = 10 * time.Second

// Handshaker runs a single bounded exchange over conn. Run takes ownership
// of conn: on error it closes conn before returning.
type Handshaker interface {
	Run(ctx context.Context, conn net.Conn) ([]byte, error)
}

// tcp is the plain handshaker: an optional fixed send, followed by an
// optional fixed-size recv, bounded by timeout.
type tcp struct {
	send     []byte
	recvSize int
	timeout  time.Duration
}

// NewTCP builds a Handshaker that writes send (when non-empty) then reads
// exactly recvSize bytes (when > 0), both within timeout
// (DefaultTimeout when <= 0). Passing recvSize <= 0 runs a send-only
// handshake; passing an empty send runs a recv-first handshake.
func NewTCP(send []byte, recvSize int, timeout time.Duration) Handshaker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &tcp{send: send, recvSize: recvSize, timeout: timeout}
}

func (h *tcp) Run(ctx context.Context, conn net.Conn) ([]byte, error) {
	if conn == nil {
		return nil, ErrNilConn
	}

	deadline := time.Now().Add(h.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	if err := conn.SetDeadline(deadline); err != nil {
		_ = conn.Close()
		return nil, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	if len(h.send) > 0 {
		n, err := conn.Write(h.send)
		if err != nil {
			_ = conn.Close()
			return nil, err
		}
		if n != len(h.send) {
			_ = conn.Close()
			return nil, ErrShortWrite
		}
	}

	if h.recvSize <= 0 {
		return nil, nil
	}

	buf := make([]byte, h.recvSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return buf, nil
}
