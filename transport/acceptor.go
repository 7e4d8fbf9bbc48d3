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

package transport

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultAcceptTimeout is the extended acceptor's default bound on the
// nonce-then-preamble exchange, per spec.md §4.5's "default 10s".
const DefaultAcceptTimeout = 10 * time.Second

// nonceSize is the length of the PRO_NONCE random challenge the extended
// acceptor writes after accept.
const nonceSize = 32

// preambleSize is the client's response to the nonce: serviceId(1) +
// serviceOpt(1) + r(2 be) + r+1(2 be).
const preambleSize = 6

// Preamble is the client's extended-handshake response, sent right after
// it reads the server's nonce.
type Preamble struct {
	ServiceID  uint8
	ServiceOpt uint8
	R          uint16
	R1         uint16
}

func (p Preamble) bytes() []byte {
	b := make([]byte, preambleSize)
	b[0] = p.ServiceID
	b[1] = p.ServiceOpt
	binary.BigEndian.PutUint16(b[2:4], p.R)
	binary.BigEndian.PutUint16(b[4:6], p.R1)
	return b
}

func parsePreamble(b []byte) (Preamble, error) {
	if len(b) != preambleSize {
		return Preamble{}, ErrBadPreamble
	}
	return Preamble{
		ServiceID:  b[0],
		ServiceOpt: b[1],
		R:          binary.BigEndian.Uint16(b[2:4]),
		R1:         binary.BigEndian.Uint16(b[4:6]),
	}, nil
}

// AcceptObserver receives each connection a plain Acceptor accepts, per
// spec.md §4.5's "Plain acceptor": no handshake runs before the upcall.
type AcceptObserver interface {
	OnAccept(conn net.Conn)
}

// ExAcceptObserver receives each connection an extended Acceptor accepts,
// after the nonce/preamble exchange of spec.md §4.5 has completed.
type ExAcceptObserver interface {
	OnAccept(conn net.Conn, nonce [nonceSize]byte, preamble Preamble)
}

// Acceptor runs a listen loop and hands every accepted connection to an
// observer. Listen blocks until ctx is canceled or the listener errors.
type Acceptor interface {
	Listen(ctx context.Context) error
	Close() error
	Addr() net.Addr
}

type acceptor struct {
	network, address string
	plain            AcceptObserver
	ex               ExAcceptObserver
	timeout          time.Duration

	mu sync.Mutex
	ln net.Listener
}

// NewAcceptor builds a plain Acceptor per spec.md §4.5: it hands every
// accepted net.Conn straight to obs, without any handshake.
func NewAcceptor(network, address string, obs AcceptObserver) (Acceptor, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	return &acceptor{network: network, address: address, plain: obs}, nil
}

// NewAcceptorEx builds the extended acceptor of spec.md §4.5: after accept
// it writes a 32-byte random nonce, then bounds the read of the client's
// 6-byte preamble to timeout (DefaultAcceptTimeout when <= 0). A timeout or
// malformed preamble closes the connection without notifying obs.
func NewAcceptorEx(network, address string, timeout time.Duration, obs ExAcceptObserver) (Acceptor, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if timeout <= 0 {
		timeout = DefaultAcceptTimeout
	}
	return &acceptor{network: network, address: address, ex: obs, timeout: timeout}, nil
}

func (a *acceptor) Listen(ctx context.Context) error {
	ln, err := net.Listen(a.network, a.address)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return aerr
		}

		if a.ex != nil {
			go a.handshake(conn)
		} else {
			go a.plain.OnAccept(conn)
		}
	}
}

// handshake runs the extended acceptor's nonce-then-preamble exchange on
// its own goroutine, per the Fig.4 flow: nonce out, preamble in, bounded by
// a.timeout, then the upcall.
func (a *acceptor) handshake(conn net.Conn) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		_ = conn.Close()
		return
	}

	if err := conn.SetDeadline(time.Now().Add(a.timeout)); err != nil {
		_ = conn.Close()
		return
	}

	if _, err := conn.Write(nonce[:]); err != nil {
		_ = conn.Close()
		return
	}

	buf := make([]byte, preambleSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		_ = conn.Close()
		return
	}

	pre, err := parsePreamble(buf)
	if err != nil {
		_ = conn.Close()
		return
	}

	if err = conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return
	}

	a.ex.OnAccept(conn, nonce, pre)
}

func (a *acceptor) Close() error {
	a.mu.Lock()
	ln := a.ln
	a.mu.Unlock()

	if ln == nil {
		return nil
	}
	return ln.Close()
}

func (a *acceptor) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}
