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
	"io"
	"net"
	"sync/atomic"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/recvpool"
)

// stream is the shared implementation behind Tcp and Tls: one net.Conn
// registered with a reactor.Reactor, drained through the reactor's
// bufio.Reader on every OnReadable upcall into a ring recvpool.Pool.
type stream struct {
	common

	conn   net.Conn
	handle reactor.Handle

	recvSuspended atomic.Bool
}

func newStream(conn net.Conn, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (*stream, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}

	s := &stream{
		conn: conn,
	}
	s.obs = obs
	s.pool = recvpool.NewRing(poolCapacity)
	s.react = react
	s.self = s
	s.setLog(log)

	h, err := react.AddHandler(conn, s, reactor.InterestRead)
	if err != nil {
		return nil, err
	}
	s.handle = h

	s.log.Entry(loglvl.DebugLevel, "stream transport registered").
		FieldAdd("remote", conn.RemoteAddr().String()).Log()
	return s, nil
}

func (s *stream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *stream) interest(extraWrite bool) reactor.Interest {
	var in reactor.Interest
	if !s.recvSuspended.Load() {
		in |= reactor.InterestRead
	}
	if extraWrite {
		in |= reactor.InterestWrite
	}
	return in
}

func (s *stream) SuspendRecv() {
	s.recvSuspended.Store(true)
	_ = s.react.ModifyInterest(s.handle, s.interest(false))
}

func (s *stream) ResumeRecv() {
	s.recvSuspended.Store(false)
	_ = s.react.ModifyInterest(s.handle, s.interest(false))
}

func (s *stream) RequestOnSend() {
	_ = s.react.ModifyInterest(s.handle, s.interest(true))
}

// OnReadable implements reactor.Handler. It drains whatever the reactor's
// bufio.Reader already peeked (or at least one byte, blocking briefly) into
// the ring pool, then notifies the observer once per call.
func (s *stream) OnReadable(h reactor.Handle) {
	if s.closed.Load() {
		return
	}

	r, err := s.react.Reader(h)
	if err != nil {
		return
	}

	n := r.Buffered()
	if n == 0 {
		n = 1
	}

	tmp := make([]byte, n)
	read, rerr := io.ReadFull(r, tmp)
	if read > 0 {
		if _, werr := s.pool.Write(tmp[:read]); werr != nil {
			s.fail(werr)
			return
		}
		s.obs.OnRecv(s.self, nil)
	}

	if rerr != nil {
		s.fail(rerr)
	}
}

func (s *stream) OnWritable(reactor.Handle) {
	if s.closed.Load() {
		return
	}
	s.obs.OnSend(s.self, s.lastAction.Load())
}

// Send writes buf directly to the connection. Stream sockets in this
// implementation block for the duration of a single Write rather than
// queuing partial writes; SendBusy is only returned when a previous Send
// from another goroutine has not yet returned.
func (s *stream) Send(buf []byte, actionID int64, _ net.Addr) (SendResult, error) {
	if s.closed.Load() {
		return 0, ErrTransportClosed
	}
	if !s.sendBusy.CompareAndSwap(false, true) {
		return SendBusy, nil
	}
	defer s.sendBusy.Store(false)

	s.lastAction.Store(actionID)

	if _, err := s.conn.Write(buf); err != nil {
		s.fail(err)
		return 0, err
	}

	return SendOK, nil
}

func (s *stream) fail(err error) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.StopHeartbeat()
	s.react.RemoveHandler(s.handle)
	_ = s.conn.Close()
	s.obs.OnClose(s.self, err)
}

func (s *stream) Close() error {
	s.fail(nil)
	return nil
}
