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

// Package transport implements the four wire-level transports a session
// rides on - Tcp, Tls, Udp and Mcast - each exposing the same Send /
// RequestOnSend / SuspendRecv / ResumeRecv / StartHeartbeat / StopHeartbeat
// contract and reporting back through an Observer. Stream transports (Tcp,
// Tls) register their connection with a reactor.Reactor and drain it through
// the reactor's bufio.Reader on every OnReadable upcall; datagram transports
// (Udp, Mcast) own a dedicated read goroutine instead, since a
// connectionless socket's per-packet sender address does not survive being
// read through a buffered stream reader.
package transport

import (
	"net"
	"sync/atomic"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/recvpool"
)

// SendResult reports whether a Send call queued its buffer or was rejected
// because a previous send is still in flight.
type SendResult uint8

const (
	SendOK SendResult = iota
	SendBusy
)

// Observer receives the upcalls every transport variant reports through.
type Observer interface {
	// OnRecv is called after new bytes have been appended to the
	// transport's Pool. remote is non-nil only for Udp/Mcast transports
	// that are not bound to a single peer.
	OnRecv(t Transport, remote net.Addr)

	// OnSend is called once after RequestOnSend's arming condition is
	// met: the socket is writable again.
	OnSend(t Transport, actionID int64)

	// OnClose is called exactly once, whether the transport closed
	// because of a local Close call or a remote/read error. err is nil
	// for a local, intentional close.
	OnClose(t Transport, err error)

	// OnHeartbeat is called each time a heartbeat timer armed by
	// StartHeartbeat fires.
	OnHeartbeat(t Transport)
}

// Transport is the contract every protocol variant (Tcp, Tls, Udp, Mcast)
// implements, matching the public surface a session drives.
type Transport interface {
	// Send queues buf for delivery. remote is only honored by datagram
	// transports; stream transports ignore it and always target their
	// single peer. It returns SendBusy without blocking when a previous
	// send has not yet completed.
	Send(buf []byte, actionID int64, remote net.Addr) (SendResult, error)

	// RequestOnSend arms a one-shot Observer.OnSend for the next time
	// the underlying socket is writable.
	RequestOnSend()

	// SuspendRecv detaches read interest without closing the socket.
	SuspendRecv()

	// ResumeRecv re-attaches read interest after SuspendRecv.
	ResumeRecv()

	// StartHeartbeat arms a heartbeat timer that fires Observer.OnHeartbeat
	// on the reactor's shared heartbeat schedule.
	StartHeartbeat()

	// StopHeartbeat cancels a heartbeat timer armed by StartHeartbeat, a
	// no-op if none is armed.
	StopHeartbeat()

	// Pool exposes the transport's receive buffer for an Observer to
	// drain from inside OnRecv.
	Pool() recvpool.Pool

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Close tears the transport down, canceling its heartbeat timer,
	// removing it from the reactor (stream transports) or stopping its
	// read goroutine (datagram transports), and calling
	// Observer.OnClose(t, nil).
	Close() error
}

// UDPTransport is the extra surface Udp and Mcast transports implement.
type UDPTransport interface {
	Transport

	// UdpConnResetAsError upgrades a connected UDP socket's ECONNRESET /
	// ECONNREFUSED condition from a silently-ignored event to a fatal
	// Close. One-way: there is no way back to the tolerant default.
	UdpConnResetAsError()
}

// common fields shared by every transport implementation, embedded first so
// each variant only needs to provide its own I/O loop and Send.
type common struct {
	obs  Observer
	pool recvpool.Pool
	log  liblog.Logger

	react reactor.Reactor

	self Transport

	heartbeatID atomic.Uint64
	sendBusy    atomic.Bool
	closed      atomic.Bool

	lastAction atomic.Int64
}

// setLog stores log, falling back to a discard Logger when nil so every
// common method below can log unconditionally.
func (c *common) setLog(log liblog.Logger) {
	if log == nil {
		log = liblog.NewDiscard()
	}
	c.log = log
}

func (c *common) Pool() recvpool.Pool {
	return c.pool
}

// OnTimer implements timewheel.Handler: the reactor's heartbeat wheel calls
// this directly, so a transport never has to run its own timer goroutine.
func (c *common) OnTimer(id uint64, _ time.Time, _ int64) {
	if c.heartbeatID.Load() != id {
		return
	}
	if c.closed.Load() {
		return
	}
	c.obs.OnHeartbeat(c.self)
}

func (c *common) StartHeartbeat() {
	if c.closed.Load() {
		return
	}
	id := c.react.SetupHeartbeatTimer(c, 0)
	c.heartbeatID.Store(id)
	c.log.Entry(loglvl.DebugLevel, "transport heartbeat armed").Log()
}

func (c *common) StopHeartbeat() {
	if id := c.heartbeatID.Swap(0); id != 0 {
		c.react.CancelTimer(id)
	}
}
