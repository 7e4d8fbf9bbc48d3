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
	stderrors "errors"
	"net"
	"sync/atomic"
	"syscall"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/recvpool"
)

// datagram is the shared implementation behind Udp and Mcast: a
// net.PacketConn read by a dedicated goroutine rather than through the
// reactor, since a connectionless socket's per-datagram sender address
// would not survive being drained through the reactor's bufio.Reader. The
// reactor is still used for the heartbeat timer (via common.OnTimer).
type datagram struct {
	common

	conn   net.PacketConn
	local  net.Addr
	remote net.Addr // default destination for Send when remote arg is nil

	resetAsError atomic.Bool
	suspended    atomic.Bool
	resume       chan struct{}
	done         chan struct{}
}

func newDatagram(conn net.PacketConn, remoteDefault net.Addr, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (*datagram, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}

	d := &datagram{
		conn:   conn,
		local:  conn.LocalAddr(),
		remote: remoteDefault,
		resume: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	d.obs = obs
	d.pool = recvpool.NewLinear(poolCapacity)
	d.react = react
	d.self = d
	d.setLog(log)

	go d.readLoop()

	d.log.Entry(loglvl.DebugLevel, "datagram transport registered").
		FieldAdd("local", d.local.String()).Log()
	return d, nil
}

func (d *datagram) LocalAddr() net.Addr {
	return d.local
}

func (d *datagram) RemoteAddr() net.Addr {
	return d.remote
}

func (d *datagram) UdpConnResetAsError() {
	d.resetAsError.Store(true)
}

func (d *datagram) SuspendRecv() {
	d.suspended.Store(true)
}

func (d *datagram) ResumeRecv() {
	d.suspended.Store(false)
	select {
	case d.resume <- struct{}{}:
	default:
	}
}

// RequestOnSend is a no-op for datagram transports: UDP sockets are always
// considered writable, so Send never logically blocks in this
// implementation.
func (d *datagram) RequestOnSend() {}

func (d *datagram) readLoop() {
	buf := make([]byte, recvpool.DefaultCapacity)

	for {
		if d.suspended.Load() {
			select {
			case <-d.resume:
			case <-d.done:
				return
			}
			continue
		}

		n, addr, err := d.conn.ReadFrom(buf)
		// A read that was already blocked when SuspendRecv ran holds its
		// datagram until ResumeRecv.
		for n > 0 && d.suspended.Load() {
			select {
			case <-d.resume:
			case <-d.done:
				return
			}
		}
		if n > 0 {
			if _, werr := d.pool.Write(buf[:n]); werr != nil {
				d.fail(werr)
				return
			}
			d.obs.OnRecv(d.self, addr)
		}

		if err != nil {
			if d.ignorable(err) {
				continue
			}
			d.fail(err)
			return
		}
	}
}

func (d *datagram) ignorable(err error) bool {
	if d.resetAsError.Load() {
		return false
	}
	return stderrors.Is(err, syscall.ECONNREFUSED) || stderrors.Is(err, syscall.ECONNRESET)
}

// Send writes buf to remote when non-nil, otherwise to the transport's
// default remote (the dialed peer for a connected Udp client, the group
// address for Mcast). Datagram sockets never report SendBusy: a UDP write
// either succeeds, best-effort, or fails outright.
func (d *datagram) Send(buf []byte, actionID int64, remote net.Addr) (SendResult, error) {
	if d.closed.Load() {
		return 0, ErrTransportClosed
	}

	target := remote
	if target == nil {
		target = d.remote
	}

	d.lastAction.Store(actionID)

	var err error
	if target != nil {
		_, err = d.conn.WriteTo(buf, target)
	} else if c, ok := d.conn.(net.Conn); ok {
		_, err = c.Write(buf)
	} else {
		return 0, ErrNilConnection
	}

	if err != nil && !d.ignorable(err) {
		return 0, err
	}

	return SendOK, nil
}

func (d *datagram) fail(err error) {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.StopHeartbeat()
	close(d.done)
	_ = d.conn.Close()
	d.obs.OnClose(d.self, err)
}

func (d *datagram) Close() error {
	d.fail(nil)
	return nil
}

// NewUDP wraps conn (typically dialed via net.DialUDP so Send/ReadFrom have
// a default peer) as a UDPTransport. remoteDefault may be nil for a
// not-yet-bound client; it is then the first Send's remote argument that
// must be non-nil.
func NewUDP(conn net.PacketConn, remoteDefault net.Addr, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (UDPTransport, error) {
	return newDatagram(conn, remoteDefault, react, obs, poolCapacity, log)
}
