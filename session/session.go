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

// Package session implements the state machine of spec.md §4.9 that turns a
// transport.Transport into a framed, heartbeating, optionally
// password-authenticated packet channel: Init → Handshaking → Ready →
// Closed. Plain sessions (UdpClient/Server, TcpClient/Server, Mcast) skip
// straight to Ready once their transport exists; extended sessions run the
// RTP_SESSION_INFO/RTP_SESSION_ACK exchange of §4.9 first, binding a
// password hash derived from the nonce the extended acceptor/connector (or,
// for Udp-Ex, a 3-way sync) produced.
package session

import (
	"context"
	"crypto/subtle"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	libtwl "github.com/nabbar/pronet/timewheel"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/transport"
)

// DefaultKeepaliveTimeout and DefaultHeartbeatPeriod are spec.md §4.9's
// defaults. The default heartbeat period is a third of the default
// keepalive timeout; StartHeartbeat does not clamp or check the pair.
const (
	DefaultKeepaliveTimeout = 60 * time.Second
	DefaultHeartbeatPeriod  = 20 * time.Second
)

// Observer receives the two upcalls a session ever makes to its owner.
type Observer interface {
	// OnOkSession fires once, the moment a session reaches Ready.
	OnOkSession(s Session)

	// OnCloseSession fires exactly once per session, whatever the cause:
	// a local Close, a transport OnClose, a handshake failure or a
	// heartbeat timeout (err will be ErrTimeout in that last case).
	OnCloseSession(s Session, err error, tcpConnected bool)

	// OnRecvPacket delivers one decoded, non-heartbeat frame.
	OnRecvPacket(s Session, f Frame)
}

// Session is the contract a caller drives once a transport has been wrapped
// per spec.md §4.9's state machine.
type Session interface {
	Info() Info
	State() State

	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// SendPacket frames payload per Info().PackMode and writes it
	// through the underlying transport.
	SendPacket(payload []byte) error

	// SendPacketByTimer sends payload exactly like SendPacket, at once
	// and in one Send; sendDuration is accepted but not used, so the
	// payload is not spread over time.
	SendPacketByTimer(payload []byte, sendDuration time.Duration) error

	StartHeartbeat()
	StopHeartbeat()

	// SetKeepaliveTimeout overrides DefaultKeepaliveTimeout for the
	// staleness check StartHeartbeat's timer runs on every fire.
	SetKeepaliveTimeout(d time.Duration)

	Close() error
}

// Builder constructs the underlying transport.Transport, with obs as its
// Observer. It is called exactly once, after the session object exists but
// before it is handed to callers, so a session can be each of its
// transport's Observer without a construction cycle.
type Builder func(obs transport.Observer) (transport.Transport, error)

type session struct {
	info Info
	obs  Observer
	react reactor.Reactor
	log  liblog.Logger

	trans transport.Transport

	state atomic.Uint32

	isStream atomic.Bool

	sendTick      atomic.Int64
	onSendTick    atomic.Int64
	peerAliveTick atomic.Int64

	actionSeq atomic.Int64

	heartbeatID atomic.Uint64
	keepalive   atomic.Int64

	closeOnce sync.Once
}

func newSession(info Info, react reactor.Reactor, obs Observer, log liblog.Logger) (*session, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}
	if log == nil {
		log = liblog.NewDiscard()
	}

	s := &session{info: info, react: react, obs: obs, log: log}
	s.state.Store(uint32(StateInit))
	s.keepalive.Store(int64(DefaultKeepaliveTimeout))
	return s, nil
}

// NewPlain builds a Session that skips the extended handshake entirely,
// covering UdpClient/Server, TcpClient/Server and Mcast session types: it
// builds its transport via build, then transitions straight to Ready. log
// is optional; a nil Logger falls back to a discard logger.
func NewPlain(info Info, react reactor.Reactor, obs Observer, build Builder, log liblog.Logger) (Session, error) {
	s, err := newSession(info, react, obs, log)
	if err != nil {
		return nil, err
	}

	t, err := build(s)
	if err != nil {
		return nil, err
	}
	s.trans = t

	switch info.SessionType {
	case rtp.SessionTCPClient, rtp.SessionTCPServer:
		s.isStream.Store(true)
	}

	s.enterReady()
	return s, nil
}

func (s *session) enterReady() {
	now := time.Now().UnixNano()
	s.peerAliveTick.Store(now)
	s.state.Store(uint32(StateReady))
	s.log.Entry(loglvl.InfoLevel, "session ready").
		FieldAdd("sessionType", s.info.SessionType).Log()
	s.obs.OnOkSession(s)
}

func (s *session) Info() Info   { return s.info }
func (s *session) State() State { return State(s.state.Load()) }

func (s *session) LocalAddr() net.Addr {
	if s.trans == nil {
		return nil
	}
	return s.trans.LocalAddr()
}

func (s *session) RemoteAddr() net.Addr {
	if s.trans == nil {
		return nil
	}
	return s.trans.RemoteAddr()
}

func (s *session) SendPacket(payload []byte) error {
	return s.SendPacketByTimer(payload, 0)
}

// SendPacketByTimer issues one immediate Send per call; the sendDuration
// argument is ignored and nothing is scheduled on the timer wheel.
func (s *session) SendPacketByTimer(payload []byte, _ time.Duration) error {
	if s.State() != StateReady {
		return ErrBadState
	}

	buf, err := EncodeFrame(s.info.PackMode, rtp.Ext{MmId: s.info.MmId, MmType: s.info.MmType}, rtp.RtpHeader{Version: 2}, payload)
	if err != nil {
		return err
	}

	id := s.actionSeq.Add(1)
	if _, err = s.trans.Send(buf, id, nil); err != nil {
		return err
	}
	s.sendTick.Store(time.Now().UnixNano())
	return nil
}

// StartHeartbeat arms this session's slot on the reactor's shared heartbeat
// wheel. The wheel's period is reactor-wide (spec.md §4.9's slotted
// distribution), so a session only registers onto it here; whoever owns the
// Reactor is responsible for calling Reactor.UpdateHeartbeatTimers with a
// period honoring the ≤ keepalive/2 constraint across every session sharing
// it.
func (s *session) StartHeartbeat() {
	id := s.react.SetupHeartbeatTimer(libtwl.HandlerFunc(s.onHeartbeatTimer), 0)
	s.heartbeatID.Store(id)
}

func (s *session) SetKeepaliveTimeout(d time.Duration) {
	if d > 0 {
		s.keepalive.Store(int64(d))
	}
}

func (s *session) StopHeartbeat() {
	id := s.heartbeatID.Swap(0)
	if id != 0 {
		s.react.CancelTimer(id)
	}
}

func (s *session) onHeartbeatTimer(id uint64, _ time.Time, _ int64) {
	if s.heartbeatID.Load() != id {
		return
	}
	if s.State() != StateReady {
		return
	}

	_, _ = s.trans.Send(EncodeHeartbeat(s.info.PackMode), s.actionSeq.Add(1), nil)

	keepalive := time.Duration(s.keepalive.Load())
	last := time.Unix(0, s.peerAliveTick.Load())
	if time.Since(last) >= keepalive {
		s.fail(ErrTimeout)
	}
}

// OnRecv implements transport.Observer.
func (s *session) OnRecv(t transport.Transport, _ net.Addr) {
	s.peerAliveTick.Store(time.Now().UnixNano())

	for {
		f, ok, err := TryDecodeFrame(t.Pool(), s.info.PackMode)
		if err != nil {
			s.fail(err)
			return
		}
		if !ok {
			return
		}
		if f.Heartbeat {
			continue
		}
		s.obs.OnRecvPacket(s, f)
	}
}

// OnSend implements transport.Observer.
func (s *session) OnSend(_ transport.Transport, _ int64) {
	s.onSendTick.Store(time.Now().UnixNano())
}

// OnClose implements transport.Observer.
func (s *session) OnClose(_ transport.Transport, err error) {
	s.fail(err)
}

// OnHeartbeat implements transport.Observer; the transport-level heartbeat
// upcall is unused here since sessions run their own heartbeat timer with
// session-specific framing, but the method is still required to satisfy
// transport.Observer.
func (s *session) OnHeartbeat(_ transport.Transport) {}

func (s *session) fail(err error) {
	s.closeOnce.Do(func() {
		s.StopHeartbeat()
		s.state.Store(uint32(StateClosed))
		tcpConnected := s.isStream.Load()
		e := s.log.Entry(loglvl.WarnLevel, "session closing on error")
		if err != nil {
			e = e.ErrorAdd(true, err)
		}
		e.Log()
		s.obs.OnCloseSession(s, err, tcpConnected)
	})
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		s.StopHeartbeat()
		s.state.Store(uint32(StateClosed))
		tcpConnected := s.isStream.Load()
		if s.trans != nil {
			_ = s.trans.Close()
		}
		s.obs.OnCloseSession(s, nil, tcpConnected)
	})
	return nil
}

// runHandshakeIO is the bounded, deadline-guarded send/recv helper the
// extended session handshake (and the Udp-Ex sync) is built from: it mirrors
// the handshake package's timeout discipline without depending on it, since
// the session handshake's shape (write-then-read for a client, read-then-
// write for a server) doesn't fit handshake.Handshaker's single send-then-
// recv contract.
func runHandshakeIO(ctx context.Context, conn net.Conn, timeout time.Duration, fn func() error) error {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	return fn()
}

func writeFull(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func verifyPasswordHash(got, want [32]byte) bool {
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}
