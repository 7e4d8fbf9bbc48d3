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

package session

import (
	"context"
	"crypto/rand"
	"net"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/transport"
)

// udpxRetryInterval is how often a Udp-Ex server re-sends its sync packet
// while waiting for the client's reciprocal echo, per spec.md §4.9's "the
// server rebroadcasts its SYNC until it sees a reciprocal sync or times
// out".
const udpxRetryInterval = 500 * time.Millisecond

// syncUdpxClient runs the client half of the Udp-Ex 3-way nonce exchange:
// send a sync carrying a fresh nonce, wait for the server's own sync, and
// echo it back as the reciprocal confirmation. The client's own nonce is
// what binds the subsequent RTP_SESSION_INFO password hash.
func syncUdpxClient(ctx context.Context, conn *net.UDPConn, timeout time.Duration) (nonce [14]byte, err error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err = conn.SetDeadline(deadline); err != nil {
		return nonce, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	if _, err = rand.Read(nonce[:]); err != nil {
		return nonce, err
	}

	out := rtp.UdpxSync{Version: 1, Nonce: nonce}
	ob, err := out.MarshalBinary()
	if err != nil {
		return nonce, err
	}
	if _, err = conn.Write(ob); err != nil {
		return nonce, err
	}

	buf := make([]byte, 32)
	for {
		n, rerr := conn.Read(buf)
		if rerr != nil {
			return nonce, rerr
		}

		var reply rtp.UdpxSync
		if uerr := reply.UnmarshalBinary(buf[:n]); uerr != nil {
			continue
		}

		eb, merr := reply.MarshalBinary()
		if merr != nil {
			return nonce, merr
		}
		if _, err = conn.Write(eb); err != nil {
			return nonce, err
		}
		return nonce, nil
	}
}

// syncUdpxServer runs the server half: wait for the client's first sync
// (which both learns and binds its remote address), then resend its own
// sync every udpxRetryInterval until the client echoes it back or timeout
// elapses. Returns the client's address and the nonce it sent, which binds
// the password hash the client used for RTP_SESSION_INFO.
func syncUdpxServer(ctx context.Context, conn *net.UDPConn, timeout time.Duration) (remote *net.UDPAddr, clientNonce [14]byte, err error) {
	overall := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(overall) {
		overall = dl
	}

	buf := make([]byte, 32)

	if err = conn.SetReadDeadline(overall); err != nil {
		return nil, clientNonce, err
	}
	n, from, rerr := conn.ReadFromUDP(buf)
	if rerr != nil {
		return nil, clientNonce, rerr
	}

	var first rtp.UdpxSync
	if uerr := first.UnmarshalBinary(buf[:n]); uerr != nil {
		return nil, clientNonce, uerr
	}
	clientNonce = first.Nonce
	remote = from

	var mine [14]byte
	if _, err = rand.Read(mine[:]); err != nil {
		return nil, clientNonce, err
	}
	out := rtp.UdpxSync{Version: 1, Nonce: mine}
	ob, err := out.MarshalBinary()
	if err != nil {
		return nil, clientNonce, err
	}

	if _, err = conn.WriteToUDP(ob, remote); err != nil {
		return nil, clientNonce, err
	}

	for {
		if time.Now().After(overall) {
			return nil, clientNonce, ErrTimeout
		}

		step := overall
		if retry := time.Now().Add(udpxRetryInterval); retry.Before(step) {
			step = retry
		}
		_ = conn.SetReadDeadline(step)

		n, from, rerr = conn.ReadFromUDP(buf)
		if rerr != nil {
			if _, err = conn.WriteToUDP(ob, remote); err != nil {
				return nil, clientNonce, err
			}
			continue
		}

		var echoed rtp.UdpxSync
		if uerr := echoed.UnmarshalBinary(buf[:n]); uerr != nil {
			continue
		}
		if echoed.Nonce == mine && from.String() == remote.String() {
			return remote, clientNonce, nil
		}
	}
}

// serverSessionInfoExchangeUDP is serverSessionInfoExchange's counterpart
// for a server-side Udp-Ex socket: conn is not connected to remote (it is
// still the listening socket the sync ran on), so the exchange must use
// WriteToUDP/ReadFromUDP instead of the plain net.Conn Write/Read the TCP
// path and the connected Udp-Ex client path rely on, and must ignore any
// datagram not sent from remote.
func serverSessionInfoExchangeUDP(ctx context.Context, conn *net.UDPConn, remote *net.UDPAddr, timeout time.Duration, nonce []byte, localVersion uint16, sessionType rtp.SessionType, password string) (Info, error) {
	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return Info{}, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	want := HashPassword(nonce, password)

	var req rtp.SessionInfo
	for {
		buf := make([]byte, 160)
		n, from, rerr := conn.ReadFromUDP(buf)
		if rerr != nil {
			return Info{}, rerr
		}
		if from.String() != remote.String() {
			continue
		}
		if uerr := req.UnmarshalBinary(buf[:n]); uerr != nil {
			return Info{}, uerr
		}
		break
	}

	if !verifyPasswordHash(req.PasswordHash, want) {
		return Info{}, ErrPasswordMismatch
	}

	ack := rtp.SessionAck{Version: localVersion}
	ab, err := ack.MarshalBinary()
	if err != nil {
		return Info{}, err
	}
	if _, err = conn.WriteToUDP(ab, remote); err != nil {
		return Info{}, err
	}

	return Info{
		LocalVersion:  localVersion,
		RemoteVersion: req.LocalVersion,
		SessionType:   sessionType,
		MmType:        req.MmType,
		PackMode:      req.PackMode,
		SomeId:        req.SomeId,
		MmId:          req.MmId,
		InSrcMmId:     req.InSrcMmId,
		OutSrcMmId:    req.OutSrcMmId,
		PasswordHash:  req.PasswordHash,
		UserData:      req.UserData,
	}, nil
}

// NewUdpExClient performs the Udp-Ex 3-way sync over conn, then the framed
// RTP_SESSION_INFO/RTP_SESSION_ACK exchange of §4.9 over the same socket,
// and finally wraps conn as a UDPTransport bound to the server's address.
// conn must already be connected (net.DialUDP) so its Write/Read target the
// server directly once the sync has learned no third party is involved.
func NewUdpExClient(ctx context.Context, conn *net.UDPConn, react reactor.Reactor, poolCapacity int, info Info, password string, timeout time.Duration, obs Observer, log liblog.Logger) (Session, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	nonce, err := syncUdpxClient(ctx, conn, timeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	resolved, err := clientSessionInfoExchange(ctx, conn, timeout, info, nonce[:], password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	s, err := newSession(resolved, react, obs, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	t, err := transport.NewUDP(conn, conn.RemoteAddr(), react, s, poolCapacity, s.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.trans = t

	s.enterReady()
	return s, nil
}

// NewUdpExServer waits for a client's Udp-Ex sync on conn (a socket not yet
// bound to a remote peer), completes the sync, then runs the server side of
// the RTP_SESSION_INFO exchange and wraps conn as a UDPTransport bound to
// the now-known client address, so the datagram transport's Send calls
// WriteToUDP the right peer instead of relying on conn being connected.
func NewUdpExServer(ctx context.Context, conn *net.UDPConn, react reactor.Reactor, poolCapacity int, localVersion uint16, password string, timeout time.Duration, obs Observer, log liblog.Logger) (Session, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	remote, nonce, err := syncUdpxServer(ctx, conn, timeout)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err = conn.SetReadDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	info, err := serverSessionInfoExchangeUDP(ctx, conn, remote, timeout, nonce[:], localVersion, rtp.SessionUDPServerEx, password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	s, err := newSession(info, react, obs, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	t, err := transport.NewUDP(conn, remote, react, s, poolCapacity, s.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.trans = t

	s.enterReady()
	return s, nil
}
