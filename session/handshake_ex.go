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
	"io"
	"net"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/transport"
)

// DefaultHandshakeTimeout bounds the RTP_SESSION_INFO/RTP_SESSION_ACK
// exchange of spec.md §4.9, step 3-5.
const DefaultHandshakeTimeout = 10 * time.Second

// clientSessionInfoExchange runs spec.md §4.9 step 3-5 from the client
// side: compute the password hash from nonce, send a framed
// RTP_SESSION_INFO built from info, and wait for RTP_SESSION_ACK. It only
// drives conn directly - no Session or Transport exists yet - so it is
// shared by both the TCP/TLS-Ex and Udp-Ex constructors, which differ only
// in which transport.New* wraps conn afterward.
func clientSessionInfoExchange(ctx context.Context, conn net.Conn, timeout time.Duration, info Info, nonce []byte, password string) (Info, error) {
	info.PasswordHash = HashPassword(nonce, password)

	var ack rtp.SessionAck
	err := runHandshakeIO(ctx, conn, timeout, func() error {
		req := rtp.SessionInfo{
			LocalVersion: info.LocalVersion,
			SessionType:  info.SessionType,
			MmType:       info.MmType,
			PackMode:     info.PackMode,
			PasswordHash: info.PasswordHash,
			SomeId:       info.SomeId,
			MmId:         info.MmId,
			InSrcMmId:    info.InSrcMmId,
			OutSrcMmId:   info.OutSrcMmId,
			UserData:     info.UserData,
		}
		b, merr := req.MarshalBinary()
		if merr != nil {
			return merr
		}
		if werr := writeFull(conn, b); werr != nil {
			return werr
		}

		ackBuf := make([]byte, 32)
		if _, rerr := io.ReadFull(conn, ackBuf); rerr != nil {
			return rerr
		}
		return ack.UnmarshalBinary(ackBuf)
	})
	if err != nil {
		return Info{}, err
	}

	info.RemoteVersion = ack.Version
	return info, nil
}

// serverSessionInfoExchange runs spec.md §4.9 step 3-5 from the server
// side: read the client's framed RTP_SESSION_INFO, verify its password
// hash against nonce and password, and reply with RTP_SESSION_ACK.
func serverSessionInfoExchange(ctx context.Context, conn net.Conn, timeout time.Duration, nonce []byte, localVersion uint16, sessionType rtp.SessionType, password string) (Info, error) {
	want := HashPassword(nonce, password)

	var req rtp.SessionInfo
	err := runHandshakeIO(ctx, conn, timeout, func() error {
		buf := make([]byte, 160)
		if _, rerr := io.ReadFull(conn, buf); rerr != nil {
			return rerr
		}
		if uerr := req.UnmarshalBinary(buf); uerr != nil {
			return uerr
		}
		if !verifyPasswordHash(req.PasswordHash, want) {
			return ErrPasswordMismatch
		}

		ack := rtp.SessionAck{Version: localVersion}
		ab, merr := ack.MarshalBinary()
		if merr != nil {
			return merr
		}
		return writeFull(conn, ab)
	})
	if err != nil {
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

// NewExClient runs the client side of the extended session handshake over
// conn (already past the §4.5 nonce exchange and, for the Ssl flavor, a
// completed TLS handshake) and, on success, wraps conn as a stream
// transport and transitions the returned Session to Ready. nonce is the
// value the extended acceptor/connector handed the caller; password is
// hashed against it to build RTP_SESSION_INFO.PasswordHash.
func NewExClient(ctx context.Context, conn net.Conn, nonce [32]byte, react reactor.Reactor, poolCapacity int, info Info, password string, timeout time.Duration, obs Observer, log liblog.Logger) (Session, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	s, err := newSession(info, react, obs, log)
	if err != nil {
		return nil, err
	}
	s.isStream.Store(true)
	s.state.Store(uint32(StateHandshaking))

	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	resolved, err := clientSessionInfoExchange(ctx, conn, timeout, info, nonce[:], password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.info = resolved

	t, err := transport.NewTCP(conn, react, s, poolCapacity, s.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.trans = t

	s.enterReady()
	return s, nil
}

// NewExServer runs the server side of the extended session handshake over
// conn: it reads the client's RTP_SESSION_INFO, verifies its password hash
// against nonce and password, and replies with RTP_SESSION_ACK. On a
// mismatch conn is closed and ErrPasswordMismatch is returned without
// building a Session.
func NewExServer(ctx context.Context, conn net.Conn, nonce [32]byte, react reactor.Reactor, poolCapacity int, localVersion uint16, sessionType rtp.SessionType, password string, timeout time.Duration, obs Observer, log liblog.Logger) (Session, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}

	info, err := serverSessionInfoExchange(ctx, conn, timeout, nonce[:], localVersion, sessionType, password)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	s, err := newSession(info, react, obs, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.isStream.Store(true)

	t, err := transport.NewTCP(conn, react, s, poolCapacity, s.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	s.trans = t

	s.enterReady()
	return s, nil
}
