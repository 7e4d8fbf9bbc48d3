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

import (
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/session"
)

// DefaultHandshakeTimeout bounds the RTP_SESSION_INFO/ACK+HEADER0 exchange
// every messaging session runs before it is handed to its owner.
const DefaultHandshakeTimeout = 10 * time.Second

// UserData's layout within RTP_SESSION_INFO's 64-byte free-form field: the
// requester's desired identity (zero user_id asks the server to assign an
// ephemeral one), a one-byte c2s flag, and whatever application-level bytes
// the caller wants to carry across the handshake. spec.md §9's open
// question (a) asks any reserved range be zero-filled; the tail past
// appData is exactly that.
const (
	userDataUserOffset = 0
	userDataC2SOffset  = UserWireSize
	userDataAppOffset  = UserWireSize + 1
)

func encodeUserData(req User, c2sUser bool, appData []byte) ([64]byte, error) {
	var out [64]byte

	ub, err := req.MarshalBinary()
	if err != nil {
		return out, err
	}
	copy(out[userDataUserOffset:], ub)

	if c2sUser {
		out[userDataC2SOffset] = 1
	}
	copy(out[userDataAppOffset:], appData)

	return out, nil
}

func decodeUserData(b [64]byte) (req User, c2sUser bool, appData []byte) {
	_ = req.UnmarshalBinary(b[userDataUserOffset : userDataUserOffset+UserWireSize])
	c2sUser = b[userDataC2SOffset] != 0

	tail := b[userDataAppOffset:]
	end := len(tail)
	for end > 0 && tail[end-1] == 0 {
		end--
	}
	appData = append([]byte{}, tail[:end]...)
	return
}

func ipToUint32(ip net.IP) uint32 {
	v4 := ip.To4()
	if v4 == nil {
		return 0
	}
	return binary.BigEndian.Uint32(v4)
}

func uint32ToIP(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// clientHandshake runs the client side of the messaging handshake of
// spec.md §4.10's fig.: send RTP_SESSION_INFO carrying the password hash
// and the requested identity, then read back RTP_SESSION_ACK followed by
// RTP_MSG_HEADER0.
func clientHandshake(conn net.Conn, timeout time.Duration, nonce [32]byte, password string, req User, c2sUser bool, appData []byte) (Header0, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Header0{}, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	ud, err := encodeUserData(req, c2sUser, appData)
	if err != nil {
		return Header0{}, err
	}

	info := rtp.SessionInfo{
		LocalVersion: ProtocolVersion,
		SessionType:  rtp.SessionTCPClientEx,
		MmType:       rtp.MMTMsg,
		PackMode:     rtp.PackModeTcp4,
		PasswordHash: session.HashPassword(nonce[:], password),
		UserData:     ud,
	}

	ib, err := info.MarshalBinary()
	if err != nil {
		return Header0{}, err
	}
	if _, err = conn.Write(ib); err != nil {
		return Header0{}, err
	}

	ackBuf := make([]byte, 32)
	if _, err = io.ReadFull(conn, ackBuf); err != nil {
		return Header0{}, err
	}
	var ack rtp.SessionAck
	if err = ack.UnmarshalBinary(ackBuf); err != nil {
		return Header0{}, err
	}

	h0Buf := make([]byte, Header0WireSize)
	if _, err = io.ReadFull(conn, h0Buf); err != nil {
		return Header0{}, err
	}
	var h0 Header0
	if err = h0.UnmarshalBinary(h0Buf); err != nil {
		return Header0{}, err
	}

	return h0, nil
}

// serverHandshakeResult is what a server/c2s learns once check is invoked
// and accepts the connection.
type serverHandshakeResult struct {
	Requested User
	Assigned  User
	C2SUser   bool
	AppData   []byte
	PublicIP  net.IP
}

// checkFunc mirrors Observer.OnCheckUser's shape, kept local so c2s (which
// forwards the decision upstream rather than deciding itself) can supply a
// different strategy than Server's direct observer call.
type checkFunc func(req User, publicIP net.IP, c2sUser bool, hash [32]byte, nonce [32]byte, appData []byte) (accept bool, assigned User, respAppData []byte)

// serverHandshake runs the server side of the messaging handshake: read
// RTP_SESSION_INFO, let check decide, and on accept reply with
// RTP_SESSION_ACK followed by RTP_MSG_HEADER0.
func serverHandshake(conn net.Conn, timeout time.Duration, nonce [32]byte, check checkFunc) (serverHandshakeResult, error) {
	if timeout <= 0 {
		timeout = DefaultHandshakeTimeout
	}
	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return serverHandshakeResult{}, err
	}
	defer func() { _ = conn.SetDeadline(time.Time{}) }()

	buf := make([]byte, 160)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return serverHandshakeResult{}, err
	}
	var info rtp.SessionInfo
	if err := info.UnmarshalBinary(buf); err != nil {
		return serverHandshakeResult{}, err
	}

	req, c2sUser, appData := decodeUserData(info.UserData)

	var publicIP net.IP
	if ra, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		publicIP = ra.IP
	}

	accept, assigned, respAppData := check(req, publicIP, c2sUser, info.PasswordHash, nonce, appData)
	if !accept {
		return serverHandshakeResult{}, ErrPasswordMismatch
	}

	ack := rtp.SessionAck{Version: ProtocolVersion}
	ab, err := ack.MarshalBinary()
	if err != nil {
		return serverHandshakeResult{}, err
	}
	if _, err = conn.Write(ab); err != nil {
		return serverHandshakeResult{}, err
	}

	h0 := Header0{Version: ProtocolVersion, User: assigned, PublicIP: ipToUint32(publicIP)}
	h0b, err := h0.MarshalBinary()
	if err != nil {
		return serverHandshakeResult{}, err
	}
	if _, err = conn.Write(h0b); err != nil {
		return serverHandshakeResult{}, err
	}

	return serverHandshakeResult{Requested: req, Assigned: assigned, C2SUser: c2sUser, AppData: respAppData, PublicIP: publicIP}, nil
}
