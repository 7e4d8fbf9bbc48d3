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

// Package msg implements the messaging overlay of spec.md §4.10: a routable
// user identity (RTP_MSG_USER), the header a server hands a freshly
// authenticated client (RTP_MSG_HEADER0) and the per-message header framing
// every exchange thereafter (RTP_MSG_HEADER). Every multi-byte scalar is
// network byte order; accessors bounds-check rather than ever handing
// callers a pointer into the underlying buffer, matching the convention
// rtp's own wire structs already follow.
package msg

import "encoding/binary"

// ProtocolVersion is the messaging handshake's version field value, per
// spec.md §6's RTP_MSG_HEADER0 wire form.
const ProtocolVersion uint16 = 2

// User is the routable triple of spec.md §3/GLOSSARY: (class_id, user_id,
// inst_id). UserID only uses its low 40 bits on the wire; higher bits are
// rejected by MarshalBinary.
type User struct {
	ClassID uint8
	UserID  uint64
	InstID  uint16
}

// UserWireSize is RTP_MSG_USER's fixed wire length.
const UserWireSize = 8

const maxUserID = 1<<40 - 1

// IsRoot reports whether u is the well-known root/admin identity
// (class_id=1, user_id=1), per rtp_msg.h's IsRoot.
func (u User) IsRoot() bool {
	return u.ClassID == 1 && u.UserID == 1
}

// MarshalBinary encodes u in its fixed 8-byte wire form: class_id(1),
// user_id(5, big-endian), inst_id(be16).
func (u User) MarshalBinary() ([]byte, error) {
	if u.UserID > maxUserID {
		return nil, ErrShortUser
	}

	b := make([]byte, UserWireSize)
	b[0] = u.ClassID
	b[1] = byte(u.UserID >> 32)
	b[2] = byte(u.UserID >> 24)
	b[3] = byte(u.UserID >> 16)
	b[4] = byte(u.UserID >> 8)
	b[5] = byte(u.UserID)
	binary.BigEndian.PutUint16(b[6:8], u.InstID)
	return b, nil
}

// UnmarshalBinary decodes u from its fixed 8-byte wire form.
func (u *User) UnmarshalBinary(b []byte) error {
	if len(b) < UserWireSize {
		return ErrShortUser
	}

	u.ClassID = b[0]
	u.UserID = uint64(b[1])<<32 | uint64(b[2])<<24 | uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
	u.InstID = binary.BigEndian.Uint16(b[6:8])
	return nil
}

// Header0WireSize is RTP_MSG_HEADER0's fixed wire length: version(2) +
// user(8) + reserved1(2) + the union's larger arm, reserved2[24].
const Header0WireSize = 2 + UserWireSize + 2 + 24

// Header0 is RTP_MSG_HEADER0, the frame a server sends a client immediately
// after RTP_SESSION_ACK once the messaging handshake accepts it: the
// client's (possibly server-assigned) identity and the public IP the server
// observed the connection arrive from.
type Header0 struct {
	Version  uint16
	User     User
	PublicIP uint32
}

// MarshalBinary encodes h in its fixed 36-byte wire form. PublicIP occupies
// the first four bytes of the reserved2/publicIp union arm; the rest of the
// union is zero-filled.
func (h Header0) MarshalBinary() ([]byte, error) {
	b := make([]byte, Header0WireSize)
	binary.BigEndian.PutUint16(b[0:2], h.Version)

	ub, err := h.User.MarshalBinary()
	if err != nil {
		return nil, err
	}
	copy(b[2:10], ub)
	// b[10:12] reserved1, zero

	binary.BigEndian.PutUint32(b[12:16], h.PublicIP)
	// b[16:36] tail of the reserved2/publicIp union, zero

	return b, nil
}

// UnmarshalBinary decodes h from its fixed 36-byte wire form.
func (h *Header0) UnmarshalBinary(b []byte) error {
	if len(b) < Header0WireSize {
		return ErrShortHeader
	}

	h.Version = binary.BigEndian.Uint16(b[0:2])
	if err := h.User.UnmarshalBinary(b[2:10]); err != nil {
		return err
	}
	h.PublicIP = binary.BigEndian.Uint32(b[12:16])
	return nil
}

// MaxDestinations is the wire ceiling on a single Header's destination
// list: dstUserCount is one byte.
const MaxDestinations = 255

// Header is RTP_MSG_HEADER, prepended to every message's payload once a
// session has moved past the messaging handshake: charset, the sender's
// authenticated identity, and up to MaxDestinations recipients.
type Header struct {
	Charset  uint16
	SrcUser  User
	DstUsers []User
}

// MarshalBinary encodes h followed by payload into one buffer, so callers
// send exactly one session packet per message.
func (h Header) MarshalBinary(payload []byte) ([]byte, error) {
	if len(h.DstUsers) > MaxDestinations {
		return nil, ErrTooManyDestinations
	}

	fixedSize := 2 + UserWireSize + 1 + 1
	size := fixedSize + len(h.DstUsers)*UserWireSize + len(payload)
	b := make([]byte, size)

	off := 0
	binary.BigEndian.PutUint16(b[off:], h.Charset)
	off += 2

	sb, err := h.SrcUser.MarshalBinary()
	if err != nil {
		return nil, err
	}
	copy(b[off:], sb)
	off += UserWireSize

	// b[off] reserved, zero
	off++

	b[off] = byte(len(h.DstUsers))
	off++

	for _, d := range h.DstUsers {
		db, derr := d.MarshalBinary()
		if derr != nil {
			return nil, derr
		}
		copy(b[off:], db)
		off += UserWireSize
	}

	copy(b[off:], payload)
	return b, nil
}

// UnmarshalHeader decodes a Header and returns the byte offset its payload
// starts at within b, so callers can slice b[n:] without a copy.
func UnmarshalHeader(b []byte) (h Header, n int, err error) {
	if len(b) < 2+UserWireSize+1+1 {
		return Header{}, 0, ErrShortHeader
	}

	off := 0
	h.Charset = binary.BigEndian.Uint16(b[off:])
	off += 2

	if err = h.SrcUser.UnmarshalBinary(b[off : off+UserWireSize]); err != nil {
		return Header{}, 0, err
	}
	off += UserWireSize

	off++ // reserved
	count := int(b[off])
	off++

	if len(b) < off+count*UserWireSize {
		return Header{}, 0, ErrShortHeader
	}

	if count > 0 {
		h.DstUsers = make([]User, count)
		for i := 0; i < count; i++ {
			if err = h.DstUsers[i].UnmarshalBinary(b[off : off+UserWireSize]); err != nil {
				return Header{}, 0, err
			}
			off += UserWireSize
		}
	}

	return h, off, nil
}
