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

// Package rtp implements the wire structures exchanged during the extended
// handshake and the RTP packet framing used by the session layer: the
// handshake payloads (SessionInfo/SessionAck/UdpxSync) and the packet
// extension/header pair prepended to every media or message datagram.
// Every multi-byte scalar is network byte order (big-endian); accessors
// bounds-check rather than ever handing callers a pointer into the
// underlying buffer.
package rtp

import (
	"encoding/binary"
)

// MMType identifies the media kind carried by a session/packet.
type MMType uint8

const (
	MMTMsg      MMType = 11
	MMTMsgII    MMType = 12
	MMTMsgIII   MMType = 13
	MMTMsgMin   MMType = 11
	MMTMsgMax   MMType = 20
	MMTAudio    MMType = 21
	MMTAudioMin MMType = 21
	MMTAudioMax MMType = 30
	MMTVideo    MMType = 31
	MMTVideoII  MMType = 32
	MMTVideoMin MMType = 31
	MMTVideoMax MMType = 40
	MMTCtrl     MMType = 41
	MMTCtrlMin  MMType = 41
	MMTCtrlMax  MMType = 50
)

// PackMode selects how a tcp/ssl-ex session frames its payloads on the wire.
type PackMode uint8

const (
	PackModeDefault PackMode = 0 // ext8 + rfc3550 header + payload
	PackModeTcp2    PackMode = 2 // len2 + payload
	PackModeTcp4    PackMode = 4 // len4 + payload
)

// SessionType identifies the transport/protocol combination of a session.
type SessionType uint8

const (
	SessionUDPClient   SessionType = 1
	SessionUDPServer   SessionType = 2
	SessionTCPClient   SessionType = 3
	SessionTCPServer   SessionType = 4
	SessionUDPClientEx SessionType = 5
	SessionUDPServerEx SessionType = 6
	SessionTCPClientEx SessionType = 7
	SessionTCPServerEx SessionType = 8
	SessionSSLClientEx SessionType = 9
	SessionSSLServerEx SessionType = 10
	SessionMcast       SessionType = 11
	SessionMcastEx     SessionType = 12
)

// Ext is the 8-byte packet extension prepended ahead of RtpHeader on every
// framed rtp packet, carrying routing and frame-boundary metadata that RFC-3550
// itself has no room for.
type Ext struct {
	MmId               uint32
	MmType             MMType
	KeyFrame           bool
	FirstPacketOfFrame bool
	HdrAndPayloadSize  uint16
}

const extSize = 8

// MarshalBinary encodes the extension in its 8-byte wire form.
func (e Ext) MarshalBinary() ([]byte, error) {
	b := make([]byte, extSize)
	binary.BigEndian.PutUint32(b[0:4], e.MmId)
	b[4] = byte(e.MmType)

	var flags byte
	if e.KeyFrame {
		flags |= 0x01
	}
	if e.FirstPacketOfFrame {
		flags |= 0x02
	}
	b[5] = flags

	binary.BigEndian.PutUint16(b[6:8], e.HdrAndPayloadSize)
	return b, nil
}

// UnmarshalBinary decodes an Ext from its 8-byte wire form.
func (e *Ext) UnmarshalBinary(b []byte) error {
	if len(b) < extSize {
		return ErrShortBuffer
	}

	e.MmId = binary.BigEndian.Uint32(b[0:4])
	e.MmType = MMType(b[4])
	e.KeyFrame = b[5]&0x01 != 0
	e.FirstPacketOfFrame = b[5]&0x02 != 0
	e.HdrAndPayloadSize = binary.BigEndian.Uint16(b[6:8])
	return nil
}

// RtpHeader is the RFC-3550/3551 fixed header: version, padding/extension
// flags, marker/payload-type, sequence, timestamp, and a 4-byte tail that is
// either an ssrc (udp) or a tcp2/tcp4 length field depending on PackMode.
type RtpHeader struct {
	Version        uint8
	Padding        bool
	Extension      bool
	CsrcCount      uint8
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	Ssrc           uint32
}

const rtpHeaderSize = 12

// MarshalBinary encodes the header in its 12-byte RFC-3550 wire form.
func (h RtpHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, rtpHeaderSize)

	b[0] = (h.Version&0x03)<<6 | boolBit(h.Padding)<<5 | boolBit(h.Extension)<<4 | (h.CsrcCount & 0x0f)
	b[1] = boolBit(h.Marker)<<7 | (h.PayloadType & 0x7f)

	binary.BigEndian.PutUint16(b[2:4], h.SequenceNumber)
	binary.BigEndian.PutUint32(b[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(b[8:12], h.Ssrc)
	return b, nil
}

// UnmarshalBinary decodes a RtpHeader from its 12-byte RFC-3550 wire form.
func (h *RtpHeader) UnmarshalBinary(b []byte) error {
	if len(b) < rtpHeaderSize {
		return ErrShortBuffer
	}

	h.Version = b[0] >> 6 & 0x03
	h.Padding = b[0]&0x20 != 0
	h.Extension = b[0]&0x10 != 0
	h.CsrcCount = b[0] & 0x0f

	h.Marker = b[1]&0x80 != 0
	h.PayloadType = b[1] & 0x7f

	h.SequenceNumber = binary.BigEndian.Uint16(b[2:4])
	h.Timestamp = binary.BigEndian.Uint32(b[4:8])
	h.Ssrc = binary.BigEndian.Uint32(b[8:12])
	return nil
}

// Len2 reinterprets the ssrc tail as a tcp2 payload length (low 16 bits).
func (h RtpHeader) Len2() uint16 {
	return uint16(h.Ssrc)
}

// SetLen2 packs a tcp2 payload length into the ssrc tail.
func (h *RtpHeader) SetLen2(n uint16) {
	h.Ssrc = uint32(n)
}

// Len4 reinterprets the ssrc tail as a tcp4 payload length.
func (h RtpHeader) Len4() uint32 {
	return h.Ssrc
}

// SetLen4 packs a tcp4 payload length into the ssrc tail.
func (h *RtpHeader) SetLen4(n uint32) {
	h.Ssrc = n
}

func boolBit(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SessionInfo is the RTP_SESSION_INFO handshake payload a client sends after
// the nonce exchange, and a server validates against its configured password.
type SessionInfo struct {
	LocalVersion  uint16
	RemoteVersion uint16
	SessionType   SessionType
	MmType        MMType
	PackMode      PackMode
	PasswordHash  [32]byte
	SomeId        uint32
	MmId          uint32
	InSrcMmId     uint32
	OutSrcMmId    uint32
	UserData      [64]byte
}

const sessionInfoSize = 2 + 2 + 1 + 1 + 1 + 1 + 32 + 40 + 4 + 4 + 4 + 4 + 64

// MarshalBinary encodes SessionInfo in its fixed 160-byte wire form,
// zero-filling the two reserved ranges.
func (s SessionInfo) MarshalBinary() ([]byte, error) {
	b := make([]byte, sessionInfoSize)

	binary.BigEndian.PutUint16(b[0:2], s.LocalVersion)
	binary.BigEndian.PutUint16(b[2:4], s.RemoteVersion)
	b[4] = byte(s.SessionType)
	b[5] = byte(s.MmType)
	b[6] = byte(s.PackMode)
	// b[7] reserved1, zero

	copy(b[8:40], s.PasswordHash[:])
	// b[40:80] reserved2, zero

	binary.BigEndian.PutUint32(b[80:84], s.SomeId)
	binary.BigEndian.PutUint32(b[84:88], s.MmId)
	binary.BigEndian.PutUint32(b[88:92], s.InSrcMmId)
	binary.BigEndian.PutUint32(b[92:96], s.OutSrcMmId)
	copy(b[96:160], s.UserData[:])

	return b, nil
}

// UnmarshalBinary decodes SessionInfo from its fixed 160-byte wire form.
// Reserved ranges are ignored, not validated, per the wire's own
// forward-compatibility recommendation.
func (s *SessionInfo) UnmarshalBinary(b []byte) error {
	if len(b) < sessionInfoSize {
		return ErrShortBuffer
	}

	s.LocalVersion = binary.BigEndian.Uint16(b[0:2])
	s.RemoteVersion = binary.BigEndian.Uint16(b[2:4])
	s.SessionType = SessionType(b[4])
	s.MmType = MMType(b[5])
	s.PackMode = PackMode(b[6])

	copy(s.PasswordHash[:], b[8:40])

	s.SomeId = binary.BigEndian.Uint32(b[80:84])
	s.MmId = binary.BigEndian.Uint32(b[84:88])
	s.InSrcMmId = binary.BigEndian.Uint32(b[88:92])
	s.OutSrcMmId = binary.BigEndian.Uint32(b[92:96])
	copy(s.UserData[:], b[96:160])

	return nil
}

// SessionAck is the RTP_SESSION_ACK a server returns once a SessionInfo's
// password hash matches its own.
type SessionAck struct {
	Version uint16
}

const sessionAckSize = 2 + 30

// MarshalBinary encodes SessionAck in its fixed 32-byte wire form.
func (a SessionAck) MarshalBinary() ([]byte, error) {
	b := make([]byte, sessionAckSize)
	binary.BigEndian.PutUint16(b[0:2], a.Version)
	return b, nil
}

// UnmarshalBinary decodes SessionAck from its fixed 32-byte wire form.
func (a *SessionAck) UnmarshalBinary(b []byte) error {
	if len(b) < sessionAckSize {
		return ErrShortBuffer
	}
	a.Version = binary.BigEndian.Uint16(b[0:2])
	return nil
}

// UdpxSync is the 3-way nonce-exchange packet a udp-ex session uses to bind
// the client's remote endpoint before the framed SessionInfo exchange.
type UdpxSync struct {
	Version uint16
	Nonce   [14]byte
}

const udpxSyncSize = 2 + 14 + 14 + 2

// MarshalBinary encodes UdpxSync in its fixed 32-byte wire form, computing
// the trailing checksum as the unsigned 16-bit sum of the nonce bytes.
func (s UdpxSync) MarshalBinary() ([]byte, error) {
	b := make([]byte, udpxSyncSize)
	binary.BigEndian.PutUint16(b[0:2], s.Version)
	// b[2:16] reserved, zero
	copy(b[16:30], s.Nonce[:])
	binary.BigEndian.PutUint16(b[30:32], s.Checksum())
	return b, nil
}

// UnmarshalBinary decodes UdpxSync from its fixed 32-byte wire form. It does
// not validate the checksum; callers that need to reject a mismatched sync
// should compare UnmarshalBinary's result against Checksum() themselves.
func (s *UdpxSync) UnmarshalBinary(b []byte) error {
	if len(b) < udpxSyncSize {
		return ErrShortBuffer
	}
	s.Version = binary.BigEndian.Uint16(b[0:2])
	copy(s.Nonce[:], b[16:30])
	return nil
}

// Checksum is the unsigned 16-bit sum of the nonce bytes.
func (s UdpxSync) Checksum() uint16 {
	var sum uint16
	for _, v := range s.Nonce {
		sum += uint16(v)
	}
	return sum
}
