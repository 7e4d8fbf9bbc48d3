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
	"encoding/binary"

	"github.com/nabbar/pronet/recvpool"
	"github.com/nabbar/pronet/rtp"
)

// Payload size ceilings of spec.md §3: Default and Tcp2 share the small
// ceiling (a frame length fits a 16-bit field either way); Tcp4 gets the
// large one its 32-bit length field allows.
const (
	MaxPayloadDefault = 64*1024 - 1024
	MaxPayloadTcp2    = 64*1024 - 1024
	MaxPayloadTcp4    = 96 * 1024 * 1024
)

// EncodeHeartbeat builds the zero-length marker frame for mode: an 8-byte
// Ext with a zero size field for Default/Ex flavors, a 2-byte zero for
// Tcp2, a 4-byte zero for Tcp4.
func EncodeHeartbeat(mode rtp.PackMode) []byte {
	switch mode {
	case rtp.PackModeTcp2:
		return make([]byte, 2)
	case rtp.PackModeTcp4:
		return make([]byte, 4)
	default:
		eb, _ := rtp.Ext{}.MarshalBinary()
		return eb
	}
}

// EncodeFrame builds the wire form of one session packet. For
// PackModeDefault, ext.HdrAndPayloadSize is overwritten with the actual
// header+payload length; callers only need to set the routing fields
// (MmId/MmType/flags).
func EncodeFrame(mode rtp.PackMode, ext rtp.Ext, hdr rtp.RtpHeader, payload []byte) ([]byte, error) {
	switch mode {
	case rtp.PackModeTcp2:
		if len(payload) > MaxPayloadTcp2 {
			return nil, ErrOversizedFrame
		}
		b := make([]byte, 2+len(payload))
		binary.BigEndian.PutUint16(b[:2], uint16(len(payload)))
		copy(b[2:], payload)
		return b, nil

	case rtp.PackModeTcp4:
		if len(payload) > MaxPayloadTcp4 {
			return nil, ErrOversizedFrame
		}
		b := make([]byte, 4+len(payload))
		binary.BigEndian.PutUint32(b[:4], uint32(len(payload)))
		copy(b[4:], payload)
		return b, nil

	default:
		if len(payload) > MaxPayloadDefault {
			return nil, ErrOversizedFrame
		}
		hb, err := hdr.MarshalBinary()
		if err != nil {
			return nil, err
		}
		ext.HdrAndPayloadSize = uint16(len(hb) + len(payload))
		eb, err := ext.MarshalBinary()
		if err != nil {
			return nil, err
		}
		b := make([]byte, 0, len(eb)+len(hb)+len(payload))
		b = append(b, eb...)
		b = append(b, hb...)
		b = append(b, payload...)
		return b, nil
	}
}

// Frame is one decoded session packet, or a heartbeat marker when Heartbeat
// is true (in which case Ext/Header/Payload are zero values).
type Frame struct {
	Ext       rtp.Ext
	Header    rtp.RtpHeader
	Payload   []byte
	Heartbeat bool
}

// extWireSize is the wire length of a marshaled rtp.Ext; computed once
// rather than exporting rtp's internal size constant.
var extWireSize = func() int {
	b, _ := rtp.Ext{}.MarshalBinary()
	return len(b)
}()

var headerWireSize = func() int {
	b, _ := rtp.RtpHeader{}.MarshalBinary()
	return len(b)
}()

// TryDecodeFrame peeks pool for one complete frame under mode's framing
// discipline and, if found, consumes it. ok is false when pool does not yet
// hold a full frame; the caller should retry on the next OnRecv.
func TryDecodeFrame(pool recvpool.Pool, mode rtp.PackMode) (frame Frame, ok bool, err error) {
	switch mode {
	case rtp.PackModeTcp2:
		return tryDecodeLenPrefixed(pool, 2, MaxPayloadTcp2)
	case rtp.PackModeTcp4:
		return tryDecodeLenPrefixed(pool, 4, MaxPayloadTcp4)
	default:
		return tryDecodeDefault(pool)
	}
}

func tryDecodeLenPrefixed(pool recvpool.Pool, prefixSize int, maxPayload int) (Frame, bool, error) {
	if pool.PeekSize() < prefixSize {
		return Frame{}, false, nil
	}

	lb := make([]byte, prefixSize)
	pool.PeekInto(lb)

	var n int
	if prefixSize == 2 {
		n = int(binary.BigEndian.Uint16(lb))
	} else {
		n = int(binary.BigEndian.Uint32(lb))
	}
	if n > maxPayload {
		return Frame{}, false, ErrOversizedFrame
	}

	total := prefixSize + n
	if pool.PeekSize() < total {
		return Frame{}, false, nil
	}

	buf := make([]byte, total)
	pool.PeekInto(buf)
	pool.Flush(total)

	if n == 0 {
		return Frame{Heartbeat: true}, true, nil
	}

	payload := make([]byte, n)
	copy(payload, buf[prefixSize:])
	return Frame{Payload: payload}, true, nil
}

func tryDecodeDefault(pool recvpool.Pool) (Frame, bool, error) {
	if pool.PeekSize() < extWireSize {
		return Frame{}, false, nil
	}

	eb := make([]byte, extWireSize)
	pool.PeekInto(eb)

	var ext rtp.Ext
	if err := ext.UnmarshalBinary(eb); err != nil {
		return Frame{}, false, err
	}

	if ext.HdrAndPayloadSize == 0 {
		pool.Flush(extWireSize)
		return Frame{Heartbeat: true}, true, nil
	}

	if int(ext.HdrAndPayloadSize) < headerWireSize {
		return Frame{}, false, ErrShortFrame
	}
	if int(ext.HdrAndPayloadSize)-headerWireSize > MaxPayloadDefault {
		return Frame{}, false, ErrOversizedFrame
	}

	total := extWireSize + int(ext.HdrAndPayloadSize)
	if pool.PeekSize() < total {
		return Frame{}, false, nil
	}

	buf := make([]byte, total)
	pool.PeekInto(buf)
	pool.Flush(total)

	var hdr rtp.RtpHeader
	if err := hdr.UnmarshalBinary(buf[extWireSize : extWireSize+headerWireSize]); err != nil {
		return Frame{}, false, err
	}

	payload := make([]byte, total-extWireSize-headerWireSize)
	copy(payload, buf[extWireSize+headerWireSize:])

	return Frame{Ext: ext, Header: hdr, Payload: payload}, true, nil
}
