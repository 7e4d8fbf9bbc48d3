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

package rtp

// Packet holds one framed rtp packet (Ext + RtpHeader + payload) backed by a
// single contiguous buffer, mirroring the single-allocation layout the
// reference implementation uses per packet. Unlike that layout, Packet never
// hands callers a pointer into the buffer: Payload returns a copy, and the
// header/extension are decoded into value types on demand.
type Packet struct {
	packMode PackMode
	buf      []byte // extSize + rtpHeaderSize + payload, DEFAULT mode only
}

// NewPacket builds a Packet for PackModeDefault, copying payload into the
// packet's own backing buffer after the wire-encoded ext and header.
func NewPacket(ext Ext, hdr RtpHeader, payload []byte) (*Packet, error) {
	eb, err := ext.MarshalBinary()
	if err != nil {
		return nil, err
	}
	hb, err := hdr.MarshalBinary()
	if err != nil {
		return nil, err
	}

	buf := make([]byte, 0, len(eb)+len(hb)+len(payload))
	buf = append(buf, eb...)
	buf = append(buf, hb...)
	buf = append(buf, payload...)

	return &Packet{packMode: PackModeDefault, buf: buf}, nil
}

// ParsePacket decodes a default-mode wire buffer (ext + header + payload)
// into a Packet. The input is copied, never aliased.
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < extSize+rtpHeaderSize {
		return nil, ErrShortBuffer
	}

	buf := make([]byte, len(b))
	copy(buf, b)
	return &Packet{packMode: PackModeDefault, buf: buf}, nil
}

// Ext decodes and returns the packet's extension.
func (p *Packet) Ext() (Ext, error) {
	var e Ext
	err := e.UnmarshalBinary(p.buf[:extSize])
	return e, err
}

// Header decodes and returns the packet's RFC-3550 header.
func (p *Packet) Header() (RtpHeader, error) {
	var h RtpHeader
	err := h.UnmarshalBinary(p.buf[extSize : extSize+rtpHeaderSize])
	return h, err
}

// Payload returns a copy of the packet's payload bytes.
func (p *Packet) Payload() []byte {
	out := make([]byte, len(p.buf)-extSize-rtpHeaderSize)
	copy(out, p.buf[extSize+rtpHeaderSize:])
	return out
}

// PayloadSize reports the payload length without copying it.
func (p *Packet) PayloadSize() int {
	return len(p.buf) - extSize - rtpHeaderSize
}

// PackMode reports the framing mode this packet was built or parsed with.
func (p *Packet) PackMode() PackMode {
	return p.packMode
}

// SetExt re-encodes the extension in place, leaving the header and payload
// untouched.
func (p *Packet) SetExt(e Ext) error {
	eb, err := e.MarshalBinary()
	if err != nil {
		return err
	}
	copy(p.buf[:extSize], eb)
	return nil
}

// SetHeader re-encodes the header in place, leaving the extension and
// payload untouched.
func (p *Packet) SetHeader(h RtpHeader) error {
	hb, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	copy(p.buf[extSize:extSize+rtpHeaderSize], hb)
	return nil
}

// Bytes returns a copy of the packet's full wire form (ext + header +
// payload), safe for a caller to mutate or retain past the packet's life.
func (p *Packet) Bytes() []byte {
	out := make([]byte, len(p.buf))
	copy(out, p.buf)
	return out
}
