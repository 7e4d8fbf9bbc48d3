/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2022 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

// Package protocol defines the transport protocol identifiers shared by the
// socket, transport and handshake layers to select the dialer/listener family
// (stream, datagram, unix, multicast) a given endpoint speaks.
package protocol

// NetworkProtocol identifies a transport protocol family usable by a listener
// or a dialer. The zero value, NetworkEmpty, represents an unset protocol.
type NetworkProtocol uint8

const (
	NetworkEmpty NetworkProtocol = iota
	NetworkUnix
	NetworkTCP
	NetworkTCP4
	NetworkTCP6
	NetworkUDP
	NetworkUDP4
	NetworkUDP6
	NetworkIP
	NetworkIP4
	NetworkIP6
	NetworkUnixGram
)

// String returns the lowercase wire name of the protocol, or an empty string
// if the value does not match a known protocol.
func (n NetworkProtocol) String() string {
	switch n {
	case NetworkUnix:
		return "unix"
	case NetworkTCP:
		return "tcp"
	case NetworkTCP4:
		return "tcp4"
	case NetworkTCP6:
		return "tcp6"
	case NetworkUDP:
		return "udp"
	case NetworkUDP4:
		return "udp4"
	case NetworkUDP6:
		return "udp6"
	case NetworkIP:
		return "ip"
	case NetworkIP4:
		return "ip4"
	case NetworkIP6:
		return "ip6"
	case NetworkUnixGram:
		return "unixgram"
	default:
		return ""
	}
}

// Code returns the same lowercase identifier as String. It exists so config
// and wire-format packages can depend on a Code()-shaped accessor without
// reaching for String() directly.
func (n NetworkProtocol) Code() string {
	return n.String()
}

// Int returns the numeric value of the protocol, or 0 if it is not a known
// protocol.
func (n NetworkProtocol) Int() int {
	if n.String() == "" {
		return 0
	}
	return int(n)
}

// Int64 is the int64 equivalent of Int.
func (n NetworkProtocol) Int64() int64 {
	return int64(n.Int())
}

// Uint is the uint equivalent of Int.
func (n NetworkProtocol) Uint() uint {
	return uint(n.Int())
}

// Uint64 is the uint64 equivalent of Int.
func (n NetworkProtocol) Uint64() uint64 {
	return uint64(n.Int())
}

// IsUnixSocket returns true when the protocol addresses a local unix socket
// (stream or datagram), as opposed to a network-facing one.
func (n NetworkProtocol) IsUnixSocket() bool {
	return n == NetworkUnix || n == NetworkUnixGram
}

// IsDatagram returns true when the protocol is connectionless (UDP, unix
// datagram or raw IP).
func (n NetworkProtocol) IsDatagram() bool {
	switch n {
	case NetworkUDP, NetworkUDP4, NetworkUDP6, NetworkUnixGram, NetworkIP, NetworkIP4, NetworkIP6:
		return true
	default:
		return false
	}
}
