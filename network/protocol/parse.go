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

package protocol

import (
	"strings"
)

// trimQuotes strips surrounding whitespace and, in order, single quotes,
// double quotes and backticks from s. The order matters: a value quoted with
// a mismatched quote style (e.g. double quotes wrapping single quotes) is
// left partially quoted on purpose rather than guessed at.
func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "'")
	s = strings.Trim(s, `"`)
	s = strings.Trim(s, "`")
	return s
}

// Parse returns the NetworkProtocol matching s, case-insensitively, after
// trimming surrounding whitespace and quote characters. It returns
// NetworkEmpty for anything it does not recognize.
func Parse(s string) NetworkProtocol {
	switch strings.ToLower(trimQuotes(s)) {
	case "unix":
		return NetworkUnix
	case "tcp":
		return NetworkTCP
	case "tcp4":
		return NetworkTCP4
	case "tcp6":
		return NetworkTCP6
	case "udp":
		return NetworkUDP
	case "udp4":
		return NetworkUDP4
	case "udp6":
		return NetworkUDP6
	case "ip":
		return NetworkIP
	case "ip4":
		return NetworkIP4
	case "ip6":
		return NetworkIP6
	case "unixgram":
		return NetworkUnixGram
	default:
		return NetworkEmpty
	}
}

// ParseBytes is the []byte equivalent of Parse.
func ParseBytes(p []byte) NetworkProtocol {
	return Parse(string(p))
}

// ParseInt64 returns the NetworkProtocol whose numeric value equals v. Values
// outside the valid [1, 11] protocol range, including negative values and
// values beyond uint8, return NetworkEmpty.
func ParseInt64(v int64) NetworkProtocol {
	if v < 1 || v > 255 {
		return NetworkEmpty
	}

	p := NetworkProtocol(uint8(v))
	if p.String() == "" {
		return NetworkEmpty
	}

	return p
}
