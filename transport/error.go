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

package transport

import "github.com/nabbar/pronet/errors"

const (
	ErrTransportClosed errors.CodeError = iota + errors.MinPkgTransport
	ErrNilConnection
	ErrNilObserver
	ErrNilReactor
	ErrAcceptTimeout
	ErrBadPreamble
	ErrConnectTimeout
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrTransportClosed)
	errors.RegisterIdFctMessage(ErrTransportClosed, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrTransportClosed:
		return "transport is closed"
	case ErrNilConnection:
		return "transport: nil connection"
	case ErrNilObserver:
		return "transport: nil observer"
	case ErrNilReactor:
		return "transport: nil reactor"
	case ErrAcceptTimeout:
		return "transport: extended accept preamble timed out"
	case ErrBadPreamble:
		return "transport: malformed extended handshake preamble"
	case ErrConnectTimeout:
		return "transport: extended connect preamble timed out"
	}

	return ""
}
