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

import "github.com/nabbar/pronet/errors"

const (
	ErrNilConn errors.CodeError = iota + errors.MinPkgSession
	ErrNilReactor
	ErrNilObserver
	ErrNilTransport
	ErrBadState
	ErrPasswordMismatch
	ErrOversizedFrame
	ErrShortFrame
	ErrTimeout
	ErrClosed
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrNilConn)
	errors.RegisterIdFctMessage(ErrNilConn, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrNilConn:
		return "session: nil connection"
	case ErrNilReactor:
		return "session: nil reactor"
	case ErrNilObserver:
		return "session: nil observer"
	case ErrNilTransport:
		return "session: nil transport"
	case ErrBadState:
		return "session: operation invalid in current state"
	case ErrPasswordMismatch:
		return "session: password hash mismatch"
	case ErrOversizedFrame:
		return "session: frame exceeds the pack mode's payload limit"
	case ErrShortFrame:
		return "session: truncated frame"
	case ErrTimeout:
		return "session: timed out"
	case ErrClosed:
		return "session: closed"
	}

	return ""
}
