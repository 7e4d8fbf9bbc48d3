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

import "github.com/nabbar/pronet/errors"

const (
	ErrNilObserver errors.CodeError = iota + errors.MinPkgMsg
	ErrNilReactor
	ErrNilSession
	ErrShortUser
	ErrShortHeader
	ErrTooManyDestinations
	ErrPasswordMismatch
	ErrNotAuthenticated
	ErrUnknownUser
	ErrBusy
	ErrClosed
	ErrBadUserString
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrNilObserver)
	errors.RegisterIdFctMessage(ErrNilObserver, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrNilObserver:
		return "msg: nil observer"
	case ErrNilReactor:
		return "msg: nil reactor"
	case ErrNilSession:
		return "msg: nil session"
	case ErrShortUser:
		return "msg: truncated RTP_MSG_USER"
	case ErrShortHeader:
		return "msg: truncated RTP_MSG_HEADER"
	case ErrTooManyDestinations:
		return "msg: more than 255 destinations in one send"
	case ErrPasswordMismatch:
		return "msg: password hash mismatch"
	case ErrNotAuthenticated:
		return "msg: connection closed before completing the messaging handshake"
	case ErrUnknownUser:
		return "msg: destination user is neither local nor reachable through a c2s"
	case ErrBusy:
		return "msg: destination's outbound queue is over its redline"
	case ErrClosed:
		return "msg: closed"
	case ErrBadUserString:
		return "msg: malformed \"class-user-inst\" user string"
	}

	return ""
}
