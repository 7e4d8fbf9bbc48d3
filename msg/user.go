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
	"fmt"
	"strconv"
	"strings"
)

// String renders u as "class-user-inst", the textual form used in logs and
// config (RtpMsgUser2String's counterpart).
func (u User) String() string {
	return fmt.Sprintf("%d-%d-%d", u.ClassID, u.UserID, u.InstID)
}

// ParseUser parses the "class-user-inst" form String produces
// (RtpMsgString2User's counterpart).
func ParseUser(s string) (User, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return User{}, ErrBadUserString
	}

	class, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return User{}, ErrBadUserString
	}
	uid, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || uid > maxUserID {
		return User{}, ErrBadUserString
	}
	inst, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return User{}, ErrBadUserString
	}

	return User{ClassID: uint8(class), UserID: uid, InstID: uint16(inst)}, nil
}
