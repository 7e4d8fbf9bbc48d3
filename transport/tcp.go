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

import (
	"net"

	liblog "github.com/nabbar/pronet/logger"
	"github.com/nabbar/pronet/reactor"
)

// NewTCP wraps an already-accepted or already-dialed TCP connection as a
// Transport, registering it with react and draining into a ring pool of
// poolCapacity bytes (recvpool.DefaultCapacity when <= 0). log is optional;
// a nil Logger falls back to a discard logger.
func NewTCP(conn net.Conn, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (Transport, error) {
	s, err := newStream(conn, react, obs, poolCapacity, log)
	if err != nil {
		return nil, err
	}

	return s, nil
}
