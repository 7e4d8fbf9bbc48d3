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

// NewMulticast joins group on iface (nil selects the system default
// interface) and returns a UDPTransport whose default Send destination is
// the group address. Received datagrams report the sender's unicast
// address through Observer.OnRecv, not the group address.
func NewMulticast(group *net.UDPAddr, iface *net.Interface, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (UDPTransport, error) {
	conn, err := net.ListenMulticastUDP("udp", iface, group)
	if err != nil {
		return nil, err
	}

	d, err := newDatagram(conn, group, react, obs, poolCapacity, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return d, nil
}
