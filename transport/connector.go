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
	"context"
	"fmt"
	"io"
	"net"
	"runtime"
	"time"
)

// DefaultConnectTimeout is the plain/extended connector's default dial
// bound, per spec.md §4.5's "Default connect timeout 20s".
const DefaultConnectTimeout = 20 * time.Second

// unixFallbackPath returns the local IPC path a 127.0.0.1 connector tries
// before falling back to loopback TCP, per spec.md §6's
// "/tmp/libpronet_127001_<port>" naming and §4.5's "the connector may use a
// Unix-domain socket for 127.0.0.1 targets on Unix".
func unixFallbackPath(port string) string {
	return fmt.Sprintf("/tmp/libpronet_127001_%s", port)
}

// dialWithFallback dials address on network, trying a Unix-domain socket
// first when network is a loopback TCP target and the platform is not
// Windows-like; DialContext itself still honors ctx's deadline for the
// fallback attempt.
func dialWithFallback(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer

	if runtime.GOOS != "windows" && (network == "tcp" || network == "tcp4" || network == "tcp6") {
		if host, port, err := net.SplitHostPort(address); err == nil && (host == "127.0.0.1" || host == "localhost") {
			if c, uerr := d.DialContext(ctx, "unix", unixFallbackPath(port)); uerr == nil {
				return c, nil
			}
		}
	}

	return d.DialContext(ctx, network, address)
}

// Connector dials a peer, per spec.md §4.5's plain connector: no handshake
// runs before the caller gets the connection back.
type Connector interface {
	Connect(ctx context.Context) (net.Conn, error)
}

type connector struct {
	network, address string
}

// NewConnector builds a plain Connector for network/address. Callers should
// bound ctx themselves; DefaultConnectTimeout is only applied by
// NewConnectorEx's Connect.
func NewConnector(network, address string) Connector {
	return &connector{network: network, address: address}
}

func (c *connector) Connect(ctx context.Context) (net.Conn, error) {
	return dialWithFallback(ctx, c.network, c.address)
}

// ConnectorEx is the extended connector of spec.md §4.5: it dials, reads
// the server's nonce, and writes the client's preamble before returning.
type ConnectorEx interface {
	Connect(ctx context.Context, pre Preamble) (conn net.Conn, nonce [nonceSize]byte, err error)
}

type connectorEx struct {
	network, address string
	timeout          time.Duration
}

// NewConnectorEx builds a ConnectorEx bounding the whole dial-then-preamble
// exchange to timeout (DefaultConnectTimeout when <= 0).
func NewConnectorEx(network, address string, timeout time.Duration) ConnectorEx {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	return &connectorEx{network: network, address: address, timeout: timeout}
}

func (c *connectorEx) Connect(ctx context.Context, pre Preamble) (net.Conn, [nonceSize]byte, error) {
	var nonce [nonceSize]byte

	dctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := dialWithFallback(dctx, c.network, c.address)
	if err != nil {
		return nil, nonce, err
	}

	if err = conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		_ = conn.Close()
		return nil, nonce, err
	}

	if _, err = io.ReadFull(conn, nonce[:]); err != nil {
		_ = conn.Close()
		return nil, nonce, err
	}

	if _, err = conn.Write(pre.bytes()); err != nil {
		_ = conn.Close()
		return nil, nonce, err
	}

	if err = conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, nonce, err
	}

	return conn, nonce, nil
}
