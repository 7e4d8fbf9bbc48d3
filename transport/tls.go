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
	"crypto/tls"
	"net"

	libtls "github.com/nabbar/pronet/certificates"

	liblog "github.com/nabbar/pronet/logger"
	"github.com/nabbar/pronet/reactor"
)

// NewTLS runs a TLS handshake (client or server side, per isClient) over
// conn using cfg (serverName selects SNI / certificate lookup), then wraps
// the resulting *tls.Conn exactly like NewTCP. The handshake runs
// synchronously before the transport is registered with react, mirroring
// the teacher's client/tcp SetTLS-then-Connect sequencing. log is optional;
// a nil Logger falls back to a discard logger.
func NewTLS(ctx context.Context, conn net.Conn, cfg libtls.TLSConfig, serverName string, isClient bool, react reactor.Reactor, obs Observer, poolCapacity int, log liblog.Logger) (Transport, error) {
	if conn == nil {
		return nil, ErrNilConnection
	}

	tlsCfg := cfg.TlsConfig(serverName)

	var tc *tls.Conn
	if isClient {
		tc = tls.Client(conn, tlsCfg)
	} else {
		tc = tls.Server(conn, tlsCfg)
	}

	if err := tc.HandshakeContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s, err := newStream(tc, react, obs, poolCapacity, log)
	if err != nil {
		return nil, err
	}

	return s, nil
}
