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

package handshake

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	libtls "github.com/nabbar/pronet/certificates"
)

// tlsHandshaker runs a crypto/tls handshake over conn, then optionally
// chains a bounded plain exchange (next) over the now-encrypted conn. It
// owns cfg only until HandshakeContext returns, matching spec.md §4.6's
// "TLS handshaker additionally owns a partially-initialized SslContext
// until success": a failed handshake never hands cfg's connection back to
// the caller, it closes it instead.
type tlsHandshaker struct {
	cfg        libtls.TLSConfig
	serverName string
	isClient   bool
	timeout    time.Duration
	next       Handshaker
}

// NewTLS builds a Handshaker that runs conn through a TLS handshake (client
// side when isClient, server side otherwise) using cfg (serverName selects
// SNI / certificate lookup), bounded by timeout (DefaultTimeout when <= 0).
// When next is non-nil, its Run executes over the resulting *tls.Conn
// before NewTLS's Run returns, so a single Handshaker value can express
// "TLS then a framed exchange" as required by the extended session
// handshake's Ssl flavor (spec.md §4.9).
func NewTLS(cfg libtls.TLSConfig, serverName string, isClient bool, timeout time.Duration, next Handshaker) Handshaker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &tlsHandshaker{cfg: cfg, serverName: serverName, isClient: isClient, timeout: timeout, next: next}
}

func (h *tlsHandshaker) Run(ctx context.Context, conn net.Conn) ([]byte, error) {
	if conn == nil {
		return nil, ErrNilConn
	}
	if h.cfg == nil {
		_ = conn.Close()
		return nil, ErrNilConfig
	}

	tlsCfg := h.cfg.TlsConfig(h.serverName)

	var tc *tls.Conn
	if h.isClient {
		tc = tls.Client(conn, tlsCfg)
	} else {
		tc = tls.Server(conn, tlsCfg)
	}

	hctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := tc.HandshakeContext(hctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	if h.next == nil {
		return nil, nil
	}

	return h.next.Run(ctx, tc)
}
