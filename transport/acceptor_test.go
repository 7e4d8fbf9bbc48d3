/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

package transport_test

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libtp "github.com/nabbar/pronet/transport"
)

type acceptRecorder struct {
	n atomic.Int64
}

func (a *acceptRecorder) OnAccept(conn net.Conn) {
	a.n.Add(1)
	_ = conn.Close()
}

type exAcceptRecorder struct {
	n   atomic.Int64
	pre atomic.Value // libtp.Preamble
}

func (a *exAcceptRecorder) OnAccept(conn net.Conn, _ [32]byte, pre libtp.Preamble) {
	a.n.Add(1)
	a.pre.Store(pre)
	_ = conn.Close()
}

var _ = Describe("Acceptor", func() {
	It("hands accepted connections straight to the observer", func() {
		obs := &acceptRecorder{}
		a, err := libtp.NewAcceptor("tcp", "127.0.0.1:0", obs)
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = a.Listen(ctx) }()

		Eventually(func() net.Addr { return a.Addr() }, "2s", "10ms").ShouldNot(BeNil())

		c, err := net.Dial("tcp", a.Addr().String())
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = c.Close() }()

		Eventually(func() int64 { return obs.n.Load() }, "2s", "10ms").Should(Equal(int64(1)))

		cancel()
		_ = a.Close()
	})

	It("runs the nonce-then-preamble exchange before notifying the observer", func() {
		obs := &exAcceptRecorder{}
		a, err := libtp.NewAcceptorEx("tcp", "127.0.0.1:0", 0, obs)
		Expect(err).ToNot(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = a.Listen(ctx) }()

		Eventually(func() net.Addr { return a.Addr() }, "2s", "10ms").ShouldNot(BeNil())

		connector := libtp.NewConnectorEx("tcp", a.Addr().String(), time.Second)
		conn, nonce, err := connector.Connect(context.Background(), libtp.Preamble{
			ServiceID:  11,
			ServiceOpt: 0,
			R:          0x4242,
			R1:         0x4243,
		})
		Expect(err).ToNot(HaveOccurred())
		defer func() { _ = conn.Close() }()

		var zero [32]byte
		Expect(nonce).ToNot(Equal(zero))

		Eventually(func() int64 { return obs.n.Load() }, "2s", "10ms").Should(Equal(int64(1)))
		pre, _ := obs.pre.Load().(libtp.Preamble)
		Expect(pre.ServiceID).To(Equal(uint8(11)))
		Expect(pre.R).To(Equal(uint16(0x4242)))
		Expect(pre.R1).To(Equal(uint16(0x4243)))
	})
})
