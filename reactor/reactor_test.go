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

package reactor_test

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	librct "github.com/nabbar/pronet/reactor"
)

type recordingHandler struct {
	reads  atomic.Int64
	writes atomic.Int64
}

func (h *recordingHandler) OnReadable(_ librct.Handle) { h.reads.Add(1) }
func (h *recordingHandler) OnWritable(_ librct.Handle) { h.writes.Add(1) }

func loopbackPair() (net.Conn, net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).ToNot(HaveOccurred())
	defer ln.Close()

	type accepted struct {
		c   net.Conn
		err error
	}
	ch := make(chan accepted, 1)
	go func() {
		c, e := ln.Accept()
		ch <- accepted{c, e}
	}()

	cli, err := net.Dial("tcp", ln.Addr().String())
	Expect(err).ToNot(HaveOccurred())

	a := <-ch
	Expect(a.err).ToNot(HaveOccurred())

	return cli, a.c
}

var _ = Describe("Reactor", func() {
	var r librct.Reactor

	BeforeEach(func() {
		r = librct.New(2, nil)
		Expect(r.Start(context.Background())).To(Succeed())
	})

	AfterEach(func() {
		Expect(r.Close()).To(Succeed())
	})

	It("notifies OnReadable when data arrives on a registered connection", func() {
		cli, srv := loopbackPair()
		defer cli.Close()
		defer srv.Close()

		h := &recordingHandler{}
		handle, err := r.AddHandler(srv, h, librct.InterestRead)
		Expect(err).ToNot(HaveOccurred())
		Expect(handle).ToNot(Equal(librct.Handle(-1)))

		_, err = cli.Write([]byte("hello"))
		Expect(err).ToNot(HaveOccurred())

		Eventually(func() int64 { return h.reads.Load() }, 2*time.Second).Should(BeNumerically(">=", 1))

		br, err := r.Reader(handle)
		Expect(err).ToNot(HaveOccurred())
		buf := make([]byte, 5)
		_, err = br.Read(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(buf)).To(Equal("hello"))
	})

	It("fires exactly one OnWritable per ModifyInterest write request", func() {
		cli, srv := loopbackPair()
		defer cli.Close()
		defer srv.Close()

		h := &recordingHandler{}
		handle, err := r.AddHandler(srv, h, 0)
		Expect(err).ToNot(HaveOccurred())

		Expect(r.ModifyInterest(handle, librct.InterestWrite)).To(Succeed())

		Eventually(func() int64 { return h.writes.Load() }, 2*time.Second).Should(Equal(int64(1)))
		Consistently(func() int64 { return h.writes.Load() }, 100*time.Millisecond).Should(Equal(int64(1)))
	})

	It("stops delivering events once a handle is removed", func() {
		cli, srv := loopbackPair()
		defer cli.Close()
		defer srv.Close()

		h := &recordingHandler{}
		handle, err := r.AddHandler(srv, h, librct.InterestRead)
		Expect(err).ToNot(HaveOccurred())

		r.RemoveHandler(handle)

		_, err = cli.Write([]byte("late"))
		Expect(err).ToNot(HaveOccurred())

		Consistently(func() int64 { return h.reads.Load() }, 100*time.Millisecond).Should(Equal(int64(0)))
	})

	It("rejects a nil connection or handler", func() {
		h := &recordingHandler{}
		_, err := r.AddHandler(nil, h, librct.InterestRead)
		Expect(err).To(Equal(librct.ErrNilConnection))

		cli, srv := loopbackPair()
		defer cli.Close()
		defer srv.Close()

		_, err = r.AddHandler(srv, nil, librct.InterestRead)
		Expect(err).To(Equal(librct.ErrNilHandler))
	})

	It("reports a non-empty trace info string", func() {
		Expect(r.GetTraceInfo()).ToNot(BeEmpty())
	})
})
