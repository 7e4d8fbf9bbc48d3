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

package recvpool_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	libpool "github.com/nabbar/pronet/recvpool"
)

var _ = Describe("Ring", func() {
	It("round-trips a byte sequence within capacity", func() {
		r := libpool.NewRing(16)

		n, err := r.Write([]byte("hello world"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(11))

		buf := make([]byte, 11)
		got := r.PeekInto(buf)
		Expect(got).To(Equal(11))
		Expect(string(buf)).To(Equal("hello world"))

		r.Flush(11)
		Expect(r.PeekSize()).To(Equal(0))
		Expect(r.FreeSize()).To(Equal(16))
	})

	It("keeps free_size + contiguous_data_size constant modulo wrap", func() {
		r := libpool.NewRing(8)

		_, _ = r.Write([]byte("abcdef"))
		r.Flush(4)
		_, err := r.Write([]byte("gh"))
		Expect(err).ToNot(HaveOccurred())

		Expect(r.FreeSize() + r.PeekSize()).To(BeNumerically("<=", 8))
	})

	It("reports ErrPoolFull and stores only what fits on overflow", func() {
		r := libpool.NewRing(4)

		n, err := r.Write([]byte("abcdef"))
		Expect(err).To(Equal(libpool.ErrPoolFull))
		Expect(n).To(Equal(4))
		Expect(r.FreeSize()).To(Equal(0))
	})
})

var _ = Describe("Linear", func() {
	It("fills from offset 0 and frees fully after one drain", func() {
		l := libpool.NewLinear(32)

		n, err := l.Write([]byte("datagram"))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(8))

		buf := make([]byte, 8)
		Expect(l.PeekInto(buf)).To(Equal(8))
		Expect(string(buf)).To(Equal("datagram"))

		l.Flush(8)
		Expect(l.FreeSize()).To(Equal(32))
	})

	It("replaces prior unread data on the next Write", func() {
		l := libpool.NewLinear(32)

		_, _ = l.Write([]byte("first"))
		_, _ = l.Write([]byte("second"))

		buf := make([]byte, 6)
		Expect(l.PeekInto(buf)).To(Equal(6))
		Expect(string(buf)).To(Equal("second"))
	})
})
