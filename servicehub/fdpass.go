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

package servicehub

import (
	"encoding/binary"
	"net"
	"os"
	"syscall"
)

// metaSize is the dispatch metadata frame a hub sends alongside a passed
// file descriptor: serviceID(1) + serviceOpt(1) + nonce(32).
const metaSize = 34

// dispatchMeta is serviceID/serviceOpt/nonce, passed to the host alongside
// the accepted connection's file descriptor.
type dispatchMeta struct {
	ServiceID  uint8
	ServiceOpt uint8
	Nonce      [32]byte
}

func (m dispatchMeta) bytes() []byte {
	b := make([]byte, metaSize)
	b[0] = m.ServiceID
	b[1] = m.ServiceOpt
	copy(b[2:], m.Nonce[:])
	return b
}

func parseDispatchMeta(b []byte) dispatchMeta {
	var m dispatchMeta
	m.ServiceID = b[0]
	m.ServiceOpt = b[1]
	copy(m.Nonce[:], b[2:34])
	return m
}

// regSize is a host's registration frame: serviceID(1) + pid(8 be).
const regSize = 9

func registrationBytes(serviceID uint8, pid int64) []byte {
	b := make([]byte, regSize)
	b[0] = serviceID
	binary.BigEndian.PutUint64(b[1:], uint64(pid))
	return b
}

func parseRegistration(b []byte) (serviceID uint8, pid int64) {
	return b[0], int64(binary.BigEndian.Uint64(b[1:]))
}

// filer is implemented by *net.TCPConn, *net.UnixConn and the *tls.Conn
// does not implement it directly, which is why extended-preamble
// connections are passed to hosts before any TLS layer is applied (the
// handshake package's Ssl flavor then runs on the host side, over the
// conn it receives from passConn's receiving end).
type filer interface {
	File() (*os.File, error)
}

// passConn duplicates conn's underlying file descriptor and sends it, plus
// meta, as one SCM_RIGHTS control message over uc. conn itself is left
// open; the caller is still responsible for closing its own copy.
func passConn(uc *net.UnixConn, conn net.Conn, meta dispatchMeta) error {
	f, ok := conn.(filer)
	if !ok {
		return ErrFdPassing
	}

	file, err := f.File()
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	rights := syscall.UnixRights(int(file.Fd()))
	_, _, err = uc.WriteMsgUnix(meta.bytes(), rights, nil)
	return err
}

// recvConn reads one passConn message off uc: the dispatch metadata plus a
// freshly-owned net.Conn built from the received file descriptor.
func recvConn(uc *net.UnixConn) (net.Conn, dispatchMeta, error) {
	var meta dispatchMeta

	b := make([]byte, metaSize)
	oob := make([]byte, syscall.CmsgSpace(4))

	n, oobn, _, _, err := uc.ReadMsgUnix(b, oob)
	if err != nil {
		return nil, meta, err
	}
	if n != metaSize {
		return nil, meta, ErrBadRegistration
	}

	scms, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil || len(scms) == 0 {
		return nil, meta, ErrFdPassing
	}

	fds, err := syscall.ParseUnixRights(&scms[0])
	if err != nil || len(fds) == 0 {
		return nil, meta, ErrFdPassing
	}

	file := os.NewFile(uintptr(fds[0]), "servicehub-conn")
	defer func() { _ = file.Close() }()

	conn, err := net.FileConn(file)
	if err != nil {
		return nil, meta, err
	}

	return conn, parseDispatchMeta(b), nil
}
