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
	"context"
	"net"
	"os"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
)

// HostObserver receives each connection a Host is handed by its Hub.
type HostObserver interface {
	// OnServiceAccept is called once per dispatched connection. nonce and
	// preamble are zero for a plain Hub; they carry the extended
	// acceptor's handshake result for an extended one.
	OnServiceAccept(conn net.Conn, nonce [32]byte, serviceID, serviceOpt uint8)
}

// Host is the registering side of the Service-Hub/Service-Host pair: it
// dials a Hub's IPC socket, registers for a service id, and then receives
// every connection the Hub dispatches to that id.
type Host interface {
	// Run registers with the Hub and processes dispatched connections
	// until ctx is canceled or the IPC connection fails.
	Run(ctx context.Context) error

	Close() error
}

type host struct {
	ipcPath   string
	serviceID uint8
	obs       HostObserver
	log       liblog.Logger

	conn *net.UnixConn
}

// NewHost builds a Host registering serviceID on the Hub listening at
// ipcPath. log is optional; a nil Logger falls back to a discard logger.
func NewHost(ipcPath string, serviceID uint8, obs HostObserver, log liblog.Logger) (Host, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if log == nil {
		log = liblog.NewDiscard()
	}
	return &host{ipcPath: ipcPath, serviceID: serviceID, obs: obs, log: log}, nil
}

func (h *host) Run(ctx context.Context) error {
	addr := &net.UnixAddr{Name: h.ipcPath, Net: "unix"}

	uc, err := net.DialUnix("unix", nil, addr)
	if err != nil {
		return err
	}
	h.conn = uc

	if _, err = uc.Write(registrationBytes(h.serviceID, int64(os.Getpid()))); err != nil {
		_ = uc.Close()
		return err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = uc.Close()
		case <-done:
		}
	}()
	defer close(done)

	h.log.Entry(loglvl.InfoLevel, "host registered").FieldAdd("serviceID", h.serviceID).Log()

	for {
		conn, meta, rerr := recvConn(uc)
		if rerr != nil {
			return rerr
		}
		go h.obs.OnServiceAccept(conn, meta.Nonce, meta.ServiceID, meta.ServiceOpt)
	}
}

func (h *host) Close() error {
	if h.conn == nil {
		return nil
	}
	return h.conn.Close()
}
