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

// Package servicehub implements the Service-Hub / Service-Host dispatch
// mechanism of spec.md §4.7: a Hub listens on one externally-facing port
// and hands each accepted connection off, file descriptor and all, to one
// of the Service-Host processes registered for that connection's service
// id. Registration and dispatch both ride a Unix-domain socket and
// SCM_RIGHTS ancillary messages, so a Hub and its Hosts can live in
// separate OS processes on the same machine.
package servicehub

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/transport"
)

// DispatchPolicy selects how a Hub picks a live host for a service id.
type DispatchPolicy uint8

const (
	// DispatchActiveStandby delivers every connection to the
	// highest-priority (earliest registered) live host.
	DispatchActiveStandby DispatchPolicy = iota

	// DispatchLoadBalance round-robins across every live host.
	DispatchLoadBalance
)

// DefaultAcceptTimeout mirrors transport.DefaultAcceptTimeout for an
// extended-flavor Hub's nonce/preamble exchange.
const DefaultAcceptTimeout = transport.DefaultAcceptTimeout

// Observer reports Host lifecycle events to a Hub's owner.
type Observer interface {
	OnServiceHostConnected(servicePort uint16, serviceID uint8, hostProcessID int64)
	OnServiceHostDisconnected(servicePort uint16, serviceID uint8, hostProcessID int64, timeout bool)
}

// Hub is the listening side of the Service-Hub/Service-Host pair.
type Hub interface {
	// Listen runs the external accept loop and the IPC registration
	// listener until ctx is canceled or either listener fails.
	Listen(ctx context.Context) error

	// Close closes the IPC registration listener. The external listener
	// is not closed here; it stops when Listen's ctx is canceled.
	Close() error
}

type hostEntry struct {
	pid  int64
	conn *net.UnixConn
}

type hub struct {
	port     uint16
	extended bool
	timeout  time.Duration
	policy   DispatchPolicy
	obs      Observer
	ipcPath  string
	log      liblog.Logger

	mu    sync.Mutex
	hosts map[uint8][]*hostEntry
	rr    map[uint8]int

	ipcLn *net.UnixListener
}

// New builds a plain Hub: external connections accepted on servicePort are
// dispatched to registered hosts with no handshake. ipcPath is the
// Unix-domain socket hosts register on (spec.md §6's
// "/tmp/libpronet_127001_<port>" naming is a reasonable default).
func New(servicePort uint16, ipcPath string, policy DispatchPolicy, obs Observer, log liblog.Logger) (Hub, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if log == nil {
		log = liblog.NewDiscard()
	}
	return &hub{
		port: servicePort, ipcPath: ipcPath, policy: policy, obs: obs, log: log,
		hosts: map[uint8][]*hostEntry{}, rr: map[uint8]int{},
	}, nil
}

// NewEx builds an extended-flavor Hub: it runs the nonce/preamble exchange
// of spec.md §4.5 on every external connection before dispatching, so the
// host receives {serviceId, serviceOpt, nonce} alongside the connection.
func NewEx(servicePort uint16, ipcPath string, timeout time.Duration, policy DispatchPolicy, obs Observer, log liblog.Logger) (Hub, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if timeout <= 0 {
		timeout = DefaultAcceptTimeout
	}
	if log == nil {
		log = liblog.NewDiscard()
	}
	return &hub{
		port: servicePort, extended: true, timeout: timeout, ipcPath: ipcPath,
		policy: policy, obs: obs, log: log, hosts: map[uint8][]*hostEntry{}, rr: map[uint8]int{},
	}, nil
}

func (h *hub) Listen(ctx context.Context) error {
	ipcLn, err := net.ListenUnix("unix", &net.UnixAddr{Name: h.ipcPath, Net: "unix"})
	if err != nil {
		return err
	}
	h.ipcLn = ipcLn

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = ipcLn.Close()
		case <-done:
		}
	}()

	go h.acceptHosts(ctx)

	var extErr error
	if h.extended {
		extErr = h.listenEx(ctx)
	} else {
		extErr = h.listenPlain(ctx)
	}

	close(done)
	return extErr
}

func (h *hub) listenPlain(ctx context.Context) error {
	a, err := transport.NewAcceptor("tcp", fmt.Sprintf(":%d", h.port), plainAcceptFn(func(conn net.Conn) {
		h.dispatch(conn, dispatchMeta{})
	}))
	if err != nil {
		return err
	}

	return a.Listen(ctx)
}

type plainAcceptFn func(conn net.Conn)

func (f plainAcceptFn) OnAccept(conn net.Conn) { f(conn) }

func (h *hub) listenEx(ctx context.Context) error {
	a, err := transport.NewAcceptorEx("tcp", fmt.Sprintf(":%d", h.port), h.timeout, exAcceptFn(func(conn net.Conn, nonce [32]byte, pre transport.Preamble) {
		h.dispatch(conn, dispatchMeta{ServiceID: pre.ServiceID, ServiceOpt: pre.ServiceOpt, Nonce: nonce})
	}))
	if err != nil {
		return err
	}
	return a.Listen(ctx)
}

type exAcceptFn func(conn net.Conn, nonce [32]byte, pre transport.Preamble)

func (f exAcceptFn) OnAccept(conn net.Conn, nonce [32]byte, pre transport.Preamble) { f(conn, nonce, pre) }

func (h *hub) dispatch(conn net.Conn, meta dispatchMeta) {
	entry := h.pickHost(meta.ServiceID)
	if entry == nil {
		h.log.Entry(loglvl.WarnLevel, "no host registered for service").
			FieldAdd("serviceID", meta.ServiceID).Log()
		_ = conn.Close()
		return
	}

	err := passConn(entry.conn, conn, meta)
	_ = conn.Close()
	if err != nil {
		h.log.Entry(loglvl.ErrorLevel, "passing connection to host failed").
			FieldAdd("serviceID", meta.ServiceID).FieldAdd("pid", entry.pid).ErrorAdd(true, err).Log()
		h.dropHost(meta.ServiceID, entry)
	}
}

func (h *hub) pickHost(serviceID uint8) *hostEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := h.hosts[serviceID]
	if len(list) == 0 {
		return nil
	}

	if h.policy == DispatchLoadBalance {
		i := h.rr[serviceID] % len(list)
		h.rr[serviceID] = i + 1
		return list[i]
	}

	return list[0]
}

func (h *hub) dropHost(serviceID uint8, e *hostEntry) {
	h.mu.Lock()
	list := h.hosts[serviceID]
	for i, c := range list {
		if c == e {
			h.hosts[serviceID] = append(list[:i], list[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	_ = e.conn.Close()
	h.obs.OnServiceHostDisconnected(h.port, serviceID, e.pid, false)
}

// acceptHosts runs the IPC registration loop: each host dials ipcPath once
// and sends a registrationBytes frame identifying its service id and pid.
func (h *hub) acceptHosts(ctx context.Context) {
	_ = ctx // the IPC listener is closed by Listen's ctx.Done watcher

	for {
		uc, err := h.ipcLn.AcceptUnix()
		if err != nil {
			return
		}

		go h.registerHost(uc)
	}
}

func (h *hub) registerHost(uc *net.UnixConn) {
	_ = uc.SetReadDeadline(time.Now().Add(5 * time.Second))

	buf := make([]byte, regSize)
	if _, err := readFull(uc, buf); err != nil {
		_ = uc.Close()
		return
	}
	_ = uc.SetReadDeadline(time.Time{})

	serviceID, pid := parseRegistration(buf)

	// A plain hub reads no preamble and dispatches every connection under
	// service id 0, so it keeps all its hosts there whatever id they sent.
	key := serviceID
	if !h.extended {
		key = 0
	}

	e := &hostEntry{pid: pid, conn: uc}

	h.mu.Lock()
	h.hosts[key] = append(h.hosts[key], e)
	h.mu.Unlock()

	h.log.Entry(loglvl.InfoLevel, "host connected").
		FieldAdd("serviceID", serviceID).FieldAdd("pid", pid).Log()
	h.obs.OnServiceHostConnected(h.port, serviceID, pid)

	// A registration conn only ever carries outbound passConn writes; a
	// read returning here means the host process went away.
	one := make([]byte, 1)
	_, _ = uc.Read(one)

	h.mu.Lock()
	list := h.hosts[key]
	for i, c := range list {
		if c == e {
			h.hosts[key] = append(list[:i], list[i+1:]...)
			break
		}
	}
	h.mu.Unlock()

	_ = uc.Close()
	h.obs.OnServiceHostDisconnected(h.port, serviceID, pid, false)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (h *hub) Close() error {
	h.mu.Lock()
	ipcLn := h.ipcLn
	h.mu.Unlock()

	if ipcLn != nil {
		_ = ipcLn.Close()
	}

	return nil
}
