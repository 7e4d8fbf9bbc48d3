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

package msg

import (
	"context"
	"net"
	"sync"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/session"
	"github.com/nabbar/pronet/transport"
)

// C2SObserver is the hook a C2S's owner implements to authenticate its own
// downstream users and learn about traffic on either half of the relay.
type C2SObserver interface {
	// OnCheckDownstreamUser mirrors Observer.OnCheckUser for connections
	// arriving on the c2s's own listener, per rtp_msg.h's description of
	// a relay authenticating its own clients independently of upstream.
	OnCheckDownstreamUser(req User, publicIP net.IP, hash [32]byte, nonce [32]byte, appData []byte) (accept bool, assigned User, respAppData []byte)

	OnOkDownstreamUser(user User)
	OnCloseDownstreamUser(user User, err error)
	OnUpstreamClosed(err error)
}

// C2S is the dual-role relay of spec.md §4.10: one Client-like half
// connected upstream to a Server, and one Server-like half accepting its
// own downstream users. Its routing never takes a local shortcut between
// two of its own downstream users - every message travels upstream first,
// matching the only path the specification's relay scenario describes;
// the upstream server is solely responsible for fanning a message back out
// to whichever gateway (or local user) owns its destination.
type C2S struct {
	obs          C2SObserver
	react        reactor.Reactor
	log          liblog.Logger
	timeout      time.Duration
	poolCapacity int
	redlineUp    int64
	redlineDown  int64

	mu       sync.RWMutex
	upSess   session.Session
	upSelf   User
	upOut    *redline
	users    map[User]*userConn
	acceptor transport.Acceptor
}

// C2SOption configures optional C2S behavior at construction.
type C2SOption func(*C2S)

// WithC2STimeout overrides DefaultHandshakeTimeout for both halves.
func WithC2STimeout(d time.Duration) C2SOption {
	return func(c *C2S) { c.timeout = d }
}

// WithC2SRedlines overrides the upstream-send and downstream-send
// backpressure redlines.
func WithC2SRedlines(up, down int64) C2SOption {
	return func(c *C2S) { c.redlineUp = up; c.redlineDown = down }
}

// WithC2SPoolCapacity overrides the recv pool size every session (upstream
// and downstream) is built with.
func WithC2SPoolCapacity(n int) C2SOption {
	return func(c *C2S) { c.poolCapacity = n }
}

// WithC2SLogger attaches log to every session and transport this relay
// builds, upstream and downstream alike. A nil Logger (the default) falls
// back to a discard logger.
func WithC2SLogger(log liblog.Logger) C2SOption {
	return func(c *C2S) { c.log = log }
}

// DialUpstream connects a C2S's upstream half to a Server, announcing
// itself as a c2s gateway so the server's OnCheckUser registers it as a
// flood target rather than a plain user.
func DialUpstream(ctx context.Context, react reactor.Reactor, obs C2SObserver, network, address string, pre transport.Preamble, password string, req User, appData []byte, opts ...C2SOption) (*C2S, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}

	c := &C2S{
		obs:          obs,
		react:        react,
		timeout:      DefaultHandshakeTimeout,
		poolCapacity: 4096,
		redlineUp:    DefaultRedlineServerToC2S,
		redlineDown:  DefaultRedlineServerToUser,
		users:        map[User]*userConn{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = liblog.NewDiscard()
	}
	c.upOut = newRedline(c.redlineUp)

	conn, nonce, err := transport.NewConnectorEx(network, address, c.timeout).Connect(ctx, pre)
	if err != nil {
		return nil, err
	}

	h0, err := clientHandshake(conn, c.timeout, nonce, password, req, true, appData)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.upSelf = h0.User

	build := func(o transport.Observer) (transport.Transport, error) {
		return transport.NewTCP(conn, react, o, c.poolCapacity, c.log)
	}
	info := session.Info{LocalVersion: ProtocolVersion, RemoteVersion: h0.Version, SessionType: rtp.SessionTCPClientEx, MmType: rtp.MMTMsg, PackMode: rtp.PackModeTcp4}

	sess, err := session.NewPlain(info, react, &c2sUpstreamObserver{c: c}, build, c.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.upSess = sess
	c.mu.Unlock()

	c.log.Entry(loglvl.InfoLevel, "c2s upstream connected").FieldAdd("user", c.upSelf.String()).Log()
	return c, nil
}

// ListenDownstream runs the extended acceptor for this relay's own users,
// handshaking and registering each the same way Server does.
func (c *C2S) ListenDownstream(ctx context.Context, network, address string) error {
	a, err := transport.NewAcceptorEx(network, address, c.timeout, exAcceptFunc(func(conn net.Conn, nonce [32]byte, _ transport.Preamble) {
		c.handleAccepted(conn, nonce)
	}))
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.acceptor = a
	c.mu.Unlock()

	return a.Listen(ctx)
}

func (c *C2S) handleAccepted(conn net.Conn, nonce [32]byte) {
	check := func(req User, publicIP net.IP, _ bool, hash, n [32]byte, appData []byte) (bool, User, []byte) {
		return c.obs.OnCheckDownstreamUser(req, publicIP, hash, n, appData)
	}

	res, err := serverHandshake(conn, c.timeout, nonce, check)
	if err != nil {
		c.log.Entry(loglvl.WarnLevel, "c2s downstream handshake rejected").
			FieldAdd("remote", conn.RemoteAddr().String()).ErrorAdd(true, err).Log()
		_ = conn.Close()
		return
	}

	uc := &userConn{user: res.Assigned, out: newRedline(c.redlineDown)}
	build := func(o transport.Observer) (transport.Transport, error) {
		return transport.NewTCP(conn, c.react, o, c.poolCapacity, c.log)
	}
	info := session.Info{LocalVersion: ProtocolVersion, SessionType: rtp.SessionTCPServerEx, MmType: rtp.MMTMsg, PackMode: rtp.PackModeTcp4}

	sess, err := session.NewPlain(info, c.react, &c2sDownstreamObserver{c: c, uc: uc}, build, c.log)
	if err != nil {
		_ = conn.Close()
		return
	}
	uc.sess = sess

	c.mu.Lock()
	c.users[uc.user] = uc
	c.mu.Unlock()

	c.log.Entry(loglvl.InfoLevel, "c2s downstream user registered").FieldAdd("user", uc.user.String()).Log()
	c.obs.OnOkDownstreamUser(uc.user)
}

func (c *C2S) removeDownstreamUser(user User) {
	c.mu.Lock()
	delete(c.users, user)
	c.mu.Unlock()
}

// forwardUpstream sends a message received from a downstream user on to
// the upstream server with SrcUser set to the downstream user's
// authenticated identity; the server decides final delivery.
func (c *C2S) forwardUpstream(src User, h Header, payload []byte) {
	if len(payload) == 0 {
		return
	}

	c.mu.RLock()
	sess := c.upSess
	c.mu.RUnlock()

	if sess == nil {
		return
	}

	if !c.upOut.reserve(len(payload)) {
		return
	}
	defer c.upOut.release(len(payload))

	buf, err := Header{Charset: h.Charset, SrcUser: src, DstUsers: h.DstUsers}.MarshalBinary(payload)
	if err != nil {
		return
	}
	_ = sess.SendPacket(buf)
}

// deliverDownstream is reached for every message the upstream server sends
// this relay: it delivers locally to any destination found in this
// relay's own downstream roster and silently drops the rest, since a
// destination not in that roster belongs to some other part of the mesh
// the server itself is responsible for reaching.
func (c *C2S) deliverDownstream(src User, h Header, payload []byte) {
	if len(payload) == 0 {
		return
	}

	for _, dst := range h.DstUsers {
		c.mu.RLock()
		uc, ok := c.users[dst]
		c.mu.RUnlock()
		if !ok {
			continue
		}

		if !uc.out.reserve(len(payload)) {
			continue
		}
		buf, err := Header{Charset: h.Charset, SrcUser: src, DstUsers: []User{dst}}.MarshalBinary(payload)
		if err == nil {
			_ = uc.sess.SendPacket(buf)
		}
		uc.out.release(len(payload))
	}
}

// SendingBytes reports the upstream link's and one downstream user's
// current outbound queue depths.
func (c *C2S) SendingBytes(user User) (upstream, downstream int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	upstream = c.upOut.depth()
	if uc, ok := c.users[user]; ok {
		downstream = uc.out.depth()
	}
	return
}

// Addr reports the downstream listener's bound address, or nil before
// ListenDownstream has started accepting.
func (c *C2S) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.acceptor == nil {
		return nil
	}
	return c.acceptor.Addr()
}

// Close tears down the downstream listener and the upstream session.
func (c *C2S) Close() error {
	c.mu.Lock()
	a := c.acceptor
	sess := c.upSess
	c.mu.Unlock()

	var err error
	if a != nil {
		if e := a.Close(); e != nil {
			err = e
		}
	}
	if sess != nil {
		if e := sess.Close(); e != nil {
			err = e
		}
	}
	return err
}

type c2sUpstreamObserver struct {
	c *C2S
}

func (o *c2sUpstreamObserver) OnOkSession(_ session.Session) {}

func (o *c2sUpstreamObserver) OnRecvPacket(_ session.Session, f session.Frame) {
	h, n, err := UnmarshalHeader(f.Payload)
	if err != nil {
		return
	}
	o.c.deliverDownstream(h.SrcUser, h, f.Payload[n:])
}

func (o *c2sUpstreamObserver) OnCloseSession(_ session.Session, err error, _ bool) {
	o.c.obs.OnUpstreamClosed(err)
}

type c2sDownstreamObserver struct {
	c  *C2S
	uc *userConn
}

func (o *c2sDownstreamObserver) OnOkSession(_ session.Session) {}

func (o *c2sDownstreamObserver) OnRecvPacket(_ session.Session, f session.Frame) {
	h, n, err := UnmarshalHeader(f.Payload)
	if err != nil {
		return
	}
	o.c.forwardUpstream(o.uc.user, h, f.Payload[n:])
}

func (o *c2sDownstreamObserver) OnCloseSession(_ session.Session, err error, _ bool) {
	o.c.removeDownstreamUser(o.uc.user)
	o.c.obs.OnCloseDownstreamUser(o.uc.user, err)
}
