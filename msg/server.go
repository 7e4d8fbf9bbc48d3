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

// Observer is the hook a Server's owner implements to authenticate
// connecting users and receive their routed messages, per spec.md §4.10.
type Observer interface {
	// OnCheckUser runs once per pending connection, right after its
	// RTP_SESSION_INFO arrives. Implementations verify hash against
	// their own SHA-256(nonce‖password) (HashPassword does the same
	// computation a client ran), assign a free ephemeral user id when
	// req.UserID is zero. c2sUser reports whether req announced itself
	// as a c2s relay; that flag alone decides whether the connection is
	// registered as a gateway, and nothing returned here can change it.
	OnCheckUser(req User, publicIP net.IP, c2sUser bool, hash [32]byte, nonce [32]byte, appData []byte) (accept bool, assigned User, respAppData []byte)

	// OnOkUser fires once a connection is authenticated and has
	// received its RTP_MSG_HEADER0.
	OnOkUser(user User, isC2S bool)

	// OnRecvMsg delivers one routed, non-heartbeat message.
	OnRecvMsg(src User, dst User, charset uint16, payload []byte)

	// OnCloseUser fires once per authenticated user, whatever the
	// cause.
	OnCloseUser(user User, err error)
}

// userConn is one authenticated connection the server has finished the
// messaging handshake on, whether an ordinary user or a c2s gateway.
type userConn struct {
	user  User
	isC2S bool
	sess  session.Session
	out   *redline
}

// Server is the messaging-layer server of spec.md §4.10: it runs the
// OnCheckUser-gated handshake on every accepted connection, then routes
// RTP_MSG_HEADER-framed messages between its local users and any attached
// c2s gateways.
type Server struct {
	obs          Observer
	react        reactor.Reactor
	log          liblog.Logger
	timeout      time.Duration
	poolCapacity int
	redlineUser  int64
	redlineC2S   int64

	acceptor transport.Acceptor

	mu       sync.RWMutex
	users    map[User]*userConn // map 1: local authenticated users
	c2sLinks map[User]*userConn // map 2: authenticated c2s gateways
	byConn   map[session.Session]User
	closing  map[User]struct{} // map 4: users mid-Close, so a second route doesn't race a removed entry back in
}

// ServerOption configures optional Server behavior at construction.
type ServerOption func(*Server)

// WithServerTimeout overrides DefaultHandshakeTimeout.
func WithServerTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.timeout = d }
}

// WithServerRedlines overrides the server->user and server->c2s
// backpressure redlines (spec.md §4.10 defaults: 1 MiB and 8 MiB).
func WithServerRedlines(toUser, toC2S int64) ServerOption {
	return func(s *Server) { s.redlineUser = toUser; s.redlineC2S = toC2S }
}

// WithServerPoolCapacity overrides the per-connection recv pool size every
// accepted session is built with.
func WithServerPoolCapacity(n int) ServerOption {
	return func(s *Server) { s.poolCapacity = n }
}

// WithServerLogger attaches log to every session and transport this Server
// builds. A nil Logger (the default) falls back to a discard logger.
func WithServerLogger(log liblog.Logger) ServerOption {
	return func(s *Server) { s.log = log }
}

// NewServer builds a Server; react is shared with every session it
// constructs, so callers control worker count and heartbeat period exactly
// as they would for any other session.Session.
func NewServer(react reactor.Reactor, obs Observer, opts ...ServerOption) (*Server, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}

	s := &Server{
		obs:          obs,
		react:        react,
		timeout:      DefaultHandshakeTimeout,
		poolCapacity: 4096,
		redlineUser:  DefaultRedlineServerToUser,
		redlineC2S:   DefaultRedlineServerToC2S,
		users:        map[User]*userConn{},
		c2sLinks:     map[User]*userConn{},
		byConn:       map[session.Session]User{},
		closing:      map[User]struct{}{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = liblog.NewDiscard()
	}
	return s, nil
}

// Listen runs the extended acceptor of spec.md §4.5 on address, handing
// every accepted connection through the messaging handshake before it
// joins the routing table. It blocks until ctx is canceled or the listener
// fails.
func (s *Server) Listen(ctx context.Context, network, address string) error {
	a, err := transport.NewAcceptorEx(network, address, s.timeout, exAcceptFunc(func(conn net.Conn, nonce [32]byte, _ transport.Preamble) {
		s.handleAccepted(conn, nonce)
	}))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.acceptor = a
	s.mu.Unlock()

	return a.Listen(ctx)
}

type exAcceptFunc func(conn net.Conn, nonce [32]byte, pre transport.Preamble)

func (f exAcceptFunc) OnAccept(conn net.Conn, nonce [32]byte, pre transport.Preamble) { f(conn, nonce, pre) }

// Addr reports the listener's bound address, or nil before Listen has
// started accepting.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Close tears down the listener; already-authenticated sessions are left
// running (callers close those through their own Session.Close).
func (s *Server) Close() error {
	s.mu.Lock()
	a := s.acceptor
	s.mu.Unlock()

	if a != nil {
		return a.Close()
	}
	return nil
}

func (s *Server) handleAccepted(conn net.Conn, nonce [32]byte) {
	check := func(req User, publicIP net.IP, c2sUser bool, hash, n [32]byte, appData []byte) (bool, User, []byte) {
		return s.obs.OnCheckUser(req, publicIP, c2sUser, hash, n, appData)
	}

	res, err := serverHandshake(conn, s.timeout, nonce, check)
	if err != nil {
		s.log.Entry(loglvl.WarnLevel, "messaging handshake rejected").
			FieldAdd("remote", conn.RemoteAddr().String()).ErrorAdd(true, err).Log()
		_ = conn.Close()
		return
	}

	s.registerConn(conn, res.Assigned, res.C2SUser)
}

func (s *Server) registerConn(conn net.Conn, user User, isC2S bool) {
	limit := s.redlineUser
	if isC2S {
		limit = s.redlineC2S
	}

	uc := &userConn{user: user, isC2S: isC2S, out: newRedline(limit)}
	obsAdapter := &serverSessionObserver{srv: s, uc: uc}

	build := func(o transport.Observer) (transport.Transport, error) {
		return transport.NewTCP(conn, s.react, o, s.poolCapacity, s.log)
	}
	info := session.Info{LocalVersion: ProtocolVersion, SessionType: rtp.SessionTCPServerEx, MmType: rtp.MMTMsg, PackMode: rtp.PackModeTcp4}

	sess, err := session.NewPlain(info, s.react, obsAdapter, build, s.log)
	if err != nil {
		_ = conn.Close()
		return
	}
	uc.sess = sess

	s.mu.Lock()
	if isC2S {
		s.c2sLinks[user] = uc
	} else {
		s.users[user] = uc
	}
	s.byConn[sess] = user
	s.mu.Unlock()

	s.log.Entry(loglvl.InfoLevel, "user registered").
		FieldAdd("user", user.String()).FieldAdd("c2s", isC2S).Log()
	s.obs.OnOkUser(user, isC2S)
}

func (s *Server) removeUser(user User) {
	s.mu.Lock()
	delete(s.users, user)
	delete(s.c2sLinks, user)
	for sess, u := range s.byConn {
		if u == user {
			delete(s.byConn, sess)
			break
		}
	}
	s.mu.Unlock()
}

// route dispatches one decoded message to each of its destinations per
// spec.md §4.10's routing rule: local delivery when the destination is an
// attached user, flood to every attached c2s gateway otherwise (the server
// has no a-priori table of which gateway owns which remote user), drop
// when neither applies. A zero-length payload is a messaging-layer
// heartbeat and is never forwarded.
func (s *Server) route(src User, h Header, payload []byte) {
	if len(payload) == 0 {
		return
	}

	for _, dst := range h.DstUsers {
		s.deliverOne(src, dst, h.Charset, payload)
	}
}

func (s *Server) deliverOne(src, dst User, charset uint16, payload []byte) {
	s.mu.RLock()
	uc, ok := s.users[dst]
	s.mu.RUnlock()

	if ok {
		_ = s.sendTo(uc, src, dst, charset, payload)
		return
	}

	s.mu.RLock()
	gateways := make([]*userConn, 0, len(s.c2sLinks))
	for _, c := range s.c2sLinks {
		gateways = append(gateways, c)
	}
	s.mu.RUnlock()

	for _, c := range gateways {
		_ = s.sendTo(c, src, dst, charset, payload)
	}
}

func (s *Server) sendTo(uc *userConn, src, dst User, charset uint16, payload []byte) error {
	if !uc.out.reserve(len(payload)) {
		return ErrBusy
	}
	defer uc.out.release(len(payload))

	buf, err := Header{Charset: charset, SrcUser: src, DstUsers: []User{dst}}.MarshalBinary(payload)
	if err != nil {
		return err
	}
	return uc.sess.SendPacket(buf)
}

// SendingBytes reports user's current outbound queue depth, per spec.md
// §4.10's backpressure contract.
func (s *Server) SendingBytes(user User) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if uc, ok := s.users[user]; ok {
		return uc.out.depth()
	}
	if uc, ok := s.c2sLinks[user]; ok {
		return uc.out.depth()
	}
	return 0
}

type serverSessionObserver struct {
	srv *Server
	uc  *userConn
}

func (o *serverSessionObserver) OnOkSession(_ session.Session) {}

func (o *serverSessionObserver) OnRecvPacket(_ session.Session, f session.Frame) {
	h, n, err := UnmarshalHeader(f.Payload)
	if err != nil {
		return
	}
	// A c2s link carries many downstream users; their identity is in the
	// header the gateway stamped, not in the link's own user.
	src := o.uc.user
	if o.uc.isC2S {
		src = h.SrcUser
	}
	o.srv.route(src, h, f.Payload[n:])
}

func (o *serverSessionObserver) OnCloseSession(_ session.Session, err error, _ bool) {
	o.srv.removeUser(o.uc.user)
	o.srv.obs.OnCloseUser(o.uc.user, err)
}
