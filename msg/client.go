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
	"sync"
	"time"

	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/rtp"
	"github.com/nabbar/pronet/session"
	"github.com/nabbar/pronet/transport"
)

// ClientObserver is the hook a Client's owner implements to receive its
// routed messages and learn when the underlying session goes away.
type ClientObserver interface {
	// OnRecvMsg delivers one routed, non-heartbeat message addressed to
	// this client's identity.
	OnRecvMsg(src User, dst User, charset uint16, payload []byte)

	// OnClose fires once, whatever the cause.
	OnClose(err error)
}

// Client is one authenticated connection to a Server (or a C2S's
// downstream half), built from the handshake of spec.md §4.10's fig.
type Client struct {
	obs          ClientObserver
	react        reactor.Reactor
	log          liblog.Logger
	timeout      time.Duration
	poolCapacity int
	out          *redline

	mu      sync.RWMutex
	self    User
	sess    session.Session
	closeCh chan struct{}
}

// ClientOption configures optional Client behavior at construction.
type ClientOption func(*Client)

// WithClientTimeout overrides DefaultHandshakeTimeout.
func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithClientOutputRedline overrides DefaultOutputRedline.
func WithClientOutputRedline(limit int64) ClientOption {
	return func(c *Client) { c.out = newRedline(limit) }
}

// WithClientPoolCapacity overrides the session's recv pool size.
func WithClientPoolCapacity(n int) ClientOption {
	return func(c *Client) { c.poolCapacity = n }
}

// WithClientLogger attaches log to the session and transport Dial/DialC2S
// build. A nil Logger (the default) falls back to a discard logger.
func WithClientLogger(log liblog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// Dial connects to address, runs the extended connector of spec.md §4.5
// followed by the messaging handshake, and returns a Client ready to send
// and receive once its session reaches Ready.
func Dial(ctx context.Context, react reactor.Reactor, obs ClientObserver, network, address string, pre transport.Preamble, password string, req User, appData []byte, opts ...ClientOption) (*Client, error) {
	return dial(ctx, react, obs, network, address, pre, password, req, false, appData, opts...)
}

// DialC2S is Dial's c2s-flavored twin: it announces itself as a gateway in
// the handshake's UserData so the remote server's OnCheckUser can register
// it as an attached c2s link rather than a plain user.
func DialC2S(ctx context.Context, react reactor.Reactor, obs ClientObserver, network, address string, pre transport.Preamble, password string, req User, appData []byte, opts ...ClientOption) (*Client, error) {
	return dial(ctx, react, obs, network, address, pre, password, req, true, appData, opts...)
}

func dial(ctx context.Context, react reactor.Reactor, obs ClientObserver, network, address string, pre transport.Preamble, password string, req User, c2sUser bool, appData []byte, opts ...ClientOption) (*Client, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	if react == nil {
		return nil, ErrNilReactor
	}

	c := &Client{
		obs:          obs,
		react:        react,
		timeout:      DefaultHandshakeTimeout,
		poolCapacity: 4096,
		out:          newRedline(DefaultOutputRedline),
		closeCh:      make(chan struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = liblog.NewDiscard()
	}

	conn, nonce, err := transport.NewConnectorEx(network, address, c.timeout).Connect(ctx, pre)
	if err != nil {
		return nil, err
	}

	h0, err := clientHandshake(conn, c.timeout, nonce, password, req, c2sUser, appData)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.self = h0.User

	build := func(o transport.Observer) (transport.Transport, error) {
		return transport.NewTCP(conn, react, o, c.poolCapacity, c.log)
	}
	info := session.Info{LocalVersion: ProtocolVersion, RemoteVersion: h0.Version, SessionType: rtp.SessionTCPClientEx, MmType: rtp.MMTMsg, PackMode: rtp.PackModeTcp4}

	sess, err := session.NewPlain(info, react, &clientSessionObserver{c: c}, build, c.log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()

	c.log.Entry(loglvl.InfoLevel, "client connected").FieldAdd("user", c.self.String()).Log()
	return c, nil
}

// Self is the identity the handshake assigned this client - equal to the
// requested User unless it asked for an ephemeral one (user_id zero).
func (c *Client) Self() User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// SendMsg sends payload to a single destination under charset zero.
func (c *Client) SendMsg(dst User, payload []byte) error {
	return c.SendMsg2(charsetDefault, []User{dst}, payload)
}

const charsetDefault = 0

// SendMsg2 sends payload to every destination in dsts in one RTP_MSG_HEADER
// frame, honoring this client's output redline (spec.md §4.10: default 1
// MiB, tunable with WithClientOutputRedline / SetOutputRedline).
func (c *Client) SendMsg2(charset uint16, dsts []User, payload []byte) error {
	c.mu.RLock()
	sess := c.sess
	self := c.self
	c.mu.RUnlock()

	if sess == nil {
		return ErrClosed
	}
	if !c.out.reserve(len(payload)) {
		return ErrBusy
	}
	defer c.out.release(len(payload))

	buf, err := Header{Charset: charset, SrcUser: self, DstUsers: dsts}.MarshalBinary(payload)
	if err != nil {
		return err
	}
	return sess.SendPacket(buf)
}

// SetOutputRedline replaces this client's outbound backpressure limit.
func (c *Client) SetOutputRedline(limit int64) {
	c.out = newRedline(limit)
}

// SendingBytes reports this client's current outbound queue depth.
func (c *Client) SendingBytes() int64 {
	return c.out.depth()
}

// Close closes the underlying session.
func (c *Client) Close() error {
	c.mu.RLock()
	sess := c.sess
	c.mu.RUnlock()

	if sess == nil {
		return nil
	}
	return sess.Close()
}

type clientSessionObserver struct {
	c *Client
}

func (o *clientSessionObserver) OnOkSession(_ session.Session) {}

func (o *clientSessionObserver) OnRecvPacket(_ session.Session, f session.Frame) {
	h, n, err := UnmarshalHeader(f.Payload)
	if err != nil {
		return
	}
	payload := f.Payload[n:]
	if len(payload) == 0 {
		return
	}

	dst := o.c.Self()
	for _, d := range h.DstUsers {
		if d == dst {
			o.c.obs.OnRecvMsg(h.SrcUser, d, h.Charset, payload)
			return
		}
	}
}

func (o *clientSessionObserver) OnCloseSession(_ session.Session, err error, _ bool) {
	o.c.obs.OnClose(err)
}
