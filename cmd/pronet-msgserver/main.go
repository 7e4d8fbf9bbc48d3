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

// Command pronet-msgserver runs a standalone msg.Server: the hub of the
// hierarchical messaging overlay of spec.md §4.10, accepting direct users
// and downstream C2S relays over one TCP listener.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabbar/pronet/config"
	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/msg"
	"github.com/nabbar/pronet/reactor"
	"github.com/nabbar/pronet/session"
)

func main() {
	var cfgPath = flag.String("config", "", "path to a msgserver config file (json/yaml/toml)")
	flag.Parse()

	ctx := context.Background()
	log := liblog.New(ctx)

	if *cfgPath == "" {
		log.Entry(loglvl.FatalLevel, "missing required -config flag").Log()
		os.Exit(1)
	}

	b, err := os.ReadFile(*cfgPath)
	if err != nil {
		log.Entry(loglvl.FatalLevel, "reading config file").ErrorAdd(true, err).Log()
		os.Exit(1)
	}

	cfg, verr := config.LoadMsgServerConfig(*cfgPath, b)
	if verr != nil {
		log.Entry(loglvl.FatalLevel, "invalid msgserver config").ErrorAdd(true, verr).Log()
		os.Exit(1)
	}

	react := reactor.New(cfg.Reactor.Workers, log)
	if err = react.Start(ctx); err != nil {
		log.Entry(loglvl.FatalLevel, "starting reactor").ErrorAdd(true, err).Log()
		os.Exit(1)
	}

	obs := &serverObserver{log: log, password: cfg.Password}

	opts := []msg.ServerOption{
		msg.WithServerRedlines(cfg.RedlineServerToUser, cfg.RedlineServerToC2S),
	}
	if cfg.HandshakeTimeout.Time() > 0 {
		opts = append(opts, msg.WithServerTimeout(cfg.HandshakeTimeout.Time()))
	}
	if cfg.Transport.PoolCapacity > 0 {
		opts = append(opts, msg.WithServerPoolCapacity(cfg.Transport.PoolCapacity))
	}

	srv, err := msg.NewServer(react, obs, opts...)
	if err != nil {
		log.Entry(loglvl.FatalLevel, "building msg server").ErrorAdd(true, err).Log()
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(runCtx, cfg.Transport.Network.String(), cfg.Transport.Address)
	}()

	select {
	case <-quit:
		cancel()
		_ = srv.Close()
	case err = <-errCh:
		if err != nil {
			log.Entry(loglvl.ErrorLevel, "msg server listen loop ended").ErrorAdd(true, err).Log()
			os.Exit(1)
		}
	}
}

// serverObserver accepts every handshake whose password hash matches the
// configured shared secret, assigning back whatever user id the client
// requested.
type serverObserver struct {
	log      liblog.Logger
	password string
}

func (o *serverObserver) OnCheckUser(req msg.User, publicIP net.IP, c2sUser bool, hash [32]byte, nonce [32]byte, appData []byte) (bool, msg.User, []byte) {
	expect := session.HashPassword(nonce[:], o.password)
	if expect != hash {
		o.log.Entry(loglvl.WarnLevel, "rejected handshake: bad password").
			FieldAdd("user", req.String()).
			FieldAdd("remoteIP", publicIP.String()).
			Log()
		return false, msg.User{}, nil
	}
	return true, req, nil
}

func (o *serverObserver) OnOkUser(user msg.User, isC2S bool) {
	o.log.Entry(loglvl.InfoLevel, "user connected").
		FieldAdd("user", user.String()).
		FieldAdd("c2s", isC2S).
		Log()
}

func (o *serverObserver) OnRecvMsg(src msg.User, dst msg.User, charset uint16, payload []byte) {
	o.log.Entry(loglvl.DebugLevel, "message routed").
		FieldAdd("src", src.String()).
		FieldAdd("dst", dst.String()).
		FieldAdd("bytes", len(payload)).
		Log()
}

func (o *serverObserver) OnCloseUser(user msg.User, err error) {
	e := o.log.Entry(loglvl.InfoLevel, "user disconnected").FieldAdd("user", user.String())
	if err != nil {
		e = e.ErrorAdd(true, err)
	}
	e.Log()
}
