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

// Command pronet-hub runs a standalone servicehub.Hub: it accepts
// connections on one externally-facing port and dispatches each, file
// descriptor and all, to whichever Service-Host process has registered for
// that connection's service id on the hub's IPC socket.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/nabbar/pronet/config"
	liblog "github.com/nabbar/pronet/logger"
	loglvl "github.com/nabbar/pronet/logger/level"
	"github.com/nabbar/pronet/servicehub"
)

func main() {
	var cfgPath = flag.String("config", "", "path to a hub config file (json/yaml/toml)")
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

	cfg, verr := config.LoadHubConfig(*cfgPath, b)
	if verr != nil {
		log.Entry(loglvl.FatalLevel, "invalid hub config").ErrorAdd(true, verr).Log()
		os.Exit(1)
	}

	obs := &hubObserver{log: log}

	var hub servicehub.Hub
	if cfg.Extended {
		hub, err = servicehub.NewEx(cfg.ServicePort, cfg.IPCPath, cfg.AcceptTimeout.Time(), servicehub.DispatchPolicy(cfg.Policy), obs, log)
	} else {
		hub, err = servicehub.New(cfg.ServicePort, cfg.IPCPath, servicehub.DispatchPolicy(cfg.Policy), obs, log)
	}
	if err != nil {
		log.Entry(loglvl.FatalLevel, "building hub").ErrorAdd(true, err).Log()
		os.Exit(1)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	errCh := make(chan error, 1)
	go func() {
		errCh <- hub.Listen(runCtx)
	}()

	select {
	case <-quit:
		cancel()
		_ = hub.Close()
	case err = <-errCh:
		if err != nil {
			log.Entry(loglvl.ErrorLevel, "hub listen loop ended").ErrorAdd(true, err).Log()
			os.Exit(1)
		}
	}
}

type hubObserver struct {
	log liblog.Logger
}

func (o *hubObserver) OnServiceHostConnected(servicePort uint16, serviceID uint8, hostProcessID int64) {
	o.log.Entry(loglvl.InfoLevel, "service host connected").
		FieldAdd("servicePort", servicePort).
		FieldAdd("serviceID", serviceID).
		FieldAdd("hostPID", hostProcessID).
		Log()
}

func (o *hubObserver) OnServiceHostDisconnected(servicePort uint16, serviceID uint8, hostProcessID int64, timeout bool) {
	o.log.Entry(loglvl.WarnLevel, "service host disconnected").
		FieldAdd("servicePort", servicePort).
		FieldAdd("serviceID", serviceID).
		FieldAdd("hostPID", hostProcessID).
		FieldAdd("timeout", timeout).
		Log()
}
