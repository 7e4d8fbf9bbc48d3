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

package config

import (
	"github.com/nabbar/pronet/duration"
	liberr "github.com/nabbar/pronet/errors"
)

// MsgServerConfig configures a msg.Server process front-end: the listen
// endpoint, the shared password the handshake's hash is checked against,
// and the backpressure redlines of spec.md §4.10.
type MsgServerConfig struct {
	Reactor   ReactorConfig   `json:"reactor" yaml:"reactor" toml:"reactor" mapstructure:"reactor"`
	Transport TransportConfig `json:"transport" yaml:"transport" toml:"transport" mapstructure:"transport"`
	Session   SessionConfig   `json:"session" yaml:"session" toml:"session" mapstructure:"session"`

	// Password is the shared secret every handshake's password hash is
	// checked against. Required: an empty password would make
	// OnCheckUser's hash comparison meaningless.
	Password string `json:"password" yaml:"password" toml:"password" mapstructure:"password" validate:"required"`

	// HandshakeTimeout overrides msg.DefaultHandshakeTimeout.
	HandshakeTimeout duration.Duration `json:"handshakeTimeout,omitempty" yaml:"handshakeTimeout,omitempty" toml:"handshakeTimeout,omitempty" mapstructure:"handshakeTimeout,omitempty"`

	// RedlineServerToUser overrides msg.DefaultRedlineServerToUser (bytes).
	RedlineServerToUser int64 `json:"redlineServerToUser,omitempty" yaml:"redlineServerToUser,omitempty" toml:"redlineServerToUser,omitempty" mapstructure:"redlineServerToUser,omitempty" validate:"omitempty,min=1"`

	// RedlineServerToC2S overrides msg.DefaultRedlineServerToC2S (bytes).
	RedlineServerToC2S int64 `json:"redlineServerToC2S,omitempty" yaml:"redlineServerToC2S,omitempty" toml:"redlineServerToC2S,omitempty" mapstructure:"redlineServerToC2S,omitempty" validate:"omitempty,min=1"`
}

// Validate checks the struct's constraints, recursing into its embedded
// component configs.
func (c *MsgServerConfig) Validate() liberr.Error {
	e := validateStruct(c)

	for _, sub := range []interface{ Validate() liberr.Error }{&c.Reactor, &c.Transport, &c.Session} {
		if se := sub.Validate(); se != nil {
			if e == nil {
				e = ErrorValidatorError.ErrorParent(nil)
			}
			e.Add(se)
		}
	}

	return e
}

// DefaultMsgServerConfig returns a single-worker, tcp4-framed server
// config. Transport is left zero (no network or address set) and both
// redline overrides are zero, so msg's default redlines apply.
func DefaultMsgServerConfig() MsgServerConfig {
	return MsgServerConfig{
		Reactor: DefaultReactorConfig(),
		Session: DefaultSessionConfig(),
	}
}

// HubConfig configures a servicehub.Hub process front-end: the externally
// facing accept port, the Unix-domain IPC socket path registered hosts dial
// to register/lookup, and the dispatch policy across a service id's hosts.
type HubConfig struct {
	// ServicePort is the external port the hub accepts connections on.
	ServicePort uint16 `json:"servicePort" yaml:"servicePort" toml:"servicePort" mapstructure:"servicePort" validate:"required"`

	// IPCPath is the filesystem path of the hub's Unix-domain socket.
	IPCPath string `json:"ipcPath" yaml:"ipcPath" toml:"ipcPath" mapstructure:"ipcPath" validate:"required"`

	// Policy selects servicehub.DispatchActiveStandby (0) or
	// servicehub.DispatchLoadBalance (1) across a service id's live hosts.
	Policy uint8 `json:"policy" yaml:"policy" toml:"policy" mapstructure:"policy" validate:"oneof=0 1"`

	// Extended runs the nonce/preamble exchange of spec.md §4.5 on every
	// external connection before dispatching (servicehub.NewEx) instead of
	// handing it off with no handshake (servicehub.New).
	Extended bool `json:"extended,omitempty" yaml:"extended,omitempty" toml:"extended,omitempty" mapstructure:"extended,omitempty"`

	// AcceptTimeout bounds an Extended hub's nonce/preamble exchange; zero
	// falls back to servicehub.DefaultAcceptTimeout.
	AcceptTimeout duration.Duration `json:"acceptTimeout,omitempty" yaml:"acceptTimeout,omitempty" toml:"acceptTimeout,omitempty" mapstructure:"acceptTimeout,omitempty"`
}

// Validate checks the struct's constraints via go-playground/validator.
func (c *HubConfig) Validate() liberr.Error {
	return validateStruct(c)
}
