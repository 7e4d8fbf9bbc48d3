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
	"github.com/nabbar/pronet/certificates"
	"github.com/nabbar/pronet/duration"
	liberr "github.com/nabbar/pronet/errors"
	"github.com/nabbar/pronet/network/protocol"
)

// TransportConfig configures one listener or dialer endpoint over
// transport.Acceptor/Connector, per spec.md §4.4/§4.5: the network family,
// the address, the extended-handshake timeouts, and an optional TLS
// context for the Tls transport variant.
type TransportConfig struct {
	// Network selects the dialer/listener family (tcp, tcp4, udp, unix, ...).
	Network protocol.NetworkProtocol `json:"network" yaml:"network" toml:"network" mapstructure:"network" validate:"required"`

	// Address is the listen or dial address, in the form host:port (or a
	// filesystem path for unix/unixgram).
	Address string `json:"address" yaml:"address" toml:"address" mapstructure:"address" validate:"required"`

	// AcceptTimeout bounds the extended acceptor's nonce/preamble exchange;
	// zero falls back to transport.DefaultAcceptTimeout.
	AcceptTimeout duration.Duration `json:"acceptTimeout,omitempty" yaml:"acceptTimeout,omitempty" toml:"acceptTimeout,omitempty" mapstructure:"acceptTimeout,omitempty"`

	// ConnectTimeout bounds the extended connector's dial-plus-handshake;
	// zero falls back to transport.DefaultConnectTimeout.
	ConnectTimeout duration.Duration `json:"connectTimeout,omitempty" yaml:"connectTimeout,omitempty" toml:"connectTimeout,omitempty" mapstructure:"connectTimeout,omitempty"`

	// PoolCapacity sizes the recv pool every transport.Transport built on
	// this endpoint is given.
	PoolCapacity int `json:"poolCapacity,omitempty" yaml:"poolCapacity,omitempty" toml:"poolCapacity,omitempty" mapstructure:"poolCapacity,omitempty" validate:"omitempty,min=1"`

	// TLS, when non-nil, upgrades this endpoint to the Tls transport
	// variant using the teacher's certificates.Config wrapper.
	TLS *certificates.Config `json:"tls,omitempty" yaml:"tls,omitempty" toml:"tls,omitempty" mapstructure:"tls,omitempty"`
}

// Validate checks the struct's constraints via go-playground/validator.
func (c *TransportConfig) Validate() liberr.Error {
	return validateStruct(c)
}
