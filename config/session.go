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

// SessionConfig configures the session-layer knobs of spec.md §4.8/§4.9
// that are safe to expose outside a session's constructor: its framing
// discipline and the keepalive bound a session.Observer will see
// session.ErrTimeout for.
type SessionConfig struct {
	// PackMode selects the tcp/ssl-ex framing discipline: 0 (ext+header),
	// 2 (len2-prefixed) or 4 (len4-prefixed) - rtp.PackMode's own values.
	PackMode uint8 `json:"packMode" yaml:"packMode" toml:"packMode" mapstructure:"packMode" validate:"oneof=0 2 4"`

	// KeepaliveTimeout overrides session.DefaultKeepaliveTimeout.
	KeepaliveTimeout duration.Duration `json:"keepaliveTimeout,omitempty" yaml:"keepaliveTimeout,omitempty" toml:"keepaliveTimeout,omitempty" mapstructure:"keepaliveTimeout,omitempty"`
}

// Validate checks the struct's constraints via go-playground/validator.
func (c *SessionConfig) Validate() liberr.Error {
	return validateStruct(c)
}

// DefaultSessionConfig returns the RTP_MSG family's wire framing
// (tcp4/length-prefixed), matching msg's own handshake.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{PackMode: 4}
}
