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

// ReactorConfig configures one reactor.Reactor, per spec.md §4.1: worker
// pool size and the heartbeat period every session it drives is slotted
// against.
type ReactorConfig struct {
	// Workers is the reactor's fixed worker-pool size.
	Workers int `json:"workers" yaml:"workers" toml:"workers" mapstructure:"workers" validate:"required,min=1,max=4096"`

	// HeartbeatPeriod overrides session.DefaultHeartbeatPeriod for every
	// session this reactor drives.
	HeartbeatPeriod duration.Duration `json:"heartbeatPeriod,omitempty" yaml:"heartbeatPeriod,omitempty" toml:"heartbeatPeriod,omitempty" mapstructure:"heartbeatPeriod,omitempty"`
}

// Validate checks the struct's constraints via go-playground/validator.
func (c *ReactorConfig) Validate() liberr.Error {
	return validateStruct(c)
}

// DefaultReactorConfig returns a single-worker reactor config, sufficient
// for one pronet-msgserver or pronet-hub process under light load.
func DefaultReactorConfig() ReactorConfig {
	return ReactorConfig{Workers: 1}
}
