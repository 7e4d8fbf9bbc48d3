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
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	liberr "github.com/nabbar/pronet/errors"
)

// Decode fills dst from b, picking json/yaml/toml by path's extension -
// the same trio logger/config's own Options are documented to round-trip
// through. An unrecognized extension defaults to json, matching a config
// file handed in without one (e.g. piped from stdin by a caller that
// already knows its own format).
func Decode(path string, b []byte, dst interface{}) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, dst)
	case ".toml":
		return toml.Unmarshal(b, dst)
	default:
		return json.Unmarshal(b, dst)
	}
}

// LoadMsgServerConfig decodes b (per path's extension) into a
// MsgServerConfig and validates it in one step.
func LoadMsgServerConfig(path string, b []byte) (MsgServerConfig, liberr.Error) {
	cfg := DefaultMsgServerConfig()
	if err := Decode(path, b, &cfg); err != nil {
		e := ErrorValidatorError.ErrorParent(err)
		return cfg, e
	}
	return cfg, cfg.Validate()
}

// LoadHubConfig decodes b (per path's extension) into a HubConfig and
// validates it in one step.
func LoadHubConfig(path string, b []byte) (HubConfig, liberr.Error) {
	var cfg HubConfig
	if err := Decode(path, b, &cfg); err != nil {
		e := ErrorValidatorError.ErrorParent(err)
		return cfg, e
	}
	return cfg, cfg.Validate()
}
