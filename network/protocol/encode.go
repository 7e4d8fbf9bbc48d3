/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2022 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package protocol

import (
	"fmt"
	"reflect"

	"gopkg.in/yaml.v3"
)

func (n NetworkProtocol) MarshalJSON() ([]byte, error) {
	s := n.String()
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	b = append(b, '"')
	return b, nil
}

func (n *NetworkProtocol) UnmarshalJSON(b []byte) error {
	*n = ParseBytes(b)
	return nil
}

func (n NetworkProtocol) MarshalYAML() (interface{}, error) {
	return n.String(), nil
}

func (n *NetworkProtocol) UnmarshalYAML(value *yaml.Node) error {
	*n = Parse(value.Value)
	return nil
}

func (n NetworkProtocol) MarshalTOML() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NetworkProtocol) UnmarshalTOML(i interface{}) error {
	switch v := i.(type) {
	case []byte:
		*n = ParseBytes(v)
		return nil
	case string:
		*n = Parse(v)
		return nil
	default:
		return fmt.Errorf("network protocol: value not in valid format")
	}
}

func (n NetworkProtocol) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NetworkProtocol) UnmarshalText(b []byte) error {
	*n = ParseBytes(b)
	return nil
}

func (n NetworkProtocol) MarshalCBOR() ([]byte, error) {
	return []byte(n.String()), nil
}

func (n *NetworkProtocol) UnmarshalCBOR(b []byte) error {
	*n = ParseBytes(b)
	return nil
}

// viperParseNumeric validates an integer/unsigned-integer source value against
// the known protocol range, returning a mapstructure-style error (rather than
// silently falling back to NetworkEmpty) when the value is out of range —
// unlike the string path, a numeric config value has no other valid meaning.
func viperParseNumeric(v int64) (interface{}, error) {
	p := ParseInt64(v)
	if p == NetworkEmpty {
		return nil, fmt.Errorf("network protocol: invalid value %d", v)
	}
	return p, nil
}

// ViperDecoderHook returns a mapstructure-compatible decode hook converting
// strings ("tcp") or small integers (1-11) into NetworkProtocol when
// populating viper-backed config structs.
func ViperDecoderHook() func(reflect.Type, reflect.Type, interface{}) (interface{}, error) {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		var z NetworkProtocol
		if to != reflect.TypeOf(z) {
			return data, nil
		}

		switch from.Kind() {
		case reflect.String:
			s, k := data.(string)
			if !k {
				return data, nil
			}
			return Parse(s), nil

		case reflect.Int:
			v, k := data.(int)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Int8:
			v, k := data.(int8)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Int16:
			v, k := data.(int16)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Int32:
			v, k := data.(int32)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Int64:
			v, k := data.(int64)
			if !k {
				return data, nil
			}
			return viperParseNumeric(v)

		case reflect.Uint:
			v, k := data.(uint)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Uint8:
			v, k := data.(uint8)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Uint16:
			v, k := data.(uint16)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Uint32:
			v, k := data.(uint32)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		case reflect.Uint64:
			v, k := data.(uint64)
			if !k {
				return data, nil
			}
			return viperParseNumeric(int64(v))

		default:
			return data, nil
		}
	}
}
