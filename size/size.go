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
 *
 */

// Package size provides a byte-size type with human-readable parsing and formatting.
//
// Recv-pool capacities, session redlines, and wire-frame payload ceilings are
// all expressed as Size instead of bare integers so config files can read
// "64KB" or "96MB" instead of raw byte counts.
package size

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Size is a byte count with saturating arithmetic (never wraps past math.MaxUint64).
type Size uint64

const (
	SizeNul  Size = 0
	SizeUnit Size = 1
	SizeKilo Size = SizeUnit << 10
	SizeMega Size = SizeKilo << 10
	SizeGiga Size = SizeMega << 10
	SizeTera Size = SizeGiga << 10
	SizePeta Size = SizeTera << 10
	SizeExa  Size = SizePeta << 10
)

func (s Size) Uint64() uint64 {
	return uint64(s)
}

func (s Size) Int64() int64 {
	if s > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(s)
}

func (s Size) Float64() float64 {
	return float64(s)
}

// Add returns s+o, saturating at math.MaxUint64.
func (s Size) Add(o Size) Size {
	if math.MaxUint64-uint64(s) < uint64(o) {
		return Size(math.MaxUint64)
	}
	return s + o
}

// Sub returns s-o, floored at 0.
func (s Size) Sub(o Size) Size {
	if o > s {
		return SizeNul
	}
	return s - o
}

// Mul returns s*f, saturating at math.MaxUint64.
func (s Size) Mul(f Size) Size {
	if s == 0 || f == 0 {
		return SizeNul
	}
	if uint64(s) > math.MaxUint64/uint64(f) {
		return Size(math.MaxUint64)
	}
	return s * f
}

// Div returns s/f, or SizeNul if f is zero.
func (s Size) Div(f Size) Size {
	if f == 0 {
		return SizeNul
	}
	return s / f
}

var units = []struct {
	suffix string
	unit   Size
}{
	{"EB", SizeExa},
	{"PB", SizePeta},
	{"TB", SizeTera},
	{"GB", SizeGiga},
	{"MB", SizeMega},
	{"KB", SizeKilo},
}

// String renders the size using the largest unit that keeps the mantissa >= 1.
func (s Size) String() string {
	for _, u := range units {
		if s >= u.unit {
			v := float64(s) / float64(u.unit)
			return strconv.FormatFloat(v, 'f', 2, 64) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10) + "B"
}

// Parse reads a human size string ("100MB", "1K", "512", "2.5GB") into a Size.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return SizeNul, fmt.Errorf("size: empty string")
	}

	i := 0
	for i < len(s) && (s[i] == '.' || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}

	numPart := s[:i]
	sufPart := strings.ToUpper(strings.TrimSpace(s[i:]))

	if numPart == "" {
		return SizeNul, fmt.Errorf("size: no numeric value in %q", s)
	}

	v, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return SizeNul, fmt.Errorf("size: invalid numeric value in %q: %w", s, err)
	}

	mul := SizeUnit
	switch sufPart {
	case "", "B":
		mul = SizeUnit
	case "K", "KB", "KIB":
		mul = SizeKilo
	case "M", "MB", "MIB":
		mul = SizeMega
	case "G", "GB", "GIB":
		mul = SizeGiga
	case "T", "TB", "TIB":
		mul = SizeTera
	case "P", "PB", "PIB":
		mul = SizePeta
	case "E", "EB", "EIB":
		mul = SizeExa
	default:
		return SizeNul, fmt.Errorf("size: unknown unit %q in %q", sufPart, s)
	}

	return Size(v * float64(mul)), nil
}

// MustParse is Parse but panics on error; reserved for package-level constant-like defaults.
func MustParse(s string) Size {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}
