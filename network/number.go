/*
 *  MIT License
 *
 *  Copyright (c) 2020 Nicolas JUHEL
 *
 *  Permission is hereby granted, free of charge, to any person obtaining a copy
 *  of this software and associated documentation files (the "Software"), to deal
 *  in the Software without restriction, including without limitation the rights
 *  to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *  copies of the Software, and to permit persons to whom the Software is
 *  furnished to do so, subject to the following conditions:
 *
 *  The above copyright notice and this permission notice shall be included in all
 *  copies or substantial portions of the Software.
 *
 *  THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *  IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *  FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *  AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *  LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *  OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *  SOFTWARE.
 *
 */

package network

import (
	"fmt"
	"strconv"
)

// Number is a plain count (packets, errors, connections...) that prints
// itself using decimal SI units (K, M, G...), as opposed to Bytes which
// uses binary units.
type Number uint64

// String returns the plain decimal representation of n, with no unit.
func (n Number) String() string {
	return strconv.FormatUint(uint64(n), 10)
}

// AsBytes reinterprets n as a byte count.
func (n Number) AsBytes() Bytes {
	return Bytes(n)
}

// AsUint64 returns the raw value of n.
func (n Number) AsUint64() uint64 {
	return uint64(n)
}

// AsFloat64 returns n as a float64.
func (n Number) AsFloat64() float64 {
	return float64(n)
}

// FormatUnitInt formats n rounded to the nearest unit, picking the largest
// decimal SI prefix that fits, and pads the numeric part to a fixed width so
// columns of values line up.
func (n Number) FormatUnitInt() string {
	v := uint64(n)

	for _, p := range powerList() {
		thr, ok := decimalThreshold(p)
		if !ok || v < thr {
			continue
		}

		scaled := (v + thr/2) / thr
		unit := power2Unit(p)
		if unit == "" {
			return fmt.Sprintf(_PadIntPattern_, scaled)
		}
		return fmt.Sprintf(_PadIntPattern_+" %s", scaled, unit)
	}

	return fmt.Sprintf(_PadIntPattern_, v)
}

// FormatUnitFloat is like FormatUnitInt but keeps precision decimal places
// instead of rounding to an integer. A precision of 0 delegates to
// FormatUnitInt.
func (n Number) FormatUnitFloat(precision int) string {
	if precision <= 0 {
		return n.FormatUnitInt()
	}

	v := uint64(n)
	width := _MaxSizeOfPad_ + 1 + precision

	for _, p := range powerList() {
		thr, ok := decimalThreshold(p)
		if !ok || v < thr {
			continue
		}

		scaled := float64(v) / float64(thr)
		unit := power2Unit(p)
		if unit == "" {
			return fmt.Sprintf("%*.*f", width, precision, scaled)
		}
		return fmt.Sprintf("%*.*f %s", width, precision, scaled, unit)
	}

	return fmt.Sprintf("%*.*f", width, precision, float64(v))
}
