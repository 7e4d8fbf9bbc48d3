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

// Bytes is a byte count that prints itself using binary units (KB, MB,
// GB... at powers of 1024), as opposed to Number which uses decimal SI
// units.
type Bytes uint64

// String returns the plain decimal representation of b, with no unit.
func (b Bytes) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// AsNumber reinterprets b as a plain count.
func (b Bytes) AsNumber() Number {
	return Number(b)
}

// AsUint64 returns the raw value of b.
func (b Bytes) AsUint64() uint64 {
	return uint64(b)
}

// AsFloat64 returns b as a float64.
func (b Bytes) AsFloat64() float64 {
	return float64(b)
}

// FormatUnitInt formats b rounded to the nearest unit, picking the largest
// binary unit that fits, and pads the numeric part to a fixed width so
// columns of values line up.
func (b Bytes) FormatUnitInt() string {
	v := uint64(b)

	for _, p := range powerList() {
		thr, ok := binaryThreshold(p)
		if !ok || v < thr {
			continue
		}

		scaled := (v + thr/2) / thr
		unit := power2Unit(p)
		if unit == "" {
			return fmt.Sprintf(_PadIntPattern_, scaled)
		}
		return fmt.Sprintf(_PadIntPattern_+" %sB", scaled, unit)
	}

	return fmt.Sprintf(_PadIntPattern_, v)
}

// FormatUnitFloat is like FormatUnitInt but keeps precision decimal places
// instead of rounding to an integer. A precision of 0 delegates to
// FormatUnitInt.
func (b Bytes) FormatUnitFloat(precision int) string {
	if precision <= 0 {
		return b.FormatUnitInt()
	}

	v := uint64(b)
	width := _MaxSizeOfPad_ + 1 + precision

	for _, p := range powerList() {
		thr, ok := binaryThreshold(p)
		if !ok || v < thr {
			continue
		}

		scaled := float64(v) / float64(thr)
		unit := power2Unit(p)
		if unit == "" {
			return fmt.Sprintf("%*.*f", width, precision, scaled)
		}
		return fmt.Sprintf("%*.*f %sB", width, precision, scaled, unit)
	}

	return fmt.Sprintf("%*.*f", width, precision, float64(v))
}
