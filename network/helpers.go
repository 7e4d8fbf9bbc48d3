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

// Package network provides small, dependency-free value types for describing
// network-facing quantities: byte and packet counts with human-readable
// formatting, and helpers for matching interface flags.
package network

import "math"

// Decimal SI powers used by Number's unit formatting. Spaced by 3 so each
// step is a thousand of the previous one.
const (
	_PowerUnit_  = 0
	_PowerKilo_  = 3
	_PowerMega_  = 6
	_PowerGiga_  = 9
	_PowerTera_  = 12
	_PowerPeta_  = 15
	_PowerExa_   = 18
	_PowerZetta_ = 21
	_PowerYotta_ = 24
)

const (
	_MaxSizeOfPad_  = 4
	_PadIntPattern_ = "%4d"
	_PadFltPattern_ = "%7.*f"
)

// power2Unit returns the SI prefix letter for a decimal power, rounding down
// to the nearest known step. Negative powers and the unit step both return
// an empty prefix; anything at or beyond Yotta saturates to "Y".
func power2Unit(power int) string {
	switch {
	case power < _PowerKilo_:
		return ""
	case power < _PowerMega_:
		return "K"
	case power < _PowerGiga_:
		return "M"
	case power < _PowerTera_:
		return "G"
	case power < _PowerPeta_:
		return "T"
	case power < _PowerExa_:
		return "P"
	case power < _PowerZetta_:
		return "E"
	case power < _PowerYotta_:
		return "Z"
	default:
		return "Y"
	}
}

// powerList returns the known decimal powers, largest first, for use when
// hunting the right unit for a value by scanning from the top down.
func powerList() []int {
	return []int{
		_PowerYotta_,
		_PowerZetta_,
		_PowerExa_,
		_PowerPeta_,
		_PowerTera_,
		_PowerGiga_,
		_PowerMega_,
		_PowerKilo_,
		_PowerUnit_,
	}
}

// decimalThreshold returns 10^power as a uint64, and false if that power
// cannot be represented without overflowing uint64 — which only happens for
// Zetta and Yotta, powers no 64-bit value ever reaches.
func decimalThreshold(power int) (uint64, bool) {
	if power <= 0 {
		return 1, true
	}

	var r uint64 = 1
	for i := 0; i < power; i++ {
		if r > math.MaxUint64/10 {
			return 0, false
		}
		r *= 10
	}

	return r, true
}

// binaryThreshold returns the binary equivalent of decimalThreshold: 2 raised
// to ten bits per decimal power step (so Kilo -> 2^10, Mega -> 2^20, ...).
func binaryThreshold(power int) (uint64, bool) {
	shift := uint((power / 3) * 10)
	if shift >= 64 {
		return 0, false
	}

	return uint64(1) << shift, true
}
