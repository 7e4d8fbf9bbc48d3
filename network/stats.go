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

import "fmt"

// Stats identifies one of the counters a transport or reactor endpoint
// tracks. Each kind picks its own formatting: traffic is a byte count
// (binary units), the rest are plain counts (decimal units).
type Stats uint8

const (
	StatBytes Stats = iota + 1
	StatPackets
	StatFifo
	StatDrop
	StatErr
)

// labelWidth is the left padding width used by FormatLabelUnitPadded, wide
// enough to fit the longest label ("Packets"/"Traffic") plus its colon.
const labelWidth = 8

// String returns the display label for the stat, or an empty string if s is
// not a known stat.
func (s Stats) String() string {
	switch s {
	case StatBytes:
		return "Traffic"
	case StatPackets:
		return "Packets"
	case StatFifo:
		return "Fifo"
	case StatDrop:
		return "Drop"
	case StatErr:
		return "Error"
	default:
		return ""
	}
}

// FormatUnitInt formats n the way this stat is conventionally displayed:
// binary units for traffic, decimal units for everything else.
func (s Stats) FormatUnitInt(n Number) string {
	if s.String() == "" {
		return ""
	}
	if s == StatBytes {
		return n.AsBytes().FormatUnitInt()
	}
	return n.FormatUnitInt()
}

// FormatUnitFloat is the precision-preserving equivalent of FormatUnitInt.
func (s Stats) FormatUnitFloat(n Number, precision int) string {
	if s.String() == "" {
		return ""
	}
	if s == StatBytes {
		return n.AsBytes().FormatUnitFloat(precision)
	}
	return n.FormatUnitFloat(precision)
}

// FormatUnit formats n using the default precision for this stat: two
// decimal places for traffic, none for plain counts.
func (s Stats) FormatUnit(n Number) string {
	if s.String() == "" {
		return ""
	}
	if s == StatBytes {
		return s.FormatUnitFloat(n, 2)
	}
	return s.FormatUnitInt(n)
}

// FormatLabelUnit renders "<Label>: <value>".
func (s Stats) FormatLabelUnit(n Number) string {
	lbl := s.String()
	if lbl == "" {
		return ""
	}
	return fmt.Sprintf("%s: %s", lbl, s.FormatUnit(n))
}

// FormatLabelUnitPadded is FormatLabelUnit with the label padded to a fixed
// width, so a column of stats lines up regardless of label length.
func (s Stats) FormatLabelUnitPadded(n Number) string {
	lbl := s.String()
	if lbl == "" {
		return ""
	}
	return fmt.Sprintf("%-*s %s", labelWidth, lbl+":", s.FormatUnit(n))
}

// ListStatsSort returns every known stat's numeric value, in ascending
// order.
func ListStatsSort() []int {
	return []int{
		int(StatBytes),
		int(StatPackets),
		int(StatFifo),
		int(StatDrop),
		int(StatErr),
	}
}
