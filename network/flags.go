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

import "net"

// FindFlagInList reports whether flag's string form is present in list. The
// match is case-sensitive: net.Flags.String() always renders lowercase, so
// list entries are expected in lowercase too.
func FindFlagInList(list []string, flag net.Flags) bool {
	s := flag.String()
	for _, l := range list {
		if l == s {
			return true
		}
	}
	return false
}

// FindAllFlagInList reports whether every flag in flags has its string form
// present in list. An empty flags slice is vacuously true.
func FindAllFlagInList(list []string, flags []net.Flags) bool {
	for _, f := range flags {
		if !FindFlagInList(list, f) {
			return false
		}
	}
	return true
}
