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

package session

import (
	"crypto/sha256"

	"github.com/nabbar/pronet/rtp"
)

// Info mirrors the session info struct of spec.md §4: the session type,
// media/message band, framing discipline and identifiers a session carries
// for its whole life, plus the fields only meaningful once the extended
// handshake has run.
type Info struct {
	LocalVersion  uint16
	RemoteVersion uint16
	SessionType   rtp.SessionType
	MmType        rtp.MMType
	PackMode      rtp.PackMode
	SomeId        uint32
	MmId          uint32
	InSrcMmId     uint32
	OutSrcMmId    uint32
	PasswordHash  [32]byte
	UserData      [64]byte
}

// HashPassword computes the password_hash an extended handshake's client
// side sends: SHA-256(nonce ‖ password). nonce is whatever length the
// session's handshake flavor produced - 32 bytes for the §4.5 extended
// acceptor/connector nonce, 14 bytes for a Udp-Ex sync nonce.
func HashPassword(nonce []byte, password string) [32]byte {
	h := sha256.New()
	h.Write(nonce)
	h.Write([]byte(password))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
