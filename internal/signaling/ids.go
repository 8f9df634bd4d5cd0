package signaling

import (
	"crypto/rand"
	"math/big"
)

// lobbyCodeSpace is the number of distinct six-uppercase-letter words
// (26^6), enough headroom over MaxConns that collisions are rare but the
// mint still retries on the (expected, occasional) hit.
var lobbyCodeSpace = big.NewInt(26 * 26 * 26 * 26 * 26 * 26)

// peerIDSpace is 2^31, a non-negative 31-bit integer range.
var peerIDSpace = big.NewInt(1 << 31)

// GenerateLobbyCode draws a uniform six-uppercase-letter code and retries
// against exists until it finds one not already in use. Draws directly
// from the 26^6 integer space rather than composing word-lists, since the
// lobby code format here is fixed letters, not memorable words.
func GenerateLobbyCode(exists func(code string) bool) string {
	for {
		n, err := rand.Int(rand.Reader, lobbyCodeSpace)
		if err != nil {
			// crypto/rand failing is a fatal environment problem, not a
			// condition callers can sensibly recover from.
			panic("signaling: crypto/rand unavailable: " + err.Error())
		}
		code := encodeLobbyCode(n.Int64())
		if !exists(code) {
			return code
		}
	}
}

func encodeLobbyCode(n int64) string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	buf := make([]byte, 6)
	for i := 5; i >= 0; i-- {
		buf[i] = letters[n%26]
		n /= 26
	}
	return string(buf)
}

// MintPeerID draws a uniform non-negative 31-bit integer and retries
// against taken until it finds one not already connected.
func MintPeerID(taken func(id int32) bool) int32 {
	for {
		n, err := rand.Int(rand.Reader, peerIDSpace)
		if err != nil {
			panic("signaling: crypto/rand unavailable: " + err.Error())
		}
		id := int32(n.Int64())
		if !taken(id) {
			return id
		}
	}
}
