package lobby

import "crypto/rand"

const (
	idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	idLength   = 5
)

// newLobbyID generates a short random alphanumeric join token.
// Uniqueness against the live lobby set is the caller's responsibility.
func newLobbyID() string {
	b := make([]byte, idLength)
	// crypto/rand.Read does not fail on supported platforms.
	_, _ = rand.Read(b)
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b)
}
