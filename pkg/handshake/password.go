// Package handshake builds and checks the client HandShake: the player's
// identity plus a password hash salted with the host's per-session salt.
package handshake

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"netplay/pkg/protocol"
)

// saltSize is the number of random bytes behind a generated salt.
const saltSize = 16

// NewSalt returns a fresh random salt, base64url without padding.
func NewSalt() (string, error) {
	b := make([]byte, saltSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// PasswordHash is hex(sha1(password + salt)). SHA-1 is what existing hosts
// compute; the salt only keeps the hash from being replayed across sessions.
// An empty password hashes to the empty string, meaning "no password".
func PasswordHash(password, salt string) string {
	if password == "" {
		return ""
	}
	sum := sha1.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// Build returns the HandShake a client sends once the salt is known.
func Build(playerName, password, salt string, spectator bool) *protocol.HandShake {
	return &protocol.HandShake{
		ProtocolVersion: protocol.ProtocolVersion,
		PlayerName:      strings.TrimSpace(playerName),
		PasswordHash:    PasswordHash(password, salt),
		Spectator:       spectator,
	}
}

// Verify reports whether hs carries the right password for salt and a
// compatible protocol version. Hosts call it; clients never do.
func Verify(hs *protocol.HandShake, password, salt string) bool {
	if hs == nil || hs.ProtocolVersion != protocol.ProtocolVersion {
		return false
	}
	want := PasswordHash(password, salt)
	return subtle.ConstantTimeCompare([]byte(want), []byte(hs.PasswordHash)) == 1
}
