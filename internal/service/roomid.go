package service

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const (
	roomIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	roomIDLength   = 8
)

// roomIDPattern is the charset accepted for externally supplied room ids.
// Wider than the generator's alphabet so that ids minted by older clients
// (mixed case, underscores, dashes) stay addressable.
var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateRoomID rejects room ids containing anything outside the allowed
// charset before they reach the store as key material.
func ValidateRoomID(roomID string) error {
	if roomID == "" || !roomIDPattern.MatchString(roomID) {
		return ErrInvalidRoomID
	}
	return nil
}

// GenerateRoomID produces an 8-character identifier from [a-z0-9] using a
// cryptographically secure source. Rejection sampling keeps each position
// uniform over the alphabet; a plain modulo would skew the low characters.
func GenerateRoomID() (string, error) {
	// Largest multiple of len(roomIDAlphabet) that fits in a byte.
	maxAccepted := byte(256 - 256%len(roomIDAlphabet))

	id := make([]byte, 0, roomIDLength)
	buf := make([]byte, roomIDLength)
	for len(id) < roomIDLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxAccepted {
				continue
			}
			id = append(id, roomIDAlphabet[int(b)%len(roomIDAlphabet)])
			if len(id) == roomIDLength {
				break
			}
		}
	}
	return string(id), nil
}
