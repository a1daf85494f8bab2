package server

import (
	"errors"
	"math/rand/v2"
)

const (
	roomCodeLength   = 4
	roomCodeAttempts = 1000
)

var errNoRoomCode = errors.New("ROOM_CODES_EXHAUSTED: No free room code available")

// GenerateRoomCode returns a random code of uppercase letters that inUse
// rejects.
func GenerateRoomCode(inUse func(code string) bool) (string, error) {
	for range roomCodeAttempts {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = 'A' + byte(rand.IntN(26))
		}
		if !inUse(string(code)) {
			return string(code), nil
		}
	}
	return "", errNoRoomCode
}
