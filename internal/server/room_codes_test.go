package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRoomCode_Format(t *testing.T) {
	code, err := GenerateRoomCode(func(string) bool { return false })
	require.NoError(t, err)

	assert.Len(t, code, roomCodeLength)
	for _, c := range code {
		assert.True(t, c >= 'A' && c <= 'Z', "unexpected character %q", c)
	}
}

func TestGenerateRoomCode_SkipsCodesInUse(t *testing.T) {
	used := map[string]bool{}
	for i := 0; i < 200; i++ {
		code, err := GenerateRoomCode(func(c string) bool { return used[c] })
		require.NoError(t, err)
		assert.False(t, used[code], "code %s generated twice", code)
		used[code] = true
	}
}

func TestGenerateRoomCode_Exhausted(t *testing.T) {
	_, err := GenerateRoomCode(func(string) bool { return true })
	assert.ErrorIs(t, err, errNoRoomCode)
	assert.Equal(t, "ROOM_CODES_EXHAUSTED", errorPayload(err).Code)
}
