package lobby

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seat struct {
	Member
	Score int
}

func (s *seat) Seat() *Member { return &s.Member }

func newSeat(m Member) *seat { return &seat{Member: m} }

func TestRoster_FirstJoinerBecomesHost(t *testing.T) {
	assert := assert.New(t)
	var r Roster[*seat]

	_, prev, err := r.Attach("Alice", "c1", 10, newSeat)
	assert.NoError(err)
	assert.Empty(prev)
	assert.True(r.IsHost("c1"))
	assert.Equal(Identity("Alice"), r.HostIdentity)

	_, _, err = r.Attach("Bob", "c2", 10, newSeat)
	assert.NoError(err)
	assert.True(r.IsHost("c1"))
	assert.False(r.IsHost("c2"))
	assert.Equal(2, r.Len())
}

func TestRoster_ReconnectKeepsRecordAndPosition(t *testing.T) {
	assert := assert.New(t)
	var r Roster[*seat]

	alice, _, _ := r.Attach("Alice", "c1", 10, newSeat)
	alice.Score = 7
	r.Attach("Bob", "c2", 10, newSeat)

	again, prev, err := r.Attach("Alice", "c9", 10, newSeat)
	assert.NoError(err)
	assert.Equal(Handle("c1"), prev)
	assert.Same(alice, again)
	assert.Equal(7, again.Score)
	assert.Equal(2, r.Len())
	assert.Equal(Identity("Alice"), r.Members[0].Identity)

	// host follows the identity to its new handle
	assert.True(r.IsHost("c9"))
	assert.False(r.IsHost("c1"))
}

func TestRoster_Capacity(t *testing.T) {
	var r Roster[*seat]
	r.Attach("A", "1", 2, newSeat)
	r.Attach("B", "2", 2, newSeat)

	_, _, err := r.Attach("C", "3", 2, newSeat)
	assert.ErrorIs(t, err, ErrRosterFull)
	assert.Equal(t, 2, r.Len())

	// a known identity can always come back
	_, _, err = r.Attach("B", "22", 2, newSeat)
	assert.NoError(t, err)
}

func TestRoster_HandleHoldsOneSeat(t *testing.T) {
	assert := assert.New(t)
	var r Roster[*seat]
	r.Attach("Alice", "c1", 10, newSeat)
	r.Attach("Bob", "c2", 10, newSeat)

	_, _, err := r.Attach("Carol", "c1", 10, newSeat)
	assert.ErrorIs(err, ErrHandleTaken)
	assert.Equal(2, r.Len())
	_, idx := r.ByIdentity("Carol")
	assert.Equal(-1, idx)

	// the same identity on the same handle is a no-op rejoin
	_, prev, err := r.Attach("Alice", "c1", 10, newSeat)
	assert.NoError(err)
	assert.Equal(Handle("c1"), prev)
	assert.Equal(2, r.Len())

	d, ok := r.Detach("c1")
	require.True(t, ok)
	assert.Equal(Identity("Alice"), d.Member.Identity)
	_, idx = r.ByHandle("c1")
	assert.Equal(-1, idx)
}

func TestRoster_HostFailoverPromotesEarliestJoiner(t *testing.T) {
	assert := assert.New(t)
	var r Roster[*seat]
	r.Attach("Host", "h", 10, newSeat)
	r.Attach("Bob", "b", 10, newSeat)
	r.Attach("Carol", "c", 10, newSeat)

	d, ok := r.Detach("h")
	require.True(t, ok)
	assert.True(d.WasHost)
	assert.False(d.Empty)
	require.NotNil(t, d.Promoted)
	assert.Equal(Identity("Bob"), d.Promoted.Identity)
	assert.True(r.IsHost("b"))
	assert.Equal(Identity("Bob"), r.HostIdentity)
	assert.False(r.IsHost("h"))
}

func TestRoster_DetachNonHost(t *testing.T) {
	var r Roster[*seat]
	r.Attach("Host", "h", 10, newSeat)
	r.Attach("Bob", "b", 10, newSeat)

	d, ok := r.Detach("b")
	assert.True(t, ok)
	assert.False(t, d.WasHost)
	assert.Nil(t, d.Promoted)
	assert.True(t, r.IsHost("h"))
}

func TestRoster_DetachLastMember(t *testing.T) {
	var r Roster[*seat]
	r.Attach("Solo", "s", 10, newSeat)

	d, ok := r.Detach("s")
	assert.True(t, ok)
	assert.True(t, d.Empty)
	assert.Nil(t, d.Promoted)
	assert.Empty(t, r.HostHandle)
}

func TestRoster_DetachUnknownHandle(t *testing.T) {
	var r Roster[*seat]
	r.Attach("Solo", "s", 10, newSeat)

	_, ok := r.Detach("stale")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestRoster_ClearKeepsHostIdentity(t *testing.T) {
	assert := assert.New(t)
	var r Roster[*seat]
	r.Attach("Host", "h", 10, newSeat)
	r.Attach("Bob", "b", 10, newSeat)

	r.Clear()
	assert.Equal(0, r.Len())
	assert.Empty(r.HostHandle)
	assert.Equal(Identity("Host"), r.HostIdentity)

	r.Attach("Host", "h2", 10, newSeat)
	assert.True(r.IsHost("h2"))
}

func TestRoster_EmptyHandleIsNeverHost(t *testing.T) {
	var r Roster[*seat]
	assert.False(t, r.IsHost(""))
}

func TestHandleSet_JSONIsSortedList(t *testing.T) {
	assert := assert.New(t)
	s := NewHandleSet()
	s.Add("zeta")
	s.Add("alpha")
	s.Add("mid")

	data, err := json.Marshal(s)
	assert.NoError(err)
	assert.JSONEq(`["alpha","mid","zeta"]`, string(data))

	var back HandleSet
	assert.NoError(json.Unmarshal(data, &back))
	assert.Equal(3, back.Len())
	assert.True(back.Has("mid"))
}

func TestHandleSet_Rename(t *testing.T) {
	s := NewHandleSet()
	s.Add("old")
	s.Rename("old", "new")
	assert.False(t, s.Has("old"))
	assert.True(t, s.Has("new"))

	s.Rename("missing", "other")
	assert.False(t, s.Has("other"))
}
