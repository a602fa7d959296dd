package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinPairsFirstTwoMembers(t *testing.T) {
	s := NewStore()

	peer, count := s.Join("abc123", "A")
	require.Empty(t, peer)
	require.Equal(t, 1, count)

	peer, count = s.Join("abc123", "B")
	require.Equal(t, "A", peer)
	require.Equal(t, 2, count)

	assert.Equal(t, "B", s.OtherMember("abc123", "A"))
	assert.Equal(t, "A", s.OtherMember("abc123", "B"))
}

func TestThirdJoinerGetsNoPeer(t *testing.T) {
	s := NewStore()
	s.Join("abc123", "A")
	s.Join("abc123", "B")

	peer, count := s.Join("abc123", "C")
	require.Empty(t, peer, "third member must not trigger pairing")
	require.Equal(t, 3, count)

	assert.Empty(t, s.OtherMember("abc123", "C"))
	assert.Equal(t, "B", s.OtherMember("abc123", "A"))
	assert.Equal(t, []string{"A", "B", "C"}, s.Members("abc123"))
}

func TestJoinSwitchesRooms(t *testing.T) {
	s := NewStore()
	s.Join("one", "A")
	s.Join("two", "A")

	assert.Equal(t, "two", s.RoomOf("A"))
	assert.Zero(t, s.MemberCount("one"), "implicit leave must empty the old room")
	assert.Equal(t, 1, s.MemberCount("two"))
}

func TestLeaveReturnsRemaining(t *testing.T) {
	s := NewStore()
	s.Join("xyz", "A")
	s.Join("xyz", "B")

	roomID, remaining := s.Leave("B")
	require.Equal(t, "xyz", roomID)
	require.Equal(t, []string{"A"}, remaining)
	assert.Equal(t, 1, s.MemberCount("xyz"))
	assert.Empty(t, s.RoomOf("B"))
}

func TestLeaveIsIdempotent(t *testing.T) {
	s := NewStore()
	s.Join("xyz", "A")

	roomID, _ := s.Leave("A")
	require.Equal(t, "xyz", roomID)

	roomID, remaining := s.Leave("A")
	assert.Empty(t, roomID)
	assert.Nil(t, remaining)
}

func TestRoomGarbageCollectedOnLastLeave(t *testing.T) {
	s := NewStore()
	s.Join("xyz", "A")
	s.Join("xyz", "B")
	s.Leave("A")
	s.Leave("B")

	assert.Zero(t, s.MemberCount("xyz"))
	assert.Empty(t, s.Members("xyz"))
	assert.Empty(t, s.OtherMember("xyz", "A"))
}

func TestPairingShiftsAfterPartnerLeaves(t *testing.T) {
	s := NewStore()
	s.Join("xyz", "A")
	s.Join("xyz", "B")
	s.Join("xyz", "C")

	s.Leave("A")

	// B and C are now the first two members in insertion order
	assert.Equal(t, "C", s.OtherMember("xyz", "B"))
	assert.Equal(t, "B", s.OtherMember("xyz", "C"))
}

func TestConcurrentJoinsKeepSingleRoomInvariant(t *testing.T) {
	s := NewStore()

	const conns = 64
	wg := sync.WaitGroup{}
	wg.Add(conns)
	for i := 0; i < conns; i++ {
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("conn-%d", i)
			s.Join("shared", connID)
			s.Join(fmt.Sprintf("room-%d", i%8), connID)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, s.MemberCount("shared"), "every connection re-joined away")

	total := 0
	for i := 0; i < 8; i++ {
		total += s.MemberCount(fmt.Sprintf("room-%d", i))
	}
	assert.Equal(t, conns, total)

	for i := 0; i < conns; i++ {
		connID := fmt.Sprintf("conn-%d", i)
		assert.Equal(t, fmt.Sprintf("room-%d", i%8), s.RoomOf(connID))
	}
}
