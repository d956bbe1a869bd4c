package conversation

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitN(s *Store, userID string, n int) {
	for i := 0; i < n; i++ {
		s.Commit(userID, UserTurn(fmt.Sprintf("u%d", i)), ModelTurn(fmt.Sprintf("m%d", i)))
	}
}

func assertAlternates(t *testing.T, turns []Turn) {
	t.Helper()
	require.Equal(t, 0, len(turns)%2, "odd history length %d", len(turns))
	for i, turn := range turns {
		want := RoleUser
		if i%2 == 1 {
			want = RoleModel
		}
		assert.Equal(t, want, turn.Role, "turn %d", i)
	}
}

func TestNormalizeWindow(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{in: 20, want: 20},
		{in: 21, want: 20},
		{in: 2, want: 2},
		{in: 1, want: DefaultWindow},
		{in: 0, want: DefaultWindow},
		{in: -4, want: DefaultWindow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeWindow(tt.in), "NormalizeWindow(%d)", tt.in)
	}
}

func TestGetOrCreate_NewUserIsEmptyAndRegistered(t *testing.T) {
	s := NewStore(DefaultWindow)

	got := s.GetOrCreate("U1")
	assert.Empty(t, got)
	assert.Equal(t, 1, s.Len())

	snap, ok := s.Snapshot("U1")
	require.True(t, ok)
	assert.Empty(t, snap)
}

func TestCommit_LengthAndAlternation(t *testing.T) {
	for _, n := range []int{1, 5, 10, 11, 25} {
		t.Run(fmt.Sprintf("exchanges_%d", n), func(t *testing.T) {
			s := NewStore(DefaultWindow)
			commitN(s, "U1", n)

			turns := s.GetOrCreate("U1")
			want := 2 * n
			if want > DefaultWindow {
				want = DefaultWindow
			}
			assert.Len(t, turns, want)
			assertAlternates(t, turns)
		})
	}
}

func TestCommit_EvictsOldestPairsFirst(t *testing.T) {
	s := NewStore(6)
	commitN(s, "U1", 5)

	turns := s.GetOrCreate("U1")
	require.Len(t, turns, 6)
	assert.Equal(t, []Turn{
		UserTurn("u2"), ModelTurn("m2"),
		UserTurn("u3"), ModelTurn("m3"),
		UserTurn("u4"), ModelTurn("m4"),
	}, turns)
}

func TestGetOrCreate_ReturnsIndependentCopy(t *testing.T) {
	s := NewStore(DefaultWindow)
	commitN(s, "U1", 1)

	working := s.GetOrCreate("U1")
	working = append(working, UserTurn("pending"))
	working[0].Text = "mutated"

	turns := s.GetOrCreate("U1")
	assert.Equal(t, []Turn{UserTurn("u0"), ModelTurn("m0")}, turns)
}

func TestCommit_UsersAreIsolated(t *testing.T) {
	s := NewStore(DefaultWindow)
	commitN(s, "U1", 3)
	commitN(s, "U2", 1)

	assert.Len(t, s.GetOrCreate("U1"), 6)
	assert.Len(t, s.GetOrCreate("U2"), 2)
	assert.Equal(t, 2, s.Len())
}

func TestCommit_ConcurrentSameUserNeverTearsPairs(t *testing.T) {
	s := NewStore(DefaultWindow)

	const workers = 64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			_ = s.GetOrCreate("U1")
			s.Commit("U1", UserTurn(fmt.Sprintf("u%d", i)), ModelTurn(fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()

	turns := s.GetOrCreate("U1")
	require.Len(t, turns, DefaultWindow)
	assertAlternates(t, turns)
	for i := 0; i < len(turns); i += 2 {
		assert.Equal(t, "m"+turns[i].Text[1:], turns[i+1].Text, "pair at %d torn", i)
	}
}

func TestCommit_ConcurrentDistinctUsers(t *testing.T) {
	s := NewStore(DefaultWindow)

	const users = 40
	var wg sync.WaitGroup
	wg.Add(users)
	for i := 0; i < users; i++ {
		go func(i int) {
			defer wg.Done()
			commitN(s, fmt.Sprintf("U%d", i), 3)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, users, s.Len())
	for i := 0; i < users; i++ {
		turns, ok := s.Snapshot(fmt.Sprintf("U%d", i))
		require.True(t, ok)
		assert.Len(t, turns, 6)
		assertAlternates(t, turns)
	}
}

func TestSweep_RemovesIdleConversations(t *testing.T) {
	s := NewStore(DefaultWindow)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	commitN(s, "old", 1)
	now = now.Add(2 * time.Hour)
	commitN(s, "fresh", 1)

	assert.Equal(t, 0, s.Sweep(0), "disabled ttl must not evict")
	assert.Equal(t, 1, s.Sweep(time.Hour))

	_, ok := s.Snapshot("old")
	assert.False(t, ok)
	_, ok = s.Snapshot("fresh")
	assert.True(t, ok)
}

func TestSnapshot_UnknownUser(t *testing.T) {
	s := NewStore(DefaultWindow)
	_, ok := s.Snapshot("nobody")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len(), "snapshot must not register users")
}
