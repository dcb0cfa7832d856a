package binding

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBindAndFindReplierExact(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind(1, Replier, "$.foo.bar")
	require.NoError(t, err)

	id, ok := tbl.FindReplierExact("$.foo.bar")
	require.True(t, ok)
	require.EqualValues(t, 1, id)

	_, ok = tbl.FindReplierExact("$.foo.baz")
	require.False(t, ok, "expected no replier for a different exact name")
}

func TestBindRejectsSecondReplierForSamePattern(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind(1, Replier, "$.foo.bar")
	require.NoError(t, err)

	_, err = tbl.Bind(2, Replier, "$.foo.bar")
	require.ErrorIs(t, err, ErrAlreadyBound)
}

func TestBindAllowsMultipleListenersSamePattern(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind(1, Listener, "$.foo.bar")
	require.NoError(t, err)
	_, err = tbl.Bind(2, Listener, "$.foo.bar")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
}

func TestBindRejectsBadName(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind(1, Listener, "no-dollar-prefix")
	require.ErrorIs(t, err, ErrBadName)
}

func TestBindRejectsReplierBindEventAsReplier(t *testing.T) {
	tbl := NewTable()
	_, err := tbl.Bind(1, Replier, "$.KBUS.ReplierBindEvent")
	require.ErrorIs(t, err, ErrReservedName)
}

func TestUnbindRemovesExactTuple(t *testing.T) {
	tbl := NewTable()
	tbl.Bind(1, Listener, "$.foo.bar")

	_, err := tbl.Unbind(1, Listener, "$.foo.bar")
	require.NoError(t, err)
	require.Equal(t, 0, tbl.Len())

	_, err = tbl.Unbind(1, Listener, "$.foo.bar")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnbindByID(t *testing.T) {
	tbl := NewTable()
	b, err := tbl.Bind(1, Listener, "$.foo.bar")
	require.NoError(t, err)

	got, ok := tbl.UnbindByID(b.ID)
	require.True(t, ok)
	require.Equal(t, b.ID, got.ID)
	require.Equal(t, 0, tbl.Len())
}

func TestRemoveOwnerRemovesAllItsBindings(t *testing.T) {
	tbl := NewTable()
	tbl.Bind(1, Listener, "$.foo.bar")
	tbl.Bind(1, Listener, "$.foo.baz")
	tbl.Bind(2, Listener, "$.foo.qux")

	removed := tbl.RemoveOwner(1)
	require.Len(t, removed, 2)
	require.Equal(t, 1, tbl.Len())
}

func TestFindListenersMatchesWildcardsAndPicksMostSpecificReplier(t *testing.T) {
	tbl := NewTable()
	tbl.Bind(1, Listener, "$.foo.*")
	tbl.Bind(2, Listener, "$.foo.bar")
	tbl.Bind(3, Replier, "$.foo.%")
	tbl.Bind(4, Replier, "$.foo.bar")

	listeners, replier := tbl.FindListeners("$.foo.bar")
	require.Len(t, listeners, 2)
	require.NotNil(t, replier)
	require.EqualValues(t, 4, replier.OwnerID, "expected the exact replier to win over the wildcard")
}

func TestFindListenersNoReplierMatch(t *testing.T) {
	tbl := NewTable()
	tbl.Bind(1, Listener, "$.foo.bar")

	listeners, replier := tbl.FindListeners("$.foo.bar")
	require.Len(t, listeners, 1)
	require.Nil(t, replier)
}

func TestLookupFindsOwnerRolePattern(t *testing.T) {
	tbl := NewTable()
	tbl.Bind(1, Replier, "$.foo.bar")

	b, ok := tbl.Lookup(1, Replier, "$.foo.bar")
	require.True(t, ok)
	require.EqualValues(t, 1, b.OwnerID)

	_, ok = tbl.Lookup(1, Listener, "$.foo.bar")
	require.False(t, ok, "expected no match for a different role")
}

// TestConcurrentBindUnbindLeavesTableConsistent exercises the concurrent
// bind/unbind race at this layer: many goroutines bind and unbind distinct
// patterns against distinct owners at once, and the table must end up
// exactly as consistent as a sequential run would leave it. The table does
// no locking of its own, so the goroutines serialize through mu the way
// the device's Big Lock serializes them in production.
func TestConcurrentBindUnbindLeavesTableConsistent(t *testing.T) {
	tbl := NewTable()
	const n = 50
	var mu sync.Mutex

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			name := "$.foo." + string(rune('a'+i%26))
			mu.Lock()
			tbl.Bind(uint32(i+1), Listener, name)
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	require.Equal(t, n, tbl.Len(), "every bind should have landed exactly once")

	var unwg sync.WaitGroup
	unwg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer unwg.Done()
			name := "$.foo." + string(rune('a'+i%26))
			mu.Lock()
			tbl.Unbind(uint32(i+1), Listener, name)
			mu.Unlock()
		}(i)
	}
	unwg.Wait()
	require.Equal(t, 0, tbl.Len(), "every bind should have been unwound")
}
