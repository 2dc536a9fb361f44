package replay

import (
	"sync"
	"testing"

	"github.com/hoprnet/hopr-core/kv"
	"github.com/stretchr/testify/require"
)

func TestSeenOrInsertFirstThenSecond(t *testing.T) {
	t.Parallel()

	g := New(kv.NewMemory())
	var tag Tag
	tag[0] = 0x42

	seen, err := g.SeenOrInsert(tag)
	require.NoError(t, err)
	require.False(t, seen)

	seen, err = g.SeenOrInsert(tag)
	require.NoError(t, err)
	require.True(t, seen)
}

func TestSeenOrInsertDistinctTagsIndependent(t *testing.T) {
	t.Parallel()

	g := New(kv.NewMemory())
	var a, b Tag
	a[0] = 0x01
	b[0] = 0x02

	seenA, err := g.SeenOrInsert(a)
	require.NoError(t, err)
	require.False(t, seenA)

	seenB, err := g.SeenOrInsert(b)
	require.NoError(t, err)
	require.False(t, seenB)
}

// TestConcurrentSeenOrInsertExactlyOneWins covers the concurrency model's requirement that a
// concurrent transform of the same packet sees one success and one
// rejection, never two successes.
func TestConcurrentSeenOrInsertExactlyOneWins(t *testing.T) {
	t.Parallel()

	g := New(kv.NewMemory())
	var tag Tag
	tag[0] = 0x99

	const attempts = 50
	results := make([]bool, attempts)

	var wg sync.WaitGroup
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		i := i
		go func() {
			defer wg.Done()
			seen, err := g.SeenOrInsert(tag)
			require.NoError(t, err)
			results[i] = seen
		}()
	}
	wg.Wait()

	notSeen := 0
	for _, seen := range results {
		if !seen {
			notSeen++
		}
	}
	require.Equal(t, 1, notSeen)
}
