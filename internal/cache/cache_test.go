package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.sqlite")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := openTemp(t)

	_, ok, err := s.Get(context.Background(), "03001|46001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_PutGetRoundTrip(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	want := Result{
		Forward:  Direction{Minutes: 42, Km: 55},
		Backward: Direction{Minutes: 44, Km: 56},
	}
	require.NoError(t, s.Put(ctx, "03001|46001", want))

	got, ok, err := s.Get(ctx, "03001|46001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_FailedDirectionMarker(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	want := Result{
		Forward:  Direction{Err: "no_route"},
		Backward: Direction{Minutes: 10, Km: 8},
	}
	require.NoError(t, s.Put(ctx, "03001|46001", want))

	got, ok, err := s.Get(ctx, "03001|46001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Forward.Failed())
	assert.False(t, got.Backward.Failed())
	assert.Equal(t, want, got)
}

func TestStore_UpsertLastWriteWins(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	first := Result{Forward: Direction{Minutes: 1, Km: 1}, Backward: Direction{Minutes: 1, Km: 1}}
	second := Result{Forward: Direction{Minutes: 2, Km: 2}, Backward: Direction{Minutes: 2, Km: 2}}
	require.NoError(t, s.Put(ctx, "A|B", first))
	require.NoError(t, s.Put(ctx, "A|B", second))

	got, ok, err := s.Get(ctx, "A|B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, got)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_SurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	ctx := context.Background()

	want := Result{Forward: Direction{Minutes: 7, Km: 9}, Backward: Direction{Minutes: 8, Km: 9}}
	require.NoError(t, s.Put(ctx, "A|B", want))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get(ctx, "A|B")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStore_ConcurrentPuts(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := fmt.Sprintf("%05d|%05d", i, i+1)
			r := Result{Forward: Direction{Minutes: i, Km: i}, Backward: Direction{Minutes: i, Km: i}}
			assert.NoError(t, s.Put(ctx, fp, r))
		}(i)
	}
	wg.Wait()

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)
}

func TestStore_All(t *testing.T) {
	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "A|B", Result{Forward: Direction{Minutes: 1, Km: 2}}))
	require.NoError(t, s.Put(ctx, "A|C", Result{Backward: Direction{Err: "error"}}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 1, all["A|B"].Forward.Minutes)
	assert.True(t, all["A|C"].Backward.Failed())
}
