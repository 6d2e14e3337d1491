package pairs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcac/traveltimes/internal/points"
)

func pts(ids ...string) []points.Point {
	out := make([]points.Point, len(ids))
	for i, id := range ids {
		out[i] = points.Point{ID: id}
	}
	return out
}

func TestGenerate_CountAndOrder(t *testing.T) {
	got, err := Generate(pts("03001", "03002", "12001", "46001", "46002"), 0)
	require.NoError(t, err)

	// C(5,2) pairs, sorted by (From, To), From < To throughout.
	assert.Len(t, got, 10)
	for i, p := range got {
		assert.Less(t, p.From, p.To)
		if i > 0 {
			prev := got[i-1]
			less := prev.From < p.From || (prev.From == p.From && prev.To < p.To)
			assert.True(t, less, "output not sorted at index %d", i)
		}
	}
}

func TestGenerate_NoDuplicatesNoSelfPairs(t *testing.T) {
	got, err := Generate(pts("A", "B", "C", "D"), 0)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, p := range got {
		assert.NotEqual(t, p.From, p.To)
		fp := p.Fingerprint()
		assert.False(t, seen[fp], "duplicate pair %s", fp)
		seen[fp] = true
	}
}

func TestGenerate_SmallInputs(t *testing.T) {
	got, err := Generate(nil, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Generate(pts("A"), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_DuplicateID(t *testing.T) {
	_, err := Generate(pts("A", "B", "B"), 0)
	assert.Error(t, err)
}

func TestGenerate_UnsortedInput(t *testing.T) {
	_, err := Generate(pts("B", "A"), 0)
	assert.Error(t, err)
}

func TestGenerate_Subset(t *testing.T) {
	// subset=1 keeps only pairs originating from the first sorted id.
	got, err := Generate(pts("A", "B", "C", "D"), 1)
	require.NoError(t, err)
	assert.Equal(t, []Pair{{"A", "B"}, {"A", "C"}, {"A", "D"}}, got)

	// subset larger than the input is a no-op.
	got, err = Generate(pts("A", "B", "C"), 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, Pair{"03001", "46001"}, Canonical("46001", "03001"))
	assert.Equal(t, Pair{"03001", "46001"}, Canonical("03001", "46001"))
}

func TestFingerprint_SeparatorPreventsCollisions(t *testing.T) {
	// Without a separator ("1","23") and ("12","3") would both be "123".
	assert.NotEqual(t, Pair{"1", "23"}.Fingerprint(), Pair{"12", "3"}.Fingerprint())
}
