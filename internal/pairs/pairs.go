package pairs

import (
	"fmt"

	"github.com/dcac/traveltimes/internal/points"
)

// Pair is the canonical unordered combination of two distinct point
// identifiers, stored with From < To under lexicographic byte comparison.
// Postal codes are fixed-width digit strings so this matches numeric order;
// for variable-width identifiers the ordering is still total and stable,
// which is all the cache key needs.
type Pair struct {
	From string
	To   string
}

// Canonical orders two identifiers into a Pair regardless of argument order.
func Canonical(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{From: a, To: b}
}

// Fingerprint is the cache key for the pair. The separator keeps
// variable-length identifiers from colliding ("1","23" vs "12","3").
func (p Pair) Fingerprint() string {
	return p.From + "|" + p.To
}

// Generate produces the set of all C(N,2) canonical pairs over pts, sorted
// by (From, To). The input is expected to be sorted by ID (the loader
// guarantees this); a repeated identifier is an input error, not something
// this function deduplicates. If subset > 0, generation is restricted to
// pairs whose From is among the first subset identifiers — a partial-run
// aid for debugging against a small slice of the matrix.
func Generate(pts []points.Point, subset int) ([]Pair, error) {
	for i := 1; i < len(pts); i++ {
		if pts[i].ID == pts[i-1].ID {
			return nil, fmt.Errorf("pairs: duplicate point id %q", pts[i].ID)
		}
		if pts[i].ID < pts[i-1].ID {
			return nil, fmt.Errorf("pairs: input not sorted at %q", pts[i].ID)
		}
	}

	if len(pts) < 2 {
		return nil, nil
	}

	origins := len(pts)
	if subset > 0 && subset < origins {
		origins = subset
	}

	out := make([]Pair, 0, origins*(2*len(pts)-origins-1)/2)
	for i := 0; i < origins; i++ {
		for j := i + 1; j < len(pts); j++ {
			out = append(out, Pair{From: pts[i].ID, To: pts[j].ID})
		}
	}
	return out, nil
}
