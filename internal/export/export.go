// Package export serializes finished rows into the documented output
// files: the flat CSV matrix, a per-origin JSON index, and a stats summary
// over the forward/backward asymmetry.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/dcac/traveltimes/internal/cache"
	"github.com/dcac/traveltimes/internal/engine"
)

// csvHeader is the documented column order. Failed directions are exported
// as empty fields so the combinatorial matrix stays complete.
var csvHeader = []string{"cp_from", "cp_to", "from_time", "from_dist", "to_time", "to_dist"}

// WriteCSV writes rows to path in the documented schema. Rows are expected
// already sorted by (cp_from, cp_to); the writer preserves their order.
func WriteCSV(path string, rows []engine.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, r := range rows {
		rec := []string{
			r.From, r.To,
			field(r.Forward, r.Forward.Minutes),
			field(r.Forward, r.Forward.Km),
			field(r.Backward, r.Backward.Minutes),
			field(r.Backward, r.Backward.Km),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("export: write row %s-%s: %w", r.From, r.To, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("export: flush %s: %w", path, err)
	}
	return nil
}

func field(d cache.Direction, v int) string {
	if d.Failed() {
		return ""
	}
	return strconv.Itoa(v)
}

// WriteIndex writes a JSON object mapping each point id to the sorted list
// of "destination,minutes,km" strings covering both directions, the compact
// lookup format consumed by the downstream map frontend. Failed directions
// are left out of the index (the CSV remains the complete record).
func WriteIndex(path string, rows []engine.Row) error {
	idx := map[string][]string{}
	for _, r := range rows {
		if !r.Forward.Failed() {
			idx[r.From] = append(idx[r.From],
				fmt.Sprintf("%s,%d,%d", r.To, r.Forward.Minutes, r.Forward.Km))
		}
		if !r.Backward.Failed() {
			idx[r.To] = append(idx[r.To],
				fmt.Sprintf("%s,%d,%d", r.From, r.Backward.Minutes, r.Backward.Km))
		}
	}
	for k := range idx {
		sort.Strings(idx[k])
	}

	data, err := json.MarshalIndent(idx, "", "    ")
	if err != nil {
		return fmt.Errorf("export: marshal index: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

// DiffStats summarizes the absolute forward/backward differences across all
// fully resolved rows.
type DiffStats struct {
	Avg       float64  `json:"avg"`
	Max       int      `json:"max"`
	MaxRecord []string `json:"max_record"` // [cp_from, cp_to] of the worst pair
	Stddev    float64  `json:"stddev"`
	P95       int      `json:"p95"`
	P99       int      `json:"p99"`
}

// Stats is the content of the stats summary file.
type Stats struct {
	PostalCodes int       `json:"postal_codes"`
	TravelTimes int       `json:"travel_times"`
	TimeDiffs   DiffStats `json:"time_diffs"`
	DistDiffs   DiffStats `json:"dist_diffs"`
}

// Compute builds the summary over rows. pointCount is the number of input
// points (not pairs). Rows with a failed direction are excluded from the
// difference statistics but still counted in TravelTimes.
func Compute(rows []engine.Row, pointCount int) Stats {
	var timeDiffs, distDiffs []int
	var timeMax, distMax DiffStats

	for _, r := range rows {
		if r.Forward.Failed() || r.Backward.Failed() {
			continue
		}
		td := abs(r.Forward.Minutes - r.Backward.Minutes)
		dd := abs(r.Forward.Km - r.Backward.Km)
		timeDiffs = append(timeDiffs, td)
		distDiffs = append(distDiffs, dd)
		if td >= timeMax.Max {
			timeMax.Max = td
			timeMax.MaxRecord = []string{r.From, r.To}
		}
		if dd >= distMax.Max {
			distMax.Max = dd
			distMax.MaxRecord = []string{r.From, r.To}
		}
	}

	return Stats{
		PostalCodes: pointCount,
		TravelTimes: len(rows),
		TimeDiffs:   summarize(timeDiffs, timeMax),
		DistDiffs:   summarize(distDiffs, distMax),
	}
}

// WriteStats writes the summary for rows to path as indented JSON.
func WriteStats(path string, rows []engine.Row, pointCount int) error {
	data, err := json.MarshalIndent(Compute(rows, pointCount), "", "    ")
	if err != nil {
		return fmt.Errorf("export: marshal stats: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}

func summarize(diffs []int, max DiffStats) DiffStats {
	out := max
	if len(diffs) == 0 {
		return out
	}

	sum := 0
	for _, d := range diffs {
		sum += d
	}
	mean := float64(sum) / float64(len(diffs))
	out.Avg = round2(mean)

	// Sample standard deviation, matching the reference statistics.
	if len(diffs) > 1 {
		var ss float64
		for _, d := range diffs {
			dev := float64(d) - mean
			ss += dev * dev
		}
		out.Stddev = round2(math.Sqrt(ss / float64(len(diffs)-1)))
	}

	sorted := append([]int(nil), diffs...)
	sort.Ints(sorted)
	out.P95 = sorted[min(len(sorted)*95/100, len(sorted)-1)]
	out.P99 = sorted[min(len(sorted)*99/100, len(sorted)-1)]
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
