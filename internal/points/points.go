package points

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// ErrDuplicateID is returned when the input contains two rows with the same
// identifier but different coordinates.
var ErrDuplicateID = errors.New("duplicate point id with differing coordinates")

// Point is a named geographic location, typically a postal-code centroid.
// Points are immutable once loaded.
type Point struct {
	ID  string
	Lat float64
	Lon float64
}

// Columns names the CSV columns to read a Point from. Input files from
// different sources use different headers (e.g. "codigo_postal" vs "id").
type Columns struct {
	ID  string
	Lat string
	Lon string
}

// Load reads Points from a CSV file with a header row. Rows with an empty
// latitude or longitude are skipped and counted in skipped, matching the
// upstream centroid extractor which leaves coordinates blank for postal
// codes it could not geocode. Rows that repeat an identifier with identical
// coordinates are collapsed; a repeated identifier with different
// coordinates is an input error. The result is sorted by ID.
func Load(path string, cols Columns) (pts []Point, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("points: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("points: read header of %s: %w", path, err)
	}

	idx := map[string]int{}
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range []string{cols.ID, cols.Lat, cols.Lon} {
		if _, ok := idx[name]; !ok {
			return nil, 0, fmt.Errorf("points: column %q not found in %s", name, path)
		}
	}

	seen := map[string]Point{}
	records, err := r.ReadAll()
	if err != nil {
		return nil, 0, fmt.Errorf("points: read %s: %w", path, err)
	}
	for _, rec := range records {
		id := rec[idx[cols.ID]]
		latStr := rec[idx[cols.Lat]]
		lonStr := rec[idx[cols.Lon]]
		if latStr == "" || lonStr == "" {
			skipped++
			continue
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("points: invalid latitude %q for %s: %w", latStr, id, err)
		}
		lon, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("points: invalid longitude %q for %s: %w", lonStr, id, err)
		}

		p := Point{ID: id, Lat: lat, Lon: lon}
		if prev, ok := seen[id]; ok {
			if prev.Lat != p.Lat || prev.Lon != p.Lon {
				return nil, 0, fmt.Errorf("points: id %s: %w", id, ErrDuplicateID)
			}
			continue
		}
		seen[id] = p
	}

	pts = make([]Point, 0, len(seen))
	for _, p := range seen {
		pts = append(pts, p)
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].ID < pts[j].ID })
	return pts, skipped, nil
}
