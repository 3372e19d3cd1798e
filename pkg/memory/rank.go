package memory

import (
	"fmt"
	"math"
	"sort"
)

// KeywordBoost is added to a hit's score for every matching keyword.
const KeywordBoost = 0.05

const scoreEpsilon = 1e-9

// CosineSimilarity compares two vectors of equal length. Zero vectors have
// similarity 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

// CheckDimensions rejects vectors that are not Dimensions wide.
func CheckDimensions(v []float32) error {
	if len(v) != Dimensions {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), Dimensions)
	}
	return nil
}

// Rank filters and orders candidate records for a query. Stores narrow the
// candidate set however they can and leave the final ordering to Rank.
func Rank(records []Record, q Query) ([]Hit, error) {
	if q.Vector != nil {
		if err := CheckDimensions(q.Vector); err != nil {
			return nil, err
		}
	}
	keywords := NormalizeKeywords(q.Keywords)
	minShould := q.MinShouldMatch
	if minShould == 0 && q.Character == "" && q.Type == "" && len(keywords) > 0 {
		minShould = 1
	}

	hits := make([]Hit, 0, len(records))
	for _, rec := range records {
		if q.Character != "" && rec.Character != q.Character {
			continue
		}
		if q.Type != "" && rec.Type != q.Type {
			continue
		}
		matched := countShared(keywords, rec.Keywords)
		if matched < minShould {
			continue
		}
		hit := Hit{Record: rec}
		if q.Vector != nil {
			sim, err := CosineSimilarity(q.Vector, rec.Embedding)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			hit.Similarity = sim
		}
		hit.Score = hit.Similarity + KeywordBoost*float64(matched)
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if math.Abs(a.Score-b.Score) > scoreEpsilon {
			return a.Score > b.Score
		}
		if q.SortByRecency && !a.Record.Timestamp.Equal(b.Record.Timestamp) {
			return a.Record.Timestamp.After(b.Record.Timestamp)
		}
		return a.Record.ID < b.Record.ID
	})
	if q.TopK > 0 && len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

func countShared(query, have []string) int {
	if len(query) == 0 || len(have) == 0 {
		return 0
	}
	set := make(map[string]bool, len(have))
	for _, k := range have {
		set[k] = true
	}
	n := 0
	for _, k := range query {
		if set[k] {
			n++
		}
	}
	return n
}
