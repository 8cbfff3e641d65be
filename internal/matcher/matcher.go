// Package matcher aligns scanned objects with spreadsheet rows by normalized
// edit-distance similarity.
package matcher

import (
	"sync"

	"github.com/dmitrijs2005/mediacatalog/internal/common"
	"github.com/dmitrijs2005/mediacatalog/internal/metadata"
	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
)

// DefaultThreshold is the lowest accepted similarity.
const DefaultThreshold = 0.70

// epsilon absorbs float rounding so that a score of exactly the threshold
// is accepted.
const epsilon = 1e-9

// Result pairs an object with the candidate chosen for it. When Matched is
// false, Candidate is DefaultCandidate().
type Result struct {
	Object    objectstore.StorageObject
	Candidate metadata.Candidate
	Score     float64
	Matched   bool
}

// Hit counts how many objects matched one candidate.
type Hit struct {
	Title string
	Count int
}

// DefaultCandidate stands in for objects nothing matched.
func DefaultCandidate() metadata.Candidate {
	return metadata.Candidate{
		Genres: []string{common.DefaultGenre},
		Tags:   []string{},
	}
}

// Matcher is safe for concurrent use.
type Matcher struct {
	candidates []metadata.Candidate
	normalized []string
	threshold  float64

	mu   sync.Mutex
	hits []int
}

// New builds a matcher over candidates. A threshold outside (0, 1] falls
// back to DefaultThreshold.
func New(candidates []metadata.Candidate, threshold float64) *Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	norm := make([]string, len(candidates))
	for i, c := range candidates {
		norm[i] = Normalize(c.Title)
	}
	return &Matcher{
		candidates: candidates,
		normalized: norm,
		threshold:  threshold,
		hits:       make([]int, len(candidates)),
	}
}

func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Best returns the index and score of the highest-scoring candidate for
// name. Only a strictly greater score replaces the current best, so on ties
// the earliest candidate wins. ok is false when the best score is below the
// threshold or there are no candidates.
func (m *Matcher) Best(name string) (idx int, score float64, ok bool) {
	n := Normalize(name)
	idx, score = -1, -1
	for i, c := range m.normalized {
		s := Similarity(n, c)
		if s > score {
			idx, score = i, s
		}
	}
	if idx < 0 {
		return -1, 0, false
	}
	return idx, score, score+epsilon >= m.threshold
}

// Match picks a candidate for obj using name (typically its track id).
// The boolean mirrors Result.Matched; a rejected object still gets a
// usable Result carrying DefaultCandidate.
func (m *Matcher) Match(obj objectstore.StorageObject, name string) (Result, bool) {
	idx, score, ok := m.Best(name)
	if !ok {
		return Result{Object: obj, Candidate: DefaultCandidate(), Score: score}, false
	}

	m.mu.Lock()
	m.hits[idx]++
	m.mu.Unlock()

	return Result{Object: obj, Candidate: m.candidates[idx], Score: score, Matched: true}, true
}

// Hits lists candidates matched at least once, in candidate order.
func (m *Matcher) Hits() []Hit {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Hit
	for i, n := range m.hits {
		if n > 0 {
			out = append(out, Hit{Title: m.candidates[i].Title, Count: n})
		}
	}
	return out
}
