// Package metadata reads the human-curated spreadsheet of titles, genres and
// tags that scanned objects are matched against.
package metadata

// Candidate is one spreadsheet row. It is never mutated after loading.
type Candidate struct {
	Title        string
	Genres       []string
	Tags         []string
	ProOnly      bool
	RotationWeek *int
}
