package orchestrator

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
)

// Failure is one failed object as shown to the operator.
type Failure struct {
	Key    string
	Stage  Stage
	Reason string
}

// Summary is the outcome of a run. Succeeded + Failed == Total; skipped keys
// are not part of Total.
type Summary struct {
	Succeeded int
	Failed    int
	Total     int

	Skipped   []string // source keys that could not be decoded
	Unmatched []string // track ids catalogued with the default candidate
	Failures  []Failure
	Bytes     int64 // bytes placed by committed objects
}

func (s *Summary) add(rec *Record) {
	if rec.Skipped {
		s.Skipped = append(s.Skipped, rec.Object.Key)
		return
	}

	s.Total++
	if rec.Unmatched {
		s.Unmatched = append(s.Unmatched, rec.TrackID)
	}
	if rec.Failed() {
		s.Failed++
		s.Failures = append(s.Failures, Failure{Key: rec.Object.Key, Stage: rec.Err.Stage, Reason: rec.Err.Err.Error()})
		return
	}
	s.Succeeded++
	s.Bytes += rec.Bytes
}

// sort orders every list so that summaries of the same input compare equal
// whatever order the workers finished in.
func (s *Summary) sort() {
	slices.Sort(s.Skipped)
	slices.Sort(s.Unmatched)
	slices.SortFunc(s.Failures, func(a, b Failure) int {
		return cmp.Compare(a.Key, b.Key)
	})
}

// String is the human-readable report printed at the end of a run.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "succeeded: %d, failed: %d, total: %d, placed: %s\n",
		s.Succeeded, s.Failed, s.Total, humanize.Bytes(uint64(max(s.Bytes, 0))))

	if len(s.Failures) > 0 {
		fmt.Fprintf(&b, "failures (%d):\n", len(s.Failures))
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "  failed@%s %s: %s\n", f.Stage, f.Key, f.Reason)
		}
	}
	if len(s.Unmatched) > 0 {
		fmt.Fprintf(&b, "unmatched (%d): %s\n", len(s.Unmatched), strings.Join(s.Unmatched, ", "))
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(&b, "skipped (%d): %s\n", len(s.Skipped), strings.Join(s.Skipped, ", "))
	}
	return b.String()
}
