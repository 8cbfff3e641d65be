package orchestrator

import (
	"fmt"

	"github.com/dmitrijs2005/mediacatalog/internal/objectstore"
)

// Stage is a step of the per-object pipeline. A record's Stage is the last
// step it completed.
type Stage string

const (
	StagePending   Stage = "pending"
	StageFetched   Stage = "fetched"
	StageHashed    Stage = "hashed"
	StagePlaced    Stage = "placed"
	StageCommitted Stage = "committed"
)

// StageError is the failure of one object at the stage it was trying to reach.
type StageError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("failed@%s: %s: %v", e.Stage, e.Key, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Record tracks one object through a single run. It is never persisted.
type Record struct {
	Object  objectstore.StorageObject
	TrackID string
	Stage   Stage
	Err     *StageError

	// Skipped marks a key outside the library grammar; it never entered the pipeline.
	Skipped bool
	// Unmatched marks an object catalogued with the default candidate.
	Unmatched bool
	// Bytes is the size of the copy placed in the destination store.
	Bytes int64
}

// Failed reports whether the record ended in failed@<stage>.
func (r *Record) Failed() bool {
	return r.Err != nil
}

// State renders the terminal state, e.g. "committed" or "failed@placed".
func (r *Record) State() string {
	if r.Err != nil {
		return "failed@" + string(r.Err.Stage)
	}
	return string(r.Stage)
}
