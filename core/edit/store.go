package edit

import (
	"context"
	"time"
)

// Record is a persisted cell value as the Store knows it.
type Record struct {
	ID        string
	SubjectID string
	Context   Context
	Value     string
	UpdatedAt time.Time
}

// Key derives the edit key of the record.
func (r Record) Key() Key {
	return DeriveKey(r.SubjectID, r.Context...)
}

// Filter selects the records of one editing scope.
type Filter struct {
	SubjectIDs []string // empty means any subject
	Context    Context
}

// Match reports whether rec belongs to the filtered scope.
func (f Filter) Match(rec Record) bool {
	if !f.Context.Equal(rec.Context) {
		return false
	}
	if len(f.SubjectIDs) == 0 {
		return true
	}
	for _, id := range f.SubjectIDs {
		if id == rec.SubjectID {
			return true
		}
	}
	return false
}

// Store is the persistence a Reconciler writes to.
type Store interface {
	FetchRecords(ctx context.Context, f Filter) ([]Record, error)
	InsertRecord(ctx context.Context, rec Record) (Record, error)
	UpdateRecord(ctx context.Context, id, value string, at time.Time) (Record, error)
}
