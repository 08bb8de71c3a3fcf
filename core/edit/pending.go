package edit

import (
	"sort"
	"sync"
)

// Edit is an unsaved candidate value replacing a baseline value for one cell.
type Edit struct {
	Key       Key     `json:"key"`
	SubjectID string  `json:"subject_id"`
	Context   Context `json:"context"`
	Candidate string  `json:"candidate"`
	Baseline  string  `json:"baseline"`
}

// Pending holds the edits of one editing screen until they are saved.
// It is safe for concurrent use.
type Pending struct {
	mu    sync.RWMutex
	edits map[Key]Edit
}

func NewPending() *Pending {
	return &Pending{edits: make(map[Key]Edit)}
}

// Set records candidate for the cell. Setting a cell back to its baseline removes the edit.
func (p *Pending) Set(subjectID string, ctx Context, candidate, baseline string) Key {
	ctx = ctx.Normalize()
	key := DeriveKey(subjectID, ctx...)

	p.mu.Lock()
	defer p.mu.Unlock()
	if candidate == baseline {
		delete(p.edits, key)
		return key
	}
	p.edits[key] = Edit{
		Key:       key,
		SubjectID: subjectID,
		Context:   ctx,
		Candidate: candidate,
		Baseline:  baseline,
	}
	return key
}

// Get returns the pending candidate for key.
func (p *Pending) Get(key Key) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.edits[key]
	return e.Candidate, ok
}

// Entries returns a snapshot of the pending edits ordered by key.
func (p *Pending) Entries() []Edit {
	p.mu.RLock()
	entries := make([]Edit, 0, len(p.edits))
	for _, e := range p.edits {
		entries = append(entries, e)
	}
	p.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (p *Pending) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.edits)
}

func (p *Pending) Clear() {
	p.mu.Lock()
	p.edits = make(map[Key]Edit)
	p.mu.Unlock()
}

// Discard removes the submitted edits, except those changed again since they were snapshotted:
// those stay pending for the next save. It returns the number of removed edits.
func (p *Pending) Discard(submitted []Edit) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	var n int
	for _, s := range submitted {
		if cur, ok := p.edits[s.Key]; ok && cur.Candidate == s.Candidate {
			delete(p.edits, s.Key)
			n++
		}
	}
	return n
}
