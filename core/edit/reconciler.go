package edit

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

// FailurePolicy decides what happens to edits whose write failed.
type FailurePolicy int

const (
	// DropFailed discards every submitted edit after a save, failed or not.
	DropFailed FailurePolicy = iota
	// RetainFailed keeps failed edits pending so they can be resubmitted.
	RetainFailed
)

// Write operations, as reported to a Recorder.
const (
	OpInsert = "insert"
	OpUpdate = "update"
)

// Scope names what a Reconciler edits, e.g. Kind "grade" and ID "<class>:<semester>:<aspect>".
// Saves are serialised per scope.
type Scope struct {
	Kind string
	ID   string
}

func (s Scope) String() string {
	return s.Kind + ":" + s.ID
}

// Result is the tally of one save.
type Result struct {
	Succeeded  int   `json:"success_count"`
	Failed     int   `json:"failure_count"`
	Inserted   int   `json:"inserted"`
	Updated    int   `json:"updated"`
	FailedKeys []Key `json:"failed_keys"`
	Skipped    []Key `json:"skipped_keys"`
}

// ReloadError reports a save whose writes went through but whose baseline could not be reloaded.
type ReloadError struct {
	err error
}

func (e *ReloadError) Error() string { return "reloading after save: " + e.err.Error() }
func (e *ReloadError) Cause() error  { return e.err }
func (e *ReloadError) Unwrap() error { return e.err }

// IsReloadError reports whether err carries a *ReloadError.
func IsReloadError(err error) bool {
	var re *ReloadError
	return errors.As(err, &re)
}

type Option func(*Reconciler)

func WithLocker(l Locker) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.locker = l
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reconciler) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

func WithFailurePolicy(p FailurePolicy) Option {
	return func(r *Reconciler) { r.policy = p }
}

// WithConcurrency bounds the number of writes in flight during a save.
func WithConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.nowFunc = now }
}

// Reconciler owns the pending edits of one scope and the persisted records they are diffed against.
type Reconciler struct {
	scope       Scope
	store       Store
	filter      Filter
	pending     *Pending
	locker      Locker
	recorder    Recorder
	policy      FailurePolicy
	concurrency int
	nowFunc     func() time.Time

	mu       sync.RWMutex
	records  []Record
	baseline map[Key]Record
	loadedAt time.Time
}

func NewReconciler(scope Scope, store Store, filter Filter, opts ...Option) *Reconciler {
	r := &Reconciler{
		scope:       scope,
		store:       store,
		filter:      Filter{SubjectIDs: filter.SubjectIDs, Context: filter.Context.Normalize()},
		pending:     NewPending(),
		locker:      NewLocalLocker(),
		recorder:    nopRecorder{},
		policy:      DropFailed,
		concurrency: defaultConcurrency,
		nowFunc:     time.Now,
		baseline:    make(map[Key]Record),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconciler) Scope() Scope {
	return r.scope
}

func (r *Reconciler) Filter() Filter {
	return r.filter
}

func (r *Reconciler) Pending() *Pending {
	return r.pending
}

// Load fetches the persisted records of the scope and replaces the cached snapshot.
func (r *Reconciler) Load(ctx context.Context) error {
	recs, err := r.store.FetchRecords(ctx, r.filter)
	if err != nil {
		return errors.Wrapf(err, "fetching records of %s", r.scope)
	}

	baseline := make(map[Key]Record, len(recs))
	kept := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if strings.TrimSpace(rec.SubjectID) == "" {
			continue
		}
		rec.Context = rec.Context.Normalize()
		if !r.filter.Match(rec) {
			continue
		}
		key := rec.Key()
		// duplicated cells: the most recent write wins
		if prev, ok := baseline[key]; ok && !rec.UpdatedAt.After(prev.UpdatedAt) {
			continue
		}
		baseline[key] = rec
	}
	for _, rec := range baseline {
		kept = append(kept, rec)
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Key() < kept[j].Key() })

	r.mu.Lock()
	r.records = kept
	r.baseline = baseline
	r.loadedAt = r.nowFunc()
	r.mu.Unlock()
	return nil
}

// loaded returns the last loaded snapshot ordered by key.
func (r *Reconciler) loaded() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func (r *Reconciler) LoadedAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt
}

// Baseline returns the persisted record of a cell, if any.
func (r *Reconciler) Baseline(subjectID string, ctx Context) (Record, bool) {
	key := DeriveKey(subjectID, ctx.Normalize()...)
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.baseline[key]
	return rec, ok
}

// Stage records candidate as the new value of a cell, using the persisted value as its baseline.
func (r *Reconciler) Stage(subjectID string, ctx Context, candidate string) Key {
	var baseline string
	if rec, ok := r.Baseline(subjectID, ctx); ok {
		baseline = rec.Value
	}
	return r.pending.Set(subjectID, ctx, candidate, baseline)
}

// Value returns what the cell currently shows: the pending candidate if any, else the persisted value.
func (r *Reconciler) Value(subjectID string, ctx Context) string {
	if v, ok := r.pending.Get(DeriveKey(subjectID, ctx.Normalize()...)); ok {
		return v
	}
	rec, _ := r.Baseline(subjectID, ctx)
	return rec.Value
}

// Save writes every pending edit to the store and reloads the baseline.
// Individual write failures are tallied in the Result; the returned error is reserved for lock and reload failures.
func (r *Reconciler) Save(ctx context.Context) (Result, error) {
	unlock, err := r.locker.Lock(ctx, r.scope.String())
	if err != nil {
		return Result{}, errors.Wrapf(err, "locking %s", r.scope)
	}
	defer unlock()

	entries := r.pending.Entries()
	if len(entries) == 0 {
		return Result{}, nil
	}
	start := r.nowFunc()

	// another session on the scope may have written since our last load
	if err = r.Load(ctx); err != nil {
		return Result{}, errors.Wrapf(err, "refreshing %s before save", r.scope)
	}
	r.mu.RLock()
	baseline := r.baseline
	r.mu.RUnlock()

	// a dispatched batch runs to completion
	wctx := context.WithoutCancel(ctx)
	at := start.UTC()

	var (
		mu     sync.Mutex
		res    Result
		failed = make(map[Key]bool)
	)
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)

	for _, e := range entries {
		e := e
		rec, matched := baseline[e.Key]
		if !matched && strings.TrimSpace(e.Candidate) == "" {
			res.Skipped = append(res.Skipped, e.Key)
			continue
		}

		g.Go(func() error {
			var err error
			op := OpUpdate
			if matched {
				_, err = r.store.UpdateRecord(wctx, rec.ID, e.Candidate, at)
			} else {
				op = OpInsert
				_, err = r.store.InsertRecord(wctx, Record{
					SubjectID: e.SubjectID,
					Context:   e.Context,
					Value:     e.Candidate,
					UpdatedAt: at,
				})
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed++
				res.FailedKeys = append(res.FailedKeys, e.Key)
				failed[e.Key] = true
			} else {
				res.Succeeded++
				if op == OpInsert {
					res.Inserted++
				} else {
					res.Updated++
				}
			}
			r.recorder.ObserveWrite(r.scope.Kind, op, err)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.FailedKeys, func(i, j int) bool { return res.FailedKeys[i] < res.FailedKeys[j] })

	submitted := entries
	if r.policy == RetainFailed && len(failed) > 0 {
		submitted = make([]Edit, 0, len(entries))
		for _, e := range entries {
			if !failed[e.Key] {
				submitted = append(submitted, e)
			}
		}
	}
	r.pending.Discard(submitted)

	err = r.Load(wctx)
	r.recorder.ObserveSave(r.scope.Kind, res, r.nowFunc().Sub(start))
	if err != nil {
		return res, &ReloadError{err: err}
	}
	return res, nil
}
