package attendance

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core/edit"
)

var errMissingDate = errors.New("attendance context needs a date")

// store adapts the attendance Repository of one class to edit.Store. Record contexts are (date).
type store struct {
	repo    Repository
	classID string
}

var _ edit.Store = (*store)(nil)

func NewStore(repo Repository, classID string) edit.Store {
	return &store{repo: repo, classID: classID}
}

// Context builds the edit context of an attendance cell.
func Context(date time.Time) edit.Context {
	return edit.Context{date.UTC().Format(DateLayout)}
}

// ParseDate parses a YYYY-MM-DD date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func toRecord(a Attendance) edit.Record {
	return edit.Record{
		ID:        a.ID,
		SubjectID: a.StudentID,
		Context:   Context(a.Date),
		Value:     a.Status,
		UpdatedAt: a.UpdatedAt,
	}
}

func contextDate(c edit.Context) (time.Time, error) {
	c = c.Normalize()
	if len(c) == 0 {
		return time.Time{}, errMissingDate
	}
	return ParseDate(c[0])
}

func (s *store) FetchRecords(ctx context.Context, f edit.Filter) ([]edit.Record, error) {
	date, err := contextDate(f.Context)
	if err != nil {
		return nil, err
	}
	atts, err := s.repo.FilterAttendances(ctx, Filter{
		ClassID:    s.classID,
		StudentIDs: f.SubjectIDs,
		From:       date,
		To:         date,
	})
	if err != nil {
		return nil, errors.Wrap(err, "filtering attendances")
	}
	recs := make([]edit.Record, 0, len(atts))
	for _, a := range atts {
		recs = append(recs, toRecord(a))
	}
	return recs, nil
}

func (s *store) InsertRecord(ctx context.Context, rec edit.Record) (edit.Record, error) {
	date, err := contextDate(rec.Context)
	if err != nil {
		return edit.Record{}, err
	}
	at := rec.UpdatedAt.UTC()
	a, err := s.repo.CreateAttendance(ctx, Attendance{
		StudentID: rec.SubjectID,
		ClassID:   s.classID,
		Date:      date,
		Status:    rec.Value,
		CreatedAt: at,
		UpdatedAt: at,
	})
	if err != nil {
		return edit.Record{}, errors.Wrap(err, "creating attendance")
	}
	return toRecord(a), nil
}

func (s *store) UpdateRecord(ctx context.Context, id, value string, at time.Time) (edit.Record, error) {
	a, err := s.repo.UpdateAttendanceStatus(ctx, id, value, at.UTC())
	if err != nil {
		return edit.Record{}, errors.Wrap(err, "updating attendance")
	}
	return toRecord(a), nil
}
