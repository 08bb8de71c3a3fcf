package grade

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/tkceria/ceria/core/edit"
)

var errIncompleteContext = errors.New("grade context needs a semester and an aspect")

// store adapts the grade Repository to edit.Store. Record contexts are (semester, aspect, sub-aspect).
type store struct {
	repo Repository
}

var _ edit.Store = (*store)(nil)

func NewStore(repo Repository) edit.Store {
	return &store{repo: repo}
}

// Context builds the edit context of a grade cell.
func Context(semesterID, aspectID string, subAspectID null.String) edit.Context {
	var sub *string
	if subAspectID.Valid {
		sub = &subAspectID.String
	}
	return edit.Context{semesterID, aspectID, edit.Optional(sub)}.Normalize()
}

func toRecord(g Grade) edit.Record {
	return edit.Record{
		ID:        g.ID,
		SubjectID: g.StudentID,
		Context:   Context(g.SemesterID, g.AspectID, g.SubAspectID),
		Value:     g.Description,
		UpdatedAt: g.UpdatedAt,
	}
}

func parseContext(c edit.Context) (semesterID, aspectID string, subAspectID null.String, err error) {
	c = c.Normalize()
	if len(c) < 2 || c[0] == "" || c[1] == "" {
		return "", "", null.String{}, errIncompleteContext
	}
	if len(c) > 2 {
		subAspectID = null.StringFrom(c[2])
	}
	return c[0], c[1], subAspectID, nil
}

func (s *store) FetchRecords(ctx context.Context, f edit.Filter) ([]edit.Record, error) {
	semesterID, aspectID, subAspectID, err := parseContext(f.Context)
	if err != nil {
		return nil, err
	}
	grades, err := s.repo.FilterGrades(ctx, Filter{
		StudentIDs:  f.SubjectIDs,
		SemesterID:  semesterID,
		AspectID:    aspectID,
		SubAspectID: subAspectID,
	})
	if err != nil {
		return nil, errors.Wrap(err, "filtering grades")
	}
	recs := make([]edit.Record, 0, len(grades))
	for _, g := range grades {
		recs = append(recs, toRecord(g))
	}
	return recs, nil
}

func (s *store) InsertRecord(ctx context.Context, rec edit.Record) (edit.Record, error) {
	semesterID, aspectID, subAspectID, err := parseContext(rec.Context)
	if err != nil {
		return edit.Record{}, err
	}
	at := rec.UpdatedAt.UTC()
	g, err := s.repo.CreateGrade(ctx, Grade{
		StudentID:   rec.SubjectID,
		SemesterID:  semesterID,
		AspectID:    aspectID,
		SubAspectID: subAspectID,
		Description: rec.Value,
		CreatedAt:   at,
		UpdatedAt:   at,
	})
	if err != nil {
		return edit.Record{}, errors.Wrap(err, "creating grade")
	}
	return toRecord(g), nil
}

func (s *store) UpdateRecord(ctx context.Context, id, value string, at time.Time) (edit.Record, error) {
	g, err := s.repo.UpdateGradeDescription(ctx, id, value, at.UTC())
	if err != nil {
		return edit.Record{}, errors.Wrap(err, "updating grade")
	}
	return toRecord(g), nil
}
