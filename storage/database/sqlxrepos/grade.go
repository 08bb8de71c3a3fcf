package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/tkceria/ceria/core"
	"github.com/tkceria/ceria/core/grade"
)

const (
	semesterColumns  = "id, name, academic_year, starts_on, ends_on"
	aspectColumns    = "id, name, position"
	subAspectColumns = "id, aspect_id, name, position"
	gradeColumns     = "id, student_id, semester_id, aspect_id, sub_aspect_id, description, created_at, updated_at"
)

type gradeRepository struct {
	exec core.DBExecutor
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(exec core.DBExecutor) *gradeRepository {
	return &gradeRepository{exec: exec}
}

func (repo *gradeRepository) CreateSemester(ctx context.Context, sem grade.Semester) (grade.Semester, error) {
	if sem.ID == "" {
		sem.ID = uuid.New().String()
	}
	sem.StartsOn = sem.StartsOn.UTC()
	sem.EndsOn = sem.EndsOn.UTC()
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO semesters ("+semesterColumns+") VALUES (?, ?, ?, ?, ?)"),
		sem.ID, sem.Name, sem.AcademicYear, sem.StartsOn, sem.EndsOn,
	)
	if err != nil {
		return grade.Semester{}, errors.Wrap(err, "inserting semester")
	}
	return sem, nil
}

func (repo *gradeRepository) GetSemester(ctx context.Context, id string) (grade.Semester, error) {
	var sem grade.Semester
	err := repo.exec.GetContext(ctx, &sem, repo.exec.Rebind("SELECT "+semesterColumns+" FROM semesters WHERE id = ?"), id)
	if err != nil {
		return grade.Semester{}, trapNoRowsErr(err, grade.ErrSemesterNotFound, "finding semester")
	}
	return sem, nil
}

func (repo *gradeRepository) QuerySemesters(ctx context.Context) ([]grade.Semester, error) {
	sems := make([]grade.Semester, 0)
	if err := repo.exec.SelectContext(ctx, &sems, "SELECT "+semesterColumns+" FROM semesters ORDER BY starts_on DESC"); err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	return sems, nil
}

func (repo *gradeRepository) CreateAspect(ctx context.Context, asp grade.Aspect) (grade.Aspect, error) {
	if asp.ID == "" {
		asp.ID = uuid.New().String()
	}
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO aspects ("+aspectColumns+") VALUES (?, ?, ?)"),
		asp.ID, asp.Name, asp.Position,
	)
	if err != nil {
		return grade.Aspect{}, errors.Wrap(err, "inserting aspect")
	}
	if asp.SubAspects == nil {
		asp.SubAspects = []grade.SubAspect{}
	}
	return asp, nil
}

func (repo *gradeRepository) CreateSubAspect(ctx context.Context, sub grade.SubAspect) (grade.SubAspect, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO sub_aspects ("+subAspectColumns+") VALUES (?, ?, ?, ?)"),
		sub.ID, sub.AspectID, sub.Name, sub.Position,
	)
	if err != nil {
		return grade.SubAspect{}, errors.Wrap(err, "inserting sub-aspect")
	}
	return sub, nil
}

// withSubAspects attaches the sub-aspects of aspects, ordered by position.
func (repo *gradeRepository) withSubAspects(ctx context.Context, aspects []grade.Aspect) error {
	if len(aspects) == 0 {
		return nil
	}
	ids := make([]string, 0, len(aspects))
	idx := make(map[string]int, len(aspects))
	for i := range aspects {
		ids = append(ids, aspects[i].ID)
		idx[aspects[i].ID] = i
		aspects[i].SubAspects = []grade.SubAspect{}
	}

	var subs []grade.SubAspect
	q := "SELECT " + subAspectColumns + " FROM sub_aspects WHERE aspect_id IN (?) ORDER BY position ASC, name ASC"
	if err := selectIn(ctx, repo.exec, &subs, q, ids); err != nil {
		return errors.Wrap(err, "querying sub-aspects")
	}
	for _, sub := range subs {
		i := idx[sub.AspectID]
		aspects[i].SubAspects = append(aspects[i].SubAspects, sub)
	}
	return nil
}

func (repo *gradeRepository) GetAspect(ctx context.Context, id string) (grade.Aspect, error) {
	var asp grade.Aspect
	err := repo.exec.GetContext(ctx, &asp, repo.exec.Rebind("SELECT "+aspectColumns+" FROM aspects WHERE id = ?"), id)
	if err != nil {
		return grade.Aspect{}, trapNoRowsErr(err, grade.ErrAspectNotFound, "finding aspect")
	}
	aspects := []grade.Aspect{asp}
	if err = repo.withSubAspects(ctx, aspects); err != nil {
		return grade.Aspect{}, err
	}
	return aspects[0], nil
}

func (repo *gradeRepository) QueryAspects(ctx context.Context) ([]grade.Aspect, error) {
	aspects := make([]grade.Aspect, 0)
	if err := repo.exec.SelectContext(ctx, &aspects, "SELECT "+aspectColumns+" FROM aspects ORDER BY position ASC, name ASC"); err != nil {
		return nil, errors.Wrap(err, "querying aspects")
	}
	if err := repo.withSubAspects(ctx, aspects); err != nil {
		return nil, err
	}
	return aspects, nil
}

func (repo *gradeRepository) FilterGrades(ctx context.Context, filter grade.Filter) ([]grade.Grade, error) {
	var w where
	if filter.StudentIDs != nil {
		if len(filter.StudentIDs) == 0 {
			return []grade.Grade{}, nil
		}
		w.add("student_id IN (?)", filter.StudentIDs)
	}
	if filter.SemesterID != "" {
		w.add("semester_id = ?", filter.SemesterID)
	}
	if filter.AspectID != "" {
		w.add("aspect_id = ?", filter.AspectID)
	}
	if !filter.AnySubAspect {
		if filter.SubAspectID.Valid {
			w.add("sub_aspect_id = ?", filter.SubAspectID.String)
		} else {
			w.add("sub_aspect_id IS NULL")
		}
	}

	grades := make([]grade.Grade, 0)
	q := "SELECT " + gradeColumns + " FROM grades" + w.String() + " ORDER BY student_id ASC, updated_at ASC"
	if err := selectIn(ctx, repo.exec, &grades, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering grades")
	}
	return grades, nil
}

func (repo *gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	g.ID = uuid.New().String()
	g.CreatedAt = stamp(g.CreatedAt)
	g.UpdatedAt = stamp(g.UpdatedAt)
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO grades ("+gradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		g.ID, g.StudentID, g.SemesterID, g.AspectID, g.SubAspectID, g.Description, g.CreatedAt, g.UpdatedAt,
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "inserting grade")
	}
	return g, nil
}

func (repo *gradeRepository) UpdateGradeDescription(ctx context.Context, id, description string, at time.Time) (grade.Grade, error) {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE grades SET description = ?, updated_at = ? WHERE id = ?"),
		description, stamp(at), id,
	)
	if err != nil {
		return grade.Grade{}, errors.Wrap(err, "updating grade")
	}
	if err = affectOne(res, grade.ErrNotFound); err != nil {
		return grade.Grade{}, err
	}

	var g grade.Grade
	if err = repo.exec.GetContext(ctx, &g, repo.exec.Rebind("SELECT "+gradeColumns+" FROM grades WHERE id = ?"), id); err != nil {
		return grade.Grade{}, trapNoRowsErr(err, grade.ErrNotFound, "finding grade")
	}
	return g, nil
}
